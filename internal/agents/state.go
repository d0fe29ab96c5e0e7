package agents

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/leofalp/planner/patterns/graph"
)

// State field names, also used as JSON keys of the transport form.
const (
	FieldConversation      = "conversation"
	FieldRequestKind       = "request_kind"
	FieldAnalyzedObjective = "analyzed_objective"
	FieldPedagogyStrategy  = "pedagogy_strategy"
	FieldAgentOutputs      = "agent_outputs"
	FieldFinalOutput       = "final_output"
)

// Message roles of the conversation.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RequestKind classifies what the teacher asked for.
type RequestKind string

const (
	RequestLessonPlan          RequestKind = "lesson_plan"
	RequestRoadmap             RequestKind = "roadmap"
	RequestClarificationNeeded RequestKind = "clarification_needed"
)

// Valid reports whether kind is one of the known request kinds.
func (kind RequestKind) Valid() bool {
	switch kind {
	case RequestLessonPlan, RequestRoadmap, RequestClarificationNeeded:
		return true
	}
	return false
}

// Bloom taxonomy bounds.
const (
	MinBloomLevel = 1
	MaxBloomLevel = 6
)

// AnalyzedObjective is the learning objective extracted from a request.
type AnalyzedObjective struct {
	ActionVerb  string   `json:"action_verb"`
	BloomLevel  int      `json:"bloom_level"`
	Topic       string   `json:"topic"`
	GradeLevel  string   `json:"grade_level"`
	Constraints []string `json:"constraints"`
}

// Validate checks that the four core fields are set and that BloomLevel is
// within 1..6. Every problem is reported.
func (objective AnalyzedObjective) Validate() error {
	var problems []error

	if strings.TrimSpace(objective.ActionVerb) == "" {
		problems = append(problems, errors.New("action_verb is empty"))
	}
	if objective.BloomLevel < MinBloomLevel || objective.BloomLevel > MaxBloomLevel {
		problems = append(problems, fmt.Errorf("bloom_level %d is outside %d..%d", objective.BloomLevel, MinBloomLevel, MaxBloomLevel))
	}
	if strings.TrimSpace(objective.Topic) == "" {
		problems = append(problems, errors.New("topic is empty"))
	}
	if strings.TrimSpace(objective.GradeLevel) == "" {
		problems = append(problems, errors.New("grade_level is empty"))
	}

	return errors.Join(problems...)
}

// PedagogyStrategy is the teaching approach chosen for an objective.
type PedagogyStrategy struct {
	ChosenPedagogy     string           `json:"chosen_pedagogy"`
	Rationale          string           `json:"rationale"`
	SuggestedStructure []map[string]any `json:"suggested_structure"`
}

// SharedState is the record threaded through one planning run. Nodes receive
// it by value and must treat the slices and maps it holds as read-only; they
// contribute through a Patch.
type SharedState struct {
	Conversation      []Message          `json:"conversation"`
	RequestKind       *RequestKind       `json:"request_kind"`
	AnalyzedObjective *AnalyzedObjective `json:"analyzed_objective"`
	PedagogyStrategy  *PedagogyStrategy  `json:"pedagogy_strategy"`
	AgentOutputs      map[string]any     `json:"agent_outputs"`
	FinalOutput       *string            `json:"final_output"`
}

// Patch is the sparse update a node returns. Only the fields a node sets are
// folded; Set(nil) on a pointer field records an explicit absence.
type Patch struct {
	Conversation      graph.Update[[]Message]
	RequestKind       graph.Update[*RequestKind]
	AnalyzedObjective graph.Update[*AnalyzedObjective]
	PedagogyStrategy  graph.Update[*PedagogyStrategy]
	AgentOutputs      graph.Update[map[string]any]
	FinalOutput       graph.Update[*string]
}

// NewState creates the initial state of a run: the request as the single
// user message and every other field unset.
func NewState(request string) SharedState {
	return SharedState{
		Conversation: []Message{{Role: RoleUser, Content: request}},
	}
}

// LastMessage returns the most recent conversation message.
func (state SharedState) LastMessage() (Message, bool) {
	if len(state.Conversation) == 0 {
		return Message{}, false
	}
	return state.Conversation[len(state.Conversation)-1], true
}

var stateSchema = sync.OnceValues(func() (*graph.Schema[SharedState, Patch], error) {
	return graph.NewSchema(
		graph.NewChannel(FieldConversation, graph.ReducerAppend,
			func(state *SharedState) *[]Message { return &state.Conversation },
			func(patch *Patch) graph.Update[[]Message] { return patch.Conversation },
		),
		graph.NewChannel(FieldRequestKind, graph.ReducerReplace,
			func(state *SharedState) **RequestKind { return &state.RequestKind },
			func(patch *Patch) graph.Update[*RequestKind] { return patch.RequestKind },
		),
		graph.NewChannel(FieldAnalyzedObjective, graph.ReducerReplace,
			func(state *SharedState) **AnalyzedObjective { return &state.AnalyzedObjective },
			func(patch *Patch) graph.Update[*AnalyzedObjective] { return patch.AnalyzedObjective },
		),
		graph.NewChannel(FieldPedagogyStrategy, graph.ReducerReplace,
			func(state *SharedState) **PedagogyStrategy { return &state.PedagogyStrategy },
			func(patch *Patch) graph.Update[*PedagogyStrategy] { return patch.PedagogyStrategy },
		),
		graph.NewChannel(FieldAgentOutputs, graph.ReducerDeepMerge,
			func(state *SharedState) *map[string]any { return &state.AgentOutputs },
			func(patch *Patch) graph.Update[map[string]any] { return patch.AgentOutputs },
		),
		graph.NewChannel(FieldFinalOutput, graph.ReducerReplace,
			func(state *SharedState) **string { return &state.FinalOutput },
			func(patch *Patch) graph.Update[*string] { return patch.FinalOutput },
		),
	)
})

// StateSchema returns the process-wide reducer table of SharedState:
// conversation appends, agent_outputs deep merges, every other field is
// replaced by the last write.
func StateSchema() (*graph.Schema[SharedState, Patch], error) {
	return stateSchema()
}
