package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/leofalp/planner/core/structured"
	"github.com/leofalp/planner/patterns/graph"
	"github.com/leofalp/planner/providers/ai"
	"github.com/leofalp/planner/providers/observability"
)

// ObjectiveInterpreterName is the graph node name of the interpreter and its
// key in agent_outputs.
const ObjectiveInterpreterName = "objective_interpreter"

// objectivePrompt is the instruction sent with the teacher request. The
// request is quoted verbatim at the end.
const objectivePrompt = `Phân tích yêu cầu của giáo viên sau và trích xuất mục tiêu học tập cốt lõi.
THANG ĐO BLOOM: 1-Nhớ, 2-Hiểu, 3-Vận dụng, 4-Phân tích, 5-Đánh giá, 6-Sáng tạo.
YÊU CẦU: "%s"`

// ParsedObjective is the record requested from the model.
type ParsedObjective struct {
	ActionVerb string `json:"action_verb" jsonschema:"Động từ hành động chính, ví dụ: 'phân tích', 'trình bày'."`
	BloomLevel int    `json:"bloom_level" jsonschema:"Cấp độ tư duy theo thang Bloom (1-6)."`
	Topic      string `json:"topic" jsonschema:"Chủ đề chính của bài học."`
	GradeLevel string `json:"grade_level" jsonschema:"Cấp lớp của học sinh, ví dụ: 'Lớp 9'."`
}

// Objective converts the parsed record into the state form, with an empty
// constraint list.
func (parsed ParsedObjective) Objective() AnalyzedObjective {
	return AnalyzedObjective{
		ActionVerb:  parsed.ActionVerb,
		BloomLevel:  parsed.BloomLevel,
		Topic:       parsed.Topic,
		GradeLevel:  parsed.GradeLevel,
		Constraints: []string{},
	}
}

// BuildObjectivePrompt returns the interpreter instruction for request.
func BuildObjectivePrompt(request string) string {
	return fmt.Sprintf(objectivePrompt, request)
}

// ErrEmptyConversation is recorded when the interpreter runs on a state with
// no message to interpret.
var ErrEmptyConversation = errors.New("conversation has no message to interpret")

// ObjectiveInterpreter is the node that turns the latest conversation
// message into an AnalyzedObjective. Model failures never escape the node:
// they are recorded as an absent objective and an agent_outputs entry.
type ObjectiveInterpreter struct {
	extractor *structured.Extractor[ParsedObjective]
}

// NewObjectiveInterpreter creates the node over provider. Extraction
// options (model, instructions) are passed through to the extractor.
func NewObjectiveInterpreter(provider ai.Provider, opts ...structured.Option) (*ObjectiveInterpreter, error) {
	opts = append([]structured.Option{structured.WithName(ObjectiveInterpreterName)}, opts...)

	extractor, err := structured.New[ParsedObjective](provider, opts...)
	if err != nil {
		return nil, fmt.Errorf("objective interpreter: %w", err)
	}

	extractor.WithValidator(func(parsed ParsedObjective) error {
		return parsed.Objective().Validate()
	})

	return &ObjectiveInterpreter{extractor: extractor}, nil
}

// Run implements graph.Node.
func (interpreter *ObjectiveInterpreter) Run(ctx context.Context, state SharedState) (Patch, error) {
	observer := observability.ObserverFromContext(ctx)

	message, found := state.LastMessage()
	if !found {
		logError(ctx, observer, "objective interpretation skipped", ErrEmptyConversation)
		return failedObjectivePatch(structured.StatusMalformed, ErrEmptyConversation), nil
	}

	if observer != nil {
		observer.Info(ctx, "interpreting teacher request",
			observability.String(observability.AttrExtractionTarget, ObjectiveInterpreterName),
			observability.String("request", observability.TruncateStringDefault(message.Content)),
		)
	}

	switch outcome := interpreter.extractor.Extract(ctx, BuildObjectivePrompt(message.Content)).(type) {
	case structured.Parsed[ParsedObjective]:
		objective := outcome.Value.Objective()

		output := map[string]any{"status": structured.StatusParsed}
		if outcome.Response != nil && outcome.Response.Model != "" {
			output["model"] = outcome.Response.Model
		}

		if observer != nil {
			observer.Info(ctx, "objective parsed",
				observability.String("action_verb", objective.ActionVerb),
				observability.Int("bloom_level", objective.BloomLevel),
				observability.String("topic", objective.Topic),
				observability.String("grade_level", objective.GradeLevel),
			)
		}

		return Patch{
			AnalyzedObjective: graph.Set(&objective),
			AgentOutputs:      graph.Set(map[string]any{ObjectiveInterpreterName: output}),
		}, nil

	case structured.Malformed:
		logError(ctx, observer, "objective could not be parsed", outcome)
		return failedObjectivePatch(outcome.Status(), outcome), nil

	case structured.TransportFailure:
		logError(ctx, observer, "objective model call failed", outcome)
		return failedObjectivePatch(outcome.Status(), outcome), nil

	default:
		err := fmt.Errorf("unexpected extraction outcome %T", outcome)
		logError(ctx, observer, "objective interpretation failed", err)
		return failedObjectivePatch(structured.StatusMalformed, err), nil
	}
}

// failedObjectivePatch records an explicit absent objective.
func failedObjectivePatch(status string, cause error) Patch {
	return Patch{
		AnalyzedObjective: graph.Set[*AnalyzedObjective](nil),
		AgentOutputs: graph.Set(map[string]any{
			ObjectiveInterpreterName: map[string]any{
				"status": status,
				"error":  cause.Error(),
			},
		}),
	}
}

func logError(ctx context.Context, observer observability.Provider, msg string, err error) {
	if observer == nil {
		return
	}
	observer.Error(ctx, msg,
		observability.String(observability.AttrExtractionTarget, ObjectiveInterpreterName),
		observability.Error(err),
	)
}
