package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leofalp/planner/internal/agents"
)

// summaryMarkdown describes a final state for the terminal.
func summaryMarkdown(state agents.SharedState, runID string) string {
	var doc strings.Builder

	doc.WriteString("# Kế hoạch bài dạy\n\n")
	if message, ok := state.LastMessage(); ok {
		fmt.Fprintf(&doc, "> %s\n\n", strings.ReplaceAll(message.Content, "\n", " "))
	}

	doc.WriteString("## Mục tiêu học tập\n\n")
	if objective := state.AnalyzedObjective; objective != nil {
		doc.WriteString("| Trường | Giá trị |\n|---|---|\n")
		fmt.Fprintf(&doc, "| Động từ hành động | %s |\n", cell(objective.ActionVerb))
		fmt.Fprintf(&doc, "| Mức độ Bloom | %d |\n", objective.BloomLevel)
		fmt.Fprintf(&doc, "| Chủ đề | %s |\n", cell(objective.Topic))
		fmt.Fprintf(&doc, "| Khối lớp | %s |\n", cell(objective.GradeLevel))
		if len(objective.Constraints) > 0 {
			fmt.Fprintf(&doc, "| Ràng buộc | %s |\n", cell(strings.Join(objective.Constraints, "; ")))
		}
		doc.WriteString("\n")
	} else {
		doc.WriteString("_Không xác định được mục tiêu._\n\n")
	}

	if len(state.AgentOutputs) > 0 {
		doc.WriteString("## Trạng thái các bước\n\n")
		names := make([]string, 0, len(state.AgentOutputs))
		for name := range state.AgentOutputs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&doc, "- **%s**: %s\n", name, describeOutput(state.AgentOutputs[name]))
		}
		doc.WriteString("\n")
	}

	fmt.Fprintf(&doc, "---\n\nMã lần chạy: `%s`\n", runID)
	return doc.String()
}

func describeOutput(output any) string {
	fields, ok := output.(map[string]any)
	if !ok {
		return fmt.Sprint(output)
	}
	parts := make([]string, 0, 3)
	for _, key := range []string{"status", "model", "error"} {
		if value, found := fields[key]; found {
			parts = append(parts, fmt.Sprintf("%s=%v", key, value))
		}
	}
	return strings.Join(parts, ", ")
}

// cell escapes a value for a markdown table cell.
func cell(value string) string {
	value = strings.ReplaceAll(value, "|", `\|`)
	return strings.ReplaceAll(value, "\n", " ")
}
