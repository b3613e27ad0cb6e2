package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
)

// Plan is a lightweight task breakdown generated before execution. It is
// advisory only: the model may consult it when picking the next action but
// nothing in the pipeline depends on its shape.
type Plan struct {
	GoalAnalysis    string   `json:"goal_analysis"`
	Approach        string   `json:"approach"`
	Steps           []string `json:"steps"`
	Risks           []string `json:"risks"`
	ExpectedOutcome string   `json:"expected_outcome"`
	RequiredTools   []string `json:"required_tools"`
}

const planningPromptFormat = `You are an AI assistant that creates detailed plans before executing tasks.
Given this request: %q

Create a structured plan with:
1. Goal Analysis: What exactly needs to be accomplished?
2. Steps Required: Break down into specific actionable steps
3. Potential Risks: Any safety concerns or edge cases
4. Expected Outcome: What success looks like
5. Required Tools: What system tools or commands might be needed
6. Approach: Brief reasoning path you will follow (knowledge sources, checks, or shortcuts)

Format your response as JSON:
{
    "goal_analysis": "...",
    "approach": "...",
    "steps": ["step1", "step2", "..."],
    "risks": ["risk1", "risk2", "..."],
    "expected_outcome": "...",
    "required_tools": ["tool1", "tool2", "..."]
}`

// PlanTask asks the backend for a task plan. A malformed or failed planning
// round degrades to a trivial single-step plan rather than blocking the turn.
func (d *Dispatcher) PlanTask(ctx context.Context, input string) *Plan {
	reply, err := d.backend.Send(ctx, fmt.Sprintf(planningPromptFormat, input))
	if err != nil {
		d.logger.Warn("plan generation failed", slog.Any("error", err))
		return fallbackPlan(input)
	}

	var plan Plan
	if err := json.Unmarshal([]byte(extractPlanJSON(reply)), &plan); err != nil {
		d.logger.Warn("plan response not parseable", slog.Any("error", err))
		return fallbackPlan(input)
	}
	return &plan
}

func fallbackPlan(input string) *Plan {
	return &Plan{
		GoalAnalysis:    "Direct execution",
		Approach:        "Use prior knowledge to answer directly.",
		Steps:           []string{input},
		Risks:           []string{},
		ExpectedOutcome: "Task completion",
		RequiredTools:   []string{},
	}
}

var planFenceRe = regexp.MustCompile("(?si)```(?:json)?\\s*(.*?)\\s*```")

// extractPlanJSON strips an optional code fence around the plan object.
func extractPlanJSON(reply string) string {
	if match := planFenceRe.FindStringSubmatch(reply); match != nil {
		return match[1]
	}
	return reply
}
