package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/findora/tool-radar/internal/llm"
	"github.com/findora/tool-radar/internal/models"
	"github.com/sirupsen/logrus"
)

// WorkflowGenerator plans multi-step workflows out of catalog tools
type WorkflowGenerator struct {
	gen llm.Generator
}

// NewWorkflowGenerator creates a generator. A nil generator always yields the fallback workflow.
func NewWorkflowGenerator(gen llm.Generator) *WorkflowGenerator {
	return &WorkflowGenerator{gen: gen}
}

// Generate builds a workflow for goal. Model failures produce a one-step fallback.
func (w *WorkflowGenerator) Generate(ctx context.Context, goal string, tools []models.Tool) (*models.Workflow, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, fmt.Errorf("goal is required")
	}

	if w.gen == nil {
		return fallbackWorkflow(goal, tools), nil
	}

	var workflow models.Workflow
	if err := llm.GenerateJSON(ctx, w.gen, workflowPrompt(goal, tools), &workflow); err != nil {
		logrus.Warnf("Workflow generation failed, using fallback: %v", err)
		return fallbackWorkflow(goal, tools), nil
	}
	if len(workflow.Steps) == 0 {
		logrus.Warn("Workflow generation returned no steps, using fallback")
		return fallbackWorkflow(goal, tools), nil
	}

	byName := make(map[string]models.Tool, len(tools))
	byID := make(map[string]bool, len(tools))
	for _, t := range tools {
		byName[strings.ToLower(t.Name)] = t
		byID[t.ID] = true
	}

	for i := range workflow.Steps {
		step := &workflow.Steps[i]
		step.StepNumber = i + 1
		if byID[step.RecommendedTool.ToolID] {
			continue
		}
		step.RecommendedTool.ToolID = ""
		if t, ok := byName[strings.ToLower(step.RecommendedTool.Name)]; ok {
			step.RecommendedTool.ToolID = t.ID
		}
	}
	if workflow.Summary == "" {
		workflow.Summary = "Workflow for: " + goal
	}

	return &workflow, nil
}

func workflowPrompt(goal string, tools []models.Tool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a step-by-step workflow for this goal: %q\n\n", goal)
	b.WriteString("Use only these tools. Prefer tools whose free tier needs no card, has no watermark and allows commercial use.\n")
	for _, t := range limitTools(tools, promptToolLimit) {
		ft := t.Pricing.FreeTier
		fmt.Fprintf(&b, "- id=%s name=%s category=%s model=%s free=%t card=%t watermark=%t commercial=%t price=%s\n",
			t.ID, t.Name, t.Category, t.Pricing.Model, ft.Exists, ft.RequiresCard, ft.Watermark, ft.CommercialUse,
			t.Pricing.PaidTier.StartPrice)
	}
	b.WriteString(`
Respond with JSON only:
{"steps": [{"stepNumber": 1, "name": "", "description": "",
  "recommendedTool": {"name": "", "toolId": "", "reason": ""},
  "pricing": {"cost": "", "freeTierAvailable": true, "notes": ""},
  "estimatedTime": ""}],
 "estimatedTime": "", "totalCost": "", "summary": ""}`)
	return b.String()
}

func fallbackWorkflow(goal string, tools []models.Tool) *models.Workflow {
	step := models.WorkflowStep{
		StepNumber:  1,
		Name:        "Planning",
		Description: "Plan your approach based on the goal",
		RecommendedTool: models.RecommendedTool{
			Name:   "ChatGPT",
			Reason: "Good for planning and brainstorming",
		},
		Pricing: models.StepPricing{
			Cost:              "$0",
			FreeTierAvailable: true,
			Notes:             "Free tier available",
		},
	}

	if matched := KeywordSearch(goal, tools); len(matched.ToolIDs) > 0 {
		for _, t := range tools {
			if t.ID != matched.ToolIDs[0] {
				continue
			}
			step.Name = "Get started"
			step.Description = fmt.Sprintf("Use %s to work towards: %s", t.Name, goal)
			step.RecommendedTool = models.RecommendedTool{
				Name:   t.Name,
				ToolID: t.ID,
				Reason: "Closest keyword match in the catalog",
			}
			step.Pricing = stepPricing(t.Pricing)
			break
		}
	} else {
		for _, t := range tools {
			if strings.EqualFold(t.Name, step.RecommendedTool.Name) {
				step.RecommendedTool.ToolID = t.ID
				break
			}
		}
	}

	return &models.Workflow{
		Steps:         []models.WorkflowStep{step},
		EstimatedTime: "1-2 hours",
		TotalCost:     step.Pricing.Cost,
		Summary:       "Workflow for: " + goal,
	}
}

func stepPricing(p models.Pricing) models.StepPricing {
	free := p.FreeTier.Normalized()
	if free.Exists {
		return models.StepPricing{Cost: "$0", FreeTierAvailable: true, Notes: free.Limit}
	}
	return models.StepPricing{Cost: p.PaidTier.StartPrice, FreeTierAvailable: false, Notes: "Paid plan required"}
}
