package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/findora/tool-radar/internal/llm"
	"github.com/findora/tool-radar/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	maxTaskMatches  = 10
	promptToolLimit = 50
	keywordMinLen   = 4
)

// TaskSearch maps a plain-language task to catalog tools
type TaskSearch struct {
	gen llm.Generator
}

// NewTaskSearch creates a task search. A nil generator means keyword matching only.
func NewTaskSearch(gen llm.Generator) *TaskSearch {
	return &TaskSearch{gen: gen}
}

type taskSearchReply struct {
	ToolIDs   []string `json:"toolIds"`
	Reasoning string   `json:"reasoning"`
}

// Search returns up to ten tool ids suited to task, best match first
func (s *TaskSearch) Search(ctx context.Context, task string, tools []models.Tool) (*models.TaskMatch, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, fmt.Errorf("task description is required")
	}

	if s.gen != nil {
		match, err := s.searchLLM(ctx, task, tools)
		if err == nil && len(match.ToolIDs) > 0 {
			return match, nil
		}
		if err != nil {
			logrus.Warnf("AI task search failed, using keyword matching: %v", err)
		}
	}

	return KeywordSearch(task, tools), nil
}

func (s *TaskSearch) searchLLM(ctx context.Context, task string, tools []models.Tool) (*models.TaskMatch, error) {
	type promptTool struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Category    models.Category `json:"category"`
	}
	var list []promptTool
	for _, t := range limitTools(tools, promptToolLimit) {
		list = append(list, promptTool{t.ID, t.Name, t.Description, t.Category})
	}
	catalog, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`A user wants to: %q

Available tools:
%s

Pick the tools best suited to this task, best first, at most %d.
Respond with JSON only: {"toolIds": ["id1", "id2"], "reasoning": "one sentence"}`, task, catalog, maxTaskMatches)

	var reply taskSearchReply
	if err := llm.GenerateJSON(ctx, s.gen, prompt, &reply); err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(tools))
	for _, t := range tools {
		known[t.ID] = true
	}

	match := &models.TaskMatch{ToolIDs: []string{}, Reasoning: reply.Reasoning}
	seen := make(map[string]bool)
	for _, id := range reply.ToolIDs {
		if !known[id] || seen[id] {
			continue
		}
		seen[id] = true
		match.ToolIDs = append(match.ToolIDs, id)
		if len(match.ToolIDs) == maxTaskMatches {
			break
		}
	}
	if match.Reasoning == "" {
		match.Reasoning = "AI matched tools to your task"
	}
	return match, nil
}

// KeywordSearch matches task words of four or more letters against tool
// name, description and category, in catalog order
func KeywordSearch(task string, tools []models.Tool) *models.TaskMatch {
	words := keywords(task)
	match := &models.TaskMatch{ToolIDs: []string{}, Reasoning: "Matched based on keywords"}

	for _, t := range tools {
		text := strings.ToLower(t.Name + " " + t.Description + " " + string(t.Category))
		for _, w := range words {
			if strings.Contains(text, w) {
				match.ToolIDs = append(match.ToolIDs, t.ID)
				break
			}
		}
		if len(match.ToolIDs) == maxTaskMatches {
			break
		}
	}
	return match
}

func keywords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var words []string
	for _, f := range fields {
		if len([]rune(f)) >= keywordMinLen {
			words = append(words, f)
		}
	}
	return words
}

func limitTools(tools []models.Tool, n int) []models.Tool {
	if len(tools) > n {
		return tools[:n]
	}
	return tools
}
