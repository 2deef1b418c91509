package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/findora/tool-radar/internal/dataset"
	"github.com/findora/tool-radar/internal/llm"
	"github.com/findora/tool-radar/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

type fakeChat struct {
	system string
	sent   []string
}

func (f *fakeChat) Send(ctx context.Context, message string) (string, error) {
	f.sent = append(f.sent, message)
	return "echo: " + message, nil
}

type fakeChatter struct {
	chats []*fakeChat
	err   error
}

func (f *fakeChatter) NewChat(ctx context.Context, systemInstruction string) (llm.ChatSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	c := &fakeChat{system: systemInstruction}
	f.chats = append(f.chats, c)
	return c, nil
}

func catalogTools() []models.Tool {
	return dataset.MustLoad().Tools()
}

func TestChatManager_Lifecycle(t *testing.T) {
	chatter := &fakeChatter{}
	m := NewChatManager(chatter, time.Minute)
	ctx := context.Background()

	id, err := m.Start(ctx, catalogTools())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.Len(t, chatter.chats, 1)
	assert.Contains(t, chatter.chats[0].system, "ChatGPT")

	reply, err := m.Send(ctx, id, "hello")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", reply)

	require.NoError(t, m.Close(id))
	_, err = m.Send(ctx, id, "again")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Close(id), ErrSessionNotFound)
}

func TestChatManager_SessionsAreIndependent(t *testing.T) {
	chatter := &fakeChatter{}
	m := NewChatManager(chatter, time.Minute)
	ctx := context.Background()

	a, err := m.Start(ctx, nil)
	require.NoError(t, err)
	b, err := m.Start(ctx, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	_, err = m.Send(ctx, a, "first")
	require.NoError(t, err)

	assert.Equal(t, []string{"first"}, chatter.chats[0].sent)
	assert.Empty(t, chatter.chats[1].sent)
}

func TestChatManager_Disabled(t *testing.T) {
	m := NewChatManager(nil, time.Minute)
	assert.False(t, m.Enabled())

	_, err := m.Start(context.Background(), nil)
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = m.Send(context.Background(), "x", "hi")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestChatManager_Sweep(t *testing.T) {
	m := NewChatManager(&fakeChatter{}, time.Minute)
	_, err := m.Start(context.Background(), nil)
	require.NoError(t, err)

	assert.Zero(t, m.Sweep())

	m.now = func() time.Time { return time.Now().Add(5 * time.Minute) }
	assert.Equal(t, 1, m.Sweep())
	assert.Zero(t, m.Len())
}

func TestTaskSearch_LLM(t *testing.T) {
	gen := &fakeGenerator{reply: `{"toolIds": ["suno", "not-a-tool", "suno", "chatgpt"], "reasoning": "music first"}`}
	s := NewTaskSearch(gen)

	match, err := s.Search(context.Background(), "write a jingle", catalogTools())
	require.NoError(t, err)
	assert.Equal(t, []string{"suno", "chatgpt"}, match.ToolIDs)
	assert.Equal(t, "music first", match.Reasoning)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "write a jingle")
}

func TestTaskSearch_FallsBackToKeywords(t *testing.T) {
	tests := []struct {
		name string
		gen  llm.Generator
	}{
		{name: "No model configured", gen: nil},
		{name: "Model error", gen: &fakeGenerator{err: errors.New("quota")}},
		{name: "Unparseable reply", gen: &fakeGenerator{reply: "no idea"}},
		{name: "Only unknown ids", gen: &fakeGenerator{reply: `{"toolIds": ["ghost"]}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewTaskSearch(tt.gen)
			match, err := s.Search(context.Background(), "Remove the background from a photo", catalogTools())
			require.NoError(t, err)
			assert.Equal(t, "Matched based on keywords", match.Reasoning)
			assert.Contains(t, match.ToolIDs, "remove-bg")
		})
	}
}

func TestTaskSearch_EmptyTask(t *testing.T) {
	_, err := NewTaskSearch(nil).Search(context.Background(), "   ", catalogTools())
	assert.Error(t, err)
}

func TestKeywordSearch(t *testing.T) {
	tools := []models.Tool{
		{ID: "a", Name: "Alpha", Description: "video editing studio"},
		{ID: "b", Name: "Bravo", Description: "writes code"},
	}

	// short words never match
	assert.Empty(t, KeywordSearch("an ai for me", tools).ToolIDs)
	assert.Equal(t, []string{"a"}, KeywordSearch("edit my VIDEO!", tools).ToolIDs)

	many := make([]models.Tool, 25)
	for i := range many {
		many[i] = models.Tool{ID: strings.Repeat("x", i+1), Description: "image tool"}
	}
	assert.Len(t, KeywordSearch("image", many).ToolIDs, maxTaskMatches)
}

func TestWorkflowGenerator_LLM(t *testing.T) {
	gen := &fakeGenerator{reply: "```json\n" + `{
		"steps": [
			{"stepNumber": 7, "name": "Draft", "description": "Write copy",
			 "recommendedTool": {"name": "claude", "reason": "long form"},
			 "pricing": {"cost": "$0", "freeTierAvailable": true}},
			{"stepNumber": 9, "name": "Visuals", "description": "Make images",
			 "recommendedTool": {"name": "Unknown Tool", "toolId": "ghost", "reason": "x"},
			 "pricing": {"cost": "$10", "freeTierAvailable": false}}
		],
		"estimatedTime": "2 hours", "totalCost": "$10", "summary": "Launch post"
	}` + "\n```"}

	w := NewWorkflowGenerator(gen)
	wf, err := w.Generate(context.Background(), "Launch a blog post", catalogTools())
	require.NoError(t, err)

	require.Len(t, wf.Steps, 2)
	assert.Equal(t, 1, wf.Steps[0].StepNumber)
	assert.Equal(t, 2, wf.Steps[1].StepNumber)
	assert.Equal(t, "claude", wf.Steps[0].RecommendedTool.ToolID)
	assert.Empty(t, wf.Steps[1].RecommendedTool.ToolID)
	assert.Equal(t, "Launch post", wf.Summary)
	assert.Contains(t, gen.prompts[0], "watermark")
}

func TestWorkflowGenerator_Fallback(t *testing.T) {
	tests := []struct {
		name string
		gen  llm.Generator
	}{
		{name: "No model configured", gen: nil},
		{name: "Model error", gen: &fakeGenerator{err: errors.New("down")}},
		{name: "Malformed reply", gen: &fakeGenerator{reply: `{"steps": [`}},
		{name: "No steps", gen: &fakeGenerator{reply: `{"steps": []}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf, err := NewWorkflowGenerator(tt.gen).Generate(context.Background(), "compose background music", catalogTools())
			require.NoError(t, err)
			require.Len(t, wf.Steps, 1)
			assert.Equal(t, 1, wf.Steps[0].StepNumber)
			assert.Equal(t, "Workflow for: compose background music", wf.Summary)
			assert.NotEmpty(t, wf.Steps[0].RecommendedTool.ToolID)
		})
	}
}

func TestWorkflowGenerator_EmptyGoal(t *testing.T) {
	_, err := NewWorkflowGenerator(nil).Generate(context.Background(), "", catalogTools())
	assert.Error(t, err)
}
