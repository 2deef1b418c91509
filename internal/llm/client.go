package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// ErrEmptyResponse is returned when the model answers with no text
var ErrEmptyResponse = errors.New("empty model response")

// Generator produces a text completion for a single prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ChatSession is one multi-turn conversation. History lives in the session.
type ChatSession interface {
	Send(ctx context.Context, message string) (string, error)
}

// Chatter starts conversations
type Chatter interface {
	NewChat(ctx context.Context, systemInstruction string) (ChatSession, error)
}

// Client talks to Gemini through the genai SDK
type Client struct {
	client     *genai.Client
	model      string
	maxRetries int
	backoff    time.Duration
}

// Ensure Client implements Generator and Chatter
var (
	_ Generator = (*Client)(nil)
	_ Chatter   = (*Client)(nil)
)

// NewClient creates a Gemini client for the given model
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Client{
		client:     client,
		model:      model,
		maxRetries: 2,
		backoff:    time.Second,
	}, nil
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

// Generate sends prompt as a single user turn, retrying transient failures
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.2),
	}

	var text string
	err := retry(ctx, c.maxRetries+1, c.backoff, func() error {
		resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
		if err != nil {
			return err
		}
		text = resp.Text()
		if strings.TrimSpace(text) == "" {
			return ErrEmptyResponse
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}

	return text, nil
}

// NewChat opens a conversation grounded by systemInstruction
func (c *Client) NewChat(ctx context.Context, systemInstruction string) (ChatSession, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.7),
	}
	if systemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}

	chat, err := c.client.Chats.Create(ctx, c.model, config, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	return &geminiChat{chat: chat}, nil
}

type geminiChat struct {
	chat *genai.Chat
}

func (g *geminiChat) Send(ctx context.Context, message string) (string, error) {
	resp, err := g.chat.SendMessage(ctx, genai.Part{Text: message})
	if err != nil {
		return "", fmt.Errorf("chat message failed: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// retry calls fn up to attempts times, doubling the wait after each failure
func retry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	var err error
	wait := backoff

	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		logrus.Warnf("LLM call failed (attempt %d/%d): %v", attempt, attempts, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}

	return err
}
