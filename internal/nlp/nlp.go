// Package nlp is the optional semantic fallback behind the rule-based classifier.
// It asks an OpenAI-compatible chat model for an intent label or an entity pick.
package nlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"tomcat/internal/model"
)

// ErrNoChoices is returned when the model answers with nothing.
var ErrNoChoices = errors.New("no response choices")

// Labels are the intent kinds the model may predict.
var Labels = []model.IntentKind{
	model.IntentNone,
	model.IntentShowPhoto,
	model.IntentWhoIs,
	model.IntentCVIdentify,
	model.IntentFeedUpdate,
	model.IntentSubRequest,
	model.IntentSubAccept,
}

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client predicts intents and entities with a chat model.
type Client struct {
	client  chatClient
	model   string
	timeout time.Duration
	log     *slog.Logger
}

// New creates a Client. baseURL may be empty for the default OpenAI endpoint.
func New(apiKey, baseURL, modelName string, log *slog.Logger) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		client:  openai.NewClientWithConfig(cfg),
		model:   modelName,
		timeout: 10 * time.Second,
		log:     log,
	}
}

const intentPrompt = `You label chat messages from a volunteer group that feeds a campus cat colony.
Pick exactly one label:
- show_photo: asks to see a photo of a named cat
- who_is: asks who a named cat is or for its profile
- cv_identify: asks which cat is in an attached picture
- feed_update: reports that a feeding station was fed
- sub_request: asks someone to cover their feeding shift
- sub_accept: agrees to cover someone's feeding shift
- none: anything else
Reply with JSON only: {"label": "<label>", "confidence": <0..1>}`

const entityPrompt = `You match a chat message to one name from a fixed list.
Reply with JSON only: {"name": "<name from the list, or empty>", "confidence": <0..1>}`

type prediction struct {
	Label      string  `json:"label"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// PredictIntent returns the model's label for text. Labels outside Labels map to none.
func (c *Client) PredictIntent(ctx context.Context, text string) (model.IntentKind, float64, error) {
	p, err := c.ask(ctx, intentPrompt, text)
	if err != nil {
		return model.IntentNone, 0, err
	}
	kind, ok := model.ParseIntentKind(strings.TrimSpace(p.Label))
	if !ok || !allowed(kind) {
		c.log.Debug("nlp label rejected", "label", p.Label)
		return model.IntentNone, 0, nil
	}
	return kind, clamp(p.Confidence), nil
}

// ScoreEntity returns the vocab entry the model matches to text. A name that is not
// in vocab scores zero.
func (c *Client) ScoreEntity(ctx context.Context, text string, vocab []string) (string, float64, error) {
	if len(vocab) == 0 {
		return "", 0, nil
	}
	user := fmt.Sprintf("Names: %s\nMessage: %s", strings.Join(vocab, ", "), text)
	p, err := c.ask(ctx, entityPrompt, user)
	if err != nil {
		return "", 0, err
	}
	name := strings.TrimSpace(p.Name)
	for _, v := range vocab {
		if strings.EqualFold(v, name) {
			return v, clamp(p.Confidence), nil
		}
	}
	return "", 0, nil
}

func (c *Client) ask(ctx context.Context, system, user string) (*prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature:    0,
		MaxTokens:      60,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	var p prediction
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return nil, fmt.Errorf("decode prediction %q: %w", content, err)
	}
	return &p, nil
}

func allowed(k model.IntentKind) bool {
	for _, l := range Labels {
		if l == k {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	return min(max(v, 0), 1)
}
