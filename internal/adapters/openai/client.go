package openai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/rs/zerolog"

	"sprintboard/internal/config"
	"sprintboard/internal/domain"
)

type Client struct {
	key   string
	model string
	cli   openai.Client
	log   zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	model := cfg.OpenAIModel
	if strings.TrimSpace(model) == "" {
		model = "gpt-4.1-mini"
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.OpenAIKey))
	return &Client{key: cfg.OpenAIKey, model: model, cli: cli, log: log}
}

// SummarizeIteration turns a closed iteration's metrics into a short
// plain-language sprint recap for the dashboard.
func (c *Client) SummarizeIteration(ctx context.Context, it domain.Iteration, m domain.Metrics) (string, error) {
	if strings.TrimSpace(c.key) == "" {
		return "", errors.New("openai: missing key")
	}
	payload := map[string]any{"iteration": it, "metrics": m}
	userContent := ""
	if b, err := json.Marshal(payload); err == nil {
		userContent = string(b)
	}
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are an agile coach. Given a closed sprint and its metrics (points, completion rate, bug count, per-type breakdown), write a concise 3-5 sentence recap for stakeholders, noting completion against target and anything unusual."),
			openai.UserMessage(userContent),
		},
	}
	resp, err := c.cli.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
