// Package script turns document text into a teacher/student dialogue by
// prompting an OpenAI-compatible chat model.
package script

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/config"
	"github.com/book-expert/podcast-service/internal/core"
	"github.com/book-expert/podcast-service/internal/voice"
	"github.com/sashabaranov/go-openai"
)

// Log messages.
const (
	logGenerating = "Generating %s script from %d characters with model %s"
	logTruncated  = "Source text truncated from %d to %d characters"
	logGenerated  = "Generated script %q with %d turns"
	logBadReply   = "Model reply could not be parsed: %v"
)

// Error formats.
const (
	errFmtCompletion = "%w: chat completion failed: %w"
	errFmtNoChoices  = "%w: model returned no choices"
	errFmtParse      = "%w: failed to parse script JSON: %w"
	errFmtEmpty      = "%w: model returned a script without conversation turns"
)

// ChatCompleter is the subset of the go-openai client used here.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Options tune the chat request.
type Options struct {
	Model         string
	Temperature   float64
	MaxTokens     int
	MaxInputChars int
	Timeout       time.Duration
}

// OptionsFromConfig copies the model settings out of the llm section.
func OptionsFromConfig(cfg config.LLMConfig) Options {
	return Options{
		Model:         cfg.Model,
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
		MaxInputChars: cfg.MaxInputChars,
		Timeout:       cfg.Timeout(),
	}
}

// NewClient builds the chat client once at startup.
func NewClient(cfg config.LLMConfig) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return openai.NewClientWithConfig(clientConfig)
}

// Generator implements core.ScriptGenerator.
type Generator struct {
	client ChatCompleter
	opts   Options
	log    *logger.Logger
}

// NewGenerator returns a generator using the given client.
func NewGenerator(client ChatCompleter, opts Options, log *logger.Logger) *Generator {
	if opts.Model == "" {
		opts.Model = config.DefaultLLMModel
	}

	if opts.MaxTokens <= 0 {
		opts.MaxTokens = config.DefaultMaxTokens
	}

	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = config.DefaultMaxInput
	}

	return &Generator{client: client, opts: opts, log: log}
}

// Generate asks the model for a script in the language. It makes exactly one
// attempt; any failure wraps core.ErrScriptGeneration.
func (g *Generator) Generate(ctx context.Context, text, language string) (*core.Script, error) {
	languageName := voice.LanguageName(language)

	truncated := Truncate(text, g.opts.MaxInputChars)
	if len(truncated) != len(text) {
		g.log.Info(logTruncated, len([]rune(text)), g.opts.MaxInputChars)
	}

	g.log.Info(logGenerating, languageName, len([]rune(truncated)), g.opts.Model)

	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	response, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt(languageName)},
			{Role: openai.ChatMessageRoleUser, Content: UserPrompt(languageName, truncated)},
		},
		Temperature: float32(g.opts.Temperature),
		MaxTokens:   g.opts.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf(errFmtCompletion, core.ErrScriptGeneration, err)
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf(errFmtNoChoices, core.ErrScriptGeneration)
	}

	script, err := Parse(response.Choices[0].Message.Content)
	if err != nil {
		g.log.Warn(logBadReply, err)

		return nil, err
	}

	g.log.Info(logGenerated, script.Title, len(script.Conversation))

	return script, nil
}

// Parse decodes a model reply into a script after stripping code fences.
func Parse(reply string) (*core.Script, error) {
	var script core.Script

	err := json.Unmarshal([]byte(StripCodeFence(strings.TrimSpace(reply))), &script)
	if err != nil {
		return nil, fmt.Errorf(errFmtParse, core.ErrScriptGeneration, err)
	}

	if len(script.Conversation) == 0 {
		return nil, fmt.Errorf(errFmtEmpty, core.ErrScriptGeneration)
	}

	return &script, nil
}
