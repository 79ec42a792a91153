// Package structured performs schema-constrained model calls. A response that
// does not decode or does not validate is retried with the error fed back.
package structured

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"research-agent/internal/application/port/output"
	"research-agent/internal/domain/entity"

	"github.com/sashabaranov/go-openai/jsonschema"
)

var ErrSchemaViolation = errors.New("response does not match schema")

type validator interface {
	Validate() error
}

type Caller struct {
	llm         output.LLMPort
	logger      output.LoggerPort
	metrics     output.MetricsPort
	maxAttempts int
	temperature float32
}

func NewCaller(llm output.LLMPort, logger output.LoggerPort, metrics output.MetricsPort, maxAttempts int, temperature float32) *Caller {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if metrics == nil {
		metrics = output.NopMetrics{}
	}
	return &Caller{
		llm:         llm,
		logger:      logger,
		metrics:     metrics,
		maxAttempts: maxAttempts,
		temperature: temperature,
	}
}

var schemaCache sync.Map

func schemaFor[T any]() (*jsonschema.Definition, error) {
	var zero T
	typ := reflect.TypeOf(zero)
	if cached, ok := schemaCache.Load(typ); ok {
		return cached.(*jsonschema.Definition), nil
	}
	def, err := jsonschema.GenerateSchemaForType(zero)
	if err != nil {
		return nil, fmt.Errorf("generate schema for %s: %w", typ, err)
	}
	schemaCache.Store(typ, def)
	return def, nil
}

// Call asks for a T and retries until it decodes and validates.
func Call[T any](ctx context.Context, c *Caller, site string, tier output.ModelTier, messages []entity.Message) (T, error) {
	var zero T

	schema, err := schemaFor[T]()
	if err != nil {
		return zero, err
	}

	msgs := append([]entity.Message(nil), messages...)
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.llm.Chat(ctx, output.ChatRequest{
			Messages:    msgs,
			Temperature: c.temperature,
			Tier:        tier,
			Schema:      &output.ResponseSchema{Name: site, Schema: schema},
		})
		c.metrics.LLMCall(site, err)
		if err != nil {
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			c.logger.Warn("Model call failed", "site", site, "attempt", attempt, "error", err)
			lastErr = err
			continue
		}

		out, err := Decode[T](resp.Message.Content)
		if err == nil {
			return out, nil
		}

		c.logger.Warn("Model response rejected", "site", site, "attempt", attempt, "error", err)
		lastErr = err
		msgs = append(msgs,
			entity.AssistantMessage(resp.Message.Content),
			entity.UserMessage(fmt.Sprintf("Your previous response was rejected: %v. Reply again with a single JSON object that matches the schema.", err)),
		)
	}

	return zero, fmt.Errorf("%s: giving up after %d attempts: %w", site, c.maxAttempts, lastErr)
}

// Text asks for free text. Empty responses are retried.
func Text(ctx context.Context, c *Caller, site string, tier output.ModelTier, messages []entity.Message) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.llm.Chat(ctx, output.ChatRequest{
			Messages:    messages,
			Temperature: c.temperature,
			Tier:        tier,
		})
		c.metrics.LLMCall(site, err)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			c.logger.Warn("Model call failed", "site", site, "attempt", attempt, "error", err)
			lastErr = err
			continue
		}
		if text := strings.TrimSpace(resp.Message.Content); text != "" {
			return text, nil
		}
		lastErr = errors.New("empty response")
	}
	return "", fmt.Errorf("%s: giving up after %d attempts: %w", site, c.maxAttempts, lastErr)
}

// Decode extracts the outermost JSON object from content, unmarshals it and
// runs Validate when T has one.
func Decode[T any](content string) (T, error) {
	var out T

	content = strings.TrimSpace(content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return out, fmt.Errorf("%w: no JSON object found", ErrSchemaViolation)
	}

	if err := json.Unmarshal([]byte(content[start:end+1]), &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}

	if v, ok := any(out).(validator); ok {
		if err := v.Validate(); err != nil {
			return out, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
		}
	}
	return out, nil
}
