// Package testutil holds in-memory doubles for the output ports.
package testutil

import (
	"context"
	"errors"
	"sync"

	"research-agent/internal/application/port/output"
	"research-agent/internal/domain/entity"
)

// TextSite is the key for calls made without a response schema.
const TextSite = "text"

// LLM replays scripted responses per call site (the schema name). The last
// response of a site repeats once the script is exhausted.
type LLM struct {
	mu        sync.Mutex
	responses map[string][]string
	errs      map[string]error
	Calls     []output.ChatRequest
}

func NewLLM() *LLM {
	return &LLM{
		responses: make(map[string][]string),
		errs:      make(map[string]error),
	}
}

func (l *LLM) On(site string, responses ...string) *LLM {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.responses[site] = append(l.responses[site], responses...)
	return l
}

func (l *LLM) Fail(site string, err error) *LLM {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs[site] = err
	return l
}

func (l *LLM) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.Calls = append(l.Calls, req)

	site := TextSite
	if req.Schema != nil {
		site = req.Schema.Name
	}
	if err := l.errs[site]; err != nil {
		return nil, err
	}

	queue := l.responses[site]
	if len(queue) == 0 {
		return nil, errors.New("testutil: no scripted response for " + site)
	}
	content := queue[0]
	if len(queue) > 1 {
		l.responses[site] = queue[1:]
	}
	return &output.ChatResponse{Message: entity.AssistantMessage(content)}, nil
}

func (l *LLM) CallsFor(site string) []output.ChatRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []output.ChatRequest
	for _, c := range l.Calls {
		name := TextSite
		if c.Schema != nil {
			name = c.Schema.Name
		}
		if name == site {
			out = append(out, c)
		}
	}
	return out
}
