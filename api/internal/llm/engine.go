// Package llm is the contract between the reviewer and a hosted
// chat-completion model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyResponse = errors.New("empty response")

type Image struct {
	MIMEType string
	Data     []byte
}

// Turn is one user message: optional text followed by inline images.
type Turn struct {
	Text   string
	Images []Image
}

type Request struct {
	System      string
	Turns       []Turn
	MaxTokens   int
	Temperature *float32
}

// ImageCount is the number of inline images across all turns.
func (r Request) ImageCount() int {
	n := 0
	for _, t := range r.Turns {
		n += len(t.Images)
	}
	return n
}

type Engine interface {
	Name() string
	GetModel() string
	// Complete performs one request/response exchange and returns the text.
	Complete(ctx context.Context, req Request) (string, error)
}

type Engines struct {
	OpenAI Engine
	Gemini Engine
}

func (e *Engines) GetEngine(llmName string) (Engine, error) {
	var eng Engine
	switch strings.ToLower(strings.TrimSpace(llmName)) {
	case "gpt", "openai":
		eng = e.OpenAI
	case "gemini":
		eng = e.Gemini
	default:
		return nil, fmt.Errorf("unknown llm_name %q; use 'gpt' or 'gemini'", llmName)
	}
	if eng == nil {
		return nil, fmt.Errorf("llm %q is not configured", llmName)
	}
	return eng, nil
}
