package service

import (
	"context"
	"errors"
	"sync"

	"github.com/capitalize-ai/campus-chat/internal/llm"
	"github.com/capitalize-ai/campus-chat/internal/model"
)

// fakeLLM streams a fixed list of chunks. When failAfter >= 0 it fails with
// err after that many chunks.
type fakeLLM struct {
	chunks    []string
	failAfter int
	err       error

	mu       sync.Mutex
	requests []*llm.CompletionRequest
	ctxErrs  []error
}

func newFakeLLM(chunks ...string) *fakeLLM {
	return &fakeLLM{chunks: chunks, failAfter: -1}
}

func (f *fakeLLM) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeLLM) CompleteStream(ctx context.Context, req *llm.CompletionRequest, cb llm.StreamCallback) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	var content string
	for i, c := range f.chunks {
		if i == f.failAfter {
			return nil, f.err
		}
		if err := cb(c, i); err != nil {
			return nil, err
		}
		content += c
	}
	if f.failAfter >= len(f.chunks) {
		return nil, f.err
	}

	f.mu.Lock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	f.mu.Unlock()

	return &llm.CompletionResponse{Content: content, TokensIn: 3, TokensOut: len(f.chunks)}, nil
}

func (f *fakeLLM) Name() string     { return "fake" }
func (f *fakeLLM) Models() []string { return []string{"fake-1"} }

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []*model.ConversationEvent
}

func (r *recorder) PublishEvent(_ context.Context, ev *model.ConversationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// chunkSink records what reached the caller.
type chunkSink struct {
	chunks []string
	failAt int
	err    error
}

func (s *chunkSink) WriteChunk(chunk string) error {
	if s.err != nil && len(s.chunks) == s.failAt {
		return s.err
	}
	s.chunks = append(s.chunks, chunk)
	return nil
}
