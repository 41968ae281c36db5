package usecase

import (
	"context"
	"sync"

	"github.com/agenticmap/backend/internal/domain"
)

// chatReply scripts one response from the mock chat client.
type chatReply struct {
	content string
	tokens  int
	err     error
}

// mockChat is a scripted domain.ChatClient that records every request.
// When the script runs out, the last reply repeats.
type mockChat struct {
	mu       sync.Mutex
	replies  []chatReply
	requests []domain.ChatRequest
}

func (m *mockChat) Complete(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if len(m.replies) == 0 {
		return &domain.ChatResponse{Content: "{}"}, nil
	}
	reply := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	if reply.err != nil {
		return nil, reply.err
	}
	return &domain.ChatResponse{Content: reply.content, TokensUsed: reply.tokens}, nil
}

func (m *mockChat) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *mockChat) request(i int) domain.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[i]
}

// mockFetcher serves a fixed page (or error) and counts calls.
type mockFetcher struct {
	mu    sync.Mutex
	page  *domain.FetchedPage
	err   error
	delay func()
	count int
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) (*domain.FetchedPage, error) {
	m.mu.Lock()
	m.count++
	m.mu.Unlock()
	if m.delay != nil {
		m.delay()
	}
	if m.err != nil {
		return nil, m.err
	}
	page := *m.page
	page.URL = url
	return &page, nil
}

func (m *mockFetcher) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// mockExtractor returns fixed signals (or an error).
type mockExtractor struct {
	signals *domain.RawSignals
	err     error
}

func (m *mockExtractor) Extract(page *domain.FetchedPage) (*domain.RawSignals, error) {
	if m.err != nil {
		return nil, m.err
	}
	signals := *m.signals
	return &signals, nil
}
