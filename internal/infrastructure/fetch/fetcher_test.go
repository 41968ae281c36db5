package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agenticmap/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher() *Fetcher {
	return NewFetcher(Options{
		Timeout:   2 * time.Second,
		UserAgent: "test-agent",
	})
}

func TestFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "document", r.Header.Get("Sec-Fetch-Dest"))
		w.Write([]byte("<html><head><title>Trail Shoe</title></head><body><h1>Trail Shoe</h1></body></html>"))
	}))
	defer server.Close()

	page, err := newTestFetcher().Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, server.URL, page.URL)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, page.HTML, "Trail Shoe")
}

func TestFetch_BlockedStatusCodes(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusTooManyRequests} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		_, err := newTestFetcher().Fetch(context.Background(), server.URL)
		assert.True(t, errors.Is(err, domain.ErrPageBlocked), "status %d should map to ErrPageBlocked", status)
		server.Close()
	}
}

func TestFetch_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestFetcher().Fetch(context.Background(), server.URL)
	assert.True(t, errors.Is(err, domain.ErrPageNotFound))
}

func TestFetch_ChallengePage(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{
			name: "cloudflare marker in body",
			html: `<html><body><div id="cf-browser-verification"></div></body></html>`,
		},
		{
			name: "challenge title",
			html: `<html><head><title>Just a moment...</title></head><body></body></html>`,
		},
		{
			name: "akamai block page",
			html: `<html><head><title>Pardon Our Interruption</title></head><body></body></html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.html))
			}))
			defer server.Close()

			_, err := newTestFetcher().Fetch(context.Background(), server.URL)
			assert.True(t, errors.Is(err, domain.ErrPageBlocked), "challenge page should map to ErrPageBlocked")
		})
	}
}

func TestFetch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	fetcher := NewFetcher(Options{Timeout: 50 * time.Millisecond, UserAgent: "test-agent"})
	_, err := fetcher.Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFetchTimeout))
}

func TestFetch_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestFetcher().Fetch(context.Background(), server.URL)
	assert.True(t, errors.Is(err, domain.ErrFetchFailed))
}

func TestIsChallengePage_CleanPage(t *testing.T) {
	html := `<html><head><title>Trail Shoe — Example Store</title></head><body><h1>Trail Shoe</h1></body></html>`
	assert.False(t, isChallengePage(html))
}
