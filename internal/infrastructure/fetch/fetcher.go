package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/agenticmap/backend/internal/domain"
	"go.uber.org/zap"
)

// challengeMarkers are strings that only appear on Cloudflare/Akamai
// bot-protection interstitials. Those pages come back HTTP 200 but carry no
// product data, so catching them here prevents indexing a useless record.
var challengeMarkers = []string{
	"cf-browser-verification",
	"cf_chl_opt",
	"cf_chl_prog",
	"__cf_chl_tk__",
	"DDoS protection by Cloudflare",
	"Checking if the site connection is secure",
	"_abck",
	"ak_bmsc",
	"akamai-ghost",
	"Pardon Our Interruption",
}

var challengeTitles = []string{
	"just a moment",
	"attention required",
	"checking your browser",
	"please wait",
	"security check",
	"one moment, please",
	"access denied",
	"pardon our interruption",
	"service unavailable",
	"forbidden",
}

var titleTagRegex = regexp.MustCompile(`(?i)<title[^>]*>([^<]+)</title>`)

// Fetcher retrieves product pages over plain HTTP with a browser-like
// header set. JS-rendered stores that demand a real browser are out of its
// reach; it reports those as blocked so the caller can surface the reason.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	logger     *zap.Logger
}

// Options tunes the fetcher.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Logger    *zap.Logger
}

// NewFetcher creates a page fetcher.
func NewFetcher(opts Options) *Fetcher {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  opts.UserAgent,
		logger:     logger,
	}
}

// Fetch downloads a page and classifies the outcome: blocked (403/429 or a
// challenge interstitial), not found, timeout, or success.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*domain.FetchedPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	f.setBrowserHeaders(req)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrFetchTimeout, url)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusForbidden, http.StatusTooManyRequests:
		f.logger.Info("page fetch blocked",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: status %d", domain.ErrPageBlocked, resp.StatusCode)
	case http.StatusNotFound, http.StatusGone:
		return nil, fmt.Errorf("%w: %s", domain.ErrPageNotFound, url)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", domain.ErrFetchFailed, resp.StatusCode)
	}

	// Cap the body read; product pages past a few MB are all noise anyway.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrFetchFailed, err)
	}

	html := string(body)
	if isChallengePage(html) {
		f.logger.Info("challenge page detected", zap.String("url", url))
		return nil, fmt.Errorf("%w: challenge interstitial", domain.ErrPageBlocked)
	}

	return &domain.FetchedPage{
		URL:        url,
		HTML:       html,
		StatusCode: resp.StatusCode,
	}, nil
}

// setBrowserHeaders applies a full Chrome header set. The Sec-Fetch-*
// headers are the ones bot detectors check most often.
func (f *Fetcher) setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Sec-Fetch-User", "?1")
	req.Header.Set("Cache-Control", "max-age=0")
	req.Header.Set("Referer", "https://www.google.com/")
}

// isChallengePage reports whether the HTML looks like a bot-protection
// interstitial rather than real content.
func isChallengePage(html string) bool {
	for _, marker := range challengeMarkers {
		if strings.Contains(html, marker) {
			return true
		}
	}
	if m := titleTagRegex.FindStringSubmatch(html); m != nil {
		pageTitle := strings.ToLower(strings.TrimSpace(m[1]))
		for _, ct := range challengeTitles {
			if strings.Contains(pageTitle, ct) {
				return true
			}
		}
	}
	return false
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
