package domain

import "errors"

var (
	// ErrProductNotFound is returned when a product id is not in the store
	ErrProductNotFound = errors.New("product not found")

	// ErrComparisonNotFound is returned when a comparison id is not in the store
	ErrComparisonNotFound = errors.New("comparison not found")

	// ErrEmptyContent is returned when a page yields no usable title or price text
	ErrEmptyContent = errors.New("no usable product content extracted")

	// ErrPageBlocked is returned when a page fetch hits bot protection (403/429/challenge page)
	ErrPageBlocked = errors.New("page blocked by bot protection")

	// ErrPageNotFound is returned when the target page does not exist
	ErrPageNotFound = errors.New("page not found")

	// ErrFetchTimeout is returned when a page fetch exceeds its deadline
	ErrFetchTimeout = errors.New("page fetch timed out")

	// ErrFetchFailed is returned for any other page fetch failure
	ErrFetchFailed = errors.New("page fetch failed")

	// ErrLLMNoResponse is returned when the LLM call itself fails
	// (transport error, timeout, empty body). A low-confidence summary is
	// not an error.
	ErrLLMNoResponse = errors.New("llm returned no response")

	// ErrLLMRateLimited is returned when the LLM provider rejects the call with 429
	ErrLLMRateLimited = errors.New("llm rate limit reached")

	// ErrEmptyQuestion is returned when a comparison question is blank after trimming
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrNoProducts is returned when an operation needs indexed products and none exist
	ErrNoProducts = errors.New("no indexed products")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when an artifact is not in the cache
	ErrCacheMiss = errors.New("cache miss")
)

// MalformedRecordError identifies the stored record and field that made
// artifact generation impossible. Generation fails fast rather than
// emitting partially wrong artifacts.
type MalformedRecordError struct {
	ProductID string
	Field     string
	Reason    string
}

func (e *MalformedRecordError) Error() string {
	return "malformed product record " + e.ProductID + ": field " + e.Field + ": " + e.Reason
}
