package store

import (
	"testing"

	"github.com/agenticmap/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONColumn_RoundTrip(t *testing.T) {
	in := jsonColumn[domain.RawSignals]{Val: domain.RawSignals{
		Title:          "Trail Shoe",
		Price:          "$59",
		CTAButtons:     []domain.CTAButton{{Text: "Buy Now", URL: "https://x.example/buy"}},
		ReviewSnippets: []string{"great grip"},
	}}

	v, err := in.Value()
	require.NoError(t, err)

	var out jsonColumn[domain.RawSignals]
	require.NoError(t, out.Scan([]byte(v.(string))))
	assert.Equal(t, in.Val, out.Val)
}

func TestJSONColumn_ScanString(t *testing.T) {
	var out jsonColumn[domain.ComparisonSide]
	require.NoError(t, out.Scan(`{"answer":"yes","tokens_used":42}`))
	assert.Equal(t, "yes", out.Val.Answer)
	assert.Equal(t, 42, out.Val.TokensUsed)
}

func TestJSONColumn_ScanUnsupportedType(t *testing.T) {
	var out jsonColumn[domain.ComparisonSide]
	assert.Error(t, out.Scan(12345))
}

func TestNullableJSONColumn_NullMapsToNil(t *testing.T) {
	var out nullableJSONColumn[domain.Summary]
	require.NoError(t, out.Scan(nil))
	assert.Nil(t, out.Val)

	v, err := nullableJSONColumn[domain.Summary]{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestNullableJSONColumn_RoundTrip(t *testing.T) {
	summary := &domain.Summary{
		Title:       "Trail Shoe",
		StockStatus: domain.StockInStock,
		Sentiment:   domain.SentimentPositive,
		Confidence:  0.85,
	}

	v, err := nullableJSONColumn[domain.Summary]{Val: summary}.Value()
	require.NoError(t, err)

	var out nullableJSONColumn[domain.Summary]
	require.NoError(t, out.Scan([]byte(v.(string))))
	require.NotNil(t, out.Val)
	assert.Equal(t, *summary, *out.Val)
}
