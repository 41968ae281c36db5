package domain

import "testing"

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips utm parameters",
			in:   "https://shop.example.com/products/trail-shoe?utm_source=newsletter&utm_medium=email",
			want: "https://shop.example.com/products/trail-shoe",
		},
		{
			name: "strips gclid and fbclid",
			in:   "https://shop.example.com/products/trail-shoe?gclid=abc123&fbclid=def456",
			want: "https://shop.example.com/products/trail-shoe",
		},
		{
			name: "keeps meaningful parameters sorted",
			in:   "https://shop.example.com/products/shoe?variant=42&color=red&utm_campaign=x",
			want: "https://shop.example.com/products/shoe?color=red&variant=42",
		},
		{
			name: "lowercases scheme and host only",
			in:   "HTTPS://Shop.Example.COM/Products/Trail-Shoe",
			want: "https://shop.example.com/Products/Trail-Shoe",
		},
		{
			name: "strips fragment",
			in:   "https://shop.example.com/products/shoe#reviews",
			want: "https://shop.example.com/products/shoe",
		},
		{
			name: "strips default https port",
			in:   "https://shop.example.com:443/products/shoe",
			want: "https://shop.example.com/products/shoe",
		},
		{
			name: "strips trailing slash on non-root path",
			in:   "https://shop.example.com/products/shoe/",
			want: "https://shop.example.com/products/shoe",
		},
		{
			name: "keeps root path",
			in:   "https://shop.example.com/",
			want: "https://shop.example.com/",
		},
		{
			name: "invalid url returns trimmed input",
			in:   "  not a url  ",
			want: "not a url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeURL(tt.in); got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeURL_TrackingVariantsCollapse(t *testing.T) {
	variants := []string{
		"https://shop.example.com/products/shoe",
		"https://shop.example.com/products/shoe?utm_source=x",
		"https://shop.example.com/products/shoe?gclid=1&utm_medium=cpc",
		"https://shop.example.com/products/shoe/#top",
		"HTTPS://SHOP.EXAMPLE.COM/products/shoe",
	}

	want := NormalizeURL(variants[0])
	for _, v := range variants {
		if got := NormalizeURL(v); got != want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", v, got, want)
		}
	}
}

func TestCoerceEnums(t *testing.T) {
	if got := CoerceStockStatus("in_stock"); got != StockInStock {
		t.Errorf("CoerceStockStatus(in_stock) = %v", got)
	}
	if got := CoerceStockStatus("IN STOCK!!"); got != StockUnknown {
		t.Errorf("CoerceStockStatus(out-of-enum) = %v, want unknown", got)
	}
	if got := CoerceSentiment("negative"); got != SentimentNegative {
		t.Errorf("CoerceSentiment(negative) = %v", got)
	}
	if got := CoerceSentiment("very happy"); got != SentimentNeutral {
		t.Errorf("CoerceSentiment(out-of-enum) = %v, want neutral", got)
	}
}

func TestProductStale(t *testing.T) {
	p := &Product{}
	if !p.Stale(0.5) {
		t.Error("product without summary should be stale")
	}
	p.Summary = &Summary{Confidence: 0.3}
	if !p.Stale(0.5) {
		t.Error("confidence 0.3 should be stale at threshold 0.5")
	}
	p.Summary.Confidence = 0.8
	if p.Stale(0.5) {
		t.Error("confidence 0.8 should not be stale at threshold 0.5")
	}
}
