package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	first := crawlerPagesTotal
	Init()

	if crawlerPagesTotal == nil || crawlerProductsTotal == nil || crawlerFrontierQueued == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
	if first != crawlerPagesTotal {
		t.Fatal("second Init() replaced collectors")
	}
}

func TestObservePage(t *testing.T) {
	Init()
	pages := crawlerPagesTotal.WithLabelValues("shop.test", StatusOK)
	bytes := crawlerBytesTotal.WithLabelValues("shop.test")
	beforePages := testutil.ToFloat64(pages)
	beforeBytes := testutil.ToFloat64(bytes)

	ObservePage("https://Shop.test/item", StatusOK, 512)
	ObservePage("https://shop.test/empty", StatusOK, 0)

	if got := testutil.ToFloat64(pages) - beforePages; got != 2 {
		t.Errorf("expected 2 pages observed, got %f", got)
	}
	if got := testutil.ToFloat64(bytes) - beforeBytes; got != 512 {
		t.Errorf("expected 512 bytes observed, got %f", got)
	}
}

func TestObserveProductAndFrontier(t *testing.T) {
	Init()
	saved := crawlerProductsTotal.WithLabelValues(ProductSaved)
	before := testutil.ToFloat64(saved)

	ObserveProduct(ProductSaved)
	SetFrontier(7, 3)
	ObserveRateLimitDelay(250 * time.Millisecond)

	if got := testutil.ToFloat64(saved) - before; got != 1 {
		t.Errorf("expected one saved product, got %f", got)
	}
	if got := testutil.ToFloat64(crawlerFrontierQueued); got != 7 {
		t.Errorf("expected queued gauge 7, got %f", got)
	}
	if got := testutil.ToFloat64(crawlerFrontierVisited); got != 3 {
		t.Errorf("expected visited gauge 3, got %f", got)
	}
	if got := testutil.CollectAndCount(crawlerRateLimitDelaysSeconds); got != 1 {
		t.Errorf("expected rate limit histogram to be collected, got %d", got)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}

func TestObservePublish(t *testing.T) {
	Init()
	ok := crawlerPublishTotal.WithLabelValues(PublishOK)
	failed := crawlerPublishTotal.WithLabelValues(PublishFailed)
	beforeOK := testutil.ToFloat64(ok)
	beforeFailed := testutil.ToFloat64(failed)

	ObservePublish(PublishOK)
	ObservePublish(PublishOK)
	ObservePublish(PublishFailed)

	if got := testutil.ToFloat64(ok) - beforeOK; got != 2 {
		t.Errorf("expected 2 successful publishes, got %f", got)
	}
	if got := testutil.ToFloat64(failed) - beforeFailed; got != 1 {
		t.Errorf("expected 1 failed publish, got %f", got)
	}
}
