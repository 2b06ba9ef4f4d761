package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/items/5" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("payload-5"))
	}))
	defer srv.Close()

	s, err := NewHTTPSource(srv.URL+"/items", 5*time.Second)
	if err != nil {
		t.Fatalf("NewHTTPSource failed: %v", err)
	}

	data, err := s.Fetch(context.Background(), "5")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if string(data) != "payload-5" {
		t.Errorf("unexpected payload: %q", data)
	}

	if _, err := s.Fetch(context.Background(), "6"); err == nil {
		t.Error("expected error for missing key")
	}
}

func TestHTTPSource_RequiresBaseURL(t *testing.T) {
	if _, err := NewHTTPSource("", time.Second); err == nil {
		t.Error("expected error for empty base URL")
	}
}
