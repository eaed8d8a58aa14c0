package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLegacyRefreshNotifierPostsBatchID(t *testing.T) {
	var got refreshPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewLegacyRefreshNotifier(server.URL)
	if err := notifier.NotifyRefresh(context.Background(), "batch-1"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.BillRunID != "batch-1" {
		t.Fatalf("bill run id = %q", got.BillRunID)
	}
}

func TestLegacyRefreshNotifierNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	notifier := NewLegacyRefreshNotifier(server.URL)
	if err := notifier.NotifyRefresh(context.Background(), "batch-1"); err == nil {
		t.Fatal("expected an error for a non-2xx response")
	}
}

func TestLegacyRefreshNotifierEmptyURL(t *testing.T) {
	notifier := NewLegacyRefreshNotifier("")
	if err := notifier.NotifyRefresh(context.Background(), "batch-1"); err == nil {
		t.Fatal("expected an error for an empty url")
	}
}
