package chargingengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"water-billing/internal/billing/application"
)

func TestCreateBillRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v3/wrls/bill-runs" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Fatalf("authorization = %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["region"] != "A" || body["ruleset"] != "sroc" {
			t.Fatalf("body = %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"billRun":{"id":"external-1","billRunNumber":10001}}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "token-1")
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	result := client.CreateBillRun(context.Background(), "A", "sroc")
	if !result.Succeeded {
		t.Fatalf("result = %+v", result)
	}
	if result.ExternalID != "external-1" || result.BillRunNumber != 10001 {
		t.Fatalf("result = %+v", result)
	}
}

func TestCreateBillRunEngineDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "")
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	result := client.CreateBillRun(context.Background(), "A", "sroc")
	if result.Succeeded {
		t.Fatal("expected a failed result")
	}
	if result.Detail == "" {
		t.Fatal("failed result must carry a detail")
	}
}

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/v3/wrls/bill-runs/external-1/generate" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "")
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if result := client.Generate(context.Background(), "external-1"); !result.Succeeded {
		t.Fatalf("result = %+v", result)
	}
	if result := client.Generate(context.Background(), ""); result.Succeeded {
		t.Fatal("empty bill run id must fail")
	}
}

func TestCreateTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v3/wrls/bill-runs/external-1/transactions" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var payload application.TransactionPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if payload.ClientID != "tx-1" || payload.ChargeType != "standard" {
			t.Fatalf("payload = %+v", payload)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"transaction":{"id":"engine-tx-1"}}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "")
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	result := client.CreateTransaction(context.Background(), "external-1", application.TransactionPayload{
		ClientID:   "tx-1",
		ChargeType: "standard",
	})
	if !result.Succeeded || result.TransactionID != "engine-tx-1" {
		t.Fatalf("result = %+v", result)
	}
}
