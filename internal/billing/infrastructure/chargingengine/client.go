package chargingengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"water-billing/internal/billing/application"
	"water-billing/internal/observability/metrics"
)

// Client is a minimal REST client for the external charging engine. It
// implements the application's ChargingEngine port: transport and HTTP
// failures surface as structured results, never as raised faults.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient constructs a charging engine client.
func NewClient(baseURL, token string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("chargingengine: empty base url")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type billRunResponse struct {
	BillRun struct {
		ID            string `json:"id"`
		BillRunNumber int64  `json:"billRunNumber"`
	} `json:"billRun"`
}

type transactionResponse struct {
	Transaction struct {
		ID string `json:"id"`
	} `json:"transaction"`
}

// CreateBillRun creates an empty bill run for a region on the engine.
func (c *Client) CreateBillRun(ctx context.Context, regionCode, ruleset string) application.BillRunResult {
	started := time.Now()
	body := map[string]any{"region": regionCode, "ruleset": ruleset}
	var resp billRunResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v3/wrls/bill-runs", body, &resp); err != nil {
		metrics.ObserveEngineRequest("create_bill_run", metrics.ResultError, time.Since(started))
		return application.BillRunResult{Detail: err.Error()}
	}
	metrics.ObserveEngineRequest("create_bill_run", metrics.ResultSuccess, time.Since(started))
	return application.BillRunResult{
		Succeeded:     true,
		ExternalID:    resp.BillRun.ID,
		BillRunNumber: resp.BillRun.BillRunNumber,
	}
}

// Generate asks the engine to finalize totals and minimum-charge
// adjustments for a bill run.
func (c *Client) Generate(ctx context.Context, externalID string) application.GenerateResult {
	started := time.Now()
	if externalID == "" {
		return application.GenerateResult{Detail: "chargingengine: empty bill run id"}
	}
	path := fmt.Sprintf("/v3/wrls/bill-runs/%s/generate", externalID)
	if err := c.doJSON(ctx, http.MethodPatch, path, nil, nil); err != nil {
		metrics.ObserveEngineRequest("generate", metrics.ResultError, time.Since(started))
		return application.GenerateResult{Detail: err.Error()}
	}
	metrics.ObserveEngineRequest("generate", metrics.ResultSuccess, time.Since(started))
	return application.GenerateResult{Succeeded: true}
}

// CreateTransaction submits one charge line to a bill run.
func (c *Client) CreateTransaction(ctx context.Context, externalBatchID string, payload application.TransactionPayload) application.TransactionResult {
	started := time.Now()
	if externalBatchID == "" {
		return application.TransactionResult{Detail: "chargingengine: empty bill run id"}
	}
	path := fmt.Sprintf("/v3/wrls/bill-runs/%s/transactions", externalBatchID)
	var resp transactionResponse
	if err := c.doJSON(ctx, http.MethodPost, path, payload, &resp); err != nil {
		metrics.ObserveEngineRequest("create_transaction", metrics.ResultError, time.Since(started))
		return application.TransactionResult{Detail: err.Error()}
	}
	metrics.ObserveEngineRequest("create_transaction", metrics.ResultSuccess, time.Since(started))
	return application.TransactionResult{
		Succeeded:     true,
		TransactionID: resp.Transaction.ID,
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("chargingengine: http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
