package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// LegacyRefreshNotifier tells the legacy billing UI to refresh its view
// of a batch once the engine has been asked to generate totals.
type LegacyRefreshNotifier struct {
	url    string
	client *http.Client
}

type refreshPayload struct {
	BillRunID string `json:"billRunId"`
}

// NewLegacyRefreshNotifier constructs a notifier.
func NewLegacyRefreshNotifier(url string) *LegacyRefreshNotifier {
	return &LegacyRefreshNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// NotifyRefresh posts the batch id to the legacy refresh endpoint.
func (n *LegacyRefreshNotifier) NotifyRefresh(ctx context.Context, batchID string) error {
	if n == nil || n.url == "" {
		return errors.New("legacy refresh: empty url")
	}
	body, err := json.Marshal(refreshPayload{BillRunID: batchID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("legacy refresh: status %d", resp.StatusCode)
	}
	return nil
}
