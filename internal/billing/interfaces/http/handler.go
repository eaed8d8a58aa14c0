package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"water-billing/internal/auth"
	"water-billing/internal/billing/application"
	billing "water-billing/internal/billing/domain"
	"water-billing/internal/billing/interfaces"
	"water-billing/internal/observability/metrics"
)

// Handler provides bill run HTTP endpoints.
type Handler struct {
	runner       *application.BatchRunner
	batches      billing.BatchRepository
	invoices     billing.InvoiceRepository
	transactions billing.TransactionRepository
	logger       *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(runner *application.BatchRunner, batches billing.BatchRepository, invoices billing.InvoiceRepository, transactions billing.TransactionRepository, logger *log.Logger) (*Handler, error) {
	if runner == nil {
		return nil, errors.New("bill run handler: nil runner")
	}
	if batches == nil {
		return nil, errors.New("bill run handler: nil batch repository")
	}
	if invoices == nil {
		return nil, errors.New("bill run handler: nil invoice repository")
	}
	if transactions == nil {
		return nil, errors.New("bill run handler: nil transaction repository")
	}
	return &Handler{
		runner:       runner,
		batches:      batches,
		invoices:     invoices,
		transactions: transactions,
		logger:       logger,
	}, nil
}

type createRequest struct {
	RegionID            string `json:"region_id"`
	BatchType           string `json:"batch_type"`
	FinancialYearEnding int    `json:"financial_year_ending"`
	User                string `json:"user"`
}

type batchView struct {
	ID                      string `json:"id"`
	RegionID                string `json:"region_id"`
	BatchType               string `json:"batch_type"`
	Scheme                  string `json:"scheme"`
	Status                  string `json:"status"`
	ErrorCode               int    `json:"error_code,omitempty"`
	ExternalID              string `json:"external_id,omitempty"`
	BillRunNumber           int64  `json:"bill_run_number,omitempty"`
	FromFinancialYearEnding int    `json:"from_financial_year_ending"`
	ToFinancialYearEnding   int    `json:"to_financial_year_ending"`
	CreatedAt               string `json:"created_at"`
}

func viewOf(batch *billing.Batch) batchView {
	return batchView{
		ID:                      batch.ID,
		RegionID:                batch.RegionID,
		BatchType:               string(batch.BatchType),
		Scheme:                  string(batch.Scheme),
		Status:                  string(batch.Status),
		ErrorCode:               int(batch.ErrorCode),
		ExternalID:              batch.ExternalID,
		BillRunNumber:           batch.BillRunNumber,
		FromFinancialYearEnding: batch.FromFinancialYearEnding,
		ToFinancialYearEnding:   batch.ToFinancialYearEnding,
		CreatedAt:               batch.CreatedAt.Format(time.RFC3339),
	}
}

// ServeHTTP handles /api/v1/bill-runs and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/bill-runs":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleCreate(w, r)
		return
	case strings.HasPrefix(r.URL.Path, "/api/v1/bill-runs/"):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleGet(w, r)
		return
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
}

// handleCreate acknowledges as soon as the batch and its external bill
// run exist; period processing continues detached.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	batchType, ok := billing.NormalizeBatchType(req.BatchType)
	if !ok {
		http.Error(w, "invalid batch_type", http.StatusBadRequest)
		return
	}
	issuer := req.User
	if issuer == "" {
		issuer = auth.SubjectFromContext(r.Context())
	}

	batch, err := h.runner.Create(r.Context(), req.RegionID, batchType, issuer, req.FinancialYearEnding)
	if err != nil {
		var duplicate *billing.DuplicateBatchError
		switch {
		case errors.As(err, &duplicate):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, billing.ErrEmptyRegionID),
			errors.Is(err, billing.ErrInvalidBatchType),
			errors.Is(err, billing.ErrInvalidFinancialYear):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(viewOf(batch))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/bill-runs/")
	parts := strings.Split(path, "/")

	batch, err := h.batches.GetByID(r.Context(), parts[0])
	if err != nil {
		if errors.Is(err, billing.ErrBatchNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	switch {
	case len(parts) == 1:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(viewOf(batch))
	case len(parts) == 2 && parts[1] == "export.pdf":
		h.handleExport(w, r, batch, "pdf")
	case len(parts) == 2 && parts[1] == "export.xlsx":
		h.handleExport(w, r, batch, "xlsx")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, batch *billing.Batch, format string) {
	started := time.Now()
	invoices, err := h.invoices.ListForBatch(r.Context(), batch.ID)
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(started))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	transactions, err := h.transactions.ListForBatch(r.Context(), batch.ID)
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(started))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var (
		data        []byte
		contentType string
	)
	switch format {
	case "pdf":
		data, err = interfaces.BuildBillRunPDF(batch, invoices, transactions)
		contentType = "application/pdf"
	case "xlsx":
		data, err = interfaces.BuildBillRunXLSX(batch, invoices, transactions)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(started))
		if h.logger != nil {
			h.logger.Printf("billing: export failed: batch=%s format=%s err=%v", batch.ID, format, err)
		}
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport(format, metrics.ResultSuccess, time.Since(started))

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="bill-run-`+batch.ID+`.`+format+`"`)
	_, _ = w.Write(data)
}
