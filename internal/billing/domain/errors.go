package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyRegionID is returned when a region id is empty.
	ErrEmptyRegionID = errors.New("billing: empty region id")
	// ErrInvalidBatchType is returned for an unknown batch type.
	ErrInvalidBatchType = errors.New("billing: invalid batch type")
	// ErrInvalidFinancialYear is returned for a non-positive explicit year.
	ErrInvalidFinancialYear = errors.New("billing: invalid financial year")
	// ErrBatchNotFound is returned when a batch does not exist.
	ErrBatchNotFound = errors.New("billing: batch not found")
	// ErrNilBatch is returned when persisting a nil batch.
	ErrNilBatch = errors.New("billing: nil batch")
)

// ErrorCode is the batch error taxonomy persisted on Batch.ErrorCode.
// Zero means no error.
type ErrorCode int

const (
	ErrorCodeNone                   ErrorCode = 0
	ErrorCodePopulateChargeVersions ErrorCode = 10
	ErrorCodeProcessChargeVersions  ErrorCode = 20
	ErrorCodePrepareTransactions    ErrorCode = 30
	ErrorCodeCreateCharge           ErrorCode = 40
	ErrorCodeCreateBillRun          ErrorCode = 50
	ErrorCodeDeleteInvoice          ErrorCode = 60
	ErrorCodeProcessTwoPartTariff   ErrorCode = 70
	ErrorCodeGetBillRunSummary      ErrorCode = 80
	ErrorCodeProcessRebilling       ErrorCode = 90
)

// Error tags an underlying failure with a batch error code. Inner pipeline
// components attach a code; only the orchestrator writes it to the batch.
type Error struct {
	Code ErrorCode
	Err  error
}

// WithCode wraps err with a batch error code.
func WithCode(code ErrorCode, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("billing: code %d: %v", e.Code, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CodeOf extracts the batch error code carried by err, or zero.
func CodeOf(err error) ErrorCode {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ErrorCodeNone
}

// DuplicateBatchError reports that a live batch already exists for a region.
// Initiation fails synchronously and no batch is created.
type DuplicateBatchError struct {
	RegionID string
}

// Error implements the error interface.
func (e *DuplicateBatchError) Error() string {
	return fmt.Sprintf("billing: live batch exists for region %s", e.RegionID)
}
