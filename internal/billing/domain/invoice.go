package billing

import "time"

// Invoice groups transactions by billing account within one batch.
// Created on first touch per account in a run.
type Invoice struct {
	ID                  string
	BatchID             string
	BillingAccountID    string
	AccountNumber       string
	FinancialYearEnding int
	CreatedAt           time.Time
}

// InvoiceLicence groups transactions by licence within one invoice.
// Created on first touch per (invoice, licence) pair.
type InvoiceLicence struct {
	ID         string
	InvoiceID  string
	LicenceID  string
	LicenceRef string
	CreatedAt  time.Time
}
