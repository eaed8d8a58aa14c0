package application

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	billing "water-billing/internal/billing/domain"
	"water-billing/internal/observability/metrics"
)

// BillingPeriodProcessor turns the charge versions of one billing period
// into submitted, persisted transactions. Groups process sequentially;
// persistence happens once per period, after every submission succeeded.
type BillingPeriodProcessor struct {
	invoices     billing.InvoiceRepository
	transactions billing.TransactionRepository
	engine       ChargingEngine
	cleanser     TransactionCleanser
	clock        Clock
	logger       *log.Logger
}

// NewBillingPeriodProcessor constructs a processor.
func NewBillingPeriodProcessor(invoices billing.InvoiceRepository, transactions billing.TransactionRepository, engine ChargingEngine, cleanser TransactionCleanser, clock Clock, logger *log.Logger) (*BillingPeriodProcessor, error) {
	if invoices == nil {
		return nil, errors.New("billing period processor: nil invoice repository")
	}
	if transactions == nil {
		return nil, errors.New("billing period processor: nil transaction repository")
	}
	if engine == nil {
		return nil, errors.New("billing period processor: nil charging engine")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &BillingPeriodProcessor{
		invoices:     invoices,
		transactions: transactions,
		engine:       engine,
		cleanser:     cleanser,
		clock:        clock,
		logger:       logger,
	}, nil
}

// ProcessResult reports what one period produced.
type ProcessResult struct {
	Populated        bool
	BilledLicenceIDs []string
	Billed           []billing.BilledChargeVersion
}

// group accumulates work per invoice licence.
type group struct {
	licence        billing.Licence
	invoice        *billing.Invoice
	invoiceLicence *billing.InvoiceLicence
	accountNumber  string
	transactions   []billing.Transaction
	billed         []billing.BilledChargeVersion
}

// Process runs fetch results for one period through generation,
// submission and persistence. Computation failures carry the
// prepare-transactions code, submission failures the create-charge code;
// both abort the period with nothing committed.
func (p *BillingPeriodProcessor) Process(ctx context.Context, batch *billing.Batch, period billing.BillingPeriod, chargeVersions []billing.ChargeVersion) (ProcessResult, error) {
	state := newRunState(p.invoices)

	groups := make(map[string]*group)
	var order []string
	for _, cv := range chargeVersions {
		invoice, invoiceLicence, err := state.resolve(ctx, batch, cv, period)
		if err != nil {
			return ProcessResult{}, billing.WithCode(billing.ErrorCodePrepareTransactions, err)
		}
		g, ok := groups[invoiceLicence.ID]
		if !ok {
			g = &group{
				licence:        cv.Licence,
				invoice:        invoice,
				invoiceLicence: invoiceLicence,
				accountNumber:  cv.AccountNumber,
			}
			groups[invoiceLicence.ID] = g
			order = append(order, invoiceLicence.ID)
		}

		if cv.Status != billing.ChargeVersionStatusCurrent {
			continue
		}
		chargeStart, chargeEnd, ok := cv.ChargePeriod(period)
		if !ok {
			continue
		}

		generated := 0
		for _, element := range cv.Elements {
			transactions, err := GenerateTransactions(GeneratorInput{
				Element:           element,
				BillingPeriod:     period,
				ChargePeriodStart: chargeStart,
				ChargePeriodEnd:   chargeEnd,
				IsNewLicence:      cv.Licence.IsNewFor(period),
				IsWaterUndertaker: cv.Licence.IsWaterUndertaker,
			})
			if err != nil {
				return ProcessResult{}, billing.WithCode(billing.ErrorCodePrepareTransactions, err)
			}
			for idx := range transactions {
				transactions[idx].ChargeVersionID = cv.ID
			}
			g.transactions = append(g.transactions, transactions...)
			generated += len(transactions)
		}
		if generated > 0 {
			g.billed = append(g.billed, billing.BilledChargeVersion{
				ChargeVersionID: cv.ID,
				BilledUpToDate:  chargeEnd,
			})
		}
	}

	result := ProcessResult{}
	var submitted []billing.Transaction
	usedInvoices := make(map[string]struct{})
	usedInvoiceLicences := make(map[string]struct{})
	for _, id := range order {
		g := groups[id]
		if len(g.transactions) == 0 {
			continue
		}

		remaining := g.transactions
		if p.cleanser != nil {
			cleansed, err := p.cleanser.Cleanse(ctx, batch, g.licence.ID, g.transactions)
			if err != nil {
				return ProcessResult{}, billing.WithCode(billing.ErrorCodePrepareTransactions, err)
			}
			remaining = cleansed
		}
		if len(remaining) == 0 {
			continue
		}

		for idx := range remaining {
			tx := &remaining[idx]
			sent := p.engine.CreateTransaction(ctx, batch.ExternalID, transactionPayload(batch, g, *tx))
			if !sent.Succeeded {
				return ProcessResult{}, billing.WithCode(billing.ErrorCodeCreateCharge,
					fmt.Errorf("billing: submit transaction %s: %s", tx.ID, sent.Detail))
			}
			tx.Status = billing.TransactionStatusChargeCreated
			tx.ExternalID = sent.TransactionID
			tx.InvoiceLicenceID = g.invoiceLicence.ID
			tx.CreatedAt = p.clock.Now()
			metrics.IncTransactionsSubmitted(string(tx.ChargeType))
		}

		submitted = append(submitted, remaining...)
		usedInvoices[g.invoice.ID] = struct{}{}
		usedInvoiceLicences[g.invoiceLicence.ID] = struct{}{}
		result.BilledLicenceIDs = append(result.BilledLicenceIDs, g.licence.ID)
		result.Billed = append(result.Billed, g.billed...)
	}

	if len(submitted) == 0 {
		if p.logger != nil {
			p.logger.Printf("billing: period not populated: batch=%s year=%d", batch.ID, period.FinancialYearEnding())
		}
		return ProcessResult{}, nil
	}

	if err := p.transactions.CreateMany(ctx, submitted); err != nil {
		return ProcessResult{}, billing.WithCode(billing.ErrorCodeCreateCharge, err)
	}
	if err := state.persist(ctx, usedInvoices, usedInvoiceLicences); err != nil {
		return ProcessResult{}, billing.WithCode(billing.ErrorCodeCreateCharge, err)
	}

	result.Populated = true
	return result, nil
}

func transactionPayload(batch *billing.Batch, g *group, tx billing.Transaction) TransactionPayload {
	return TransactionPayload{
		ClientID:             tx.ID,
		LicenceNumber:        g.licence.Ref,
		AccountNumber:        g.accountNumber,
		ChargeCategoryCode:   tx.ChargeCategoryCode,
		ChargeType:           string(tx.ChargeType),
		Description:          tx.Description,
		PeriodStart:          tx.StartDate,
		PeriodEnd:            tx.EndDate,
		AuthorisedDays:       tx.AuthorisedDays,
		BillableDays:         tx.BillableDays,
		Volume:               tx.Volume,
		Loss:                 tx.Loss,
		Credit:               tx.IsCredit,
		NewLicence:           tx.IsNewLicence,
		WaterCompanyCharge:   tx.IsWaterCompanyCharge,
		SupportedSource:      tx.IsSupportedSource,
		SupportedSourceName:  tx.SupportedSourceName,
		WinterOnly:           tx.IsWinterOnly,
		Section127Agreement:  tx.Section127Agreement,
		Section130Agreement:  tx.Section130Agreement,
		CompensationCharge:   tx.ChargeType == billing.ChargeTypeCompensation,
		AggregateProportion:  tx.AggregateFactor,
		AdjustmentProportion: tx.AdjustmentFactor,
	}
}

// runState resolves invoices and invoice licences idempotently for one
// period run: existing rows are reused, new ones are collected and
// bulk-persisted only when the period produced transactions.
type runState struct {
	repo               billing.InvoiceRepository
	invoicesByAccount  map[string]*billing.Invoice
	licencesByKey      map[string]*billing.InvoiceLicence
	newInvoices        []billing.Invoice
	newInvoiceLicences []billing.InvoiceLicence
}

func newRunState(repo billing.InvoiceRepository) *runState {
	return &runState{
		repo:              repo,
		invoicesByAccount: make(map[string]*billing.Invoice),
		licencesByKey:     make(map[string]*billing.InvoiceLicence),
	}
}

func (s *runState) resolve(ctx context.Context, batch *billing.Batch, cv billing.ChargeVersion, period billing.BillingPeriod) (*billing.Invoice, *billing.InvoiceLicence, error) {
	year := period.FinancialYearEnding()
	accountKey := fmt.Sprintf("%s|%d", cv.BillingAccountID, year)

	invoice, ok := s.invoicesByAccount[accountKey]
	if !ok {
		existing, err := s.repo.FindByBatchAndAccount(ctx, batch.ID, cv.BillingAccountID, year)
		if err != nil {
			return nil, nil, err
		}
		if existing != nil {
			invoice = existing
		} else {
			invoice = &billing.Invoice{
				ID:                  uuid.NewString(),
				BatchID:             batch.ID,
				BillingAccountID:    cv.BillingAccountID,
				AccountNumber:       cv.AccountNumber,
				FinancialYearEnding: year,
			}
			s.newInvoices = append(s.newInvoices, *invoice)
		}
		s.invoicesByAccount[accountKey] = invoice
	}

	licenceKey := invoice.ID + "|" + cv.LicenceID
	invoiceLicence, ok := s.licencesByKey[licenceKey]
	if !ok {
		existing, err := s.repo.FindLicence(ctx, invoice.ID, cv.LicenceID)
		if err != nil {
			return nil, nil, err
		}
		if existing != nil {
			invoiceLicence = existing
		} else {
			invoiceLicence = &billing.InvoiceLicence{
				ID:         uuid.NewString(),
				InvoiceID:  invoice.ID,
				LicenceID:  cv.LicenceID,
				LicenceRef: cv.Licence.Ref,
			}
			s.newInvoiceLicences = append(s.newInvoiceLicences, *invoiceLicence)
		}
		s.licencesByKey[licenceKey] = invoiceLicence
	}
	return invoice, invoiceLicence, nil
}

// persist creates the new invoices and invoice licences that submitted
// transactions ended up referencing. Rows resolved for groups that
// produced nothing are dropped.
func (s *runState) persist(ctx context.Context, usedInvoices, usedInvoiceLicences map[string]struct{}) error {
	var invoices []billing.Invoice
	for _, invoice := range s.newInvoices {
		if _, ok := usedInvoices[invoice.ID]; ok {
			invoices = append(invoices, invoice)
		}
	}
	if len(invoices) > 0 {
		if err := s.repo.CreateMany(ctx, invoices); err != nil {
			return err
		}
	}

	var invoiceLicences []billing.InvoiceLicence
	for _, il := range s.newInvoiceLicences {
		if _, ok := usedInvoiceLicences[il.ID]; ok {
			invoiceLicences = append(invoiceLicences, il)
		}
	}
	if len(invoiceLicences) > 0 {
		if err := s.repo.CreateManyLicences(ctx, invoiceLicences); err != nil {
			return err
		}
	}
	return nil
}
