package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	billing "water-billing/internal/billing/domain"
)

// BuildBillRunPDF renders a minimal PDF for a bill run batch.
func BuildBillRunPDF(batch *billing.Batch, invoices []billing.Invoice, transactions []billing.Transaction) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Bill Run")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Region: %s", batch.RegionID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Type: %s", batch.BatchType))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Scheme: %s", batch.Scheme))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", batch.Status))
	pdf.Ln(5)
	if batch.BillRunNumber != 0 {
		pdf.Cell(0, 6, fmt.Sprintf("Bill Run Number: %d", batch.BillRunNumber))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Financial Years: %d to %d", batch.FromFinancialYearEnding, batch.ToFinancialYearEnding))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Created: %s", batch.CreatedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	if batch.ErrorCode != billing.ErrorCodeNone {
		pdf.Cell(0, 6, fmt.Sprintf("Error Code: %d", batch.ErrorCode))
		pdf.Ln(5)
	}

	pdf.Ln(4)
	pdf.Cell(0, 6, fmt.Sprintf("Invoices: %d", len(invoices)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Transactions: %d", len(transactions)))
	pdf.Ln(8)

	// Transactions table
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(30, 6, "Category", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Charge Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Period", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Auth Days", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Bill Days", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Volume (Ml)", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, t := range transactions {
		period := fmt.Sprintf("%s to %s", t.StartDate.Format("2006-01-02"), t.EndDate.Format("2006-01-02"))
		pdf.CellFormat(30, 6, t.ChargeCategoryCode, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, string(t.ChargeType), "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, period, "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", t.AuthorisedDays), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", t.BillableDays), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.3f", t.Volume), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildBillRunXLSX renders a minimal XLSX for a bill run batch.
func BuildBillRunXLSX(batch *billing.Batch, invoices []billing.Invoice, transactions []billing.Transaction) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	invoicesSheet := "invoices"
	transactionsSheet := "transactions"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(invoicesSheet)
	f.NewSheet(transactionsSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Bill Run")
	_ = f.SetCellValue(summarySheet, "A3", "Region")
	_ = f.SetCellValue(summarySheet, "B3", batch.RegionID)
	_ = f.SetCellValue(summarySheet, "A4", "Type")
	_ = f.SetCellValue(summarySheet, "B4", string(batch.BatchType))
	_ = f.SetCellValue(summarySheet, "A5", "Scheme")
	_ = f.SetCellValue(summarySheet, "B5", string(batch.Scheme))
	_ = f.SetCellValue(summarySheet, "A6", "Status")
	_ = f.SetCellValue(summarySheet, "B6", string(batch.Status))
	_ = f.SetCellValue(summarySheet, "A7", "Bill Run Number")
	_ = f.SetCellValue(summarySheet, "B7", batch.BillRunNumber)
	_ = f.SetCellValue(summarySheet, "A8", "From Financial Year")
	_ = f.SetCellValue(summarySheet, "B8", batch.FromFinancialYearEnding)
	_ = f.SetCellValue(summarySheet, "A9", "To Financial Year")
	_ = f.SetCellValue(summarySheet, "B9", batch.ToFinancialYearEnding)
	_ = f.SetCellValue(summarySheet, "A10", "Invoices")
	_ = f.SetCellValue(summarySheet, "B10", len(invoices))
	_ = f.SetCellValue(summarySheet, "A11", "Transactions")
	_ = f.SetCellValue(summarySheet, "B11", len(transactions))

	_ = f.SetCellValue(invoicesSheet, "A1", "Account Number")
	_ = f.SetCellValue(invoicesSheet, "B1", "Billing Account")
	_ = f.SetCellValue(invoicesSheet, "C1", "Financial Year")
	for i, invoice := range invoices {
		row := i + 2
		_ = f.SetCellValue(invoicesSheet, fmt.Sprintf("A%d", row), invoice.AccountNumber)
		_ = f.SetCellValue(invoicesSheet, fmt.Sprintf("B%d", row), invoice.BillingAccountID)
		_ = f.SetCellValue(invoicesSheet, fmt.Sprintf("C%d", row), invoice.FinancialYearEnding)
	}

	_ = f.SetCellValue(transactionsSheet, "A1", "Category")
	_ = f.SetCellValue(transactionsSheet, "B1", "Charge Type")
	_ = f.SetCellValue(transactionsSheet, "C1", "Start")
	_ = f.SetCellValue(transactionsSheet, "D1", "End")
	_ = f.SetCellValue(transactionsSheet, "E1", "Authorised Days")
	_ = f.SetCellValue(transactionsSheet, "F1", "Billable Days")
	_ = f.SetCellValue(transactionsSheet, "G1", "Volume (Ml)")
	_ = f.SetCellValue(transactionsSheet, "H1", "Description")
	for i, t := range transactions {
		row := i + 2
		_ = f.SetCellValue(transactionsSheet, fmt.Sprintf("A%d", row), t.ChargeCategoryCode)
		_ = f.SetCellValue(transactionsSheet, fmt.Sprintf("B%d", row), string(t.ChargeType))
		_ = f.SetCellValue(transactionsSheet, fmt.Sprintf("C%d", row), t.StartDate.Format("2006-01-02"))
		_ = f.SetCellValue(transactionsSheet, fmt.Sprintf("D%d", row), t.EndDate.Format("2006-01-02"))
		_ = f.SetCellValue(transactionsSheet, fmt.Sprintf("E%d", row), t.AuthorisedDays)
		_ = f.SetCellValue(transactionsSheet, fmt.Sprintf("F%d", row), t.BillableDays)
		_ = f.SetCellValue(transactionsSheet, fmt.Sprintf("G%d", row), t.Volume)
		_ = f.SetCellValue(transactionsSheet, fmt.Sprintf("H%d", row), t.Description)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
