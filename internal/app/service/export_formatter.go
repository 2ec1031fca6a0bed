package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/pkg/utils"

	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"
)

// BalanceColumns is the balance export header. nft_data is never exported.
var BalanceColumns = []string{
	"contract_name",
	"contract_ticker_symbol",
	"contract_address",
	"contract_decimals",
	"type",
	"balance",
	"balance_converted",
	"quote_rate",
	"quote",
}

// TransactionColumns is the fixed part of the transaction export header;
// log_event_1..log_event_N follow, N being the longest event list in the input.
var TransactionColumns = []string{
	"block_signed_at",
	"tx_hash",
	"from_address",
	"to_address",
	"successful",
	"value",
}

// ExportFormatterImpl implements port.ExportFormatter.
type ExportFormatterImpl struct{}

// NewExportFormatter creates a new instance of ExportFormatterImpl.
func NewExportFormatter() port.ExportFormatter {
	return &ExportFormatterImpl{}
}

// BalanceRows returns the header followed by one row per item.
func (f *ExportFormatterImpl) BalanceRows(items []entity.BalanceItem) [][]string {
	rows := make([][]string, 0, len(items)+1)
	rows = append(rows, append([]string(nil), BalanceColumns...))
	return append(rows, lo.Map(items, func(b entity.BalanceItem, _ int) []string {
		quoteRate := ""
		if b.QuoteRate.Valid {
			quoteRate = b.QuoteRate.Decimal.String()
		}
		raw := "0"
		if b.RawBalance != nil {
			raw = b.RawBalance.String()
		}
		converted := ""
		if !b.Excluded {
			converted = utils.FormatFixedPoint(b.BalanceConverted())
		}
		return []string{
			b.ContractName,
			b.ContractTickerSymbol,
			b.ContractAddress,
			strconv.FormatInt(int64(b.ContractDecimals), 10),
			b.Type,
			raw,
			converted,
			quoteRate,
			b.Quote.String(),
		}
	})...)
}

// TransactionRows returns the header followed by one row per record. Every row has the same
// width: records with fewer log events are padded with empty cells.
func (f *ExportFormatterImpl) TransactionRows(items []entity.TransactionRecord) [][]string {
	maxEvents := lo.Max(lo.Map(items, func(tx entity.TransactionRecord, _ int) int {
		return len(tx.LogEvents)
	}))

	header := append([]string(nil), TransactionColumns...)
	for i := 1; i <= maxEvents; i++ {
		header = append(header, fmt.Sprintf("log_event_%d", i))
	}

	rows := make([][]string, 0, len(items)+1)
	rows = append(rows, header)
	for _, tx := range items {
		row := make([]string, len(header))
		row[0] = formatTimestamp(tx.BlockSignedAt)
		row[1] = tx.TxHash
		row[2] = tx.FromAddress
		row[3] = tx.ToAddress
		row[4] = strconv.FormatBool(tx.Successful)
		row[5] = tx.Value
		for i, ev := range tx.LogEvents {
			row[len(TransactionColumns)+i] = ev.Label()
		}
		rows = append(rows, row)
	}
	return rows
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// WriteCSV writes rows as RFC 4180 CSV.
func (f *ExportFormatterImpl) WriteCSV(w io.Writer, rows [][]string) error {
	if err := csv.NewWriter(w).WriteAll(rows); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

// WriteXLSX writes rows into a single-sheet workbook.
func (f *ExportFormatterImpl) WriteXLSX(w io.Writer, sheet string, rows [][]string) (err error) {
	book := excelize.NewFile()
	defer func() {
		if cerr := book.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing workbook: %w", cerr)
		}
	}()

	defaultSheet := book.GetSheetName(0)
	if sheet == "" {
		sheet = defaultSheet
	}
	if sheet != defaultSheet {
		if err := book.SetSheetName(defaultSheet, sheet); err != nil {
			return fmt.Errorf("renaming sheet: %w", err)
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
		if err := book.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	if _, err := book.WriteTo(w); err != nil {
		return fmt.Errorf("writing xlsx: %w", err)
	}
	return nil
}
