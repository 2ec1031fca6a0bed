package port

import (
	"io"

	"portfolio_aggregator/internal/domain/entity"
)

// ExportFormatter flattens normalized records into rows and writes them as files.
type ExportFormatter interface {
	BalanceRows(items []entity.BalanceItem) [][]string
	TransactionRows(items []entity.TransactionRecord) [][]string
	WriteCSV(w io.Writer, rows [][]string) error
	WriteXLSX(w io.Writer, sheet string, rows [][]string) error
}
