package restapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ErrorMarker is returned for any failure. The status code stays 200 so existing clients keep working.
type ErrorMarker struct {
	Error int `json:"error"`
}

// NotFoundMarker is returned when the address has no on-chain data.
type NotFoundMarker struct {
	Balance []entity.BalanceItem `json:"balance"`
}

// AggregateHandler обрабатывает HTTP запросы агрегированных данных адреса.
type AggregateHandler struct {
	cache    port.RefreshCache
	exporter port.ExportFormatter
	logger   *zap.Logger
}

// NewAggregateHandler создает новый экземпляр AggregateHandler.
func NewAggregateHandler(cache port.RefreshCache, exporter port.ExportFormatter, logger *zap.Logger) *AggregateHandler {
	return &AggregateHandler{
		cache:    cache,
		exporter: exporter,
		logger:   logger.Named("AggregateHandler"),
	}
}

func queryKey(c *gin.Context) entity.QueryKey {
	return entity.NewQueryKey(c.Param("chain_id"), c.Param("address"), c.Query("currency"))
}

// Root answers liveness probes.
func (h *AggregateHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"text": "temporary up"})
}

// Health reports the number of cached keys.
func (h *AggregateHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "cache_entries": h.cache.Len()})
}

// GetAll returns the aggregated balances, transactions and portfolio of an address.
func (h *AggregateHandler) GetAll(c *gin.Context) {
	key := queryKey(c)
	res, status, err := h.cache.Get(c.Request.Context(), key)
	c.Header("X-Cache", string(status))

	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case errors.Is(err, entity.ErrNotFound):
		c.JSON(http.StatusOK, NotFoundMarker{Balance: []entity.BalanceItem{}})
	case errors.Is(err, entity.ErrInvalidQuery):
		h.logger.Debug("Rejected query", zap.String("key", key.String()), zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorMarker{Error: 1})
	default:
		h.logger.Warn("Aggregation failed", zap.String("key", key.String()), zap.Error(err))
		c.JSON(http.StatusOK, ErrorMarker{Error: 1})
	}
}

// BalanceExport returns the token balances as a CSV (or XLSX) attachment.
func (h *AggregateHandler) BalanceExport(c *gin.Context) {
	h.export(c, "balances", func(res *entity.AggregateResult) [][]string {
		return h.exporter.BalanceRows(res.Balance)
	})
}

// TransactionsExport returns the transactions as a CSV (or XLSX) attachment.
func (h *AggregateHandler) TransactionsExport(c *gin.Context) {
	h.export(c, "transactions", func(res *entity.AggregateResult) [][]string {
		return h.exporter.TransactionRows(res.Transactions)
	})
}

func (h *AggregateHandler) export(c *gin.Context, name string, rowsOf func(*entity.AggregateResult) [][]string) {
	key := queryKey(c)
	res, status, err := h.cache.Get(c.Request.Context(), key)
	c.Header("X-Cache", string(status))

	switch {
	case err == nil:
	case errors.Is(err, entity.ErrNotFound):
		// пустой файл только с заголовком
		res = &entity.AggregateResult{}
	case errors.Is(err, entity.ErrInvalidQuery):
		c.JSON(http.StatusBadRequest, ErrorMarker{Error: 1})
		return
	default:
		h.logger.Warn("Aggregation failed", zap.String("key", key.String()), zap.String("export", name), zap.Error(err))
		c.JSON(http.StatusOK, ErrorMarker{Error: 1})
		return
	}

	rows := rowsOf(res)
	format := strings.ToLower(c.DefaultQuery("format", "csv"))

	var (
		buf         bytes.Buffer
		contentType string
	)
	switch format {
	case "xlsx":
		contentType = contentTypeXLSX
		err = h.exporter.WriteXLSX(&buf, name, rows)
	default:
		format = "csv"
		contentType = contentTypeCSV
		err = h.exporter.WriteCSV(&buf, rows)
	}
	if err != nil {
		h.logger.Error("Failed to render export", zap.String("key", key.String()), zap.String("format", format), zap.Error(err))
		c.JSON(http.StatusOK, ErrorMarker{Error: 1})
		return
	}

	filename := fmt.Sprintf("%s_%s_%s.%s", name, key.ChainID, key.Address, format)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// Invalidate drops the cached aggregation of an address for the requested currency.
func (h *AggregateHandler) Invalidate(c *gin.Context) {
	key := queryKey(c)
	if err := key.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, ErrorMarker{Error: 1})
		return
	}
	h.cache.Invalidate(key)
	h.logger.Info("Cache entry invalidated", zap.String("key", key.String()))
	c.JSON(http.StatusOK, gin.H{"invalidated": key.CacheKey()})
}
