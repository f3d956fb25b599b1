package loader

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"analytics-service/internal/models"
)

// CSVSource reads the order and ad-spend datasets from CSV exports.
// A missing file or a missing required column is a fatal error; individual
// cell-level problems are coerced (zero values, zero timestamps) and left for
// the normalizer to deal with.
type CSVSource struct {
	ordersPath string
	spendPath  string
	logger     *logrus.Logger

	// OnRow, when set, is invoked once per data row as it is read.
	OnRow func()
}

// NewCSVSource creates a new CSV dataset source
func NewCSVSource(ordersPath, spendPath string, logger *logrus.Logger) *CSVSource {
	return &CSVSource{
		ordersPath: ordersPath,
		spendPath:  spendPath,
		logger:     logger,
	}
}

var orderColumns = []string{"order_id", "customer_id", "created_at", "total_price", "discount_amount", "order_rank", "attributed_channel"}

var spendColumns = []string{"date", "channel", "spend"}

// FetchOrders reads the orders export.
func (s *CSVSource) FetchOrders(ctx context.Context) ([]models.Order, error) {
	rows, header, err := s.readTable(s.ordersPath, orderColumns)
	if err != nil {
		return nil, fmt.Errorf("orders dataset: %w", err)
	}

	orders := make([]models.Order, 0, len(rows))
	for _, row := range rows {
		order := models.Order{
			OrderID:           header.get(row, "order_id"),
			CustomerID:        header.get(row, "customer_id"),
			CreatedAt:         parseTimestamp(header.get(row, "created_at")),
			TotalPrice:        parseAmount(header.get(row, "total_price")),
			DiscountAmount:    parseAmount(header.get(row, "discount_amount")),
			OrderRank:         parseRank(header.get(row, "order_rank")),
			AttributedChannel: header.get(row, "attributed_channel"),
		}
		if extra := header.passthrough(row, orderColumns); len(extra) > 0 {
			if raw, err := json.Marshal(extra); err == nil {
				order.Extra = datatypes.JSON(raw)
			}
		}
		orders = append(orders, order)
		if s.OnRow != nil {
			s.OnRow()
		}
	}

	s.logger.WithFields(logrus.Fields{
		"path": s.ordersPath,
		"rows": len(orders),
	}).Info("Loaded orders dataset")

	return orders, nil
}

// FetchSpend reads the ad-spend export.
func (s *CSVSource) FetchSpend(ctx context.Context) ([]models.SpendRecord, error) {
	rows, header, err := s.readTable(s.spendPath, spendColumns)
	if err != nil {
		return nil, fmt.Errorf("spend dataset: %w", err)
	}

	spend := make([]models.SpendRecord, 0, len(rows))
	for _, row := range rows {
		spend = append(spend, models.SpendRecord{
			Date:    parseTimestamp(header.get(row, "date")),
			Channel: header.get(row, "channel"),
			Spend:   parseAmount(header.get(row, "spend")),
		})
		if s.OnRow != nil {
			s.OnRow()
		}
	}

	s.logger.WithFields(logrus.Fields{
		"path": s.spendPath,
		"rows": len(spend),
	}).Info("Loaded spend dataset")

	return spend, nil
}

// headerIndex maps normalized column names to their position.
type headerIndex map[string]int

func (h headerIndex) get(row []string, column string) string {
	idx, ok := h[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// passthrough collects columns that are not part of the known schema.
func (h headerIndex) passthrough(row []string, known []string) map[string]string {
	knownSet := make(map[string]bool, len(known))
	for _, c := range known {
		knownSet[c] = true
	}
	extra := make(map[string]string)
	for name, idx := range h {
		if knownSet[name] || idx >= len(row) {
			continue
		}
		extra[name] = strings.TrimSpace(row[idx])
	}
	return extra
}

func (s *CSVSource) readTable(path string, required []string) ([][]string, headerIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("csv %s has no header row", path)
	}

	header := make(headerIndex, len(records[0]))
	for i, col := range records[0] {
		header[strings.ToLower(strings.TrimSpace(col))] = i
	}

	var missing []string
	for _, col := range required {
		if _, ok := header[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("csv %s is missing required columns: %s", path, strings.Join(missing, ", "))
	}

	return records[1:], header, nil
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
}

// parseTimestamp returns the zero time when no layout matches; the normalizer
// drops such rows.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseRank(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return v
}
