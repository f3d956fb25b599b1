package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"analytics-service/internal/models"
)

// DatasetSource provides the two source record sets of a refresh. Implemented
// by the CSV loader and the database-backed dataset repository.
type DatasetSource interface {
	FetchOrders(ctx context.Context) ([]models.Order, error)
	FetchSpend(ctx context.Context) ([]models.SpendRecord, error)
}

const (
	// Spend for the commission channel is synthesized per month as
	// commissionRate * attributed revenue + commissionFlatFee.
	commissionRate    = 0.10
	commissionFlatFee = 3000.0

	// monthKeyLayout yields keys that sort lexicographically in
	// chronological order.
	monthKeyLayout = "2006-01"
)

// AnalyticsService recomputes the dashboard tables from the source datasets.
// Every build is an independent, stateless batch run.
type AnalyticsService struct {
	source DatasetSource
	logger *logrus.Logger
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(source DatasetSource, logger *logrus.Logger) *AnalyticsService {
	return &AnalyticsService{
		source: source,
		logger: logger,
	}
}

// BuildDashboard loads both datasets, normalizes them and computes every
// derived table.
func (s *AnalyticsService) BuildDashboard(ctx context.Context) (*models.Dashboard, error) {
	rawOrders, err := s.source.FetchOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	rawSpend, err := s.source.FetchSpend(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load spend: %w", err)
	}

	orders, droppedOrders := NormalizeOrders(rawOrders)
	spend, droppedSpend := NormalizeSpend(rawSpend)
	if droppedOrders > 0 {
		s.logger.WithField("dropped", droppedOrders).Warn("Dropped order rows with unparseable timestamps")
	}
	if droppedSpend > 0 {
		s.logger.WithField("dropped", droppedSpend).Warn("Dropped spend rows with unparseable timestamps")
	}

	monthly := SummarizeMonthly(orders)
	reconciled := ReconcileSpend(orders, spend)

	dashboard := &models.Dashboard{
		SnapshotID:    uuid.New(),
		GeneratedAt:   time.Now().UTC(),
		OrderCount:    len(orders),
		DroppedOrders: droppedOrders,
		DroppedSpend:  droppedSpend,
		KPIs:          CompareLatestMonths(monthly),
		Monthly:       monthly,
		Attribution:   AttributeChannels(orders),
		Discounts:     SummarizeDiscounts(orders),
		CustomerTypes: SummarizeCustomerTypes(orders),
		Segments:      CountSegments(orders),
		Efficiency:    JoinChannelEfficiency(orders, reconciled),
	}

	s.logger.WithFields(logrus.Fields{
		"snapshot_id": dashboard.SnapshotID,
		"orders":      dashboard.OrderCount,
		"months":      len(dashboard.Monthly),
	}).Info("Dashboard rebuilt")

	return dashboard, nil
}

// ===== NORMALIZER =====

// NormalizeOrders drops rows whose timestamp could not be parsed and derives
// the month bucket key for the rest.
func NormalizeOrders(orders []models.Order) ([]models.Order, int) {
	normalized := make([]models.Order, 0, len(orders))
	dropped := 0
	for _, o := range orders {
		if o.CreatedAt.IsZero() {
			dropped++
			continue
		}
		o.Month = o.CreatedAt.Format(monthKeyLayout)
		normalized = append(normalized, o)
	}
	return normalized, dropped
}

// NormalizeSpend drops rows whose date could not be parsed and derives the
// month bucket key for the rest.
func NormalizeSpend(spend []models.SpendRecord) ([]models.SpendRecord, int) {
	normalized := make([]models.SpendRecord, 0, len(spend))
	dropped := 0
	for _, sp := range spend {
		if sp.Date.IsZero() {
			dropped++
			continue
		}
		sp.Month = sp.Date.Format(monthKeyLayout)
		normalized = append(normalized, sp)
	}
	return normalized, dropped
}

// ===== MONTHLY KPIS =====

// SummarizeMonthly groups orders by month. New customers are distinct
// customers whose first order falls in the month; months without orders do
// not appear.
func SummarizeMonthly(orders []models.Order) []models.MonthlySummary {
	type bucket struct {
		revenue      float64
		orders       int64
		newCustomers map[string]struct{}
	}

	buckets := make(map[string]*bucket)
	for _, o := range orders {
		b := buckets[o.Month]
		if b == nil {
			b = &bucket{newCustomers: make(map[string]struct{})}
			buckets[o.Month] = b
		}
		b.revenue += o.TotalPrice
		b.orders++
		if o.OrderRank == 1 {
			b.newCustomers[o.CustomerID] = struct{}{}
		}
	}

	months := make([]string, 0, len(buckets))
	for month := range buckets {
		months = append(months, month)
	}
	sort.Strings(months)

	summary := make([]models.MonthlySummary, 0, len(months))
	for _, month := range months {
		b := buckets[month]
		summary = append(summary, models.MonthlySummary{
			Month:        month,
			Revenue:      b.revenue,
			Orders:       b.orders,
			NewCustomers: int64(len(b.newCustomers)),
		})
	}
	return summary
}

// CompareLatestMonths builds the latest-vs-previous KPI comparison. Growth
// fields stay nil when no previous month exists or the previous value is zero.
func CompareLatestMonths(monthly []models.MonthlySummary) *models.KPIComparison {
	if len(monthly) == 0 {
		return nil
	}

	current := monthly[len(monthly)-1]
	comparison := &models.KPIComparison{
		Month:        current.Month,
		Revenue:      current.Revenue,
		Orders:       current.Orders,
		NewCustomers: current.NewCustomers,
	}
	if len(monthly) < 2 {
		return comparison
	}

	previous := monthly[len(monthly)-2]
	comparison.PreviousMonth = previous.Month
	comparison.RevenueGrowth = growth(current.Revenue, previous.Revenue)
	comparison.OrdersGrowth = growth(float64(current.Orders), float64(previous.Orders))
	comparison.NewCustomersGrowth = growth(float64(current.NewCustomers), float64(previous.NewCustomers))
	return comparison
}

func growth(current, previous float64) *float64 {
	if previous == 0 {
		return nil
	}
	g := (current - previous) / previous
	return &g
}

// ===== ATTRIBUTION =====

// AttributeChannels summarizes acquisition per channel over first orders
// only. Orders without a channel form their own group.
func AttributeChannels(orders []models.Order) []models.ChannelSummary {
	type bucket struct {
		customers map[string]struct{}
		revenue   float64
	}

	buckets := make(map[string]*bucket)
	for _, o := range orders {
		if o.OrderRank != 1 {
			continue
		}
		channel := channelOrUnknown(o.AttributedChannel)
		b := buckets[channel]
		if b == nil {
			b = &bucket{customers: make(map[string]struct{})}
			buckets[channel] = b
		}
		b.customers[o.CustomerID] = struct{}{}
		b.revenue += o.TotalPrice
	}

	summary := make([]models.ChannelSummary, 0, len(buckets))
	for channel, b := range buckets {
		summary = append(summary, models.ChannelSummary{
			Channel:      channel,
			NewCustomers: int64(len(b.customers)),
			Revenue:      b.revenue,
		})
	}
	sort.Slice(summary, func(i, j int) bool {
		if summary[i].NewCustomers != summary[j].NewCustomers {
			return summary[i].NewCustomers > summary[j].NewCustomers
		}
		return summary[i].Channel < summary[j].Channel
	})
	return summary
}

func channelOrUnknown(channel string) string {
	if strings.TrimSpace(channel) == "" {
		return models.ChannelUnknown
	}
	return channel
}

// ===== DISCOUNT IMPACT =====

// ClassifyDiscount labels an order from its price and discount amount. The
// branch order is load-bearing: a zero-price order with a discount is a free
// gift, not a discounted order.
func ClassifyDiscount(totalPrice, discountAmount float64) models.DiscountStatus {
	switch {
	case totalPrice == 0 && discountAmount > 0:
		return models.DiscountStatusFreeGift
	case discountAmount > 0:
		return models.DiscountStatusApplied
	case discountAmount == 0 && totalPrice > 0:
		return models.DiscountStatusNone
	default:
		return models.DiscountStatusOther
	}
}

var discountStatusOrder = []models.DiscountStatus{
	models.DiscountStatusNone,
	models.DiscountStatusApplied,
	models.DiscountStatusFreeGift,
	models.DiscountStatusOther,
}

// SummarizeDiscounts aggregates orders by discount status. Statuses with no
// orders are omitted.
func SummarizeDiscounts(orders []models.Order) []models.DiscountSummary {
	counts := make(map[models.DiscountStatus]int64)
	revenue := make(map[models.DiscountStatus]float64)
	for _, o := range orders {
		status := ClassifyDiscount(o.TotalPrice, o.DiscountAmount)
		counts[status]++
		revenue[status] += o.TotalPrice
	}

	summary := make([]models.DiscountSummary, 0, len(counts))
	for _, status := range discountStatusOrder {
		count := counts[status]
		if count == 0 {
			continue
		}
		summary = append(summary, models.DiscountSummary{
			Status:        status,
			OrderCount:    count,
			TotalRevenue:  revenue[status],
			AvgOrderValue: revenue[status] / float64(count),
		})
	}
	return summary
}

// ===== RETENTION =====

// SummarizeCustomerTypes partitions all orders into New (first orders) and
// Returning (everything else); the partition is exhaustive and disjoint.
func SummarizeCustomerTypes(orders []models.Order) []models.CustomerTypeSummary {
	counts := make(map[models.CustomerType]int64)
	revenue := make(map[models.CustomerType]float64)
	for _, o := range orders {
		customerType := models.CustomerTypeReturning
		if o.OrderRank == 1 {
			customerType = models.CustomerTypeNew
		}
		counts[customerType]++
		revenue[customerType] += o.TotalPrice
	}

	summary := make([]models.CustomerTypeSummary, 0, len(counts))
	for _, customerType := range []models.CustomerType{models.CustomerTypeNew, models.CustomerTypeReturning} {
		count := counts[customerType]
		if count == 0 {
			continue
		}
		summary = append(summary, models.CustomerTypeSummary{
			CustomerType:  customerType,
			OrderCount:    count,
			TotalRevenue:  revenue[customerType],
			AvgOrderValue: revenue[customerType] / float64(count),
		})
	}
	return summary
}

// ===== SEGMENTATION =====

// SegmentCustomer assigns a purchase-frequency segment. Single-order
// customers are handled first: their mean gap is undefined and must not reach
// the numeric branches. An undefined gap with more than one order falls
// through every comparison to the default label.
func SegmentCustomer(orderCount int, avgGapDays float64) models.SegmentLabel {
	if orderCount == 1 {
		return models.SegmentOneTimer
	}
	switch {
	case avgGapDays <= 15:
		return models.SegmentWeekly
	case avgGapDays <= 31:
		return models.SegmentBiWeekly
	case avgGapDays > 31:
		return models.SegmentInfrequent
	default:
		return models.SegmentMonthly
	}
}

var segmentOrder = []models.SegmentLabel{
	models.SegmentOneTimer,
	models.SegmentWeekly,
	models.SegmentBiWeekly,
	models.SegmentInfrequent,
	models.SegmentMonthly,
}

// CountSegments counts distinct customers per segment label. Gaps are day
// differences between chronologically adjacent orders of a customer.
func CountSegments(orders []models.Order) []models.SegmentCount {
	byCustomer := make(map[string][]time.Time)
	for _, o := range orders {
		byCustomer[o.CustomerID] = append(byCustomer[o.CustomerID], o.CreatedAt)
	}

	counts := make(map[models.SegmentLabel]int64)
	for _, timestamps := range byCustomer {
		sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })
		label := SegmentCustomer(len(timestamps), meanGapDays(timestamps))
		counts[label]++
	}

	segments := make([]models.SegmentCount, 0, len(counts))
	for _, label := range segmentOrder {
		if counts[label] == 0 {
			continue
		}
		segments = append(segments, models.SegmentCount{
			Segment:   label,
			Customers: counts[label],
		})
	}
	return segments
}

// meanGapDays returns NaN for fewer than two orders; the first order
// contributes no gap.
func meanGapDays(timestamps []time.Time) float64 {
	if len(timestamps) < 2 {
		return math.NaN()
	}
	var total float64
	for i := 1; i < len(timestamps); i++ {
		total += timestamps[i].Sub(timestamps[i-1]).Hours() / 24
	}
	return total / float64(len(timestamps)-1)
}

// ===== SPEND RECONCILIATION =====

// ReconcileSpend synthesizes the commission channel's spend from its
// attributed revenue and merges it into the spend table. Sourced rows for
// that channel are filtered out first so the efficiency join never sums raw
// and synthesized spend for the same month.
func ReconcileSpend(orders []models.Order, spend []models.SpendRecord) []models.SpendRecord {
	revenueByMonth := make(map[string]float64)
	for _, o := range orders {
		if o.AttributedChannel == models.ChannelCommission {
			revenueByMonth[o.Month] += o.TotalPrice
		}
	}

	reconciled := make([]models.SpendRecord, 0, len(spend)+len(revenueByMonth))
	for _, sp := range spend {
		if sp.Channel == models.ChannelCommission {
			continue
		}
		reconciled = append(reconciled, sp)
	}

	months := make([]string, 0, len(revenueByMonth))
	for month := range revenueByMonth {
		months = append(months, month)
	}
	sort.Strings(months)

	for _, month := range months {
		start, _ := time.Parse(monthKeyLayout, month)
		reconciled = append(reconciled, models.SpendRecord{
			Date:    start,
			Channel: models.ChannelCommission,
			Spend:   revenueByMonth[month]*commissionRate + commissionFlatFee,
			Month:   month,
		})
	}
	return reconciled
}

// ===== CHANNEL EFFICIENCY =====

// JoinChannelEfficiency inner-joins first-order acquisition with reconciled
// spend per (month, channel). Pairs missing from either side are excluded,
// as are pairs where either ratio denominator is not strictly positive.
func JoinChannelEfficiency(orders []models.Order, spend []models.SpendRecord) []models.ChannelEfficiency {
	type pair struct {
		month   string
		channel string
	}
	type acquisition struct {
		customers map[string]struct{}
		revenue   float64
	}

	acquired := make(map[pair]*acquisition)
	for _, o := range orders {
		if o.OrderRank != 1 {
			continue
		}
		k := pair{month: o.Month, channel: channelOrUnknown(o.AttributedChannel)}
		a := acquired[k]
		if a == nil {
			a = &acquisition{customers: make(map[string]struct{})}
			acquired[k] = a
		}
		a.customers[o.CustomerID] = struct{}{}
		a.revenue += o.TotalPrice
	}

	spendByPair := make(map[pair]float64)
	for _, sp := range spend {
		spendByPair[pair{month: sp.Month, channel: sp.Channel}] += sp.Spend
	}

	rows := make([]models.ChannelEfficiency, 0, len(acquired))
	for k, a := range acquired {
		totalSpend, ok := spendByPair[k]
		if !ok {
			continue
		}
		newCustomers := int64(len(a.customers))
		if newCustomers <= 0 || totalSpend <= 0 {
			continue
		}
		rows = append(rows, models.ChannelEfficiency{
			Month:        k.month,
			Channel:      k.channel,
			NewCustomers: newCustomers,
			Revenue:      a.revenue,
			Spend:        totalSpend,
			CAC:          totalSpend / float64(newCustomers),
			ROAS:         a.revenue / totalSpend,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Month != rows[j].Month {
			return rows[i].Month < rows[j].Month
		}
		return rows[i].Channel < rows[j].Channel
	})
	return rows
}
