package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"analytics-service/internal/models"
)

// MockDatasetSource is a mock implementation of DatasetSource
type MockDatasetSource struct {
	mock.Mock
}

var _ DatasetSource = (*MockDatasetSource)(nil)

func (m *MockDatasetSource) FetchOrders(ctx context.Context) ([]models.Order, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockDatasetSource) FetchSpend(ctx context.Context) ([]models.SpendRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SpendRecord), args.Error(1)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func day(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	assert.NoError(t, err)
	return parsed
}

func order(t *testing.T, id, customer, created string, total, discount float64, rank int, channel string) models.Order {
	t.Helper()
	return models.Order{
		OrderID:           id,
		CustomerID:        customer,
		CreatedAt:         day(t, created),
		TotalPrice:        total,
		DiscountAmount:    discount,
		OrderRank:         rank,
		AttributedChannel: channel,
	}
}

func normalized(t *testing.T, orders ...models.Order) []models.Order {
	t.Helper()
	out, dropped := NormalizeOrders(orders)
	assert.Zero(t, dropped)
	return out
}

// ===========================================
// Normalizer Tests
// ===========================================

func TestNormalizeOrders_DropsUnparseableTimestamps(t *testing.T) {
	orders := []models.Order{
		order(t, "1", "A", "2024-03-15", 100, 0, 1, "Google"),
		{OrderID: "2", CustomerID: "B"}, // zero timestamp
	}

	out, dropped := NormalizeOrders(orders)

	assert.Len(t, out, 1)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, "2024-03", out[0].Month)
}

func TestNormalizeSpend_DerivesMonthKey(t *testing.T) {
	spend := []models.SpendRecord{
		{Date: day(t, "2024-04-01"), Channel: "Google", Spend: 50},
		{Channel: "Meta", Spend: 10}, // zero date
	}

	out, dropped := NormalizeSpend(spend)

	assert.Len(t, out, 1)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, "2024-04", out[0].Month)
}

// ===========================================
// Monthly KPI Tests
// ===========================================

func TestSummarizeMonthly_BucketsByCalendarMonth(t *testing.T) {
	orders := normalized(t,
		order(t, "1", "A", "2024-03-15", 100, 0, 1, ""),
		order(t, "2", "B", "2024-03-31", 40, 0, 1, ""),
		order(t, "3", "A", "2024-04-01", 60, 0, 2, ""),
	)

	monthly := SummarizeMonthly(orders)

	assert.Len(t, monthly, 2)
	assert.Equal(t, "2024-03", monthly[0].Month)
	assert.Equal(t, 140.0, monthly[0].Revenue)
	assert.Equal(t, int64(2), monthly[0].Orders)
	assert.Equal(t, int64(2), monthly[0].NewCustomers)
	assert.Equal(t, "2024-04", monthly[1].Month)
	assert.Equal(t, int64(0), monthly[1].NewCustomers)
}

func TestSummarizeMonthly_CountsDistinctNewCustomers(t *testing.T) {
	// Two rank-1 rows for the same customer in one month count once.
	orders := normalized(t,
		order(t, "1", "A", "2024-01-03", 10, 0, 1, ""),
		order(t, "2", "A", "2024-01-04", 10, 0, 1, ""),
	)

	monthly := SummarizeMonthly(orders)

	assert.Equal(t, int64(1), monthly[0].NewCustomers)
}

func TestCompareLatestMonths_NoData(t *testing.T) {
	assert.Nil(t, CompareLatestMonths(nil))
}

func TestCompareLatestMonths_SingleMonth(t *testing.T) {
	comparison := CompareLatestMonths([]models.MonthlySummary{
		{Month: "2024-01", Revenue: 100, Orders: 1, NewCustomers: 1},
	})

	assert.NotNil(t, comparison)
	assert.Equal(t, "2024-01", comparison.Month)
	assert.Empty(t, comparison.PreviousMonth)
	assert.Nil(t, comparison.RevenueGrowth)
	assert.Nil(t, comparison.OrdersGrowth)
	assert.Nil(t, comparison.NewCustomersGrowth)
}

func TestCompareLatestMonths_Growth(t *testing.T) {
	comparison := CompareLatestMonths([]models.MonthlySummary{
		{Month: "2024-01", Revenue: 100, Orders: 2, NewCustomers: 0},
		{Month: "2024-02", Revenue: 150, Orders: 1, NewCustomers: 3},
	})

	assert.NotNil(t, comparison)
	assert.Equal(t, "2024-02", comparison.Month)
	assert.Equal(t, "2024-01", comparison.PreviousMonth)
	assert.InDelta(t, 0.5, *comparison.RevenueGrowth, 1e-9)
	assert.InDelta(t, -0.5, *comparison.OrdersGrowth, 1e-9)
	// Previous new-customer count is zero: growth undefined.
	assert.Nil(t, comparison.NewCustomersGrowth)
}

// ===========================================
// Attribution Tests
// ===========================================

func TestAttributeChannels_FirstOrdersOnly(t *testing.T) {
	orders := normalized(t,
		order(t, "1", "A", "2024-01-05", 100, 0, 1, "Google"),
		order(t, "2", "A", "2024-02-10", 50, 10, 2, "Google"),
		order(t, "3", "B", "2024-01-08", 80, 0, 1, "Meta"),
		order(t, "4", "C", "2024-01-09", 20, 0, 1, "Meta"),
		order(t, "5", "D", "2024-01-12", 30, 0, 1, ""),
	)

	summary := AttributeChannels(orders)

	assert.Len(t, summary, 3)
	// Sorted by new customers descending.
	assert.Equal(t, "Meta", summary[0].Channel)
	assert.Equal(t, int64(2), summary[0].NewCustomers)
	assert.Equal(t, 100.0, summary[0].Revenue)
	// Missing attribution is its own group, not dropped.
	channels := []string{summary[0].Channel, summary[1].Channel, summary[2].Channel}
	assert.Contains(t, channels, models.ChannelUnknown)
	for _, row := range summary {
		if row.Channel == "Google" {
			// The rank-2 order contributes nothing.
			assert.Equal(t, 100.0, row.Revenue)
			assert.Equal(t, int64(1), row.NewCustomers)
		}
	}
}

// ===========================================
// Discount Classification Tests
// ===========================================

func TestClassifyDiscount(t *testing.T) {
	tests := []struct {
		name     string
		total    float64
		discount float64
		want     models.DiscountStatus
	}{
		{"free gift", 0, 5, models.DiscountStatusFreeGift},
		{"discount applied", 100, 10, models.DiscountStatusApplied},
		{"no discount", 100, 0, models.DiscountStatusNone},
		{"zero value order", 0, 0, models.DiscountStatusOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyDiscount(tt.total, tt.discount))
			// Pure function: same pair, same label.
			assert.Equal(t, tt.want, ClassifyDiscount(tt.total, tt.discount))
		})
	}
}

func TestSummarizeDiscounts(t *testing.T) {
	orders := normalized(t,
		order(t, "1", "A", "2024-01-05", 100, 0, 1, ""),
		order(t, "2", "A", "2024-02-10", 50, 10, 2, ""),
		order(t, "3", "B", "2024-02-11", 30, 5, 1, ""),
		order(t, "4", "C", "2024-02-12", 0, 5, 1, ""),
	)

	summary := SummarizeDiscounts(orders)

	assert.Len(t, summary, 3)
	byStatus := make(map[models.DiscountStatus]models.DiscountSummary)
	for _, row := range summary {
		byStatus[row.Status] = row
	}
	assert.Equal(t, int64(2), byStatus[models.DiscountStatusApplied].OrderCount)
	assert.Equal(t, 80.0, byStatus[models.DiscountStatusApplied].TotalRevenue)
	assert.Equal(t, 40.0, byStatus[models.DiscountStatusApplied].AvgOrderValue)
	assert.Equal(t, int64(1), byStatus[models.DiscountStatusFreeGift].OrderCount)
	assert.Equal(t, int64(1), byStatus[models.DiscountStatusNone].OrderCount)
}

// ===========================================
// Retention Tests
// ===========================================

func TestSummarizeCustomerTypes_PartitionIsExhaustive(t *testing.T) {
	orders := normalized(t,
		order(t, "1", "A", "2024-01-05", 100, 0, 1, ""),
		order(t, "2", "A", "2024-02-10", 50, 0, 2, ""),
		order(t, "3", "A", "2024-03-10", 25, 0, 3, ""),
		order(t, "4", "B", "2024-01-06", 80, 0, 1, ""),
	)

	summary := SummarizeCustomerTypes(orders)

	assert.Len(t, summary, 2)
	assert.Equal(t, models.CustomerTypeNew, summary[0].CustomerType)
	assert.Equal(t, int64(2), summary[0].OrderCount)
	assert.Equal(t, models.CustomerTypeReturning, summary[1].CustomerType)
	assert.Equal(t, int64(2), summary[1].OrderCount)
	assert.Equal(t, int64(len(orders)), summary[0].OrderCount+summary[1].OrderCount)
	assert.Equal(t, 90.0, summary[1].TotalRevenue)
	assert.Equal(t, 45.0, summary[1].AvgOrderValue)
}

// ===========================================
// Segmentation Tests
// ===========================================

func TestSegmentCustomer(t *testing.T) {
	tests := []struct {
		name       string
		orderCount int
		avgGapDays float64
		want       models.SegmentLabel
	}{
		{"one-timer ignores gap", 1, 3, models.SegmentOneTimer},
		{"one-timer undefined gap", 1, math.NaN(), models.SegmentOneTimer},
		{"weekly at boundary", 2, 15, models.SegmentWeekly},
		{"bi-weekly just above", 2, 15.5, models.SegmentBiWeekly},
		{"bi-weekly at boundary", 2, 31, models.SegmentBiWeekly},
		{"infrequent above boundary", 3, 36, models.SegmentInfrequent},
		{"defensive default on undefined gap", 2, math.NaN(), models.SegmentMonthly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SegmentCustomer(tt.orderCount, tt.avgGapDays))
		})
	}
}

func TestCountSegments(t *testing.T) {
	// Customer A: orders 36 days apart -> Infrequent Buyer.
	// Customer B: single order -> One-Timer.
	// Customer C: orders 10 days apart -> Weekly Buyer.
	orders := normalized(t,
		order(t, "1", "A", "2024-01-05", 100, 0, 1, ""),
		order(t, "2", "A", "2024-02-10", 50, 10, 2, ""),
		order(t, "3", "B", "2024-01-08", 80, 0, 1, ""),
		order(t, "4", "C", "2024-01-01", 20, 0, 1, ""),
		order(t, "5", "C", "2024-01-11", 25, 0, 2, ""),
	)

	segments := CountSegments(orders)

	byLabel := make(map[models.SegmentLabel]int64)
	var total int64
	for _, row := range segments {
		byLabel[row.Segment] = row.Customers
		total += row.Customers
	}
	assert.Equal(t, int64(1), byLabel[models.SegmentOneTimer])
	assert.Equal(t, int64(1), byLabel[models.SegmentWeekly])
	assert.Equal(t, int64(1), byLabel[models.SegmentInfrequent])
	// Every customer gets exactly one label.
	assert.Equal(t, int64(3), total)
}

// ===========================================
// Spend Reconciliation Tests
// ===========================================

func TestReconcileSpend_SynthesizesCommissionChannel(t *testing.T) {
	orders := normalized(t,
		order(t, "1", "A", "2024-01-05", 1000, 0, 1, models.ChannelCommission),
		order(t, "2", "B", "2024-01-20", 500, 0, 1, models.ChannelCommission),
		order(t, "3", "C", "2024-02-02", 200, 0, 1, models.ChannelCommission),
		order(t, "4", "D", "2024-01-08", 300, 0, 1, "Google"),
	)
	spend := []models.SpendRecord{
		{Date: day(t, "2024-01-01"), Channel: "Google", Spend: 120, Month: "2024-01"},
		// Raw row for the commission channel must be filtered, not summed.
		{Date: day(t, "2024-01-01"), Channel: models.ChannelCommission, Spend: 999, Month: "2024-01"},
	}

	reconciled := ReconcileSpend(orders, spend)

	assert.Len(t, reconciled, 3)
	var commission []models.SpendRecord
	for _, sp := range reconciled {
		if sp.Channel == models.ChannelCommission {
			commission = append(commission, sp)
		}
	}
	assert.Len(t, commission, 2)
	assert.Equal(t, "2024-01", commission[0].Month)
	assert.InDelta(t, 1500*0.10+3000, commission[0].Spend, 1e-9)
	assert.Equal(t, "2024-02", commission[1].Month)
	assert.InDelta(t, 200*0.10+3000, commission[1].Spend, 1e-9)
}

func TestReconcileSpend_CommissionCoversRepeatOrders(t *testing.T) {
	// Commission is owed on every order attributed to the channel, not just
	// first orders: A's rank-2 order counts toward the base.
	orders := normalized(t,
		order(t, "1", "A", "2024-01-05", 1000, 0, 1, models.ChannelCommission),
		order(t, "2", "A", "2024-01-18", 400, 0, 2, models.ChannelCommission),
		order(t, "3", "B", "2024-01-09", 250, 0, 3, models.ChannelCommission),
	)

	reconciled := ReconcileSpend(orders, nil)

	assert.Len(t, reconciled, 1)
	assert.Equal(t, models.ChannelCommission, reconciled[0].Channel)
	assert.Equal(t, "2024-01", reconciled[0].Month)
	assert.InDelta(t, (1000+400+250)*0.10+3000, reconciled[0].Spend, 1e-9)
}

// ===========================================
// Channel Efficiency Tests
// ===========================================

func TestJoinChannelEfficiency_InnerJoin(t *testing.T) {
	// Meta has orders but no spend; Google in 2024-02 has spend but no first
	// orders. Neither pair may appear.
	orders := normalized(t,
		order(t, "1", "A", "2024-01-05", 100, 0, 1, "Google"),
		order(t, "2", "B", "2024-01-06", 300, 0, 1, "Google"),
		order(t, "3", "C", "2024-01-07", 50, 0, 1, "Meta"),
		order(t, "4", "A", "2024-02-10", 70, 0, 2, "Google"),
	)
	spend := []models.SpendRecord{
		{Date: day(t, "2024-01-01"), Channel: "Google", Spend: 200, Month: "2024-01"},
		{Date: day(t, "2024-02-01"), Channel: "Google", Spend: 80, Month: "2024-02"},
	}

	rows := JoinChannelEfficiency(orders, spend)

	assert.Len(t, rows, 1)
	assert.Equal(t, "2024-01", rows[0].Month)
	assert.Equal(t, "Google", rows[0].Channel)
	assert.Equal(t, int64(2), rows[0].NewCustomers)
	assert.Equal(t, 400.0, rows[0].Revenue)
	assert.Equal(t, 200.0, rows[0].Spend)
	assert.InDelta(t, 100.0, rows[0].CAC, 1e-9)
	assert.InDelta(t, 2.0, rows[0].ROAS, 1e-9)
}

func TestJoinChannelEfficiency_ExcludesZeroDenominators(t *testing.T) {
	orders := normalized(t,
		order(t, "1", "A", "2024-01-05", 100, 0, 1, "Google"),
	)
	spend := []models.SpendRecord{
		{Date: day(t, "2024-01-01"), Channel: "Google", Spend: 0, Month: "2024-01"},
	}

	rows := JoinChannelEfficiency(orders, spend)

	assert.Empty(t, rows)
}

func TestJoinChannelEfficiency_SumsDuplicateSpendRows(t *testing.T) {
	orders := normalized(t,
		order(t, "1", "A", "2024-01-05", 100, 0, 1, "Google"),
	)
	spend := []models.SpendRecord{
		{Date: day(t, "2024-01-01"), Channel: "Google", Spend: 60, Month: "2024-01"},
		{Date: day(t, "2024-01-15"), Channel: "Google", Spend: 40, Month: "2024-01"},
	}

	rows := JoinChannelEfficiency(orders, spend)

	assert.Len(t, rows, 1)
	assert.Equal(t, 100.0, rows[0].Spend)
}

// ===========================================
// Pipeline Tests
// ===========================================

func TestBuildDashboard_EndToEnd(t *testing.T) {
	ctx := context.Background()
	mockSource := new(MockDatasetSource)
	service := NewAnalyticsService(mockSource, testLogger())

	orders := []models.Order{
		order(t, "1", "A", "2024-01-05", 100, 0, 1, "Google"),
		order(t, "2", "A", "2024-02-10", 50, 10, 2, "Google"),
	}
	spend := []models.SpendRecord{
		{Date: day(t, "2024-01-01"), Channel: "Google", Spend: 25},
	}
	mockSource.On("FetchOrders", ctx).Return(orders, nil)
	mockSource.On("FetchSpend", ctx).Return(spend, nil)

	dashboard, err := service.BuildDashboard(ctx)

	assert.NoError(t, err)
	assert.NotNil(t, dashboard)
	mockSource.AssertExpectations(t)

	assert.Equal(t, 2, dashboard.OrderCount)
	assert.Zero(t, dashboard.DroppedOrders)

	// Monthly summary: 2024-01 revenue=100/orders=1/new=1, 2024-02 revenue=50/orders=1/new=0.
	assert.Len(t, dashboard.Monthly, 2)
	assert.Equal(t, models.MonthlySummary{Month: "2024-01", Revenue: 100, Orders: 1, NewCustomers: 1}, dashboard.Monthly[0])
	assert.Equal(t, models.MonthlySummary{Month: "2024-02", Revenue: 50, Orders: 1, NewCustomers: 0}, dashboard.Monthly[1])

	// Order 2 is a discounted order.
	var applied *models.DiscountSummary
	for i := range dashboard.Discounts {
		if dashboard.Discounts[i].Status == models.DiscountStatusApplied {
			applied = &dashboard.Discounts[i]
		}
	}
	assert.NotNil(t, applied)
	assert.Equal(t, int64(1), applied.OrderCount)

	// Customer A ordered twice, 36 days apart: Infrequent Buyer, not One-Timer.
	assert.Equal(t, []models.SegmentCount{{Segment: models.SegmentInfrequent, Customers: 1}}, dashboard.Segments)

	// Efficiency: Google in 2024-01 only (no spend for 2024-02).
	assert.Len(t, dashboard.Efficiency, 1)
	assert.Equal(t, "2024-01", dashboard.Efficiency[0].Month)
	assert.InDelta(t, 25.0, dashboard.Efficiency[0].CAC, 1e-9)
	assert.InDelta(t, 4.0, dashboard.Efficiency[0].ROAS, 1e-9)

	// KPI comparison against the previous month.
	assert.NotNil(t, dashboard.KPIs)
	assert.Equal(t, "2024-02", dashboard.KPIs.Month)
	assert.InDelta(t, -0.5, *dashboard.KPIs.RevenueGrowth, 1e-9)
}

func TestBuildDashboard_SourceError(t *testing.T) {
	ctx := context.Background()
	mockSource := new(MockDatasetSource)
	service := NewAnalyticsService(mockSource, testLogger())

	mockSource.On("FetchOrders", ctx).Return(nil, errors.New("file not found"))

	dashboard, err := service.BuildDashboard(ctx)

	assert.Error(t, err)
	assert.Nil(t, dashboard)
	mockSource.AssertExpectations(t)
}

func TestBuildDashboard_CountsDroppedRows(t *testing.T) {
	ctx := context.Background()
	mockSource := new(MockDatasetSource)
	service := NewAnalyticsService(mockSource, testLogger())

	orders := []models.Order{
		order(t, "1", "A", "2024-01-05", 100, 0, 1, "Google"),
		{OrderID: "2", CustomerID: "B", TotalPrice: 10, OrderRank: 1}, // unparseable timestamp
	}
	mockSource.On("FetchOrders", ctx).Return(orders, nil)
	mockSource.On("FetchSpend", ctx).Return([]models.SpendRecord{}, nil)

	dashboard, err := service.BuildDashboard(ctx)

	assert.NoError(t, err)
	assert.Equal(t, 1, dashboard.OrderCount)
	assert.Equal(t, 1, dashboard.DroppedOrders)
	// The dropped order must not leak into any aggregate.
	assert.Equal(t, int64(1), dashboard.Monthly[0].Orders)
}
