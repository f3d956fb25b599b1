package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Order is one order-level row from the marketplace export.
// Month is derived during normalization and never stored.
type Order struct {
	OrderID           string         `gorm:"type:varchar(100);primaryKey" json:"orderId" csv:"order_id"`
	CustomerID        string         `gorm:"type:varchar(100);not null;index:idx_orders_customer" json:"customerId" csv:"customer_id"`
	CreatedAt         time.Time      `gorm:"not null;index" json:"createdAt" csv:"created_at"`
	TotalPrice        float64        `gorm:"type:decimal(15,2);not null;default:0" json:"totalPrice" csv:"total_price"`
	DiscountAmount    float64        `gorm:"type:decimal(15,2);not null;default:0" json:"discountAmount" csv:"discount_amount"`
	OrderRank         int            `gorm:"not null;default:1" json:"orderRank" csv:"order_rank"`
	AttributedChannel string         `gorm:"type:varchar(100);index:idx_orders_channel" json:"attributedChannel,omitempty" csv:"attributed_channel"`
	Extra             datatypes.JSON `gorm:"type:jsonb" json:"extra,omitempty"`

	Month string `gorm:"-" json:"month,omitempty"`
}

// SpendRecord is one marketing-spend row (one channel, one period).
type SpendRecord struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Date    time.Time `gorm:"not null;index" json:"date" csv:"date"`
	Channel string    `gorm:"type:varchar(100);not null;index:idx_ad_spend_channel" json:"channel" csv:"channel"`
	Spend   float64   `gorm:"type:decimal(15,2);not null;default:0" json:"spend" csv:"spend"`

	Month string `gorm:"-" json:"month,omitempty"`
}

// TableName maps SpendRecord to the ad_spend table written by the connector.
func (SpendRecord) TableName() string {
	return "ad_spend"
}

// DiscountStatus classifies an order by its discount usage.
// Values are dashboard series keys consumed by the frontend; do not rename.
type DiscountStatus string

const (
	DiscountStatusFreeGift DiscountStatus = "Free Gift"
	DiscountStatusApplied  DiscountStatus = "Discount Applied"
	DiscountStatusNone     DiscountStatus = "No Discount"
	DiscountStatusOther    DiscountStatus = "Other"
)

// CustomerType splits orders into first orders and repeat orders.
type CustomerType string

const (
	CustomerTypeNew       CustomerType = "New"
	CustomerTypeReturning CustomerType = "Returning"
)

// SegmentLabel buckets a customer by purchase frequency.
// The 15-31 day bucket is historically labeled "Bi-Weekly Buyer" and the
// defensive default "Monthly Buyer"; both labels are frontend series keys.
type SegmentLabel string

const (
	SegmentOneTimer   SegmentLabel = "One-Timer"
	SegmentWeekly     SegmentLabel = "Weekly Buyer"
	SegmentBiWeekly   SegmentLabel = "Bi-Weekly Buyer"
	SegmentInfrequent SegmentLabel = "Infrequent Buyer"
	SegmentMonthly    SegmentLabel = "Monthly Buyer"
)

const (
	// ChannelCommission is the channel whose spend is synthesized from
	// attributed revenue (commission + flat fee) instead of sourced.
	ChannelCommission = "XYZ media"

	// ChannelUnknown groups orders whose attribution is missing.
	ChannelUnknown = "Unknown"
)

// MonthlySummary is one row of the monthly KPI table.
type MonthlySummary struct {
	Month        string  `json:"month"`
	Revenue      float64 `json:"revenue"`
	Orders       int64   `json:"orders"`
	NewCustomers int64   `json:"newCustomers"`
}

// KPIComparison compares the latest month against the previous one.
// Growth fields are fractions ((current-previous)/previous) and are nil when
// the comparison is undefined (no previous month, or previous value is zero).
type KPIComparison struct {
	Month              string   `json:"month"`
	PreviousMonth      string   `json:"previousMonth,omitempty"`
	Revenue            float64  `json:"revenue"`
	Orders             int64    `json:"orders"`
	NewCustomers       int64    `json:"newCustomers"`
	RevenueGrowth      *float64 `json:"revenueGrowth,omitempty"`
	OrdersGrowth       *float64 `json:"ordersGrowth,omitempty"`
	NewCustomersGrowth *float64 `json:"newCustomersGrowth,omitempty"`
}

// ChannelSummary is one row of the first-order attribution table.
type ChannelSummary struct {
	Channel      string  `json:"channel"`
	NewCustomers int64   `json:"newCustomers"`
	Revenue      float64 `json:"revenue"`
}

// DiscountSummary aggregates orders sharing a discount status.
type DiscountSummary struct {
	Status        DiscountStatus `json:"status"`
	OrderCount    int64          `json:"orderCount"`
	TotalRevenue  float64        `json:"totalRevenue"`
	AvgOrderValue float64        `json:"avgOrderValue"`
}

// CustomerTypeSummary aggregates orders by New/Returning.
type CustomerTypeSummary struct {
	CustomerType  CustomerType `json:"customerType"`
	OrderCount    int64        `json:"orderCount"`
	TotalRevenue  float64      `json:"totalRevenue"`
	AvgOrderValue float64      `json:"avgOrderValue"`
}

// SegmentCount counts distinct customers per segment label.
type SegmentCount struct {
	Segment   SegmentLabel `json:"segment"`
	Customers int64        `json:"customers"`
}

// ChannelEfficiency is one row of the CAC/ROAS table. Rows exist only for
// (month, channel) pairs present in both acquisition and spend, and only when
// both denominators are strictly positive.
type ChannelEfficiency struct {
	Month        string  `json:"month"`
	Channel      string  `json:"channel"`
	NewCustomers int64   `json:"newCustomers"`
	Revenue      float64 `json:"revenue"`
	Spend        float64 `json:"spend"`
	CAC          float64 `json:"cac"`
	ROAS         float64 `json:"roas"`
}

// Dashboard bundles every derived table of one refresh.
type Dashboard struct {
	SnapshotID    uuid.UUID             `json:"snapshotId"`
	GeneratedAt   time.Time             `json:"generatedAt"`
	OrderCount    int                   `json:"orderCount"`
	DroppedOrders int                   `json:"droppedOrders"`
	DroppedSpend  int                   `json:"droppedSpend"`
	KPIs          *KPIComparison        `json:"kpis,omitempty"`
	Monthly       []MonthlySummary      `json:"monthly"`
	Attribution   []ChannelSummary      `json:"attribution"`
	Discounts     []DiscountSummary     `json:"discounts"`
	CustomerTypes []CustomerTypeSummary `json:"customerTypes"`
	Segments      []SegmentCount        `json:"segments"`
	Efficiency    []ChannelEfficiency   `json:"efficiency"`
}
