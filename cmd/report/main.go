package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"analytics-service/internal/loader"
	"analytics-service/internal/models"
	"analytics-service/internal/services"
)

// report renders the dashboard tables as a markdown file, for sharing the
// numbers without the frontend.
func main() {
	ordersPath := flag.String("orders", "data/orders.csv", "orders CSV export")
	spendPath := flag.String("spend", "data/ad_spend.csv", "ad-spend CSV export")
	outPath := flag.String("out", "report.md", "output markdown file")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{})
	logger.SetOutput(os.Stderr)

	source := loader.NewCSVSource(*ordersPath, *spendPath, logger)
	bar := progressbar.Default(-1, "reading rows")
	source.OnRow = func() { _ = bar.Add(1) }

	service := services.NewAnalyticsService(source, logger)
	dashboard, err := service.BuildDashboard(context.Background())
	_ = bar.Finish()
	if err != nil {
		logger.Fatalf("build dashboard: %v", err)
	}

	md := renderMarkdown(dashboard)
	if err := os.WriteFile(*outPath, []byte(md), 0644); err != nil {
		logger.Fatalf("write report: %v", err)
	}
	fmt.Printf("Wrote %s (snapshot %s)\n", *outPath, dashboard.SnapshotID)
}

func renderMarkdown(d *models.Dashboard) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Marketing & Customer Dashboard\n\n")
	fmt.Fprintf(&b, "Snapshot `%s`, generated %s. %d orders analyzed", d.SnapshotID, d.GeneratedAt.Format("2006-01-02 15:04 MST"), d.OrderCount)
	if d.DroppedOrders > 0 || d.DroppedSpend > 0 {
		fmt.Fprintf(&b, " (%d order rows and %d spend rows dropped for unparseable dates)", d.DroppedOrders, d.DroppedSpend)
	}
	fmt.Fprintf(&b, ".\n\n")

	if d.KPIs != nil {
		fmt.Fprintf(&b, "## Monthly KPIs (%s)\n\n", d.KPIs.Month)
		fmt.Fprintf(&b, "- **Revenue:** $%.2f (%s)\n", d.KPIs.Revenue, formatGrowth(d.KPIs.RevenueGrowth))
		fmt.Fprintf(&b, "- **Orders:** %d (%s)\n", d.KPIs.Orders, formatGrowth(d.KPIs.OrdersGrowth))
		fmt.Fprintf(&b, "- **New Customers:** %d (%s)\n\n", d.KPIs.NewCustomers, formatGrowth(d.KPIs.NewCustomersGrowth))
	}

	if len(d.Monthly) > 0 {
		fmt.Fprintf(&b, "## Monthly Trends\n\n")
		fmt.Fprintf(&b, "| Month | Revenue | Orders | New Customers |\n|---|---|---|---|\n")
		for _, m := range d.Monthly {
			fmt.Fprintf(&b, "| %s | $%.2f | %d | %d |\n", m.Month, m.Revenue, m.Orders, m.NewCustomers)
		}
		fmt.Fprintln(&b)
	}

	if len(d.Attribution) > 0 {
		fmt.Fprintf(&b, "## Attribution Breakdown (First Orders)\n\n")
		fmt.Fprintf(&b, "| Channel | New Customers | Revenue |\n|---|---|---|\n")
		for _, ch := range d.Attribution {
			fmt.Fprintf(&b, "| %s | %d | $%.2f |\n", ch.Channel, ch.NewCustomers, ch.Revenue)
		}
		fmt.Fprintln(&b)
	}

	if len(d.Discounts) > 0 {
		fmt.Fprintf(&b, "## Discount Impact\n\n")
		fmt.Fprintf(&b, "| Status | Orders | Revenue | Avg Order Value |\n|---|---|---|---|\n")
		for _, ds := range d.Discounts {
			fmt.Fprintf(&b, "| %s | %d | $%.2f | $%.2f |\n", ds.Status, ds.OrderCount, ds.TotalRevenue, ds.AvgOrderValue)
		}
		fmt.Fprintln(&b)
	}

	if len(d.CustomerTypes) > 0 {
		fmt.Fprintf(&b, "## New vs Returning\n\n")
		fmt.Fprintf(&b, "| Type | Orders | Revenue | Avg Order Value |\n|---|---|---|---|\n")
		for _, ct := range d.CustomerTypes {
			fmt.Fprintf(&b, "| %s | %d | $%.2f | $%.2f |\n", ct.CustomerType, ct.OrderCount, ct.TotalRevenue, ct.AvgOrderValue)
		}
		fmt.Fprintln(&b)
	}

	if len(d.Segments) > 0 {
		fmt.Fprintf(&b, "## Customer Segments\n\n")
		fmt.Fprintf(&b, "| Segment | Customers |\n|---|---|\n")
		for _, seg := range d.Segments {
			fmt.Fprintf(&b, "| %s | %d |\n", seg.Segment, seg.Customers)
		}
		fmt.Fprintln(&b)
	}

	if len(d.Efficiency) > 0 {
		fmt.Fprintf(&b, "## Channel Efficiency\n\n")
		fmt.Fprintf(&b, "| Month | Channel | New Customers | Revenue | Spend | CAC | ROAS |\n|---|---|---|---|---|---|---|\n")
		for _, e := range d.Efficiency {
			fmt.Fprintf(&b, "| %s | %s | %d | $%.2f | $%.2f | $%.2f | %.2f |\n", e.Month, e.Channel, e.NewCustomers, e.Revenue, e.Spend, e.CAC, e.ROAS)
		}
		fmt.Fprintln(&b)
	}

	return b.String()
}

func formatGrowth(g *float64) string {
	if g == nil {
		return "N/A"
	}
	return fmt.Sprintf("%+.1f%%", *g*100)
}
