// Package market holds static wholesale price reference data. The engine
// only reads it; insight commentary comes from the external collaborator.
package market

import (
	"strings"

	"mandi/pkg/domain"
)

var referenceData = []domain.MarketData{
	{Item: "Onion (Red)", Average: 45, High: 60, Low: 35, Trend: domain.TrendUp, Unit: "kg"},
	{Item: "Tomato (Hybrid)", Average: 30, High: 40, Low: 22, Trend: domain.TrendDown, Unit: "kg"},
	{Item: "Potato (Local)", Average: 25, High: 32, Low: 18, Trend: domain.TrendStable, Unit: "kg"},
	{Item: "Rice (Basmati)", Average: 95, High: 140, Low: 80, Trend: domain.TrendUp, Unit: "kg"},
	{Item: "Wheat (Sharbati)", Average: 42, High: 50, Low: 35, Trend: domain.TrendStable, Unit: "kg"},
}

// Items returns a copy of the reference table in its fixed order.
func Items() []domain.MarketData {
	out := make([]domain.MarketData, len(referenceData))
	copy(out, referenceData)
	return out
}

// Lookup finds reference data by item name, case-insensitively.
func Lookup(item string) (domain.MarketData, bool) {
	for _, data := range referenceData {
		if strings.EqualFold(data.Item, item) {
			return data, true
		}
	}
	return domain.MarketData{}, false
}
