// Package report exports flip opportunities to spreadsheets.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/millelog/albion-market-tools/internal/engine"
)

// Header is the first row of every location sheet.
var Header = []interface{}{
	"Item", "Item ID", "Quality", "Enchant", "Avg Daily Volume", "Avg Price",
	"Buy Price", "Sell Price", "Buy Setup Fee", "Sell Setup Fee", "Premium Tax", "Total Fees",
	"Flip Margin", "Expected Volume", "Potential Profit", "Total Investment", "ROI %",
	"Max Adjustments", "Buy vs Avg %", "Sell vs Avg %", "Quote Time",
}

func row(o engine.FlipOpportunity) []interface{} {
	return []interface{}{
		o.ItemName, o.ItemID, o.Quality, o.EnchantLevel, o.AvgItemCount, o.AvgPrice,
		o.BuyPrice, o.SellPrice, o.BuySetupFee, o.SellSetupFee, o.PremiumTax, o.TotalFees,
		o.FlipMargin, o.ExpectedVolume, o.PotentialProfit, o.TotalInvestment, o.ROIPercent,
		o.MaxAdjustments, o.BuyPriceRatio, o.SellPriceRatio, o.Timestamp,
	}
}

// SheetName returns the sheet title used for location.
func SheetName(location string) string {
	name := strings.NewReplacer(":", "", "\\", "", "/", "", "?", "", "*", "", "[", "", "]", "").Replace(location)
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}

// WriteXLSX writes one sheet per location (sorted by name) with a header row
// and one row per opportunity, in the given order.
func WriteXLSX(path string, results map[string][]engine.FlipOpportunity) error {
	f := excelize.NewFile()
	defer f.Close()

	locations := make([]string, 0, len(results))
	for loc := range results {
		locations = append(locations, loc)
	}
	sort.Strings(locations)

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for _, loc := range locations {
		sheet := SheetName(loc)
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("sheet %s: %w", loc, err)
		}
		header := Header
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return fmt.Errorf("sheet %s header: %w", loc, err)
		}
		if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
			return fmt.Errorf("sheet %s header style: %w", loc, err)
		}
		for i, o := range results[loc] {
			cell, _ := excelize.CoordinatesToCellName(1, i+2)
			values := row(o)
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return fmt.Errorf("sheet %s row %d: %w", loc, i+2, err)
			}
		}
	}

	if len(locations) > 0 {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("drop default sheet: %w", err)
		}
		if idx, err := f.GetSheetIndex(SheetName(locations[0])); err == nil && idx >= 0 {
			f.SetActiveSheet(idx)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
