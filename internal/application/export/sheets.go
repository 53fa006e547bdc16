package export

import (
	"strconv"
	"strings"

	"github.com/stockledger/backend/internal/domain/ledger"
)

const notAvailable = "N/A"

// Column headers of the exports
var (
	summaryHeader       = []string{"Артикул", "Количество"}
	detailedDiffHeader  = []string{"Артикул", "Изменение", "Ячейка"}
	detailedStockHeader = []string{"Артикул", "Название", "Общее Количество", "Локации", "Сезон", "Узор", "Цвет", "Размер"}
)

// SummarizedDiffSheet has one row per item with a non-zero net change
func SummarizedDiffSheet(report ledger.DiffReport) Sheet {
	s := Sheet{Name: "Изменения", Header: summaryHeader}
	for _, d := range report.Exportable() {
		s.Rows = append(s.Rows, []string{d.ID, strconv.Itoa(d.DiffQty)})
	}
	return s
}

// DetailedDiffSheet has one row per changed voxel, transfers included
func DetailedDiffSheet(report ledger.DiffReport) Sheet {
	s := Sheet{Name: "Изменения", Header: detailedDiffHeader}
	for _, d := range report.Items {
		for _, v := range d.VoxelDiffs {
			s.Rows = append(s.Rows, []string{d.ID, strconv.Itoa(v.Change), v.VoxelID})
		}
	}
	return s
}

// StockSummarySheet lists every item with its total
func StockSummarySheet(items []*ledger.Item) Sheet {
	s := Sheet{Name: "Остатки", Header: summaryHeader}
	for _, it := range items {
		s.Rows = append(s.Rows, []string{it.ID, strconv.Itoa(it.TotalQuantity())})
	}
	return s
}

// StockDetailedSheet lists every item with its locations and attributes
func StockDetailedSheet(items []*ledger.Item) Sheet {
	s := Sheet{Name: "Остатки", Header: detailedStockHeader}
	for _, it := range items {
		s.Rows = append(s.Rows, []string{
			it.ID,
			orNA(it.DisplayName()),
			strconv.Itoa(it.TotalQuantity()),
			formatLocations(it.Locations),
			orNA(it.Attributes.Season),
			orNA(it.Attributes.Pattern),
			orNA(it.Attributes.Color),
			orNA(it.Attributes.Size),
		})
	}
	return s
}

// formatLocations renders "A1:3, B2:4"
func formatLocations(locs ledger.LocationAllocations) string {
	parts := make([]string, 0, len(locs))
	for _, l := range locs {
		parts = append(parts, l.VoxelID+":"+strconv.Itoa(l.Quantity))
	}
	return strings.Join(parts, ", ")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}
