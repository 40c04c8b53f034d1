// backend/src/services/export_service.go
package services

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/username/hermes/backend/src/models"
	"github.com/username/hermes/backend/src/security/validation"
)

const (
	itemsSheetName    = "Itens"
	releasesSheetName = "Liberações"
)

var itemsHeader = []interface{}{
	"Item", "Título", "Pedidos", "Unidades", "Vendas", "Repasse", "Tarifas",
	"Liberado (un.)", "Liberado", "Devolvido (un.)", "Devolvido",
	"A liberar (un.)", "A liberar", "Imposto", "Custo médio", "Custo total",
	"Publicidade", "Lucro", "Lucro liberado", "Lucro projetado", "Margem %",
}

var bucketLabels = map[models.ReleaseBucket]string{
	models.BucketClaims:           "Reclamações",
	models.BucketDebts:            "Dívidas",
	models.BucketTransfers:        "Transferências",
	models.BucketCreditCard:       "Cartão de crédito",
	models.BucketShippingCashback: "Cashback de envio",
	models.BucketUncategorized:    "Outros",
}

// ExportService renders finance reports as spreadsheets.
type ExportService struct{}

func NewExportService() *ExportService {
	return &ExportService{}
}

// WriteItemsXLSX writes the per-item table with its totals row, plus a sheet
// with the release bucket totals.
func (s *ExportService) WriteItemsXLSX(w io.Writer, report *models.FinanceReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", itemsSheetName); err != nil {
		return err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return err
	}

	if err := f.SetSheetRow(itemsSheetName, "A1", &itemsHeader); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(itemsHeader))
	if err := f.SetCellStyle(itemsSheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}

	row := 2
	for _, it := range report.Items {
		values := []interface{}{
			validation.SanitizeForFormulaInjection(it.ItemID),
			validation.SanitizeForFormulaInjection(it.Title),
			it.OrderCount, it.TotalUnits, it.TotalSales, it.TotalRepasse, it.TotalFees,
			it.Released.Count, it.Released.Amount,
			it.Refunded.Count, it.Refunded.Amount,
			it.Unreleased.Count, it.Unreleased.Amount,
			it.TaxAmount, it.AvgUnitCost, it.TotalCost, it.AdCost,
			it.ProfitTotal, it.ProfitReleased, it.ProfitProjected, it.MarginPercent,
		}
		if err := setRow(f, itemsSheetName, row, values); err != nil {
			return err
		}
		row++
	}

	t := report.Totals
	totals := []interface{}{
		"Total", "",
		t.OrderCount, t.TotalUnits, t.TotalSales, t.TotalRepasse, t.TotalFees,
		t.Released.Count, t.Released.Amount,
		t.Refunded.Count, t.Refunded.Amount,
		t.Unreleased.Count, t.Unreleased.Amount,
		t.TaxAmount, "", t.TotalCost, t.AdCost,
		t.ProfitTotal, t.ProfitReleased, t.ProfitProjected, t.MarginPercent,
	}
	if err := setRow(f, itemsSheetName, row, totals); err != nil {
		return err
	}
	if err := f.SetCellStyle(itemsSheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("%s%d", lastCol, row), headerStyle); err != nil {
		return err
	}
	if row > 2 {
		if err := f.SetCellStyle(itemsSheetName, "E2", fmt.Sprintf("G%d", row-1), moneyStyle); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(itemsSheetName, "B", "B", 48); err != nil {
		return err
	}

	if err := s.writeReleasesSheet(f, report.Releases, headerStyle); err != nil {
		return err
	}

	_, err = f.WriteTo(w)
	return err
}

func (s *ExportService) writeReleasesSheet(f *excelize.File, releases models.ReleaseSummary, headerStyle int) error {
	if _, err := f.NewSheet(releasesSheetName); err != nil {
		return err
	}
	if err := setRow(f, releasesSheetName, 1, []interface{}{"Categoria", "Valor"}); err != nil {
		return err
	}
	if err := f.SetCellStyle(releasesSheetName, "A1", "B1", headerStyle); err != nil {
		return err
	}

	row := 2
	for _, b := range models.AllReleaseBuckets {
		if err := setRow(f, releasesSheetName, row, []interface{}{bucketLabels[b], releases.BucketTotals[b]}); err != nil {
			return err
		}
		row++
	}
	return setRow(f, releasesSheetName, row, []interface{}{"Total liberado", releases.ReleasedTotal})
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
