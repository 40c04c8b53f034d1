package mercadolivre

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/username/hermes/backend/src/logger"
	"github.com/username/hermes/backend/src/models"
)

var ErrMalformedAdvertising = errors.New("malformed advertising spreadsheet")

// Header names accepted for each column, lowercased. The ads panel export
// uses Portuguese headers; the English ones come from hand-made sheets.
var advertisingHeaders = map[string][]string{
	"item":   {"item", "item_id", "código do anúncio", "codigo do anuncio", "anúncio", "mlb"},
	"date":   {"date", "data", "dia"},
	"cost":   {"cost", "custo", "investimento", "gasto"},
	"units":  {"units", "unidades", "vendas", "unidades vendidas"},
	"clicks": {"clicks", "cliques"},
}

// AdvertisingParseResult holds the rows read from the sheet and how many
// were skipped.
type AdvertisingParseResult struct {
	Rows    []models.AdvertisingDaily `json:"rows"`
	Skipped int                       `json:"skipped"`
}

// ParseAdvertisingXLSX reads daily ad spend from the first sheet of an XLSX
// file. The first row must be a header naming at least item, date and cost.
func ParseAdvertisingXLSX(r io.Reader, loc *time.Location) (*AdvertisingParseResult, error) {
	if loc == nil {
		loc = time.UTC
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAdvertising, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: no sheets", ErrMalformedAdvertising)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAdvertising, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty sheet", ErrMalformedAdvertising)
	}

	cols := mapAdvertisingColumns(rows[0])
	for _, required := range []string{"item", "date", "cost"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: missing %s column", ErrMalformedAdvertising, required)
		}
	}

	result := &AdvertisingParseResult{Rows: []models.AdvertisingDaily{}}
	for i, row := range rows[1:] {
		line := i + 2
		itemID := strings.ToUpper(cell(row, cols, "item"))
		if itemID == "" {
			continue
		}

		date, ok := parseAdvertisingDate(cell(row, cols, "date"), loc)
		if !ok {
			result.Skipped++
			logger.L.Warn("Advertising import: skipping row with invalid date", "line", line, "value", cell(row, cols, "date"))
			continue
		}
		cost, ok := ParseAmount(cell(row, cols, "cost"))
		if !ok || cost < 0 {
			result.Skipped++
			logger.L.Warn("Advertising import: skipping row with invalid cost", "line", line, "value", cell(row, cols, "cost"))
			continue
		}

		result.Rows = append(result.Rows, models.AdvertisingDaily{
			ItemID: itemID,
			Date:   date,
			Cost:   cost,
			Units:  parseCount(cell(row, cols, "units")),
			Clicks: parseCount(cell(row, cols, "clicks")),
		})
	}
	return result, nil
}

func mapAdvertisingColumns(header []string) map[string]int {
	cols := make(map[string]int)
	for idx, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		for key, aliases := range advertisingHeaders {
			if _, taken := cols[key]; taken {
				continue
			}
			for _, alias := range aliases {
				if name == alias {
					cols[key] = idx
				}
			}
		}
	}
	return cols
}

func cell(row []string, cols map[string]int, key string) string {
	idx, ok := cols[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseAdvertisingDate(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", "02/01/2006", "01-02-06"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	// Cells formatted as numbers carry the Excel serial date.
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), true
		}
	}
	return time.Time{}, false
}

func parseCount(s string) int {
	if s == "" {
		return 0
	}
	v, ok := ParseAmount(s)
	if !ok || v < 0 {
		return 0
	}
	return int(v)
}
