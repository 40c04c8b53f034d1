// src/parsers/mercadolivre/release_parser.go
package mercadolivre

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/username/hermes/backend/src/logger"
	"github.com/username/hermes/backend/src/models"
)

// Column positions of the release report:
// DATE,SOURCE_ID,EXTERNAL_REFERENCE,RECORD_TYPE,DESCRIPTION,NET_CREDIT,NET_DEBIT,ITEM_ID,SALE_DETAIL
const (
	colDate = iota
	colSourceID
	colExternalReference
	colRecordType
	colDescription
	colNetCredit
	colNetDebit
	colItemID
	colSaleDetail
	minColumns = colNetDebit + 1
)

const (
	headerLines = 2
	footerLines = 1

	DescriptionOpeningBalance = "initial_available_balance"
)

var ErrMalformedReport = errors.New("malformed release report")

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

// ReleaseParser reads the Mercado Livre release report. Dates without an
// offset are read in loc.
type ReleaseParser struct {
	loc *time.Location
}

func NewReleaseParser(loc *time.Location) *ReleaseParser {
	if loc == nil {
		loc = time.UTC
	}
	return &ReleaseParser{loc: loc}
}

// Parse returns the data lines that fall inside period. Header and total lines
// are dropped, as are opening-balance lines. Unparseable amounts are read as 0
// and counted in the stats; lines with an unparseable date are skipped.
func (p *ReleaseParser) Parse(r io.Reader, period models.Period) ([]models.ReleaseLine, models.ReleaseParseStats, error) {
	var stats models.ReleaseParseStats

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, stats, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}

	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = detectDelimiter(content)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	// Trimming would swallow empty tab-separated fields; field() trims values anyway.
	reader.TrimLeadingSpace = reader.Comma != '\t'

	records, err := reader.ReadAll()
	if err != nil {
		return nil, stats, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	if len(records) <= headerLines+footerLines {
		return []models.ReleaseLine{}, stats, nil
	}

	data := records[headerLines : len(records)-footerLines]
	lines := make([]models.ReleaseLine, 0, len(data))

	for i, record := range data {
		if len(record) < minColumns {
			logger.L.Debug("Release parser: skipping short record", "line", i+headerLines+1, "fields", len(record))
			continue
		}
		stats.DataLines++

		description := strings.TrimSpace(record[colDescription])
		if description == DescriptionOpeningBalance {
			stats.OpeningBalance++
			continue
		}

		date, ok := p.parseDate(record[colDate])
		if !ok {
			stats.InvalidDates++
			logger.L.Warn("Release parser: skipping line with invalid date", "line", i+headerLines+1, "value", record[colDate])
			continue
		}
		if !period.Contains(date) {
			stats.OutOfPeriod++
			continue
		}

		credit, okCredit := ParseAmount(record[colNetCredit])
		debit, okDebit := ParseAmount(record[colNetDebit])
		if !okCredit || !okDebit {
			stats.InvalidAmounts++
			logger.L.Warn("Release parser: invalid amount read as zero",
				"line", i+headerLines+1,
				"netCredit", record[colNetCredit],
				"netDebit", record[colNetDebit])
		}

		lines = append(lines, models.ReleaseLine{
			Date:              date,
			SourceID:          strings.TrimSpace(record[colSourceID]),
			ExternalReference: strings.TrimSpace(record[colExternalReference]),
			RecordType:        strings.TrimSpace(record[colRecordType]),
			Description:       description,
			NetCredit:         credit,
			NetDebit:          debit,
			ItemID:            field(record, colItemID),
			SaleDetail:        field(record, colSaleDetail),
		})
	}

	return lines, stats, nil
}

// CountDataLines reports how many data lines a report holds without parsing them.
func CountDataLines(content []byte) int {
	n := 0
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			n++
		}
	}
	if n <= headerLines+footerLines {
		return 0
	}
	return n - headerLines - footerLines
}

func field(record []string, idx int) string {
	if idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// detectDelimiter picks the most frequent of ',', ';' and tab on the first line.
func detectDelimiter(content []byte) rune {
	firstLine := content
	if idx := bytes.IndexByte(content, '\n'); idx >= 0 {
		firstLine = content[:idx]
	}
	best, bestCount := ',', bytes.Count(firstLine, []byte(","))
	for _, candidate := range []rune{';', '\t'} {
		if n := bytes.Count(firstLine, []byte(string(candidate))); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best
}

func (p *ReleaseParser) parseDate(raw string) (time.Time, bool) {
	s := strings.Trim(strings.TrimSpace(raw), "\"")
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, p.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseAmount reads a report amount. A comma is the decimal separator when no
// dot is present; when both are present the last one is the decimal separator.
// Empty values are zero. The second result is false when the value could not
// be read or is not finite, in which case the amount is zero.
func ParseAmount(raw string) (float64, bool) {
	s := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), "\""))
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, true
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastComma >= 0 && lastDot < 0:
		s = strings.ReplaceAll(s, ",", ".")
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
