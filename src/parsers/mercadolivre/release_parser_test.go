package mercadolivre

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/hermes/backend/src/models"
)

const reportHeader = "RELEASE REPORT,,,,,,,,\n" +
	"DATE,SOURCE_ID,EXTERNAL_REFERENCE,RECORD_TYPE,DESCRIPTION,NET_CREDIT,NET_DEBIT,ITEM_ID,SALE_DETAIL\n"

const reportFooter = "TOTAL,,,,,250.00,0.00,,\n"

func januaryPeriod() models.Period {
	return models.NewPeriod(
		time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC),
	)
}

func TestParse_SkipsHeaderAndFooter(t *testing.T) {
	report := reportHeader +
		"2024-01-05T10:00:00.000Z,111,123,release,payment,100.00,0.00,MLB1,\n" +
		"2024-01-06T10:00:00.000Z,112,123,release,payment,50.00,0.00,MLB1,\n" +
		reportFooter

	lines, stats, err := NewReleaseParser(time.UTC).Parse(strings.NewReader(report), januaryPeriod())
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, 2, stats.DataLines)

	assert.Equal(t, "123", lines[0].ExternalReference)
	assert.Equal(t, "payment", lines[0].Description)
	assert.Equal(t, 100.0, lines[0].NetCredit)
	assert.Equal(t, "MLB1", lines[0].ItemID)
	assert.Equal(t, "111", lines[0].SourceID)
}

func TestParse_DropsOpeningBalance(t *testing.T) {
	report := reportHeader +
		"2024-01-01T00:00:00.000Z,,,,initial_available_balance,900.00,0.00,,\n" +
		"2024-01-05T10:00:00.000Z,111,123,release,payment,100.00,0.00,MLB1,\n" +
		reportFooter

	lines, stats, err := NewReleaseParser(time.UTC).Parse(strings.NewReader(report), januaryPeriod())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 1, stats.OpeningBalance)
	for _, l := range lines {
		assert.NotEqual(t, DescriptionOpeningBalance, l.Description)
	}
}

func TestParse_PeriodBoundsAreWholeDays(t *testing.T) {
	report := reportHeader +
		"2023-12-31T23:59:59.000Z,1,1,release,payment,1.00,0.00,MLB1,\n" +
		"2024-01-01T00:00:00.000Z,2,2,release,payment,2.00,0.00,MLB1,\n" +
		"2024-01-31T23:59:59.500Z,3,3,release,payment,3.00,0.00,MLB1,\n" +
		"2024-02-01T00:00:00.000Z,4,4,release,payment,4.00,0.00,MLB1,\n" +
		reportFooter

	lines, stats, err := NewReleaseParser(time.UTC).Parse(strings.NewReader(report), januaryPeriod())
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "2", lines[0].SourceID)
	assert.Equal(t, "3", lines[1].SourceID)
	assert.Equal(t, 2, stats.OutOfPeriod)
}

func TestParse_InvalidValues(t *testing.T) {
	report := reportHeader +
		"not-a-date,1,1,release,payment,1.00,0.00,MLB1,\n" +
		"2024-01-05,2,2,release,payment,abc,0.00,MLB1,\n" +
		reportFooter

	lines, stats, err := NewReleaseParser(time.UTC).Parse(strings.NewReader(report), januaryPeriod())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 1, stats.InvalidDates)
	assert.Equal(t, 1, stats.InvalidAmounts)
	assert.Equal(t, 0.0, lines[0].NetCredit)
}

func TestParse_SemicolonDelimiter(t *testing.T) {
	report := "RELEASE REPORT;;;;;;;;\n" +
		"DATE;SOURCE_ID;EXTERNAL_REFERENCE;RECORD_TYPE;DESCRIPTION;NET_CREDIT;NET_DEBIT;ITEM_ID;SALE_DETAIL\n" +
		"2024-01-05 10:00:00;9;77;release;payment;1.234,56;0,00;MLB9;\n" +
		"TOTAL;;;;;1.234,56;0,00;;\n"

	lines, _, err := NewReleaseParser(time.UTC).Parse(strings.NewReader(report), januaryPeriod())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.InDelta(t, 1234.56, lines[0].NetCredit, 1e-9)
	assert.Equal(t, "77", lines[0].ExternalReference)
}

func TestParse_TabDelimiter(t *testing.T) {
	report := "RELEASE REPORT\t\t\t\t\t\t\t\t\n" +
		"DATE\tSOURCE_ID\tEXTERNAL_REFERENCE\tRECORD_TYPE\tDESCRIPTION\tNET_CREDIT\tNET_DEBIT\tITEM_ID\tSALE_DETAIL\n" +
		"2024-01-05T10:00:00.000Z\t9\t77\trelease\tpayment\t42.50\t0.00\tMLB9\t\n" +
		"2024-01-06T10:00:00.000Z\t10\t\trelease\tpayout\t\t12.00\t\t\n" +
		"TOTAL\t\t\t\t\t42.50\t12.00\t\t\n"

	assert.Equal(t, '\t', detectDelimiter([]byte(report)))

	lines, _, err := NewReleaseParser(time.UTC).Parse(strings.NewReader(report), januaryPeriod())
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "77", lines[0].ExternalReference)
	assert.InDelta(t, 42.5, lines[0].NetCredit, 1e-9)
	assert.Equal(t, "MLB9", lines[0].ItemID)
	assert.Empty(t, lines[1].ExternalReference)
	assert.Equal(t, "payout", lines[1].Description)
	assert.InDelta(t, 12.0, lines[1].NetDebit, 1e-9)
}

func TestParse_ShortReport(t *testing.T) {
	lines, _, err := NewReleaseParser(nil).Parse(strings.NewReader(reportHeader+reportFooter), januaryPeriod())
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"100.50", 100.5, true},
		{"100,50", 100.5, true},
		{"1.234,56", 1234.56, true},
		{"1,234.56", 1234.56, true},
		{"", 0, true},
		{"\"-12,5\"", -12.5, true},
		{"R$ 10,00", 10, true},
		{"abc", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseAmount(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCountDataLines(t *testing.T) {
	report := reportHeader +
		"2024-01-05T10:00:00.000Z,111,123,release,payment,100.00,0.00,MLB1,\n" +
		"\n" +
		"2024-01-06T10:00:00.000Z,112,124,release,payment,50.00,0.00,MLB1,\n" +
		reportFooter
	assert.Equal(t, 2, CountDataLines([]byte(report)))
	assert.Equal(t, 0, CountDataLines([]byte(reportHeader)))
}
