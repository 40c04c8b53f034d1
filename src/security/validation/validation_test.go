package validation

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateItemID(t *testing.T) {
	assert.NoError(t, ValidateItemID("MLB1234567890"))
	assert.NoError(t, ValidateItemID(" MLA1 "))

	for _, bad := range []string{"", "mlb123", "MLB", "123", "MLB12-3", "MLB" + strings.Repeat("1", 40)} {
		err := ValidateItemID(bad)
		assert.True(t, errors.Is(err, ErrValidationFailed), bad)
	}
}

func TestValidateNumbers(t *testing.T) {
	v, err := ValidateFloatString(" 12.5 ", "unitCost", false, 0, 1e6)
	require.NoError(t, err)
	assert.Equal(t, 12.5, v)

	v, err = ValidateFloatString("", "unitCost", false, 0, 1e6)
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = ValidateFloatString("-1", "unitCost", false, 0, 1e6)
	assert.ErrorIs(t, err, ErrValidationFailed)
	_, err = ValidateFloatString("abc", "unitCost", true, -1, 1)
	assert.ErrorIs(t, err, ErrValidationFailed)

	assert.NoError(t, ValidateInt(-3, "quantity", true, false, -1000, 1000))
	assert.ErrorIs(t, ValidateInt(0, "quantity", true, false, -1000, 1000), ErrValidationFailed)
	assert.ErrorIs(t, ValidateInt(5000, "quantity", true, false, -1000, 1000), ErrValidationFailed)
}

func TestValidateDateString(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	d, err := ValidateDateString("2024-02-29", "date", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, loc), d)

	_, err = ValidateDateString("29/02/2024", "date", loc)
	assert.ErrorIs(t, err, ErrValidationFailed)
	_, err = ValidateDateString("2023-02-29", "date", nil)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestValidateTitleAndSanitizers(t *testing.T) {
	assert.NoError(t, ValidateTitle("Caneca térmica 500ml", "test"))
	assert.ErrorIs(t, ValidateTitle("<script>alert(1)</script>", "test"), ErrValidationFailed)
	assert.ErrorIs(t, ValidateTitle("=HYPERLINK(\"x\")", "test"), ErrValidationFailed)

	assert.Equal(t, "Caneca", SanitizeText("<b>Caneca</b>"))
	assert.Equal(t, "'=1+1", SanitizeForFormulaInjection("=1+1"))
	assert.Equal(t, "Caneca", SanitizeForFormulaInjection("Caneca"))
	assert.Equal(t, "ab", StripUnprintable("a\x00b"))
}

func TestValidateUploads(t *testing.T) {
	assert.NoError(t, ValidateClientContentType("text/csv"))
	assert.NoError(t, ValidateClientContentType("TEXT/PLAIN"))
	assert.Error(t, ValidateClientContentType("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
	assert.Error(t, ValidateClientContentType("image/png"))

	// A multi-byte rune straddling the sniff boundary is still text.
	report := strings.Repeat("a", 1023) + "ç,rest\n"
	r := bytes.NewReader([]byte(report))
	ct, err := ValidateFileContentByMagicBytes(r)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", ct)
	assert.Equal(t, int64(len(report)), r.Size())
	pos, _ := r.Seek(0, 1)
	assert.Zero(t, pos)

	_, err = ValidateFileContentByMagicBytes(bytes.NewReader([]byte{0x50, 0x4b, 0x03, 0x04, 0x00}))
	assert.Error(t, err)

	_, err = ValidateFileContentByMagicBytes(bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestValidateSpreadsheetUpload(t *testing.T) {
	xlsx := bytes.NewReader([]byte("PK\x03\x04rest-of-archive"))
	require.NoError(t, ValidateSpreadsheetUpload(xlsx, "Anuncios.XLSX"))
	pos, _ := xlsx.Seek(0, 1)
	assert.Zero(t, pos)

	assert.Error(t, ValidateSpreadsheetUpload(bytes.NewReader([]byte("PK\x03\x04")), "ads.csv"))
	assert.Error(t, ValidateSpreadsheetUpload(strings.NewReader("item,date,cost"), "ads.xlsx"))
	assert.Error(t, ValidateSpreadsheetUpload(strings.NewReader("PK"), "ads.xlsx"))
}
