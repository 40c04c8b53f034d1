package validation

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/username/hermes/backend/src/logger"
)

// AllowedClientContentTypes is a map for quick lookup of allowed client-declared MIME types.
var AllowedClientContentTypes = map[string]bool{
	"text/csv":                 true,
	"application/csv":          true,
	"application/vnd.ms-excel": true, // Older Excel declares CSV this way
	"text/plain":               true, // releases.txt
	"application/octet-stream": false,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": false,
}

// ValidateClientContentType checks the Content-Type header provided by the client.
func ValidateClientContentType(contentType string) error {
	if allowed, exists := AllowedClientContentTypes[strings.ToLower(contentType)]; !exists || !allowed {
		logger.L.Warn("Disallowed client-declared Content-Type", "contentType", contentType)
		return fmt.Errorf("client-declared file type '%s' is not allowed for release report upload", contentType)
	}
	return nil
}

// isBinaryContent reports null bytes or invalid UTF-8, neither of which a release report contains.
func isBinaryContent(buf []byte) bool {
	if bytes.IndexByte(buf, 0) != -1 {
		return true
	}

	// The sniff buffer may end in the middle of a multi-byte rune.
	for k := 1; k < utf8.UTFMax && k <= len(buf); k++ {
		if utf8.RuneStart(buf[len(buf)-k]) {
			if !utf8.FullRune(buf[len(buf)-k:]) {
				buf = buf[:len(buf)-k]
			}
			break
		}
	}

	return !utf8.Valid(buf)
}

// ValidateFileContentByMagicBytes sniffs the first KB of an upload and accepts only
// plain text. The reader is rewound before returning.
func ValidateFileContentByMagicBytes(file io.ReadSeeker) (string, error) {
	if file == nil {
		return "", fmt.Errorf("file is nil")
	}

	buffer := make([]byte, 1024)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file for content type checking: %w", err)
	}

	_, seekErr := file.Seek(0, io.SeekStart)
	if seekErr != nil {
		return "", fmt.Errorf("failed to reset file read pointer: %w", seekErr)
	}

	if n == 0 {
		return "", fmt.Errorf("file is empty")
	}

	if isBinaryContent(buffer[:n]) {
		logger.L.Warn("File rejected: Binary content detected in text upload")
		return "application/octet-stream", fmt.Errorf("file appears to be binary or executable, not a text report")
	}

	detectedContentType := http.DetectContentType(buffer[:n])
	detectedContentType = strings.ToLower(strings.Split(detectedContentType, ";")[0])

	allowedDetectedTypes := map[string]bool{
		"text/plain":      true,
		"text/csv":        true,
		"application/csv": true,
	}

	if !allowedDetectedTypes[detectedContentType] {
		if detectedContentType == "application/octet-stream" {
			logger.L.Warn("File rejected: content type detected as octet-stream (ambiguous)")
		} else {
			logger.L.Warn("Disallowed detected file content type", "detectedContentType", detectedContentType)
		}
		return detectedContentType, fmt.Errorf("detected file content type '%s' is not allowed", detectedContentType)
	}

	logger.L.Debug("File content type validated", "detectedContentType", detectedContentType)
	return detectedContentType, nil
}

var zipMagic = []byte("PK\x03\x04")

// ValidateSpreadsheetUpload accepts only XLSX files, which are zip archives.
// The reader is rewound before returning.
func ValidateSpreadsheetUpload(file io.ReadSeeker, filename string) error {
	if !strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
		return fmt.Errorf("only .xlsx files are accepted")
	}

	header := make([]byte, len(zipMagic))
	n, err := io.ReadFull(file, header)
	if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil {
		return fmt.Errorf("failed to reset file read pointer: %w", seekErr)
	}
	if err != nil || n < len(zipMagic) || !bytes.Equal(header, zipMagic) {
		logger.L.Warn("File rejected: spreadsheet upload is not a zip archive", "filename", filename)
		return fmt.Errorf("file is not a valid .xlsx spreadsheet")
	}
	return nil
}
