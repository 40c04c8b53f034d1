package model

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/username/hermes/backend/src/models"
)

var ErrNoReleaseReport = errors.New("no release report uploaded")

func SaveReleaseReport(db *sql.DB, r *models.ReleaseReport) error {
	if r.UploadedAt.IsZero() {
		r.UploadedAt = time.Now()
	}
	var uploadedBy interface{}
	if r.UploadedBy > 0 {
		uploadedBy = r.UploadedBy
	}

	res, err := db.Exec(`
	INSERT INTO release_reports (filename, size_bytes, line_count, content, uploaded_by, uploaded_at)
	VALUES (?, ?, ?, ?, ?, ?)`,
		r.Filename, r.SizeBytes, r.LineCount, r.Content, uploadedBy, r.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to save release report: %w", err)
	}
	r.ID, err = res.LastInsertId()
	return err
}

// GetLatestReleaseReport returns the most recent upload, content included.
func GetLatestReleaseReport(db *sql.DB) (*models.ReleaseReport, error) {
	var r models.ReleaseReport
	var uploadedBy sql.NullInt64
	err := db.QueryRow(`
	SELECT id, filename, size_bytes, line_count, content, uploaded_by, uploaded_at
	FROM release_reports
	ORDER BY uploaded_at DESC, id DESC
	LIMIT 1`).Scan(&r.ID, &r.Filename, &r.SizeBytes, &r.LineCount, &r.Content, &uploadedBy, &r.UploadedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoReleaseReport
		}
		return nil, err
	}
	r.UploadedBy = uploadedBy.Int64
	return &r, nil
}

// ListReleaseReports returns upload metadata, newest first, without content.
func ListReleaseReports(db *sql.DB, limit int) ([]models.ReleaseReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
	SELECT id, filename, size_bytes, line_count, uploaded_by, uploaded_at
	FROM release_reports
	ORDER BY uploaded_at DESC, id DESC
	LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ReleaseReport{}
	for rows.Next() {
		var r models.ReleaseReport
		var uploadedBy sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Filename, &r.SizeBytes, &r.LineCount, &uploadedBy, &r.UploadedAt); err != nil {
			return nil, err
		}
		r.UploadedBy = uploadedBy.Int64
		out = append(out, r)
	}
	return out, rows.Err()
}
