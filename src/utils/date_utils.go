package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/username/hermes/backend/src/models"
)

var ErrInvalidPeriod = errors.New("invalid period")

// ParsePeriod builds a period from YYYY-MM-DD strings. A missing start is the
// first day of now's month and a missing end is now's day.
func ParsePeriod(startStr, endStr string, now time.Time) (models.Period, error) {
	loc := now.Location()

	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	if s := strings.TrimSpace(startStr); s != "" {
		t, err := time.ParseInLocation(models.PeriodDateLayout, s, loc)
		if err != nil {
			return models.Period{}, fmt.Errorf("%w: start date '%s' must be YYYY-MM-DD", ErrInvalidPeriod, s)
		}
		start = t
	}

	end := now
	if s := strings.TrimSpace(endStr); s != "" {
		t, err := time.ParseInLocation(models.PeriodDateLayout, s, loc)
		if err != nil {
			return models.Period{}, fmt.Errorf("%w: end date '%s' must be YYYY-MM-DD", ErrInvalidPeriod, s)
		}
		end = t
	}

	period := models.NewPeriod(start, end)
	if period.Start.After(period.End) {
		return models.Period{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidPeriod,
			period.Start.Format(models.PeriodDateLayout), period.End.Format(models.PeriodDateLayout))
	}
	return period, nil
}

// CurrentMonth is the period from the first day of now's month to now's day.
func CurrentMonth(now time.Time) models.Period {
	p, _ := ParsePeriod("", "", now)
	return p
}
