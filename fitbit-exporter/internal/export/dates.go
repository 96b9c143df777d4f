package export

import (
	"fmt"
	"time"

	"github.com/gitbit/gitbit/pkg/config"
)

// DateRange returns every calendar day from start to end inclusive as YYYY-MM-DD.
func DateRange(start, end string) ([]string, error) {
	s, err := time.Parse(config.DateLayout, start)
	if err != nil {
		return nil, fmt.Errorf("parse start date: %w", err)
	}
	e, err := time.Parse(config.DateLayout, end)
	if err != nil {
		return nil, fmt.Errorf("parse end date: %w", err)
	}
	if e.Before(s) {
		return nil, fmt.Errorf("end date %s is before start date %s", end, start)
	}

	var dates []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(config.DateLayout))
	}
	return dates, nil
}
