package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gitbit/gitbit/fitbit-exporter/internal/fitbit"
	"github.com/gitbit/gitbit/fitbit-exporter/internal/metrics"
	"github.com/gitbit/gitbit/internal/httpclient"
	"github.com/gitbit/gitbit/pkg/config"
	"github.com/gitbit/gitbit/pkg/utils"
)

// HeartRateFetcher fetches one day of heart-rate data.
type HeartRateFetcher interface {
	HeartRate(ctx context.Context, date, resolution string) (json.RawMessage, error)
}

// Summary counts what a Run did.
type Summary struct {
	Total   int
	Skipped int
	Written int
	Failed  int
}

// Exporter writes one {date}.json per day into an output directory. Existing
// files act as the resumption ledger and are never fetched again.
type Exporter struct {
	logger     *zap.Logger
	fetcher    HeartRateFetcher
	outDir     string
	resolution string
	now        func() time.Time
}

// New creates an Exporter.
func New(logger *zap.Logger, fetcher HeartRateFetcher, outDir, resolution string) *Exporter {
	return &Exporter{
		logger:     logger,
		fetcher:    fetcher,
		outDir:     outDir,
		resolution: resolution,
		now:        time.Now,
	}
}

// Run exports every date from start to end (inclusive; empty end means today).
// Individual date failures are logged and counted; only context cancellation
// and setup problems abort the run.
func (e *Exporter) Run(ctx context.Context, start, end string) (Summary, error) {
	var sum Summary

	if err := fitbit.ValidateResolution(e.resolution); err != nil {
		return sum, err
	}
	if end == "" {
		end = e.now().Format(config.DateLayout)
	}
	dates, err := DateRange(start, end)
	if err != nil {
		return sum, err
	}
	sum.Total = len(dates)

	if err := os.MkdirAll(e.outDir, 0o755); err != nil {
		return sum, fmt.Errorf("create output dir: %w", err)
	}
	pulled, err := e.pulled()
	if err != nil {
		return sum, err
	}

	e.logger.Info("export.start",
		zap.String("start", start),
		zap.String("end", end),
		zap.Int("dates", len(dates)),
		zap.Int("already_pulled", len(pulled)),
		zap.String("resolution", e.resolution))

	for i, date := range dates {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if _, ok := pulled[date]; ok {
			sum.Skipped++
			metrics.IncDay("skipped")
			continue
		}

		payload, err := e.fetcher.HeartRate(ctx, date, e.resolution)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return sum, ctxErr
			}
			sum.Failed++
			metrics.IncDay("failed")
			e.logFailure(date, err)
			continue
		}

		if err := utils.WriteFileAtomic(e.path(date), payload, 0o644); err != nil {
			sum.Failed++
			metrics.IncDay("failed")
			metrics.IncError("export", "write")
			e.logger.Error("export.write_failed", zap.String("date", date), zap.Error(err))
			continue
		}
		sum.Written++
		metrics.IncDay("written")
		e.logger.Debug("export.written",
			zap.String("date", date),
			zap.Int("bytes", len(payload)),
			zap.Int("progress", i+1),
			zap.Int("total", len(dates)))
	}

	e.logger.Info("export.done",
		zap.Int("written", sum.Written),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed))
	return sum, nil
}

func (e *Exporter) path(date string) string {
	return filepath.Join(e.outDir, date+".json")
}

// pulled lists the dates that already have an output file.
func (e *Exporter) pulled() (map[string]struct{}, error) {
	entries, err := os.ReadDir(e.outDir)
	if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}
	done := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		done[strings.TrimSuffix(name, ".json")] = struct{}{}
	}
	return done, nil
}

func (e *Exporter) logFailure(date string, err error) {
	var term *httpclient.TerminalError
	if errors.As(err, &term) {
		metrics.IncError("export", "retries_exhausted")
		e.logger.Warn("export.date_failed",
			zap.String("date", date),
			zap.Int("status", term.StatusCode),
			zap.Int("attempts", term.Attempts),
			zap.ByteString("body", term.Body))
		return
	}
	metrics.IncError("export", "fetch")
	e.logger.Warn("export.date_failed", zap.String("date", date), zap.Error(err))
}
