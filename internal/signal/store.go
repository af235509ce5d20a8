package signal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RMahshie/sleepsense/pkg/models"
	"github.com/rs/zerolog/log"
)

// S3Prefix marks a source that lives in archive storage
const S3Prefix = "s3://"

// MockBanner is shown wherever synthetic data is displayed or exported
const MockBanner = "MOCK DATA - FOR DEMONSTRATION PURPOSES ONLY"

// Fetcher downloads an object from archive storage
type Fetcher interface {
	DownloadFile(ctx context.Context, key string) ([]byte, error)
}

// Store loads recordings and generates synthetic ones
type Store interface {
	Load(ctx context.Context, source string) (*models.Record, error)
	LoadOrMock(ctx context.Context, source string) LoadResult
	GenerateMock(durationSeconds float64) *models.Record
}

// Options configures a Store
type Options struct {
	MinRecordSeconds    float64
	MockDurationSeconds float64
	MockSeed            uint64
}

// LoadResult is the outcome of LoadOrMock. Record is never nil.
type LoadResult struct {
	Record   *models.Record
	Fallback bool
	Reason   error
}

// Notice is the user-visible message for a fallback, empty otherwise
func (r LoadResult) Notice() string {
	if !r.Fallback {
		return ""
	}
	return fmt.Sprintf("Could not load recording (%v). Showing %s.", r.Reason, MockBanner)
}

type store struct {
	opts    Options
	fetcher Fetcher
}

// NewStore creates a signal store. fetcher may be nil when archive storage is disabled.
func NewStore(opts Options, fetcher Fetcher) Store {
	if opts.MockDurationSeconds <= 0 {
		opts.MockDurationSeconds = DefaultMockDuration
	}
	return &store{opts: opts, fetcher: fetcher}
}

// Load parses a CSV or TXT export from a local path or s3://key
func (s *store) Load(ctx context.Context, source string) (*models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("no data source given")
	}

	ext := strings.ToLower(filepath.Ext(source))
	if ext != ".csv" && ext != ".txt" {
		return nil, &UnsupportedFormatError{Source: source, Extension: ext}
	}

	opts := models.RecordOptions{Source: source}
	var data []byte
	if key, ok := strings.CutPrefix(source, S3Prefix); ok {
		if s.fetcher == nil {
			return nil, fmt.Errorf("archive storage is not configured for %s", source)
		}
		var err error
		data, err = s.fetcher.DownloadFile(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", source, err)
		}
	} else {
		info, err := os.Stat(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", source, err)
		}
		data, err = os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", source, err)
		}
		opts.StartTime = info.ModTime().Truncate(time.Second)
	}
	opts.StartTime = startTimeOrNow(opts.StartTime)

	rec, err := parseRecord(data, opts, s.opts.MinRecordSeconds, s.opts.MockSeed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}

	log.Info().
		Str("source", source).
		Float64("duration_s", rec.Duration()).
		Int("channels", len(rec.ChannelNames())).
		Str("fingerprint", rec.Fingerprint()).
		Msg("Recording loaded")
	return rec, nil
}

// LoadOrMock never fails: any load error yields a synthetic record
func (s *store) LoadOrMock(ctx context.Context, source string) LoadResult {
	rec, err := s.Load(ctx, source)
	if err == nil {
		return LoadResult{Record: rec}
	}

	log.Warn().
		Err(err).
		Str("source", source).
		Float64("mock_duration_s", s.opts.MockDurationSeconds).
		Msg("Falling back to mock data")

	return LoadResult{
		Record:   s.GenerateMock(s.opts.MockDurationSeconds),
		Fallback: true,
		Reason:   err,
	}
}

func (s *store) GenerateMock(durationSeconds float64) *models.Record {
	return GenerateMock(durationSeconds, s.opts.MockSeed)
}
