package location

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Takeout reads samples from a directory of Google location-history exports,
// one JSON file per day laid out as <dir>/<yyyy>/<mm>/<dd>.json.
type Takeout struct {
	Dir string
	// MaxAccuracy drops fixes coarser than this many meters; zero means
	// the default cutoff.
	MaxAccuracy float64
}

type takeoutRecord struct {
	TimestampMs string `json:"timestampMs"`
	LatitudeE7  int64  `json:"latitudeE7"`
	LongitudeE7 int64  `json:"longitudeE7"`
	Accuracy    int    `json:"accuracy"`
}

// Samples implements Source. The owner argument is ignored: an export belongs
// to a single account.
func (t *Takeout) Samples(ctx context.Context, start, end time.Time, owner string) ([]Sample, error) {
	var samples []Sample
	for day := start; day.Before(end); day = day.Add(24 * time.Hour) {
		path := filepath.Join(t.Dir,
			fmt.Sprintf("%04d", day.Year()),
			fmt.Sprintf("%02d", int(day.Month())),
			fmt.Sprintf("%02d.json", day.Day()))

		daySamples, err := readTakeoutFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		samples = append(samples, daySamples...)
	}

	maxAccuracy := t.MaxAccuracy
	if maxAccuracy <= 0 {
		maxAccuracy = DefaultMaxAccuracyMeters
	}

	// Exports bucket records per calendar day; the window may cut into both
	// edge days.
	filtered := samples[:0]
	for _, sample := range samples {
		if sample.Time.After(start) && sample.Time.Before(end) && sample.Accuracy < maxAccuracy {
			filtered = append(filtered, sample)
		}
	}

	if len(filtered) == 0 {
		return nil, &EmptyWindowError{Start: start, End: end, Owner: owner}
	}
	return filtered, nil
}

func readTakeoutFile(path string) ([]Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var records []takeoutRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse location export %s: %w", path, err)
	}

	samples := make([]Sample, 0, len(records))
	for _, record := range records {
		ms, err := strconv.ParseInt(record.TimestampMs, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q in %s: %w", record.TimestampMs, path, err)
		}
		samples = append(samples, Sample{
			Time:     time.UnixMilli(ms),
			Lat:      float64(record.LatitudeE7) / 1e7,
			Lon:      float64(record.LongitudeE7) / 1e7,
			Accuracy: float64(record.Accuracy),
		})
	}
	return samples, nil
}
