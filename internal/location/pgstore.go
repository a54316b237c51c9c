package location

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultMaxAccuracyMeters is the accuracy cutoff applied when none is
// configured. Positions coarser than this are cell-tower fixes, not usable
// place evidence.
const DefaultMaxAccuracyMeters = 20

// PGStore reads samples from a ulogger-style Postgres positions table.
type PGStore struct {
	pool        *pgxpool.Pool
	logger      *slog.Logger
	users       map[string]int // owner name -> tracker user id
	maxAccuracy float64
}

// NewPGStore connects to the tracker database. The users map translates owner
// names into the tracker's numeric user ids. Positions with accuracy worse
// than maxAccuracy meters are excluded; zero means the default cutoff.
func NewPGStore(ctx context.Context, logger *slog.Logger, dsn string, users map[string]int, maxAccuracy float64) (*PGStore, error) {
	if maxAccuracy <= 0 {
		maxAccuracy = DefaultMaxAccuracyMeters
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to tracker database: %w", err)
	}
	return &PGStore{pool: pool, logger: logger, users: users, maxAccuracy: maxAccuracy}, nil
}

// Samples implements Source.
func (s *PGStore) Samples(ctx context.Context, start, end time.Time, owner string) ([]Sample, error) {
	userID, ok := s.users[owner]
	if !ok {
		return nil, fmt.Errorf("no tracker user id configured for owner %q", owner)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT time, latitude, longitude, accuracy
		 FROM positions
		 WHERE time > $1 AND time < $2 AND user_id = $3 AND accuracy < $4
		 ORDER BY time`,
		start, end, userID, s.maxAccuracy)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var sample Sample
		if err := rows.Scan(&sample.Time, &sample.Lat, &sample.Lon, &sample.Accuracy); err != nil {
			return nil, fmt.Errorf("failed to scan position row: %w", err)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}

	s.logger.Debug("Fetched samples from tracker database",
		"owner", owner, "start", start, "end", end, "count", len(samples))

	if len(samples) == 0 {
		return nil, &EmptyWindowError{Start: start, End: end, Owner: owner}
	}
	return samples, nil
}

// Close releases the connection pool.
func (s *PGStore) Close() {
	s.pool.Close()
}
