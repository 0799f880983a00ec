package seed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/flare/internal/checksum"
	"github.com/starford/flare/internal/models"
)

// Upserter is the store operation the seed sync needs.
type Upserter interface {
	UpsertKnownPlace(ctx context.Context, kp models.KnownPlace) error
}

// Syncer loads a seed file into the store, skipping files whose content has
// not changed since the last successful sync.
type Syncer struct {
	repo   Upserter
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

// NewSyncer creates a Syncer for the seed file at path.
func NewSyncer(repo Upserter, path string, logger *slog.Logger) *Syncer {
	return &Syncer{repo: repo, path: path, logger: logger}
}

// Path returns the seed file location.
func (s *Syncer) Path() string {
	return s.path
}

// Sync reads the seed file and upserts every known place in it. Places that
// exist in the store but not in the file are left alone, since they may have
// been created through the API. It returns the number of places applied, or
// zero when the file is unchanged.
func (s *Syncer) Sync(ctx context.Context) (int, error) {
	data, sum, err := checksum.File(s.path)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sum == s.last {
		s.logger.Debug("seed: unchanged", slog.String("path", s.path))
		return 0, nil
	}

	places, err := Parse(data)
	if err != nil {
		return 0, err
	}
	for _, kp := range places {
		if err := s.repo.UpsertKnownPlace(ctx, kp); err != nil {
			return 0, fmt.Errorf("seed: upsert %s: %w", kp.ID, err)
		}
	}
	s.last = sum

	s.logger.Info("seed: synced known places",
		slog.String("path", s.path),
		slog.Int("count", len(places)))
	return len(places), nil
}
