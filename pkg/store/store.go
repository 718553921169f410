// Package store defines the typed state-store operations the core consumes
// (spec §4.K) and a Postgres-backed implementation of them.
package store

import (
	"context"
	"time"

	"github.com/vecto-pilot/pilot-core/pkg/model"
)

// Store is the collaborator interface every pipeline stage and the
// orchestrator depend on. All operations carry a cancel token.
type Store interface {
	LoadSnapshot(ctx context.Context, snapshotID string) (model.Snapshot, error)

	EnsureStrategy(ctx context.Context, snapshotID string) error
	// UpdateStrategyCAS applies mutate to the current row only if predicate
	// holds on the row as currently persisted; it re-reads the row under a
	// row lock and checks the predicate once, with no retry. Returns false, nil if the
	// predicate rejected the update (no error, caller decides what that
	// means).
	UpdateStrategyCAS(ctx context.Context, snapshotID string, predicate func(model.Strategy) bool, mutate func(*model.Strategy)) (bool, error)
	LoadStrategy(ctx context.Context, snapshotID string) (model.Strategy, error)

	UpsertBriefing(ctx context.Context, b model.Briefing) error

	// InsertRanking atomically inserts the ranking header and all
	// candidates in one transaction (spec §4.I).
	InsertRanking(ctx context.Context, r model.Ranking, candidates []model.RankingCandidate) error

	// UpsertTriadJob inserts a new job row only if none exists for
	// snapshotID; returns created=false when a row already existed.
	UpsertTriadJob(ctx context.Context, snapshotID, kind string) (created bool, err error)
	UpdateTriadJobStatus(ctx context.Context, snapshotID string, status model.TriadJobStatus) error
	LoadTriadJob(ctx context.Context, snapshotID string) (model.TriadJob, error)

	UpsertPlaceCache(ctx context.Context, p model.PlaceCacheEntry) error

	GetIdempotencyRecord(ctx context.Context, key string) (model.IdempotencyRecord, bool, error)
	PutIdempotencyRecord(ctx context.Context, rec model.IdempotencyRecord, ttl time.Duration) error
}
