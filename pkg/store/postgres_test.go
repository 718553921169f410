package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/vecto-pilot/pilot-core/pkg/model"
)

func TestPostgresStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "PostgresStore Suite")
}

var _ = Describe("PostgresStore", func() {
	var (
		mockDB *sql.DB
		mock   sqlmock.Sqlmock
		store  *PostgresStore
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		mockDB, mock, err = sqlmock.New(sqlmock.MonitorPingsOption(true))
		Expect(err).ToNot(HaveOccurred())

		store = NewPostgresStore(sqlx.NewDb(mockDB, "pgx"), logrus.New())
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
		mockDB.Close()
	})

	Describe("LoadSnapshot", func() {
		It("maps a found row into a model.Snapshot", func() {
			cols := []string{"snapshot_id", "lat", "lng", "formatted_address", "city", "state", "timezone",
				"created_at", "day_part", "dow", "weather", "air_quality",
				"airport_code", "airport_name", "airport_distance_miles", "airport_delay_minutes",
				"is_holiday", "holiday_name"}
			now := time.Now()
			mock.ExpectQuery(`SELECT snapshot_id, lat, lng, formatted_address, city, state, timezone`).
				WithArgs("snap-1").
				WillReturnRows(sqlmock.NewRows(cols).AddRow(
					"snap-1", 30.1, -97.2, "123 Main St", "Austin", "TX", "America/Chicago",
					now, "morning_rush", 1, "clear", "good",
					nil, nil, nil, nil,
					false, nil,
				))

			snap, err := store.LoadSnapshot(ctx, "snap-1")
			Expect(err).ToNot(HaveOccurred())
			Expect(snap.SnapshotID).To(Equal("snap-1"))
			Expect(snap.City).To(Equal("Austin"))
			Expect(snap.AirportContext).To(BeNil())
		})

		It("returns ErrNotFound when no row matches", func() {
			mock.ExpectQuery(`SELECT snapshot_id, lat, lng, formatted_address, city, state, timezone`).
				WithArgs("missing").
				WillReturnError(sql.ErrNoRows)

			_, err := store.LoadSnapshot(ctx, "missing")
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("EnsureStrategy", func() {
		It("inserts a pending row, tolerating a conflict", func() {
			mock.ExpectExec(`INSERT INTO strategies`).
				WithArgs("snap-1", model.StrategyPending).
				WillReturnResult(sqlmock.NewResult(1, 1))

			Expect(store.EnsureStrategy(ctx, "snap-1")).To(Succeed())
		})
	})

	Describe("LoadStrategy", func() {
		It("returns ErrNotFound when absent", func() {
			mock.ExpectQuery(`SELECT snapshot_id, status, min_strategy, consolidated_strategy`).
				WithArgs("snap-1").
				WillReturnError(sql.ErrNoRows)

			_, err := store.LoadStrategy(ctx, "snap-1")
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("UpdateStrategyCAS", func() {
		It("rolls back and reports false when the predicate rejects the row", func() {
			cols := []string{"snapshot_id", "status", "min_strategy", "consolidated_strategy",
				"error_code", "error_message", "attempt", "latency_ms", "tokens", "warnings",
				"created_at", "updated_at"}
			now := time.Now()

			mock.ExpectBegin()
			mock.ExpectQuery(`SELECT snapshot_id, status, min_strategy, consolidated_strategy`).
				WithArgs("snap-1").
				WillReturnRows(sqlmock.NewRows(cols).AddRow(
					"snap-1", model.StrategyOK, "go to downtown", "go to downtown",
					nil, nil, 1, int64(500), 120, []byte(`[]`), now, now,
				))
			mock.ExpectRollback()

			ok, err := store.UpdateStrategyCAS(ctx, "snap-1",
				func(model.Strategy) bool { return false },
				func(*model.Strategy) {})

			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("writes the mutated row and commits when the predicate accepts", func() {
			cols := []string{"snapshot_id", "status", "min_strategy", "consolidated_strategy",
				"error_code", "error_message", "attempt", "latency_ms", "tokens", "warnings",
				"created_at", "updated_at"}
			now := time.Now()

			mock.ExpectBegin()
			mock.ExpectQuery(`SELECT snapshot_id, status, min_strategy, consolidated_strategy`).
				WithArgs("snap-1").
				WillReturnRows(sqlmock.NewRows(cols).AddRow(
					"snap-1", model.StrategyPending, nil, nil,
					nil, nil, 0, int64(0), 0, []byte(`[]`), now, now,
				))
			mock.ExpectExec(`UPDATE strategies SET`).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			ok, err := store.UpdateStrategyCAS(ctx, "snap-1",
				func(s model.Strategy) bool { return s.Status == model.StrategyPending },
				func(s *model.Strategy) { s.Status = model.StrategyOK; s.MinStrategy = "go downtown" })

			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
		})
	})

	Describe("InsertRanking", func() {
		It("inserts the header and every candidate within one transaction", func() {
			r := model.Ranking{RankingID: "rank-1", SnapshotID: "snap-1", UserID: "user-1", City: "Austin", ModelName: "claude"}
			candidates := []model.RankingCandidate{
				{ID: "cand-1", RankingID: "rank-1", SnapshotID: "snap-1", Rank: 1, Name: "Airport"},
			}

			mock.ExpectBegin()
			mock.ExpectExec(`INSERT INTO rankings`).
				WillReturnResult(sqlmock.NewResult(1, 1))
			mock.ExpectExec(`INSERT INTO ranking_candidates`).
				WillReturnResult(sqlmock.NewResult(1, 1))
			mock.ExpectCommit()

			Expect(store.InsertRanking(ctx, r, candidates)).To(Succeed())
		})

		It("rolls back when the candidate insert fails", func() {
			r := model.Ranking{RankingID: "rank-1", SnapshotID: "snap-1"}
			candidates := []model.RankingCandidate{{ID: "cand-1", RankingID: "rank-1", SnapshotID: "snap-1", Rank: 1, Name: "Airport"}}

			mock.ExpectBegin()
			mock.ExpectExec(`INSERT INTO rankings`).
				WillReturnResult(sqlmock.NewResult(1, 1))
			mock.ExpectExec(`INSERT INTO ranking_candidates`).
				WillReturnError(sql.ErrConnDone)
			mock.ExpectRollback()

			err := store.InsertRanking(ctx, r, candidates)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("GetIdempotencyRecord", func() {
		It("reports a miss without error when no record exists", func() {
			mock.ExpectQuery(`SELECT key, status, body, created_at FROM idempotency_records`).
				WithArgs("key-1").
				WillReturnError(sql.ErrNoRows)

			_, found, err := store.GetIdempotencyRecord(ctx, "key-1")
			Expect(err).ToNot(HaveOccurred())
			Expect(found).To(BeFalse())
		})
	})
})
