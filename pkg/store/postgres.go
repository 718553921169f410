package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"

	sharederrors "github.com/vecto-pilot/pilot-core/pkg/shared/errors"
	"github.com/vecto-pilot/pilot-core/pkg/model"
)

// ErrNotFound is returned by single-row loads when no row matches.
var ErrNotFound = fmt.Errorf("store: not found")

// ErrCASRejected names a compare-and-set whose predicate did not hold.
// UpdateStrategyCAS does not return it: it reports a rejected predicate as
// (false, nil).
var ErrCASRejected = fmt.Errorf("store: compare-and-set rejected")

// PostgresStore implements Store against a Postgres schema laid out 1:1
// with the entities in pkg/model (spec §6 persisted state layout).
type PostgresStore struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func NewPostgresStore(db *sqlx.DB, log *logrus.Logger) *PostgresStore {
	if log == nil {
		log = logrus.New()
	}
	return &PostgresStore{db: db, log: log}
}

type snapshotRow struct {
	SnapshotID       string         `db:"snapshot_id"`
	Lat              float64        `db:"lat"`
	Lng              float64        `db:"lng"`
	FormattedAddress string         `db:"formatted_address"`
	City             string         `db:"city"`
	State            string         `db:"state"`
	Timezone         string         `db:"timezone"`
	CreatedAt        time.Time      `db:"created_at"`
	DayPart          string         `db:"day_part"`
	DOW              int            `db:"dow"`
	Weather          sql.NullString `db:"weather"`
	AirQuality       sql.NullString `db:"air_quality"`
	AirportCode      sql.NullString `db:"airport_code"`
	AirportName      sql.NullString `db:"airport_name"`
	AirportDistance  sql.NullFloat64 `db:"airport_distance_miles"`
	AirportDelay     sql.NullInt64  `db:"airport_delay_minutes"`
	IsHoliday        bool           `db:"is_holiday"`
	HolidayName      sql.NullString `db:"holiday_name"`
}

func (r snapshotRow) toModel() model.Snapshot {
	s := model.Snapshot{
		SnapshotID:       r.SnapshotID,
		Lat:              r.Lat,
		Lng:              r.Lng,
		FormattedAddress: r.FormattedAddress,
		City:             r.City,
		State:            r.State,
		Timezone:         r.Timezone,
		CreatedAt:        r.CreatedAt,
		DayPart:          model.DayPart(r.DayPart),
		DOW:              r.DOW,
		Weather:          r.Weather.String,
		AirQuality:       r.AirQuality.String,
		IsHoliday:        r.IsHoliday,
		HolidayName:      r.HolidayName.String,
	}
	if r.AirportCode.Valid {
		s.AirportContext = &model.AirportContext{
			Code:          r.AirportCode.String,
			Name:          r.AirportName.String,
			DistanceMiles: r.AirportDistance.Float64,
			DelayMinutes:  int(r.AirportDelay.Int64),
		}
	}
	return s
}

func (s *PostgresStore) LoadSnapshot(ctx context.Context, snapshotID string) (model.Snapshot, error) {
	var row snapshotRow
	err := s.db.GetContext(ctx, &row, `
		SELECT snapshot_id, lat, lng, formatted_address, city, state, timezone,
		       created_at, day_part, dow, weather, air_quality,
		       airport_code, airport_name, airport_distance_miles, airport_delay_minutes,
		       is_holiday, holiday_name
		FROM snapshots WHERE snapshot_id = $1`, snapshotID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return model.Snapshot{}, sharederrors.DatabaseError("load snapshot", err)
	}
	return row.toModel(), nil
}

func (s *PostgresStore) EnsureStrategy(ctx context.Context, snapshotID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO strategies (snapshot_id, status, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (snapshot_id) DO NOTHING`, snapshotID, model.StrategyPending)
	if err != nil {
		return sharederrors.DatabaseError("ensure strategy row", err)
	}
	return nil
}

type strategyRow struct {
	SnapshotID           string         `db:"snapshot_id"`
	Status               string         `db:"status"`
	MinStrategy          sql.NullString `db:"min_strategy"`
	ConsolidatedStrategy sql.NullString `db:"consolidated_strategy"`
	ErrorCode            sql.NullString `db:"error_code"`
	ErrorMessage         sql.NullString `db:"error_message"`
	Attempt              int            `db:"attempt"`
	LatencyMS            int64          `db:"latency_ms"`
	Tokens               int            `db:"tokens"`
	Warnings             []byte         `db:"warnings"`
	CreatedAt            time.Time      `db:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at"`
}

func (r strategyRow) toModel() model.Strategy {
	var warnings []string
	if len(r.Warnings) > 0 {
		_ = json.Unmarshal(r.Warnings, &warnings)
	}
	return model.Strategy{
		SnapshotID:           r.SnapshotID,
		Status:               model.StrategyStatus(r.Status),
		MinStrategy:          r.MinStrategy.String,
		ConsolidatedStrategy: r.ConsolidatedStrategy.String,
		ErrorCode:            r.ErrorCode.String,
		ErrorMessage:         r.ErrorMessage.String,
		Attempt:              r.Attempt,
		LatencyMS:            r.LatencyMS,
		Tokens:               r.Tokens,
		Warnings:             warnings,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

func (s *PostgresStore) LoadStrategy(ctx context.Context, snapshotID string) (model.Strategy, error) {
	var row strategyRow
	err := s.db.GetContext(ctx, &row, `
		SELECT snapshot_id, status, min_strategy, consolidated_strategy,
		       error_code, error_message, attempt, latency_ms, tokens, warnings,
		       created_at, updated_at
		FROM strategies WHERE snapshot_id = $1`, snapshotID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Strategy{}, ErrNotFound
	}
	if err != nil {
		return model.Strategy{}, sharederrors.DatabaseError("load strategy", err)
	}
	return row.toModel(), nil
}

// UpdateStrategyCAS re-reads the row, checks predicate against it, and
// writes mutate's result back — all inside one transaction so the check
// and the write observe the same row (spec §4.F compare-and-set on status
// and updated_at).
func (s *PostgresStore) UpdateStrategyCAS(ctx context.Context, snapshotID string, predicate func(model.Strategy) bool, mutate func(*model.Strategy)) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, sharederrors.DatabaseError("begin strategy CAS transaction", err)
	}
	defer tx.Rollback()

	var row strategyRow
	err = tx.GetContext(ctx, &row, `
		SELECT snapshot_id, status, min_strategy, consolidated_strategy,
		       error_code, error_message, attempt, latency_ms, tokens, warnings,
		       created_at, updated_at
		FROM strategies WHERE snapshot_id = $1 FOR UPDATE`, snapshotID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, sharederrors.DatabaseError("load strategy for CAS", err)
	}

	current := row.toModel()
	if !predicate(current) {
		return false, nil
	}

	mutate(&current)
	warningsJSON, _ := json.Marshal(current.Warnings)

	_, err = tx.ExecContext(ctx, `
		UPDATE strategies SET
			status = $1, min_strategy = $2, consolidated_strategy = $3,
			error_code = $4, error_message = $5, attempt = $6, latency_ms = $7,
			tokens = $8, warnings = $9, updated_at = now()
		WHERE snapshot_id = $10`,
		current.Status, nullIfEmpty(current.MinStrategy), nullIfEmpty(current.ConsolidatedStrategy),
		nullIfEmpty(current.ErrorCode), nullIfEmpty(current.ErrorMessage), current.Attempt, current.LatencyMS,
		current.Tokens, warningsJSON, snapshotID)
	if err != nil {
		return false, sharederrors.DatabaseError("update strategy CAS", err)
	}

	if err := tx.Commit(); err != nil {
		return false, sharederrors.DatabaseError("commit strategy CAS", err)
	}
	return true, nil
}

func (s *PostgresStore) UpsertBriefing(ctx context.Context, b model.Briefing) error {
	events, _ := json.Marshal(b.Events)
	news, _ := json.Marshal(b.News)
	traffic, _ := json.Marshal(b.Traffic)
	schoolClosures, _ := json.Marshal(b.SchoolClosures)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO briefings (snapshot_id, events, news, traffic, school_closures, weather_summary, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (snapshot_id) DO UPDATE SET
			events = EXCLUDED.events, news = EXCLUDED.news, traffic = EXCLUDED.traffic,
			school_closures = EXCLUDED.school_closures, weather_summary = EXCLUDED.weather_summary,
			status = EXCLUDED.status`,
		b.SnapshotID, events, news, traffic, schoolClosures, b.WeatherSummary, b.Status)
	if err != nil {
		return sharederrors.DatabaseError("upsert briefing", err)
	}
	return nil
}

// InsertRanking inserts the Ranking header and every candidate inside one
// transaction; any failure rolls the whole thing back so no partial
// ranking is ever observable (spec §4.I).
func (s *PostgresStore) InsertRanking(ctx context.Context, r model.Ranking, candidates []model.RankingCandidate) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return sharederrors.DatabaseError("begin ranking transaction", err)
	}
	defer tx.Rollback()

	extras, _ := json.Marshal(r.Extras)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO rankings (ranking_id, snapshot_id, user_id, city, model_name, correlation_id,
		                       scoring_ms, planner_ms, total_ms, timed_out, path_taken, extras, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())`,
		r.RankingID, r.SnapshotID, r.UserID, r.City, r.ModelName, r.CorrelationID,
		r.ScoringMS, r.PlannerMS, r.TotalMS, r.TimedOut, r.PathTaken, extras)
	if err != nil {
		return sharederrors.DatabaseError("insert ranking header", err)
	}

	stmt := `
		INSERT INTO ranking_candidates (id, ranking_id, snapshot_id, rank, name, lat, lng, place_id,
			distance_miles, drive_minutes, value_per_min, value_grade, not_worth, pro_tips,
			staging_tips, staging_name, staging_lat, staging_lng, business_hours,
			closed_reasoning, distance_source, features)
		VALUES (:id, :ranking_id, :snapshot_id, :rank, :name, :lat, :lng, :place_id,
			:distance_miles, :drive_minutes, :value_per_min, :value_grade, :not_worth, :pro_tips,
			:staging_tips, :staging_name, :staging_lat, :staging_lng, :business_hours,
			:closed_reasoning, :distance_source, :features)`

	for _, c := range candidates {
		proTips, _ := json.Marshal(c.ProTips)
		businessHours, _ := json.Marshal(c.BusinessHours)
		features, _ := json.Marshal(c.Features)
		params := map[string]interface{}{
			"id": c.ID, "ranking_id": r.RankingID, "snapshot_id": c.SnapshotID, "rank": c.Rank,
			"name": c.Name, "lat": c.Lat, "lng": c.Lng, "place_id": c.PlaceID,
			"distance_miles": c.DistanceMiles, "drive_minutes": c.DriveMinutes, "value_per_min": c.ValuePerMin,
			"value_grade": c.ValueGrade, "not_worth": c.NotWorth, "pro_tips": proTips,
			"staging_tips": c.StagingTips, "staging_name": c.StagingName,
			"staging_lat": c.StagingLat, "staging_lng": c.StagingLng, "business_hours": businessHours,
			"closed_reasoning": c.ClosedReasoning, "distance_source": c.DistanceSource, "features": features,
		}
		if _, err := tx.NamedExecContext(ctx, stmt, params); err != nil {
			return sharederrors.DatabaseError("insert ranking candidate", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return sharederrors.DatabaseError("commit ranking transaction", err)
	}
	return nil
}

func (s *PostgresStore) UpsertTriadJob(ctx context.Context, snapshotID, kind string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO triad_jobs (snapshot_id, status, kind, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (snapshot_id) DO NOTHING`, snapshotID, model.TriadQueued, kind)
	if err != nil {
		return false, sharederrors.DatabaseError("upsert triad job", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, sharederrors.DatabaseError("read triad job insert result", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) UpdateTriadJobStatus(ctx context.Context, snapshotID string, status model.TriadJobStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE triad_jobs SET status = $1 WHERE snapshot_id = $2`, status, snapshotID)
	if err != nil {
		return sharederrors.DatabaseError("update triad job status", err)
	}
	return nil
}

func (s *PostgresStore) LoadTriadJob(ctx context.Context, snapshotID string) (model.TriadJob, error) {
	var row struct {
		SnapshotID string    `db:"snapshot_id"`
		Status     string    `db:"status"`
		Kind       string    `db:"kind"`
		CreatedAt  time.Time `db:"created_at"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT snapshot_id, status, kind, created_at FROM triad_jobs WHERE snapshot_id = $1`, snapshotID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TriadJob{}, ErrNotFound
	}
	if err != nil {
		return model.TriadJob{}, sharederrors.DatabaseError("load triad job", err)
	}
	return model.TriadJob{
		SnapshotID: row.SnapshotID,
		Status:     model.TriadJobStatus(row.Status),
		Kind:       row.Kind,
		CreatedAt:  row.CreatedAt,
	}, nil
}

func (s *PostgresStore) UpsertPlaceCache(ctx context.Context, p model.PlaceCacheEntry) error {
	hours, _ := json.Marshal(p.OpeningHours)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO place_cache (place_id, name, formatted_address, lat, lng, business_status, opening_hours, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (place_id) DO UPDATE SET
			name = EXCLUDED.name, formatted_address = EXCLUDED.formatted_address,
			lat = EXCLUDED.lat, lng = EXCLUDED.lng, business_status = EXCLUDED.business_status,
			opening_hours = EXCLUDED.opening_hours, updated_at = now()`,
		p.PlaceID, p.Name, p.FormattedAddress, p.Lat, p.Lng, p.BusinessStatus, hours)
	if err != nil {
		return sharederrors.DatabaseError("upsert place cache", err)
	}
	return nil
}

func (s *PostgresStore) GetIdempotencyRecord(ctx context.Context, key string) (model.IdempotencyRecord, bool, error) {
	var row struct {
		Key       string    `db:"key"`
		Status    int       `db:"status"`
		Body      []byte    `db:"body"`
		CreatedAt time.Time `db:"created_at"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT key, status, body, created_at FROM idempotency_records WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return model.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return model.IdempotencyRecord{}, false, sharederrors.DatabaseError("load idempotency record", err)
	}
	return model.IdempotencyRecord{Key: row.Key, Status: row.Status, Body: row.Body, CreatedAt: row.CreatedAt}, true, nil
}

func (s *PostgresStore) PutIdempotencyRecord(ctx context.Context, rec model.IdempotencyRecord, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_records (key, status, body, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE SET status = EXCLUDED.status, body = EXCLUDED.body, created_at = now()`,
		rec.Key, rec.Status, rec.Body)
	if err != nil {
		return sharederrors.DatabaseError("put idempotency record", err)
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
