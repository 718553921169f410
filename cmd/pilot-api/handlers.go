package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	apperrors "github.com/vecto-pilot/pilot-core/internal/errors"
	"github.com/vecto-pilot/pilot-core/pkg/idempotency"
	"github.com/vecto-pilot/pilot-core/pkg/model"
	"github.com/vecto-pilot/pilot-core/pkg/pipeline"
	"github.com/vecto-pilot/pilot-core/pkg/store"

	"github.com/go-chi/chi/v5"
)

// server holds the collaborators every handler needs. It carries no
// pipeline logic of its own — only request parsing, idempotency replay,
// and response mapping (spec §6).
type server struct {
	orch     *pipeline.Orchestrator
	store    store.Store
	idem     *idempotency.Service
	validate *validator.Validate
	log      *logrus.Logger
}

func newServer(orch *pipeline.Orchestrator, st store.Store, idem *idempotency.Service, log *logrus.Logger) *server {
	return &server{orch: orch, store: st, idem: idem, validate: validator.New(), log: log}
}

type blocksRequest struct {
	SnapshotID string `json:"snapshot_id" validate:"required"`
}

type blocksResponse struct {
	Ranking    model.Ranking            `json:"ranking"`
	Candidates []model.RankingCandidate `json:"candidates"`
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleCreateBlocks implements POST /blocks (spec §6): runs the pipeline
// for a snapshot, replaying a cached terminal response when the request's
// idempotency key (the x-idempotency-key header, or the snapshot_id when
// that header is absent) was already seen within the TTL window (Level-2
// idempotency; Level-1 dedup happens inside the Orchestrator).
func (s *server) handleCreateBlocks(w http.ResponseWriter, r *http.Request) {
	var req blocksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "snapshot_required", "request body must be valid JSON")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "snapshot_required", "snapshot_id is required")
		return
	}

	idemKey := r.Header.Get("x-idempotency-key")
	if idemKey == "" {
		idemKey = req.SnapshotID
	}
	if idemKey != "" && s.idem != nil {
		if rec, found, err := s.idem.Get(r.Context(), idemKey); err != nil {
			s.log.WithError(err).Warn("idempotency cache read failed, proceeding without replay")
		} else if found {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rec.Status)
			_, _ = w.Write(rec.Body)
			return
		}
	}

	result, err := s.orch.Run(r.Context(), req.SnapshotID)
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}

	if result.Status == "pending" {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
		return
	}

	body, _ := json.Marshal(blocksResponse{Ranking: result.Ranking, Candidates: result.Candidates})
	if idemKey != "" && s.idem != nil {
		if err := s.idem.Put(r.Context(), idemKey, http.StatusOK, body); err != nil {
			s.log.WithError(err).Warn("idempotency cache write failed")
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// handleGetBlocks implements GET /blocks?snapshotId= (spec §6): identical
// semantics to POST /blocks but read-oriented — no idempotency-key replay,
// since a GET is naturally safe to repeat.
func (s *server) handleGetBlocks(w http.ResponseWriter, r *http.Request) {
	snapshotID := r.URL.Query().Get("snapshotId")
	if snapshotID == "" {
		writeError(w, http.StatusBadRequest, "snapshot_required", "snapshotId query parameter is required")
		return
	}

	result, err := s.orch.Run(r.Context(), snapshotID)
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}
	if result.Status == "pending" {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
		return
	}
	writeJSON(w, http.StatusOK, blocksResponse{Ranking: result.Ranking, Candidates: result.Candidates})
}

// handleGetStrategy implements GET /blocks/strategy/:snapshot_id (spec
// §6): a cheap polling endpoint over the Strategy row, with ETag/
// If-None-Match support so a driver's client can poll without re-fetching
// an unchanged strategy, and Retry-After guidance while pending.
func (s *server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	snapshotID := chi.URLParam(r, "snapshot_id")
	if snapshotID == "" {
		writeError(w, http.StatusBadRequest, "snapshot_required", "snapshot_id path parameter is required")
		return
	}

	strategy, err := s.store.LoadStrategy(r.Context(), snapshotID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"status": "not_found"})
			return
		}
		s.log.WithError(err).Error("strategy load failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load strategy")
		return
	}

	if strategy.Status == model.StrategyPending {
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
		return
	}

	etag := strconv.FormatInt(strategy.UpdatedAt.UnixNano(), 10)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)

	status := "ok"
	if strategy.Status == model.StrategyFailed {
		status = "failed"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": status, "strategy": strategy})
}

// writeOrchestratorError maps an *apperrors.AppError's taxonomy code (spec
// §7) to the documented HTTP status/body; any other error is treated as an
// opaque internal failure.
func (s *server) writeOrchestratorError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		code := appErr.Code
		if code == "" {
			code = string(appErr.Type)
		}
		writeError(w, appErr.StatusCode, code, apperrors.SafeErrorMessage(appErr))
		return
	}
	s.log.WithError(err).Error("unhandled pipeline error")
	writeError(w, http.StatusInternalServerError, "internal_error", "an internal error occurred")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
