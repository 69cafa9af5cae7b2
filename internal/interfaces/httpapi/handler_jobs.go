package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/scoutpulse/scout-engine/internal/platform/resilience"
	"github.com/scoutpulse/scout-engine/internal/upstream"
	"github.com/scoutpulse/scout-engine/internal/usecase"
)

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListJobs")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, h.sched.Status())
}

// RunJob triggers one registered job outside its cadence.
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunJob")
	defer span.End()

	jobName := strings.TrimSpace(r.PathValue("jobName"))
	if jobName == "" {
		writeError(ctx, w, fmt.Errorf("%w: job name is required", usecase.ErrInvalidInput))
		return
	}

	if err := h.sched.TriggerNow(ctx, jobName); err != nil {
		h.logger.WarnContext(ctx, "manual job trigger failed", "job", jobName, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"job": jobName, "status": "completed"})
}

// ListJobRuns returns the recorded run history for one job, newest first.
func (h *Handler) ListJobRuns(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListJobRuns")
	defer span.End()

	jobName := strings.TrimSpace(r.PathValue("jobName"))
	if jobName == "" {
		writeError(ctx, w, fmt.Errorf("%w: job name is required", usecase.ErrInvalidInput))
		return
	}

	limit := 0
	if rawLimit := strings.TrimSpace(r.URL.Query().Get("limit")); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed < 0 {
			writeError(ctx, w, fmt.Errorf("%w: limit must be a non-negative integer", usecase.ErrInvalidInput))
			return
		}
		limit = parsed
	}
	if limit == 0 {
		limit = 20
	}

	runs, err := h.sched.RunHistory(ctx, jobName, limit)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, runs)
}

func (h *Handler) RunSyncNow(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunSyncNow")
	defer span.End()

	result, err := h.syncService.SyncAll(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "manual sync failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}

func (h *Handler) RunCacheWarm(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunCacheWarm")
	defer span.End()

	warmed, err := h.syncService.WarmTracked(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "manual cache warm failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]int{"warmed": warmed})
}

func (h *Handler) RunTransferCheck(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunTransferCheck")
	defer span.End()

	since := time.Now().Add(-24 * time.Hour)
	if rawSince := strings.TrimSpace(r.URL.Query().Get("since")); rawSince != "" {
		parsed, err := time.Parse(time.RFC3339, rawSince)
		if err != nil {
			writeError(ctx, w, fmt.Errorf("%w: since must be RFC3339", usecase.ErrInvalidInput))
			return
		}
		since = parsed
	}

	touched, err := h.syncService.CheckTransfers(ctx, since)
	if err != nil {
		h.logger.ErrorContext(ctx, "manual transfer check failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]int{"players_touched": touched})
}

func (h *Handler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetCacheStats")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, h.cacheStore.Stats())
}

func (h *Handler) GetUpstreamStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetUpstreamStatus")
	defer span.End()

	classes := []upstream.Class{
		upstream.ClassPlayers,
		upstream.ClassStats,
		upstream.ClassMarket,
		upstream.ClassTransfers,
	}
	breakers := make(map[upstream.Class]resilience.Snapshot, len(classes))
	for _, class := range classes {
		breakers[class] = h.upstream.BreakerSnapshot(class)
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]any{"breakers": breakers})
}
