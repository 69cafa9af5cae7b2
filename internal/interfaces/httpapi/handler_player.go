package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/scoutpulse/scout-engine/internal/usecase"
)

// GetPlayer serves a freshness-managed snapshot: cached when the TTL still
// holds, fetched from the provider otherwise.
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetPlayer")
	defer span.End()

	playerID, err := strconv.ParseInt(r.PathValue("playerID"), 10, 64)
	if err != nil || playerID <= 0 {
		writeError(ctx, w, fmt.Errorf("%w: player id must be a positive integer", usecase.ErrInvalidInput))
		return
	}

	snapshot, err := h.syncService.Player(ctx, playerID)
	if err != nil {
		h.logger.WarnContext(ctx, "get player failed", "player_id", playerID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, snapshot)
}
