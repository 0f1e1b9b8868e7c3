package api

import (
	"log/slog"
	"net/http"

	"go.hackfix.me/strata/db/migrator"
	"go.hackfix.me/strata/web/server/api/util"
	"go.hackfix.me/strata/web/server/types"
)

// Handler is the API endpoint handler.
type Handler struct {
	ledger migrator.Ledger
	logger *slog.Logger
}

// SetupHandlers configures the web API handlers.
func SetupHandlers(ledger migrator.Ledger, logger *slog.Logger) http.Handler {
	h := Handler{ledger: ledger, logger: logger}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /migrations", h.MigrationsGet)

	return mux
}

// MigrationsGet lists the entries of the migrations ledger.
func (h *Handler) MigrationsGet(w http.ResponseWriter, r *http.Request) {
	applied, err := h.ledger.Applied(r.Context())
	if err != nil {
		h.logger.Error("failed reading migrations ledger", "error", err.Error())
		_ = util.WriteJSON(w, types.NewInternalError("failed reading migrations ledger"))
		return
	}

	_ = util.WriteJSON(w, types.NewMigrationsResponse(h.ledger.String(), applied))
}
