package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rocketscienceinc/tictactoe-direct/internal/usecase"
)

type Handlers interface {
	PingHandler(w http.ResponseWriter, _ *http.Request)
	StatusHandler(w http.ResponseWriter, r *http.Request)
}

type matchStatus interface {
	Snapshot() usecase.Snapshot
}

type handlers struct {
	logger *slog.Logger
	match  matchStatus
}

func NewHandlers(logger *slog.Logger, match matchStatus) Handlers {
	return &handlers{
		logger: logger.With("component", "rest"),
		match:  match,
	}
}

func (that *handlers) PingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

// StatusHandler writes the board, turn, outcome and discovery state as JSON.
func (that *handlers) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := json.Marshal(that.match.Snapshot())
	if err != nil {
		that.logger.Error("failed to marshal status", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err = w.Write(body); err != nil {
		that.logger.Warn("failed to write status", "error", err)
	}
}
