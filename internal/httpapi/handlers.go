package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/yahtzee-backend/internal/engine"
	"github.com/DoyleJ11/yahtzee-backend/internal/hub"
	"github.com/DoyleJ11/yahtzee-backend/internal/lobby"
	"github.com/DoyleJ11/yahtzee-backend/internal/scoring"
	"github.com/DoyleJ11/yahtzee-backend/internal/store"
	"github.com/DoyleJ11/yahtzee-backend/internal/types"
	pub "github.com/DoyleJ11/yahtzee-backend/pkg/types"
)

const defaultResultLimit = 20

// Results is the read side of the game log. *store.Store implements it.
type Results interface {
	RecentGames(ctx context.Context, limit int) ([]store.GameRecord, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg})
}

func CreateTable(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CreateTableRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		code := strings.ToUpper(strings.TrimSpace(req.Code))

		lb, err := h.CreateTable(r.Context(), code)
		switch {
		case errors.Is(err, hub.ErrTableExists):
			writeError(w, http.StatusConflict, err.Error())
			return
		case errors.Is(err, hub.ErrNoTables):
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		case err != nil:
			log.Error("failed to create table", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to create table")
			return
		}

		writeJSON(w, http.StatusCreated, types.CreateTableResponse{Code: lb.Code()})
	}
}

func ListTables(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tables, err := h.Tables(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}

		out := make([]types.TableSummary, 0, len(tables))
		for _, lb := range tables {
			v, err := lb.View(r.Context())
			if err != nil {
				continue
			}
			out = append(out, types.TableSummary{
				Code:    v.Code,
				Phase:   string(v.State.Phase),
				Round:   v.State.Round,
				Seated:  v.NumClients,
				Seats:   v.State.Players,
				Version: v.Version,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func GetTable(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.ToUpper(chi.URLParam(r, "code"))
		lb, err := h.Table(r.Context(), code)
		if err != nil {
			writeError(w, http.StatusNotFound, "table not found")
			return
		}
		v, err := lb.View(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, Snapshot(v))
	}
}

// Snapshot renders a table view for clients.
func Snapshot(v lobby.View) pub.TableSnapshot {
	s := v.State
	snap := pub.TableSnapshot{
		Code:    v.Code,
		Version: v.Version,
		Phase:   string(s.Phase),
		Round:   s.Round,
		Seats:   s.Players,
		Players: []pub.PlayerTotal{},
		Board:   make([]pub.BoardEntry, 0, scoring.CategoryCount),
	}
	if s.Phase == engine.PhaseOver {
		snap.Winner = int(s.Winner)
	}
	for _, id := range s.ActivePlayers() {
		snap.Players = append(snap.Players, pub.PlayerTotal{
			ID:        int(id),
			Total:     engine.Score(s, id),
			Submitted: s.Submitted[id],
		})
	}
	for _, cat := range scoring.All() {
		e := s.Entry(cat)
		snap.Board = append(snap.Board, pub.BoardEntry{
			Part:      int(cat.Part),
			Index:     cat.Index,
			Name:      cat.Title(),
			ClaimedBy: int(e.ClaimedBy),
			Value:     e.Value,
		})
	}
	return snap
}

func RecentResults(res Results, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultResultLimit
		if q := r.URL.Query().Get("limit"); q != "" {
			n, err := strconv.Atoi(q)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}

		games, err := res.RecentGames(r.Context(), limit)
		if err != nil {
			log.Error("failed to read results", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to read results")
			return
		}

		out := make([]types.GameResult, 0, len(games))
		for _, g := range games {
			out = append(out, types.GameResult{
				ID:        g.ID,
				Code:      g.Code,
				Players:   g.Players,
				Winner:    g.Winner,
				StartedAt: g.StartedAt,
				EndedAt:   g.EndedAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
