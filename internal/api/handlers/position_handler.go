package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"hlwatch/internal/models"
	"hlwatch/internal/repository"
)

// PositionReader отдает сохраненное состояние позиций (read-only)
type PositionReader interface {
	GetPositions(ctx context.Context, wallet string) ([]models.Position, error)
	RecentEvents(ctx context.Context, wallet string, limit int) ([]repository.EventRecord, error)
}

// PositionHandler - read-only endpoints позиций и истории событий.
// API только читает: любые изменения состояния делает движок сверки.
type PositionHandler struct {
	reader PositionReader
}

// NewPositionHandler создает handler позиций
func NewPositionHandler(reader PositionReader) *PositionHandler {
	return &PositionHandler{reader: reader}
}

// GetPositions возвращает открытые позиции кошелька
// GET /api/v1/wallets/{wallet}/positions
func (h *PositionHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	wallet := strings.ToLower(mux.Vars(r)["wallet"])

	positions, err := h.reader.GetPositions(r.Context(), wallet)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			writeError(w, http.StatusNotFound, "wallet not observed")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load positions")
		return
	}

	sort.Slice(positions, func(i, j int) bool { return positions[i].Coin < positions[j].Coin })
	writeJSON(w, http.StatusOK, positions)
}

// GetEvents возвращает последние события кошелька
// GET /api/v1/wallets/{wallet}/events?limit=50
func (h *PositionHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	wallet := strings.ToLower(mux.Vars(r)["wallet"])

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = v
	}

	events, err := h.reader.RecentEvents(r.Context(), wallet, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	if events == nil {
		events = []repository.EventRecord{}
	}

	writeJSON(w, http.StatusOK, events)
}
