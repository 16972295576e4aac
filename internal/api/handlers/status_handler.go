package handlers

import (
	"context"
	"net/http"
	"time"

	"hlwatch/internal/monitor"
)

// StatusSource отдает состояния пайплайнов мониторинга
type StatusSource interface {
	Status() []monitor.WalletStatus
	Healthy() bool
}

// ReconcileTimeReader отдает время последней сверки кошелька
type ReconcileTimeReader interface {
	LastReconciledAt(ctx context.Context, wallet string) (time.Time, error)
}

// StatusHandler - endpoints состояния монитора
type StatusHandler struct {
	source    StatusSource
	times     ReconcileTimeReader // nil = времена сверок не отдаются
	startedAt time.Time
}

// NewStatusHandler создает handler статуса
func NewStatusHandler(source StatusSource, times ReconcileTimeReader) *StatusHandler {
	return &StatusHandler{
		source:    source,
		times:     times,
		startedAt: time.Now().UTC(),
	}
}

// walletStatus - состояние пайплайна кошелька с временем последней сверки
type walletStatus struct {
	monitor.WalletStatus
	LastReconciledAt *time.Time `json:"last_reconciled_at,omitempty"`
}

// statusResponse - ответ GET /api/v1/status
type statusResponse struct {
	Healthy   bool           `json:"healthy"`
	UptimeSec int64          `json:"uptime_sec"`
	Wallets   []walletStatus `json:"wallets"`
}

// GetStatus возвращает состояния пайплайнов всех кошельков
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	statuses := h.source.Status()

	wallets := make([]walletStatus, 0, len(statuses))
	for _, s := range statuses {
		ws := walletStatus{WalletStatus: s}
		if h.times != nil {
			if t, err := h.times.LastReconciledAt(r.Context(), s.Wallet); err == nil {
				ws.LastReconciledAt = &t
			}
		}
		wallets = append(wallets, ws)
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Healthy:   h.source.Healthy(),
		UptimeSec: int64(time.Since(h.startedAt).Seconds()),
		Wallets:   wallets,
	})
}

// Healthz - health check для оркестраторов: 200 если процесс жив
func (h *StatusHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
