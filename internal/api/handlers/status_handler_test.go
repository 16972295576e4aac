package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hlwatch/internal/monitor"
	"hlwatch/internal/repository"
)

type fakeStatusSource struct {
	status  []monitor.WalletStatus
	healthy bool
}

func (f *fakeStatusSource) Status() []monitor.WalletStatus { return f.status }
func (f *fakeStatusSource) Healthy() bool                  { return f.healthy }

type fakeTimeReader struct {
	times map[string]time.Time
}

func (f *fakeTimeReader) LastReconciledAt(ctx context.Context, wallet string) (time.Time, error) {
	t, ok := f.times[wallet]
	if !ok {
		return time.Time{}, repository.ErrWalletNotFound
	}
	return t, nil
}

func TestGetStatus(t *testing.T) {
	source := &fakeStatusSource{
		healthy: true,
		status: []monitor.WalletStatus{
			{Wallet: "0xabc", State: monitor.StateLive, Info: "Мониторинг активен"},
		},
	}
	h := NewStatusHandler(source, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	h.GetStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус: ожидали 200, получили %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: получили %q", ct)
	}

	var resp struct {
		Healthy bool `json:"healthy"`
		Wallets []struct {
			Wallet string `json:"wallet"`
			State  string `json:"state"`
		} `json:"wallets"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("разбор ответа: %v", err)
	}
	if !resp.Healthy {
		t.Error("healthy: ожидали true")
	}
	if len(resp.Wallets) != 1 || resp.Wallets[0].State != monitor.StateLive {
		t.Errorf("wallets: получили %+v", resp.Wallets)
	}
}

func TestGetStatus_LastReconciled(t *testing.T) {
	reconciled := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	source := &fakeStatusSource{
		healthy: true,
		status: []monitor.WalletStatus{
			{Wallet: "0xabc", State: monitor.StateLive},
			{Wallet: "0xdef", State: monitor.StateCatchingUp},
		},
	}
	times := &fakeTimeReader{times: map[string]time.Time{"0xabc": reconciled}}
	h := NewStatusHandler(source, times)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	h.GetStatus(rec, req)

	var resp struct {
		Wallets []struct {
			Wallet           string     `json:"wallet"`
			LastReconciledAt *time.Time `json:"last_reconciled_at"`
		} `json:"wallets"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("разбор ответа: %v", err)
	}
	if len(resp.Wallets) != 2 {
		t.Fatalf("ожидали 2 кошелька, получили %d", len(resp.Wallets))
	}
	if resp.Wallets[0].LastReconciledAt == nil || !resp.Wallets[0].LastReconciledAt.Equal(reconciled) {
		t.Errorf("last_reconciled_at: получили %v", resp.Wallets[0].LastReconciledAt)
	}
	// Несверенный кошелек без времени, а не с нулевым
	if resp.Wallets[1].LastReconciledAt != nil {
		t.Errorf("несверенный кошелек: ожидали nil, получили %v", resp.Wallets[1].LastReconciledAt)
	}
}

func TestHealthz(t *testing.T) {
	h := NewStatusHandler(&fakeStatusSource{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("healthz: ожидали 200, получили %d", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("healthz body: получили %q", rec.Body.String())
	}
}
