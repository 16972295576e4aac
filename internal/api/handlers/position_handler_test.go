package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"hlwatch/internal/models"
	"hlwatch/internal/repository"
)

const testWallet = "0x1234567890abcdef1234567890abcdef12345678"

type fakePositionReader struct {
	positions map[string][]models.Position
	events    map[string][]repository.EventRecord
	err       error
}

func (f *fakePositionReader) GetPositions(ctx context.Context, wallet string) ([]models.Position, error) {
	if f.err != nil {
		return nil, f.err
	}
	positions, ok := f.positions[wallet]
	if !ok {
		return nil, repository.ErrWalletNotFound
	}
	return positions, nil
}

func (f *fakePositionReader) RecentEvents(ctx context.Context, wallet string, limit int) ([]repository.EventRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.events[wallet], nil
}

func newPositionRouter(reader PositionReader) *mux.Router {
	h := NewPositionHandler(reader)
	router := mux.NewRouter()
	router.HandleFunc("/api/v1/wallets/{wallet}/positions", h.GetPositions).Methods("GET")
	router.HandleFunc("/api/v1/wallets/{wallet}/events", h.GetEvents).Methods("GET")
	return router
}

func TestGetPositions(t *testing.T) {
	reader := &fakePositionReader{
		positions: map[string][]models.Position{
			testWallet: {
				{Wallet: testWallet, Coin: "ETH", Side: models.SideLong, Size: 1.5},
				{Wallet: testWallet, Coin: "BTC", Side: models.SideShort, Size: 0.25},
			},
		},
	}
	router := newPositionRouter(reader)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallets/"+testWallet+"/positions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус: ожидали 200, получили %d: %s", rec.Code, rec.Body.String())
	}

	var positions []models.Position
	if err := json.Unmarshal(rec.Body.Bytes(), &positions); err != nil {
		t.Fatalf("разбор ответа: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("ожидали 2 позиции, получили %d", len(positions))
	}
	// Детерминированный порядок по монете
	if positions[0].Coin != "BTC" || positions[1].Coin != "ETH" {
		t.Errorf("порядок: получили %s, %s", positions[0].Coin, positions[1].Coin)
	}
}

func TestGetPositions_WalletCaseInsensitive(t *testing.T) {
	reader := &fakePositionReader{
		positions: map[string][]models.Position{
			testWallet: {{Wallet: testWallet, Coin: "ETH"}},
		},
	}
	router := newPositionRouter(reader)

	// Адрес в смешанном регистре нормализуется
	upper := "0x1234567890ABCDEF1234567890abcdef12345678"
	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallets/"+upper+"/positions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("статус: ожидали 200, получили %d", rec.Code)
	}
}

func TestGetPositions_NotFound(t *testing.T) {
	router := newPositionRouter(&fakePositionReader{positions: map[string][]models.Position{}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallets/"+testWallet+"/positions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("статус: ожидали 404, получили %d", rec.Code)
	}
}

func TestGetPositions_InternalError(t *testing.T) {
	router := newPositionRouter(&fakePositionReader{err: errors.New("db down")})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallets/"+testWallet+"/positions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("статус: ожидали 500, получили %d", rec.Code)
	}
}

func TestGetEvents(t *testing.T) {
	pnl := 230.5
	reader := &fakePositionReader{
		events: map[string][]repository.EventRecord{
			testWallet: {
				{ID: 1, Wallet: testWallet, Coin: "ETH", Type: models.ChangeClosed, RealizedPnl: &pnl, OccurredAt: time.Now()},
			},
		},
	}
	router := newPositionRouter(reader)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallets/"+testWallet+"/events?limit=10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус: ожидали 200, получили %d", rec.Code)
	}

	var events []repository.EventRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("разбор ответа: %v", err)
	}
	if len(events) != 1 || events[0].Type != models.ChangeClosed {
		t.Errorf("события: получили %+v", events)
	}
}

func TestGetEvents_EmptyIsArray(t *testing.T) {
	router := newPositionRouter(&fakePositionReader{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallets/"+testWallet+"/events", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус: получили %d", rec.Code)
	}
	// Пустая история сериализуется как [], не null
	body := rec.Body.String()
	if body == "null\n" || body == "null" {
		t.Error("пустой список должен быть [], не null")
	}
}

func TestGetEvents_BadLimit(t *testing.T) {
	router := newPositionRouter(&fakePositionReader{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallets/"+testWallet+"/events?limit=abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("статус: ожидали 400, получили %d", rec.Code)
	}
}
