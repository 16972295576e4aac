package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"hlwatch/internal/models"
)

const testWallet = "0x1234567890abcdef1234567890abcdef12345678"

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newMockRepo(t *testing.T) (*PositionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPositionRepository(db), mock
}

func TestGetSnapshot_WalletNotObserved(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT last_reconciled_at FROM wallet_state WHERE wallet = $1`)).
		WithArgs(testWallet).
		WillReturnRows(sqlmock.NewRows([]string{"last_reconciled_at"}))

	_, found, err := repo.GetSnapshot(context.Background(), testWallet)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if found {
		t.Error("ненаблюдавшийся кошелек должен давать found=false")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("невыполненные ожидания: %v", err)
	}
}

func TestGetSnapshot_EmptyButObserved(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT last_reconciled_at FROM wallet_state WHERE wallet = $1`)).
		WithArgs(testWallet).
		WillReturnRows(sqlmock.NewRows([]string{"last_reconciled_at"}).AddRow(testTime))

	mock.ExpectQuery("SELECT wallet, coin, side").
		WithArgs(testWallet).
		WillReturnRows(sqlmock.NewRows([]string{
			"wallet", "coin", "side", "size", "entry_price", "leverage",
			"position_value", "unrealized_pnl", "return_on_equity", "updated_at",
		}))

	snapshot, found, err := repo.GetSnapshot(context.Background(), testWallet)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}

	// Кошелек наблюдался, но позиций нет: found=true, снапшот пустой
	if !found {
		t.Error("наблюдавшийся кошелек должен давать found=true")
	}
	if len(snapshot.Positions) != 0 {
		t.Errorf("ожидали пустой снапшот, получили %d позиций", len(snapshot.Positions))
	}
	if !snapshot.FetchedAt.Equal(testTime) {
		t.Errorf("FetchedAt: получили %v", snapshot.FetchedAt)
	}
}

func TestGetSnapshot_WithPositions(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT last_reconciled_at FROM wallet_state WHERE wallet = $1`)).
		WithArgs(testWallet).
		WillReturnRows(sqlmock.NewRows([]string{"last_reconciled_at"}).AddRow(testTime))

	rows := sqlmock.NewRows([]string{
		"wallet", "coin", "side", "size", "entry_price", "leverage",
		"position_value", "unrealized_pnl", "return_on_equity", "updated_at",
	}).
		AddRow(testWallet, "ETH", models.SideLong, 1.5, 3245.5, 10.0, 4868.25, 120.5, 0.2481, testTime).
		AddRow(testWallet, "BTC", models.SideShort, 0.25, 95000.0, 5.0, 23750.0, -300.0, -0.0632, testTime)

	mock.ExpectQuery("SELECT wallet, coin, side").
		WithArgs(testWallet).
		WillReturnRows(rows)

	snapshot, found, err := repo.GetSnapshot(context.Background(), testWallet)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if !found {
		t.Fatal("ожидали found=true")
	}
	if len(snapshot.Positions) != 2 {
		t.Fatalf("ожидали 2 позиции, получили %d", len(snapshot.Positions))
	}

	eth := snapshot.Positions["ETH"]
	if eth.Side != models.SideLong || eth.Size != 1.5 || eth.Leverage != 10.0 {
		t.Errorf("ETH: получили %+v", eth)
	}
}

func TestPutSnapshot_Transactional(t *testing.T) {
	repo, mock := newMockRepo(t)

	snapshot := models.NewSnapshot(testWallet)
	snapshot.FetchedAt = testTime
	snapshot.Positions["ETH"] = models.Position{
		Wallet: testWallet, Coin: "ETH", Side: models.SideLong,
		Size: 1.5, EntryPrice: 3245.5, Leverage: 10,
		PositionValue: 4868.25, UnrealizedPnl: 120.5, ReturnOnEquity: 0.2481,
		UpdatedAt: testTime,
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM positions WHERE wallet = $1`)).
		WithArgs(testWallet).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO positions").
		WithArgs(testWallet, "ETH", models.SideLong, 1.5, 3245.5, 10.0, 4868.25, 120.5, 0.2481, testTime).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO wallet_state").
		WithArgs(testWallet, testTime).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.PutSnapshot(context.Background(), snapshot); err != nil {
		t.Fatalf("PutSnapshot: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("невыполненные ожидания: %v", err)
	}
}

func TestPutSnapshot_RollbackOnError(t *testing.T) {
	repo, mock := newMockRepo(t)

	snapshot := models.NewSnapshot(testWallet)
	snapshot.FetchedAt = testTime

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM positions WHERE wallet = $1`)).
		WithArgs(testWallet).
		WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	if err := repo.PutSnapshot(context.Background(), snapshot); err == nil {
		t.Fatal("ожидали ошибку")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("транзакция должна откатиться: %v", err)
	}
}

func TestGetPositions_WalletNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT last_reconciled_at FROM wallet_state WHERE wallet = $1`)).
		WithArgs(testWallet).
		WillReturnRows(sqlmock.NewRows([]string{"last_reconciled_at"}))

	_, err := repo.GetPositions(context.Background(), testWallet)
	if !errors.Is(err, ErrWalletNotFound) {
		t.Errorf("ожидали ErrWalletNotFound, получили %v", err)
	}
}

func TestRecordEvent(t *testing.T) {
	repo, mock := newMockRepo(t)

	pnl := 230.5
	prev := models.Position{Wallet: testWallet, Coin: "ETH", Size: 1.5}
	event := models.PositionChangeEvent{
		Wallet:      testWallet,
		Coin:        "ETH",
		Type:        models.ChangeClosed,
		Prev:        &prev,
		RealizedPnl: &pnl,
		At:          testTime,
	}

	mock.ExpectExec("INSERT INTO position_events").
		WithArgs(testWallet, "ETH", models.ChangeClosed,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), testTime).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.RecordEvent(context.Background(), &event); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
}

func TestRecentEvents(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{
		"id", "wallet", "coin", "event_type", "prev_size", "new_size", "realized_pnl", "occurred_at",
	}).
		AddRow(2, testWallet, "ETH", models.ChangeClosed, 1.5, nil, 230.5, testTime).
		AddRow(1, testWallet, "ETH", models.ChangeOpened, nil, 1.5, nil, testTime.Add(-time.Hour))

	mock.ExpectQuery("SELECT id, wallet, coin, event_type").
		WithArgs(testWallet, 50).
		WillReturnRows(rows)

	events, err := repo.RecentEvents(context.Background(), testWallet, 0)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("ожидали 2 события, получили %d", len(events))
	}

	if events[0].Type != models.ChangeClosed {
		t.Errorf("события должны идти новые первыми, получили %s", events[0].Type)
	}
	if events[0].RealizedPnl == nil || *events[0].RealizedPnl != 230.5 {
		t.Errorf("RealizedPnl: получили %v", events[0].RealizedPnl)
	}
	if events[1].NewSize == nil || *events[1].NewSize != 1.5 {
		t.Errorf("NewSize: получили %v", events[1].NewSize)
	}
}

func TestLastReconciledAt_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT last_reconciled_at FROM wallet_state WHERE wallet = $1`)).
		WithArgs(testWallet).
		WillReturnRows(sqlmock.NewRows([]string{"last_reconciled_at"}))

	_, err := repo.LastReconciledAt(context.Background(), testWallet)
	if !errors.Is(err, ErrWalletNotFound) {
		t.Errorf("ожидали ErrWalletNotFound, получили %v", err)
	}
}
