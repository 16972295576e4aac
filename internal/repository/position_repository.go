package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hlwatch/internal/models"
)

// Ошибки репозитория позиций
var (
	ErrWalletNotFound = errors.New("wallet not found")
)

// PositionRepository - персистентное состояние наблюдаемых кошельков.
//
// Схема:
// - positions: текущие открытые позиции (wallet, coin) -> позиция
// - wallet_state: факт наблюдения кошелька и время последней сверки.
//   Отдельная таблица нужна, чтобы отличать "кошелек без позиций"
//   от "кошелек еще не наблюдался"
// - position_events: журнал порожденных событий для истории и API
type PositionRepository struct {
	db *sql.DB
}

// NewPositionRepository создает новый экземпляр репозитория
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// EnsureSchema создает таблицы, если их нет
func (r *PositionRepository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS wallet_state (
			wallet             TEXT PRIMARY KEY,
			last_reconciled_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			wallet           TEXT NOT NULL,
			coin             TEXT NOT NULL,
			side             TEXT NOT NULL,
			size             DOUBLE PRECISION NOT NULL,
			entry_price      DOUBLE PRECISION NOT NULL,
			leverage         DOUBLE PRECISION NOT NULL,
			position_value   DOUBLE PRECISION NOT NULL,
			unrealized_pnl   DOUBLE PRECISION NOT NULL,
			return_on_equity DOUBLE PRECISION NOT NULL,
			updated_at       TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (wallet, coin)
		)`,
		`CREATE TABLE IF NOT EXISTS position_events (
			id           BIGSERIAL PRIMARY KEY,
			wallet       TEXT NOT NULL,
			coin         TEXT NOT NULL,
			event_type   TEXT NOT NULL,
			prev_size    DOUBLE PRECISION,
			new_size     DOUBLE PRECISION,
			realized_pnl DOUBLE PRECISION,
			occurred_at  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_position_events_wallet
			ON position_events (wallet, occurred_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// GetSnapshot возвращает последнее сохраненное состояние кошелька.
// found=false означает, что кошелек еще не наблюдался; пустой снапшот
// с found=true означает "наблюдался, открытых позиций нет".
func (r *PositionRepository) GetSnapshot(ctx context.Context, wallet string) (*models.Snapshot, bool, error) {
	var lastReconciled time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT last_reconciled_at FROM wallet_state WHERE wallet = $1`,
		wallet,
	).Scan(&lastReconciled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	query := `
		SELECT wallet, coin, side, size, entry_price, leverage, position_value, unrealized_pnl, return_on_equity, updated_at
		FROM positions
		WHERE wallet = $1`

	rows, err := r.db.QueryContext(ctx, query, wallet)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	snapshot := models.NewSnapshot(wallet)
	snapshot.FetchedAt = lastReconciled
	for rows.Next() {
		var p models.Position
		err := rows.Scan(
			&p.Wallet,
			&p.Coin,
			&p.Side,
			&p.Size,
			&p.EntryPrice,
			&p.Leverage,
			&p.PositionValue,
			&p.UnrealizedPnl,
			&p.ReturnOnEquity,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, false, err
		}
		snapshot.Positions[p.Coin] = p
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	return snapshot, true, nil
}

// PutSnapshot атомарно заменяет состояние кошелька новым снапшотом
func (r *PositionRepository) PutSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM positions WHERE wallet = $1`, snapshot.Wallet); err != nil {
		return err
	}

	insert := `
		INSERT INTO positions (wallet, coin, side, size, entry_price, leverage, position_value, unrealized_pnl, return_on_equity, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	for _, p := range snapshot.Positions {
		_, err := tx.ExecContext(ctx, insert,
			p.Wallet,
			p.Coin,
			p.Side,
			p.Size,
			p.EntryPrice,
			p.Leverage,
			p.PositionValue,
			p.UnrealizedPnl,
			p.ReturnOnEquity,
			p.UpdatedAt,
		)
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallet_state (wallet, last_reconciled_at)
		VALUES ($1, $2)
		ON CONFLICT (wallet) DO UPDATE SET last_reconciled_at = EXCLUDED.last_reconciled_at`,
		snapshot.Wallet, snapshot.FetchedAt,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetPositions возвращает открытые позиции кошелька для API (read-only)
func (r *PositionRepository) GetPositions(ctx context.Context, wallet string) ([]models.Position, error) {
	snapshot, found, err := r.GetSnapshot(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrWalletNotFound
	}

	out := make([]models.Position, 0, len(snapshot.Positions))
	for _, p := range snapshot.Positions {
		out = append(out, p)
	}
	return out, nil
}

// RecordEvent добавляет событие в журнал
func (r *PositionRepository) RecordEvent(ctx context.Context, e *models.PositionChangeEvent) error {
	var prevSize, newSize sql.NullFloat64
	if e.Prev != nil {
		prevSize = sql.NullFloat64{Float64: e.Prev.Size, Valid: true}
	}
	if e.New != nil {
		newSize = sql.NullFloat64{Float64: e.New.Size, Valid: true}
	}
	var realized sql.NullFloat64
	if e.RealizedPnl != nil {
		realized = sql.NullFloat64{Float64: *e.RealizedPnl, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO position_events (wallet, coin, event_type, prev_size, new_size, realized_pnl, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.Wallet, e.Coin, e.Type, prevSize, newSize, realized, e.At,
	)
	return err
}

// EventRecord - запись журнала событий для API истории
type EventRecord struct {
	ID          int64     `json:"id"`
	Wallet      string    `json:"wallet"`
	Coin        string    `json:"coin"`
	Type        string    `json:"type"`
	PrevSize    *float64  `json:"prev_size,omitempty"`
	NewSize     *float64  `json:"new_size,omitempty"`
	RealizedPnl *float64  `json:"realized_pnl,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// RecentEvents возвращает последние события кошелька, новые первыми
func (r *PositionRepository) RecentEvents(ctx context.Context, wallet string, limit int) ([]EventRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, wallet, coin, event_type, prev_size, new_size, realized_pnl, occurred_at
		FROM position_events
		WHERE wallet = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2`,
		wallet, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var rec EventRecord
		var prevSize, newSize, realized sql.NullFloat64
		err := rows.Scan(&rec.ID, &rec.Wallet, &rec.Coin, &rec.Type, &prevSize, &newSize, &realized, &rec.OccurredAt)
		if err != nil {
			return nil, err
		}
		if prevSize.Valid {
			rec.PrevSize = &prevSize.Float64
		}
		if newSize.Valid {
			rec.NewSize = &newSize.Float64
		}
		if realized.Valid {
			rec.RealizedPnl = &realized.Float64
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LastReconciledAt возвращает время последней сверки кошелька
func (r *PositionRepository) LastReconciledAt(ctx context.Context, wallet string) (time.Time, error) {
	var t time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT last_reconciled_at FROM wallet_state WHERE wallet = $1`, wallet,
	).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrWalletNotFound
	}
	return t, err
}
