package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"hlwatch/internal/models"
	"hlwatch/pkg/utils"
)

// Интерфейсы зависимостей движка сверки.
// Определены на стороне потребителя: реализации живут в hyperliquid,
// repository и notify.

// SnapshotProvider - авторитетный источник текущего состояния позиций
type SnapshotProvider interface {
	FetchPositions(ctx context.Context, wallet string) (*models.Snapshot, error)
}

// SnapshotStore - персистентное хранилище последнего известного состояния
type SnapshotStore interface {
	// GetSnapshot возвращает found=false если кошелек еще не наблюдался
	GetSnapshot(ctx context.Context, wallet string) (*models.Snapshot, bool, error)
	PutSnapshot(ctx context.Context, snapshot *models.Snapshot) error
}

// EventSink принимает события для доставки.
// Dispatch обязан быть неблокирующим: очередь с отбрасыванием при
// переполнении, не ожидание.
type EventSink interface {
	Dispatch(event models.PositionChangeEvent)
}

// Reconciler выполняет цикл сверки для одного кошелька.
//
// Назначение:
// Единственное место, где порождаются события изменения позиций.
// Цикл: запросить REST снапшот -> загрузить прошлое состояние ->
// вычислить дифф -> отдать события на доставку -> сохранить новое
// состояние.
//
// Гарантии:
// - Сверки одного кошелька никогда не выполняются параллельно
// - Триггеры, пришедшие во время сверки, сливаются в одну отложенную
// - Состояние сохраняется только после передачи событий на доставку:
//   при падении между этими шагами события породятся повторно
//   (доставка "минимум один раз")
type Reconciler struct {
	wallet   string
	provider SnapshotProvider
	store    SnapshotStore
	sink     EventSink
	logger   *utils.Logger

	// mu гарантирует, что сверки одного кошелька не идут параллельно,
	// даже при прямом вызове Reconcile в обход Run
	mu sync.Mutex

	// trigger емкостью 1: ожидающая сверка уже покрывает все
	// накопившиеся причины, дополнительные триггеры отбрасываются
	trigger chan struct{}
}

// NewReconciler создает движок сверки для кошелька
func NewReconciler(wallet string, provider SnapshotProvider, store SnapshotStore, sink EventSink, logger *utils.Logger) *Reconciler {
	return &Reconciler{
		wallet:   wallet,
		provider: provider,
		store:    store,
		sink:     sink,
		logger:   logger.WithComponent("reconciler").WithWallet(wallet),
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger запрашивает сверку. Неблокирующий: если сверка уже ожидает,
// новый запрос сливается с ней.
func (r *Reconciler) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
		TriggersCoalesced.WithLabelValues(r.wallet).Inc()
	}
}

// Run обрабатывает триггеры до отмены контекста.
// Все сверки выполняются последовательно из этой горутины.
func (r *Reconciler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.trigger:
			if err := r.Reconcile(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				r.logger.Error("сверка не удалась", zap.Error(err))
			}
		}
	}
}

// Reconcile выполняет один цикл сверки.
// Идемпотентна: повторный вызов без изменений на бирже не порождает
// событий и не меняет хранилище содержательно.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()

	next, err := r.provider.FetchPositions(ctx, r.wallet)
	if err != nil {
		RecordReconciliation(r.wallet, "fetch_error", 0)
		return fmt.Errorf("fetch positions: %w", err)
	}

	prev, found, err := r.store.GetSnapshot(ctx, r.wallet)
	if err != nil {
		RecordReconciliation(r.wallet, "store_error", 0)
		return fmt.Errorf("load snapshot: %w", err)
	}

	if !found {
		// Первое наблюдение кошелька: сохраняем состояние молча.
		// Уже открытые позиции не "события", шторм OPENED при каждом
		// старте с чистой базой не нужен.
		if err := r.store.PutSnapshot(ctx, next); err != nil {
			RecordReconciliation(r.wallet, "store_error", 0)
			return fmt.Errorf("seed snapshot: %w", err)
		}
		r.logger.Info("первоначальное состояние сохранено",
			zap.Int("positions", len(next.Positions)))
		RecordReconciliation(r.wallet, "success", time.Since(start).Seconds())
		return nil
	}

	events := Diff(prev, next, time.Now().UTC())
	for _, e := range events {
		r.sink.Dispatch(e)
		RecordPositionEvent(r.wallet, e.Type)
	}

	// Сохранение после передачи на доставку: упавший между этими
	// шагами процесс породит события повторно, но не потеряет их
	if err := r.store.PutSnapshot(ctx, next); err != nil {
		RecordReconciliation(r.wallet, "store_error", 0)
		return fmt.Errorf("persist snapshot: %w", err)
	}

	if len(events) > 0 {
		r.logger.Info("сверка породила события",
			zap.Int("events", len(events)),
			zap.Int("positions", len(next.Positions)))
	} else {
		r.logger.Debug("сверка без изменений",
			zap.Int("positions", len(next.Positions)))
	}

	RecordReconciliation(r.wallet, "success", time.Since(start).Seconds())
	return nil
}
