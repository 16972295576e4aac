package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"hlwatch/internal/models"
	"hlwatch/internal/monitor"
	"hlwatch/pkg/utils"
)

// Sender доставляет готовое HTML-сообщение получателю
type Sender interface {
	SendHTML(ctx context.Context, text string) error
}

// EventJournal записывает события в журнал. Опционален.
type EventJournal interface {
	RecordEvent(ctx context.Context, e *models.PositionChangeEvent) error
}

// Broadcaster рассылает события live-подписчикам (WebSocket hub). Опционален.
type Broadcaster interface {
	BroadcastEvent(e *models.PositionChangeEvent)
	BroadcastAlert(a *models.OperationalAlert)
}

// queueItem - элемент очереди: событие либо алерт
type queueItem struct {
	event *models.PositionChangeEvent
	alert *models.OperationalAlert
}

// Dispatcher - единая очередь доставки уведомлений.
//
// Назначение:
// Развязывает движок сверки и медленную доставку (Telegram API).
// Dispatch не блокирует вызывающего: при переполнении очереди
// уведомление отбрасывается с логом и метрикой. Сверка важнее
// доставки каждого сообщения: состояние все равно сохранено, а
// пропавшее уведомление не рассинхронизирует позиции.
//
// Порядок: события одного кошелька доставляются в порядке постановки,
// очередь одна и потребитель один.
type Dispatcher struct {
	sender    Sender
	journal   EventJournal
	broadcast Broadcaster
	logger    *utils.Logger

	queue chan queueItem

	startOnce sync.Once
	done      chan struct{}
}

// NewDispatcher создает диспетчер с очередью заданного размера
func NewDispatcher(sender Sender, buffer int, logger *utils.Logger) *Dispatcher {
	if buffer < 1 {
		buffer = 256
	}
	return &Dispatcher{
		sender: sender,
		logger: logger.WithComponent("dispatcher"),
		queue:  make(chan queueItem, buffer),
		done:   make(chan struct{}),
	}
}

// SetJournal подключает журнал событий
func (d *Dispatcher) SetJournal(j EventJournal) {
	d.journal = j
}

// SetBroadcaster подключает live-рассылку
func (d *Dispatcher) SetBroadcaster(b Broadcaster) {
	d.broadcast = b
}

// Dispatch ставит событие позиции в очередь доставки. Неблокирующий.
func (d *Dispatcher) Dispatch(event models.PositionChangeEvent) {
	select {
	case d.queue <- queueItem{event: &event}:
	default:
		monitor.NotificationsDropped.WithLabelValues("position_event").Inc()
		d.logger.Warn("очередь доставки переполнена, событие отброшено",
			zap.String("wallet", event.Wallet),
			zap.String("coin", event.Coin),
			zap.String("type", event.Type))
	}
}

// DispatchAlert ставит операционный алерт в очередь доставки. Неблокирующий.
func (d *Dispatcher) DispatchAlert(alert models.OperationalAlert) {
	select {
	case d.queue <- queueItem{alert: &alert}:
	default:
		monitor.NotificationsDropped.WithLabelValues("operational_alert").Inc()
		d.logger.Warn("очередь доставки переполнена, алерт отброшен",
			zap.String("wallet", alert.Wallet),
			zap.String("kind", alert.Kind))
	}
}

// drainTimeout ограничивает дочитывание очереди при остановке
const drainTimeout = 10 * time.Second

// Run потребляет очередь до отмены контекста, затем дочитывает уже
// поставленные уведомления. Единственный потребитель: порядок доставки
// совпадает с порядком постановки.
func (d *Dispatcher) Run(ctx context.Context) {
	d.startOnce.Do(func() {
		defer close(d.done)
		for {
			select {
			case <-ctx.Done():
				d.drain()
				return
			case item := <-d.queue:
				d.deliver(ctx, item)
			}
		}
	})
}

// drain доставляет оставшиеся в очереди уведомления перед завершением.
// Новые не принимаются: очередь читается без блокировки до опустошения
// или истечения drainTimeout.
func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case item := <-d.queue:
			d.deliver(ctx, item)
		default:
			return
		}
	}
}

// Done закрывается после завершения Run
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) deliver(ctx context.Context, item queueItem) {
	switch {
	case item.event != nil:
		e := item.event

		if d.journal != nil {
			if err := d.journal.RecordEvent(ctx, e); err != nil {
				d.logger.Warn("не удалось записать событие в журнал", zap.Error(err))
			}
		}
		if d.broadcast != nil {
			d.broadcast.BroadcastEvent(e)
		}

		if err := d.sender.SendHTML(ctx, FormatEvent(e)); err != nil {
			d.logger.Error("доставка события не удалась",
				zap.Error(err),
				zap.String("wallet", e.Wallet),
				zap.String("type", e.Type))
			return
		}
		monitor.NotificationsSent.WithLabelValues("position_event").Inc()

	case item.alert != nil:
		a := item.alert

		if d.broadcast != nil {
			d.broadcast.BroadcastAlert(a)
		}

		if err := d.sender.SendHTML(ctx, FormatAlert(a)); err != nil {
			d.logger.Error("доставка алерта не удалась",
				zap.Error(err),
				zap.String("wallet", a.Wallet),
				zap.String("kind", a.Kind))
			return
		}
		monitor.NotificationsSent.WithLabelValues("operational_alert").Inc()
	}
}
