package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"hlwatch/internal/models"
	"hlwatch/pkg/utils"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	err   error
	delay time.Duration
}

func (f *fakeSender) SendHTML(ctx context.Context, text string) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeSender) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

type fakeJournal struct {
	mu     sync.Mutex
	events []models.PositionChangeEvent
	err    error
}

func (f *fakeJournal) RecordEvent(ctx context.Context, e *models.PositionChangeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, *e)
	return nil
}

func event(coin, typ string) models.PositionChangeEvent {
	p := testPosition()
	p.Coin = coin
	return models.PositionChangeEvent{
		Wallet: testWallet, Coin: coin, Type: typ,
		New: &p, At: time.Now(),
	}
}

func newTestDispatcher(sender *fakeSender, buffer int) *Dispatcher {
	logger := utils.InitLogger(utils.LogConfig{Level: "error"})
	return NewDispatcher(sender, buffer, logger)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.After(timeout)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("условие не выполнилось за отведенное время")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDispatcher(sender, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Dispatch(event("BTC", models.ChangeOpened))
	d.Dispatch(event("ETH", models.ChangeOpened))
	d.DispatchAlert(models.OperationalAlert{Wallet: testWallet, Kind: models.AlertReconnected})

	waitFor(t, 2*time.Second, func() bool { return len(sender.all()) == 3 })

	sent := sender.all()
	if !strings.Contains(sent[0], "BTC") {
		t.Errorf("первое сообщение должно быть про BTC:\n%s", sent[0])
	}
	if !strings.Contains(sent[1], "ETH") {
		t.Errorf("второе сообщение должно быть про ETH:\n%s", sent[1])
	}
	if !strings.Contains(sent[2], "Connection Restored") {
		t.Errorf("третье сообщение должно быть алертом:\n%s", sent[2])
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	// Потребитель не запущен: очередь емкостью 2 заполняется и
	// дальнейшие Dispatch не блокируют
	sender := &fakeSender{}
	d := newTestDispatcher(sender, 2)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Dispatch(event("ETH", models.ChangeOpened))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch заблокировался на переполненной очереди")
	}
}

func TestDispatcher_JournalAndSendFailureTolerated(t *testing.T) {
	sender := &fakeSender{err: errors.New("telegram down")}
	d := newTestDispatcher(sender, 16)

	journal := &fakeJournal{err: errors.New("db down")}
	d.SetJournal(journal)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(runDone)
	}()

	// Ошибки журнала и доставки не должны ронять потребителя
	d.Dispatch(event("ETH", models.ChangeOpened))
	d.Dispatch(event("BTC", models.ChangeOpened))

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("Run не завершился после отмены контекста")
	}
}

func TestDispatcher_DrainsQueueOnShutdown(t *testing.T) {
	// Уведомления поставлены до запуска, контекст уже отменен:
	// поставленное доставляется перед завершением, а не отбрасывается
	sender := &fakeSender{}
	d := newTestDispatcher(sender, 16)

	d.Dispatch(event("BTC", models.ChangeOpened))
	d.Dispatch(event("ETH", models.ChangeOpened))
	d.DispatchAlert(models.OperationalAlert{Wallet: testWallet, Kind: models.AlertReconnected})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("Run не завершился")
	}

	if got := len(sender.all()); got != 3 {
		t.Errorf("при остановке должны доставиться все поставленные уведомления, получили %d", got)
	}
}

func TestDispatcher_RecordsToJournal(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDispatcher(sender, 16)

	journal := &fakeJournal{}
	d.SetJournal(journal)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Dispatch(event("ETH", models.ChangeOpened))

	waitFor(t, 2*time.Second, func() bool {
		journal.mu.Lock()
		defer journal.mu.Unlock()
		return len(journal.events) == 1
	})

	journal.mu.Lock()
	defer journal.mu.Unlock()
	if journal.events[0].Coin != "ETH" {
		t.Errorf("журнал: получили %+v", journal.events[0])
	}
}
