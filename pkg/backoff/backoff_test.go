package backoff

import (
	"context"
	"testing"
	"time"
)

func TestPolicy_DelayFor_ExponentialLaw(t *testing.T) {
	// Без jitter задержка для попытки N обязана равняться min(Base*2^(N-1), Max)
	p := Policy{
		Base:   5 * time.Second,
		Max:    300 * time.Second,
		Factor: 2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
		{5, 80 * time.Second},
		{6, 160 * time.Second},
		{7, 300 * time.Second}, // 320s срезается капом
		{8, 300 * time.Second},
		{20, 300 * time.Second},
	}

	for _, tt := range tests {
		if got := p.DelayFor(tt.attempt); got != tt.want {
			t.Errorf("попытка %d: ожидали %v, получили %v", tt.attempt, tt.want, got)
		}
	}
}

func TestPolicy_DelayFor_Defaults(t *testing.T) {
	// Нулевая политика не должна давать нулевых или отрицательных задержек
	var p Policy
	if got := p.DelayFor(1); got <= 0 {
		t.Errorf("задержка должна быть положительной, получили %v", got)
	}
	if got := p.DelayFor(0); got != p.DelayFor(1) {
		t.Error("попытка 0 трактуется как попытка 1")
	}
	if got := p.DelayFor(-5); got != p.DelayFor(1) {
		t.Error("отрицательная попытка трактуется как попытка 1")
	}
}

func TestPolicy_DelayFor_Jitter(t *testing.T) {
	p := Policy{
		Base:         10 * time.Second,
		Max:          300 * time.Second,
		Factor:       2.0,
		JitterFactor: 0.1,
	}

	// Jitter ограничен ±10% и капом
	for i := 0; i < 100; i++ {
		d := p.DelayFor(3) // база 40s
		if d < 36*time.Second || d > 44*time.Second {
			t.Fatalf("jitter вышел за пределы ±10%%: %v", d)
		}
	}

	for i := 0; i < 100; i++ {
		if d := p.DelayFor(30); d > p.Max {
			t.Fatalf("задержка превысила кап: %v", d)
		}
	}
}

func TestSleep_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Sleep(ctx, 10*time.Second)
	}()

	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("ожидали context.Canceled, получили %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Sleep не отреагировал на отмену контекста")
	}
}

func TestSleep_ZeroDelay(t *testing.T) {
	if err := Sleep(context.Background(), 0); err != nil {
		t.Errorf("нулевая задержка: неожиданная ошибка %v", err)
	}
}
