package backoff

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy - политика экспоненциальных задержек между попытками переподключения
//
// Задержка для попытки N (начиная с 1):
// delay = min(Base * Factor^(N-1), Max) + jitter
//
// Jitter добавляет случайность чтобы избежать "thundering herd"
// когда несколько кошельков переподключаются одновременно.
//
// Количество попыток не ограничивается: монитор никогда не сдается,
// лимит задает только верхнюю границу задержки.
type Policy struct {
	// Base - начальная задержка (попытка 1)
	Base time.Duration

	// Max - максимальная задержка после экспоненциального роста
	Max time.Duration

	// Factor - множитель роста. 0 трактуется как 2.0
	Factor float64

	// JitterFactor - доля случайной вариации (0.0 - 1.0).
	// 0 = детерминированные задержки
	JitterFactor float64
}

// Default возвращает политику по умолчанию: 5s, 10s, 20s, ... до 5 минут
func Default() Policy {
	return Policy{
		Base:         5 * time.Second,
		Max:          5 * time.Minute,
		Factor:       2.0,
		JitterFactor: 0.1,
	}
}

// DelayFor возвращает задержку перед попыткой attempt (нумерация с 1).
// Для attempt <= 1 возвращает Base.
func (p Policy) DelayFor(attempt int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = time.Second
	}
	max := p.Max
	if max <= 0 {
		max = 5 * time.Minute
	}
	factor := p.Factor
	if factor <= 0 {
		factor = 2.0
	}

	if attempt < 1 {
		attempt = 1
	}

	delay := float64(base) * math.Pow(factor, float64(attempt-1))
	if delay > float64(max) {
		delay = float64(max)
	}

	if p.JitterFactor > 0 {
		jitter := delay * p.JitterFactor * (rand.Float64()*2 - 1)
		delay += jitter
		if delay < 0 {
			delay = 0
		}
		if delay > float64(max) {
			delay = float64(max)
		}
	}

	return time.Duration(delay)
}

// Sleep ждет указанную задержку с возможностью отмены через контекст.
// Возвращает ctx.Err() если контекст отменен раньше.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
