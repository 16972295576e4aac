package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"hlwatch/pkg/utils"
)

// Coordinator управляет пайплайнами всех отслеживаемых кошельков.
//
// Назначение:
// - Запускает по пайплайну на кошелек, каждый в своей горутине
// - Изолирует сбои: паника одного пайплайна не роняет остальные,
//   упавший пайплайн перезапускается после паузы
// - Graceful shutdown: отмена контекста останавливает все пайплайны,
//   Run возвращается после завершения каждого
type Coordinator struct {
	pipelines []*Pipeline
	logger    *utils.Logger

	// Пауза перед перезапуском пайплайна после паники
	restartDelay time.Duration
}

// NewCoordinator создает координатор для набора пайплайнов
func NewCoordinator(pipelines []*Pipeline, logger *utils.Logger) *Coordinator {
	return &Coordinator{
		pipelines:    pipelines,
		logger:       logger.WithComponent("coordinator"),
		restartDelay: 5 * time.Second,
	}
}

// Run запускает все пайплайны и блокирует до отмены контекста
func (c *Coordinator) Run(ctx context.Context) {
	c.logger.Info("запуск мониторинга", zap.Int("wallets", len(c.pipelines)))

	var wg sync.WaitGroup
	for _, p := range c.pipelines {
		wg.Add(1)
		go func(p *Pipeline) {
			defer wg.Done()
			c.supervise(ctx, p)
		}(p)
	}

	wg.Wait()
	c.logger.Info("мониторинг остановлен")
}

// supervise выполняет пайплайн, перезапуская его после паники
func (c *Coordinator) supervise(ctx context.Context, p *Pipeline) {
	logger := c.logger.WithWallet(p.Wallet())

	for ctx.Err() == nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("паника пайплайна", zap.Any("panic", r), zap.Stack("stack"))
				}
			}()
			p.Run(ctx)
		}()

		if ctx.Err() != nil {
			return
		}

		logger.Warn("пайплайн завершился, перезапуск",
			zap.Duration("delay", c.restartDelay))
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.restartDelay):
		}
	}
}

// WalletStatus - состояние пайплайна для API статуса
type WalletStatus struct {
	Wallet string `json:"wallet"`
	State  string `json:"state"`
	Info   string `json:"info"`
}

// Status возвращает состояния всех пайплайнов
func (c *Coordinator) Status() []WalletStatus {
	out := make([]WalletStatus, 0, len(c.pipelines))
	for _, p := range c.pipelines {
		s := p.State()
		out = append(out, WalletStatus{
			Wallet: p.Wallet(),
			State:  s,
			Info:   StateInfo(s),
		})
	}
	return out
}

// Healthy возвращает true если все пайплайны в рабочем состоянии
func (c *Coordinator) Healthy() bool {
	for _, p := range c.pipelines {
		if !IsHealthy(p.State()) {
			return false
		}
	}
	return true
}
