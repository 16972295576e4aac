package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"hlwatch/internal/models"
	"hlwatch/internal/stream"
	"hlwatch/pkg/backoff"
	"hlwatch/pkg/utils"
)

// AlertSink принимает операционные алерты о состоянии соединения
type AlertSink interface {
	DispatchAlert(alert models.OperationalAlert)
}

// PipelineConfig - настройки пайплайна кошелька
type PipelineConfig struct {
	// Политика задержек переподключения
	Backoff backoff.Policy

	// Пауза между fill-сигналом и опросом REST: бирже нужно время
	// применить состояние
	SettleDelay time.Duration

	// Интервал страховочного опроса, работающего независимо от WebSocket
	SafetyPollInterval time.Duration
}

// Pipeline - полный цикл мониторинга одного кошелька.
//
// Назначение:
// Связывает поток userEvents, движок сверки и доставку алертов.
//
// Функции:
// - Держит WebSocket соединение, переподключаясь с exponential backoff
//   без лимита попыток
// - После каждого (пере)подключения выполняет сверку: разрыв мог
//   скрыть события
// - Страховочный периодический опрос ловит пропуски даже при живом
//   соединении
// - Операционные алерты уходят только со второй попытки переподключения:
//   быстрое восстановление проходит молча, восстановление объявляется
//   лишь после объявленной проблемы
type Pipeline struct {
	wallet     string
	stream     *stream.Client
	reconciler *Reconciler
	alerts     AlertSink
	cfg        PipelineConfig
	logger     *utils.Logger

	stateMu sync.RWMutex
	state   string
}

// NewPipeline создает пайплайн кошелька
func NewPipeline(wallet string, streamClient *stream.Client, reconciler *Reconciler, alerts AlertSink, cfg PipelineConfig, logger *utils.Logger) *Pipeline {
	p := &Pipeline{
		wallet:     wallet,
		stream:     streamClient,
		reconciler: reconciler,
		alerts:     alerts,
		cfg:        cfg,
		logger:     logger.WithComponent("pipeline").WithWallet(wallet),
		state:      StateStarting,
	}
	SetPipelineState(wallet, StateStarting)
	return p
}

// Wallet возвращает адрес отслеживаемого кошелька
func (p *Pipeline) Wallet() string {
	return p.wallet
}

// State возвращает текущее состояние пайплайна
func (p *Pipeline) State() string {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state
}

// setState переводит пайплайн в новое состояние с проверкой допустимости
func (p *Pipeline) setState(to string) {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	if p.state == to {
		return
	}
	if !CanTransition(p.state, to) {
		p.logger.Warn("недопустимый переход состояния",
			zap.String("from", p.state), zap.String("to", to))
		return
	}

	p.logger.Info("переход состояния",
		zap.String("from", p.state), zap.String("to", to))
	p.state = to
	SetPipelineState(p.wallet, to)
}

// Run выполняет пайплайн до отмены контекста.
// Возвращает ошибку контекста; все остальные сбои обрабатываются
// внутри переподключением.
func (p *Pipeline) Run(ctx context.Context) error {
	p.resetState()
	defer p.setState(StateStopped)

	// Горутины живут не дольше этого Run: при перезапуске после паники
	// старые не должны остаться висеть на родительском контексте
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	go p.reconciler.Run(runCtx)
	go p.safetyPollLoop(runCtx)

	attempt := 0
	alerted := false
	var pendingDisconnect *models.OperationalAlert
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := p.stream.Connect(ctx, p.wallet)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			attempt++
			RecordReconnect(p.wallet)
			delay := p.cfg.Backoff.DelayFor(attempt)

			p.logger.Warn("подключение не удалось",
				zap.Error(err), zap.Int("attempt", attempt), zap.Duration("next_retry_in", delay))

			// Первый сбой нормален и шумит только в лог; со второй
			// попытки уходит отложенный алерт о разрыве и алерт о
			// попытке
			if attempt >= 2 {
				if pendingDisconnect != nil {
					p.alerts.DispatchAlert(*pendingDisconnect)
					pendingDisconnect = nil
				}
				p.alerts.DispatchAlert(models.OperationalAlert{
					Wallet:       p.wallet,
					Kind:         models.AlertReconnecting,
					Detail:       err.Error(),
					RetryAttempt: attempt,
					NextRetryIn:  delay,
					At:           time.Now().UTC(),
				})
				alerted = true
			}

			p.setState(StateReconnecting)
			if err := backoff.Sleep(ctx, delay); err != nil {
				return err
			}
			continue
		}

		// Восстановление объявляется только если о проблеме уже сообщили
		pendingDisconnect = nil
		if alerted {
			p.alerts.DispatchAlert(models.OperationalAlert{
				Wallet: p.wallet,
				Kind:   models.AlertReconnected,
				At:     time.Now().UTC(),
			})
			alerted = false
		}
		attempt = 0

		// Разрыв мог скрыть события: сверяем состояние до перехода в LIVE
		p.setState(StateCatchingUp)
		if err := p.reconciler.Reconcile(ctx); err != nil && ctx.Err() == nil {
			// Сверка повторится по страховочному опросу или следующему fill
			p.logger.Error("сверка после подключения не удалась", zap.Error(err))
		}
		p.setState(StateLive)

		runErr := conn.Run(ctx, p.onFill)
		conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}

		p.logger.Warn("соединение потеряно", zap.Error(runErr))
		// Алерт о разрыве откладывается: если переподключение удастся
		// с первой попытки, шуметь не о чем
		pendingDisconnect = &models.OperationalAlert{
			Wallet: p.wallet,
			Kind:   models.AlertDisconnected,
			Detail: runErr.Error(),
			At:     time.Now().UTC(),
		}
		p.setState(StateReconnecting)
	}
}

// resetState возвращает пайплайн в STARTING в обход таблицы переходов:
// координатор перезапускает Run после паники, когда состояние уже STOPPED
func (p *Pipeline) resetState() {
	p.stateMu.Lock()
	p.state = StateStarting
	p.stateMu.Unlock()
	SetPipelineState(p.wallet, StateStarting)
}

// onFill планирует сверку после паузы settle.
// Шквал fills сливается механизмом триггеров в одну сверку.
func (p *Pipeline) onFill() {
	if p.cfg.SettleDelay <= 0 {
		p.reconciler.Trigger()
		return
	}
	time.AfterFunc(p.cfg.SettleDelay, p.reconciler.Trigger)
}

// safetyPollLoop периодически запрашивает сверку независимо от WebSocket
func (p *Pipeline) safetyPollLoop(ctx context.Context) {
	if p.cfg.SafetyPollInterval <= 0 {
		return
	}

	ticker := time.NewTicker(p.cfg.SafetyPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.logger.Debug("страховочный опрос")
			p.reconciler.Trigger()
		}
	}
}
