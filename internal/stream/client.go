package stream

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"hlwatch/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client устанавливает WebSocket соединения с биржей.
//
// Назначение:
// Поток userEvents служит только триггером: "у кошелька что-то произошло".
// Актуальное состояние позиций всегда перечитывается через REST, поэтому
// потеря отдельного сообщения не теряет данные, а лишь откладывает сверку.
//
// Жизненный цикл соединения:
// 1. Connect выполняет dial, подписку и ждет подтверждения, возвращает Conn
// 2. Conn.Run блокирует до разрыва или отмены контекста
// 3. Переподключением с backoff управляет вызывающий (пайплайн кошелька)
type Client struct {
	wsURL          string
	connectTimeout time.Duration
	pingInterval   time.Duration
	logger         *utils.Logger
}

// NewClient создает клиент WebSocket потока
func NewClient(wsURL string, connectTimeout, pingInterval time.Duration, logger *utils.Logger) *Client {
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 50 * time.Second
	}
	return &Client{
		wsURL:          wsURL,
		connectTimeout: connectTimeout,
		pingInterval:   pingInterval,
		logger:         logger.WithComponent("stream"),
	}
}

// ConnectError - ошибка установки соединения или подписки
type ConnectError struct {
	Wallet string
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("stream connect %s: %v", e.Wallet, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Conn - одно установленное и подписанное соединение для кошелька
type Conn struct {
	wallet       string
	ws           *websocket.Conn
	pingInterval time.Duration
	logger       *utils.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Connect выполняет dial, отправляет подписку userEvents и ждет
// подтверждения. Ошибка на любом шаге закрывает соединение:
// полуподписанных соединений нет.
func (c *Client) Connect(ctx context.Context, wallet string) (*Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.connectTimeout,
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	ws, resp, err := dialer.DialContext(dialCtx, c.wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, &ConnectError{Wallet: wallet, Err: fmt.Errorf("dial (status %d): %w", resp.StatusCode, err)}
		}
		return nil, &ConnectError{Wallet: wallet, Err: fmt.Errorf("dial: %w", err)}
	}
	if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
		ws.Close()
		return nil, &ConnectError{Wallet: wallet, Err: fmt.Errorf("unexpected handshake status %d", resp.StatusCode)}
	}

	conn := &Conn{
		wallet:       wallet,
		ws:           ws,
		pingInterval: c.pingInterval,
		logger:       c.logger.WithWallet(wallet),
	}

	if err := conn.writeJSON(newSubscribe(wallet)); err != nil {
		ws.Close()
		return nil, &ConnectError{Wallet: wallet, Err: fmt.Errorf("subscribe: %w", err)}
	}

	if err := conn.awaitSubscriptionAck(c.connectTimeout); err != nil {
		ws.Close()
		return nil, &ConnectError{Wallet: wallet, Err: err}
	}

	conn.logger.Info("WebSocket подключен, подписка userEvents подтверждена")
	return conn, nil
}

// awaitSubscriptionAck читает кадры до подтверждения подписки.
// Отказ биржи или тишина дольше timeout - ошибка: соединение без
// подтвержденной подписки бесполезно как источник триггеров.
func (c *Conn) awaitSubscriptionAck(timeout time.Duration) error {
	if err := c.ws.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("set read deadline: %w", err)
	}

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("await subscription ack: %w", err)
		}

		var msg ackMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("не удалось разобрать сообщение", zap.Error(err))
			continue
		}

		switch msg.Channel {
		case "subscriptionResponse":
			return nil
		case "error":
			var detail string
			_ = json.Unmarshal(msg.Data, &detail)
			return fmt.Errorf("subscription rejected: %s", detail)
		}
		// pong и прочий трафик до подтверждения пропускаем
	}
}

// Run читает сообщения до разрыва соединения или отмены контекста.
// onTrigger вызывается при каждом userEvents с fills; вызовы идут
// последовательно из одной горутины.
//
// Живость: read deadline = 2x интервал ping. Любой входящий трафик
// (включая pong) продлевает deadline; тишина дольше порога означает
// мертвое соединение и завершает Run с ошибкой.
func (c *Conn) Run(ctx context.Context, onTrigger func()) error {
	done := make(chan struct{})
	defer close(done)

	// ping-горутина: прикладной ping по протоколу биржи
	go c.pingLoop(ctx, done)

	// отмена контекста снимает блокировку ReadMessage через Close
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-done:
		}
	}()

	readTimeout := 2 * c.pingInterval

	for {
		if err := c.ws.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}

		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Неизвестный формат не повод рвать соединение
			c.logger.Warn("не удалось разобрать сообщение", zap.Error(err))
			continue
		}

		switch msg.Channel {
		case "pong", "subscriptionResponse":
			// служебные сообщения, трафик уже продлил deadline
		case "userEvents":
			if len(msg.Data.Fills) > 0 || msg.Data.Liquidation != nil {
				c.logger.Debug("получен userEvents", zap.Int("fills", len(msg.Data.Fills)))
				onTrigger()
			}
		default:
			c.logger.Debug("сообщение неизвестного канала", zap.String("channel", msg.Channel))
		}
	}
}

// pingLoop отправляет прикладной ping каждые pingInterval
func (c *Conn) pingLoop(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := c.writeJSON(pingRequest{Method: "ping"}); err != nil {
				c.logger.Warn("ошибка отправки ping", zap.Error(err))
				// Разрыв обнаружит читающая горутина по deadline
				return
			}
		}
	}
}

// writeJSON сериализует и отправляет сообщение под мьютексом записи
func (c *Conn) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close отправляет отписку (best effort) и закрывает соединение.
// Повторные вызовы безопасны.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.writeJSON(newUnsubscribe(c.wallet))

		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()

		err = c.ws.Close()
	})
	return err
}
