package models

import "time"

// Типы изменения позиции
const (
	ChangeOpened          = "OPENED"
	ChangeClosed          = "CLOSED"
	ChangeIncreased       = "INCREASED"
	ChangeDecreased       = "DECREASED"
	ChangeLeverageChanged = "LEVERAGE_CHANGED"
)

// PositionChangeEvent - неизменяемая запись о переходе состояния позиции.
// Создается движком сверки и после создания не модифицируется.
//
// Заполнение полей по типам:
// - OPENED: New
// - CLOSED: Prev, опционально RealizedPnl (оценка)
// - INCREASED, DECREASED, LEVERAGE_CHANGED: Prev и New
type PositionChangeEvent struct {
	Wallet      string    `json:"wallet"`
	Coin        string    `json:"coin"`
	Type        string    `json:"type"`
	Prev        *Position `json:"prev,omitempty"`
	New         *Position `json:"new,omitempty"`
	RealizedPnl *float64  `json:"realized_pnl,omitempty"`
	At          time.Time `json:"at"`
}

// Виды операционных алертов
const (
	AlertDisconnected = "DISCONNECTED"
	AlertReconnecting = "RECONNECTING"
	AlertReconnected  = "RECONNECTED"
)

// OperationalAlert - служебное уведомление о состоянии соединения кошелька.
// Отдельная категория от событий позиций: форматируется и доставляется иначе.
type OperationalAlert struct {
	Wallet       string        `json:"wallet"`
	Kind         string        `json:"kind"`
	Detail       string        `json:"detail,omitempty"`
	RetryAttempt int           `json:"retry_attempt,omitempty"`
	NextRetryIn  time.Duration `json:"next_retry_in,omitempty"`
	At           time.Time     `json:"at"`
}
