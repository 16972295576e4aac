package websocket

import (
	"time"

	"hlwatch/internal/models"
)

// MessageType определяет тип WebSocket сообщения для подписчиков
type MessageType string

// Типы исходящих сообщений
const (
	// MessageTypePositionEvent - изменение позиции отслеживаемого кошелька
	MessageTypePositionEvent MessageType = "positionEvent"

	// MessageTypeOperationalAlert - состояние соединения с биржей
	MessageTypeOperationalAlert MessageType = "operationalAlert"

	// MessageTypeStatusUpdate - состояния пайплайнов всех кошельков
	MessageTypeStatusUpdate MessageType = "statusUpdate"
)

// BaseMessage - общая часть всех сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// PositionEventMessage - событие изменения позиции
type PositionEventMessage struct {
	BaseMessage
	Data *models.PositionChangeEvent `json:"data"`
}

// OperationalAlertMessage - операционный алерт соединения
type OperationalAlertMessage struct {
	BaseMessage
	Data *models.OperationalAlert `json:"data"`
}

// StatusUpdateMessage - сводка состояний пайплайнов
type StatusUpdateMessage struct {
	BaseMessage
	Data interface{} `json:"data"`
}

// NewPositionEventMessage создает сообщение о событии позиции
func NewPositionEventMessage(e *models.PositionChangeEvent) *PositionEventMessage {
	return &PositionEventMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypePositionEvent,
			Timestamp: time.Now().UTC(),
		},
		Data: e,
	}
}

// NewOperationalAlertMessage создает сообщение об операционном алерте
func NewOperationalAlertMessage(a *models.OperationalAlert) *OperationalAlertMessage {
	return &OperationalAlertMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeOperationalAlert,
			Timestamp: time.Now().UTC(),
		},
		Data: a,
	}
}

// NewStatusUpdateMessage создает сообщение со сводкой состояний
func NewStatusUpdateMessage(status interface{}) *StatusUpdateMessage {
	return &StatusUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeStatusUpdate,
			Timestamp: time.Now().UTC(),
		},
		Data: status,
	}
}
