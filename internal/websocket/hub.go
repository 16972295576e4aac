package websocket

import (
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"hlwatch/internal/models"
	"hlwatch/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Hub управляет всеми активными WebSocket подписчиками.
//
// Назначение:
// Рассылает события позиций и алерты подключенным клиентам в реальном
// времени. Подписчики пассивны: сервер только отправляет, команды от
// клиентов не принимаются.
//
// Функции:
// - Регистрация и отключение клиентов
// - Broadcast событий позиций, алертов и статусов пайплайнов
// - Медленные клиенты (переполненный буфер отправки) отключаются:
//   рассылка не должна ждать ни одного подписчика
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	logger     *utils.Logger
}

// NewHub создает новый Hub
func NewHub(logger *utils.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.WithComponent("ws_hub"),
	}
}

// Run запускает главный цикл Hub. Запускать в отдельной горутине.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.logger.Info("подписчик подключен", zap.Int("total", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.logger.Info("подписчик отключен", zap.Int("total", len(h.clients)))

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Клиент не успевает: отключаем, не ждем
					delete(h.clients, client)
					close(client.send)
					h.logger.Warn("медленный подписчик отключен", zap.Int("total", len(h.clients)))
				}
			}
		}
	}
}

// Broadcast сериализует и рассылает сообщение всем подписчикам
func (h *Hub) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("сериализация broadcast не удалась", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("очередь broadcast переполнена, сообщение отброшено")
	}
}

// BroadcastEvent рассылает событие изменения позиции
func (h *Hub) BroadcastEvent(e *models.PositionChangeEvent) {
	h.Broadcast(NewPositionEventMessage(e))
}

// BroadcastAlert рассылает операционный алерт
func (h *Hub) BroadcastAlert(a *models.OperationalAlert) {
	h.Broadcast(NewOperationalAlertMessage(a))
}

// BroadcastStatus рассылает сводку состояний пайплайнов
func (h *Hub) BroadcastStatus(status interface{}) {
	h.Broadcast(NewStatusUpdateMessage(status))
}
