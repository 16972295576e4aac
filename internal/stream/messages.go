package stream

import jsoniter "github.com/json-iterator/go"

// Wire-сообщения WebSocket API HyperLiquid.

// subscribeRequest - подписка/отписка на канал
type subscribeRequest struct {
	Method       string       `json:"method"` // subscribe / unsubscribe
	Subscription subscription `json:"subscription"`
}

// subscription описывает канал userEvents для конкретного кошелька
type subscription struct {
	Type string `json:"type"`
	User string `json:"user"`
}

// pingRequest - прикладной ping, поверх WebSocket-фреймов
type pingRequest struct {
	Method string `json:"method"` // ping
}

// ackMessage - ответ на подписку: subscriptionResponse либо error
// с текстом причины в data
type ackMessage struct {
	Channel string              `json:"channel"`
	Data    jsoniter.RawMessage `json:"data,omitempty"`
}

// inboundMessage - общий конверт входящих сообщений.
// Channel определяет тип: pong, subscriptionResponse, userEvents.
type inboundMessage struct {
	Channel string           `json:"channel"`
	Data    userEventPayload `json:"data,omitempty"`
}

// userEventPayload - полезная нагрузка userEvents.
// Содержимое fills не интерпретируется: факт их наличия служит
// сигналом перечитать состояние через REST.
type userEventPayload struct {
	Fills       []fillStub `json:"fills,omitempty"`
	Liquidation *struct{}  `json:"liquidation,omitempty"`
}

// fillStub - минимальная проекция fill, только для подсчета
type fillStub struct {
	Coin string `json:"coin"`
	Oid  int64  `json:"oid"`
}

func newSubscribe(wallet string) subscribeRequest {
	return subscribeRequest{
		Method:       "subscribe",
		Subscription: subscription{Type: "userEvents", User: wallet},
	}
}

func newUnsubscribe(wallet string) subscribeRequest {
	return subscribeRequest{
		Method:       "unsubscribe",
		Subscription: subscription{Type: "userEvents", User: wallet},
	}
}
