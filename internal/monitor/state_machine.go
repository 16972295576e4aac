package monitor

// Состояния пайплайна кошелька
const (
	StateStarting     = "STARTING"     // первоначальная сверка еще не выполнена
	StateCatchingUp   = "CATCHING_UP"  // соединение есть, идет сверка состояния
	StateLive         = "LIVE"         // подписка активна, состояние сверено
	StateReconnecting = "RECONNECTING" // соединение потеряно, идут попытки
	StateStopped      = "STOPPED"      // пайплайн остановлен, терминальное
)

// ValidTransitions определяет допустимые переходы между состояниями
var ValidTransitions = map[string][]string{
	StateStarting:     {StateCatchingUp, StateReconnecting, StateStopped},
	StateCatchingUp:   {StateLive, StateReconnecting, StateStopped},
	StateLive:         {StateCatchingUp, StateReconnecting, StateStopped},
	StateReconnecting: {StateCatchingUp, StateStopped},
	StateStopped:      {}, // терминальное
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StateInfo возвращает описание состояния для API статуса
func StateInfo(s string) string {
	switch s {
	case StateStarting:
		return "Запуск, первоначальная сверка не выполнена"
	case StateCatchingUp:
		return "Сверка состояния позиций..."
	case StateLive:
		return "Мониторинг активен"
	case StateReconnecting:
		return "Соединение потеряно, переподключение..."
	case StateStopped:
		return "Мониторинг остановлен"
	default:
		return "Неизвестное состояние"
	}
}

// IsHealthy возвращает true если пайплайн в рабочем состоянии
func IsHealthy(s string) bool {
	return s == StateLive || s == StateCatchingUp
}
