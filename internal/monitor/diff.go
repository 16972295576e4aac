package monitor

import (
	"sort"
	"time"

	"hlwatch/internal/models"
)

// diff.go - чистое вычисление изменений между снапшотами позиций
//
// Назначение:
// Сравнивает предыдущий и новый снапшоты и порождает события переходов.
// Функция детерминирована и не имеет побочных эффектов: одинаковые входы
// всегда дают одинаковый список событий.
//
// Правила:
// - Монета только в новом снапшоте: OPENED
// - Монета только в старом: CLOSED (RealizedPnl - оценка из последнего
//   известного нереализованного PnL)
// - Смена стороны LONG<->SHORT: CLOSED + OPENED, закрытие первым
// - Изменение размера при той же стороне: INCREASED / DECREASED
// - Изменение только плеча: LEVERAGE_CHANGED
// - Изменение и размера и плеча: событие размера (новое плечо видно в New)
// - Изменился только PnL / стоимость позиции: событий нет

// Diff возвращает события перехода от prev к next.
// События упорядочены по монете лексикографически; для смены стороны
// CLOSED предшествует OPENED той же монеты.
func Diff(prev, next *models.Snapshot, at time.Time) []models.PositionChangeEvent {
	coins := make(map[string]struct{}, len(prev.Positions)+len(next.Positions))
	for coin := range prev.Positions {
		coins[coin] = struct{}{}
	}
	for coin := range next.Positions {
		coins[coin] = struct{}{}
	}

	ordered := make([]string, 0, len(coins))
	for coin := range coins {
		ordered = append(ordered, coin)
	}
	sort.Strings(ordered)

	var events []models.PositionChangeEvent
	for _, coin := range ordered {
		p, hadPrev := prev.Positions[coin]
		n, hasNext := next.Positions[coin]

		switch {
		case !hadPrev && hasNext:
			events = append(events, opened(&n, at))

		case hadPrev && !hasNext:
			events = append(events, closed(&p, at))

		case p.Side != n.Side:
			// Разворот позиции: старая закрыта, новая открыта
			events = append(events, closed(&p, at), opened(&n, at))

		case p.Size != n.Size:
			typ := models.ChangeIncreased
			if n.Size < p.Size {
				typ = models.ChangeDecreased
			}
			events = append(events, change(typ, &p, &n, at))

		case p.Leverage != n.Leverage:
			events = append(events, change(models.ChangeLeverageChanged, &p, &n, at))
		}
	}

	return events
}

func opened(n *models.Position, at time.Time) models.PositionChangeEvent {
	pos := *n
	return models.PositionChangeEvent{
		Wallet: n.Wallet,
		Coin:   n.Coin,
		Type:   models.ChangeOpened,
		New:    &pos,
		At:     at,
	}
}

func closed(p *models.Position, at time.Time) models.PositionChangeEvent {
	pos := *p
	// Реализованный PnL недоступен из снапшота; последняя известная
	// нереализованная величина служит оценкой результата сделки
	pnl := p.UnrealizedPnl
	return models.PositionChangeEvent{
		Wallet:      p.Wallet,
		Coin:        p.Coin,
		Type:        models.ChangeClosed,
		Prev:        &pos,
		RealizedPnl: &pnl,
		At:          at,
	}
}

func change(typ string, p, n *models.Position, at time.Time) models.PositionChangeEvent {
	prev := *p
	next := *n
	return models.PositionChangeEvent{
		Wallet: n.Wallet,
		Coin:   n.Coin,
		Type:   typ,
		Prev:   &prev,
		New:    &next,
		At:     at,
	}
}
