package models

import "time"

// Направление позиции
const (
	SideLong  = "LONG"
	SideShort = "SHORT"
)

// Position представляет одну открытую позицию кошелька по инструменту.
// Инвариант: не более одной открытой позиции на пару (wallet, coin).
type Position struct {
	Wallet         string    `json:"wallet" db:"wallet"` // адрес в нижнем регистре
	Coin           string    `json:"coin" db:"coin"`     // тикер инструмента (ETH, BTC, ...)
	Side           string    `json:"side" db:"side"`     // LONG или SHORT
	Size           float64   `json:"size" db:"size"`     // абсолютный размер, направление задаёт Side
	EntryPrice     float64   `json:"entry_price" db:"entry_price"`
	Leverage       float64   `json:"leverage" db:"leverage"`
	PositionValue  float64   `json:"position_value" db:"position_value"`   // производное: size * цена
	UnrealizedPnl  float64   `json:"unrealized_pnl" db:"unrealized_pnl"`   // информационное, не участвует в диффе
	ReturnOnEquity float64   `json:"return_on_equity" db:"return_on_equity"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// SameExposure сравнивает позиции по полям, определяющим экспозицию
// (Side, Size, Leverage). PnL и стоимость позиции пересчитываются биржей
// на каждом снапшоте и изменением не считаются.
func (p *Position) SameExposure(other *Position) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.Side == other.Side && p.Size == other.Size && p.Leverage == other.Leverage
}

// Snapshot - полный набор открытых позиций кошелька на момент опроса.
// FetchedAt используется только для диагностики, не для упорядочивания.
type Snapshot struct {
	Wallet    string              `json:"wallet"`
	Positions map[string]Position `json:"positions"` // ключ - coin
	FetchedAt time.Time           `json:"fetched_at"`
}

// NewSnapshot создает пустой снапшот для кошелька
func NewSnapshot(wallet string) *Snapshot {
	return &Snapshot{
		Wallet:    wallet,
		Positions: make(map[string]Position),
		FetchedAt: time.Now().UTC(),
	}
}

// Equal сравнивает снапшоты по набору инструментов и экспозиции каждой позиции
func (s *Snapshot) Equal(other *Snapshot) bool {
	if len(s.Positions) != len(other.Positions) {
		return false
	}
	for coin, pos := range s.Positions {
		o, ok := other.Positions[coin]
		if !ok || !pos.SameExposure(&o) {
			return false
		}
	}
	return true
}

// TotalUnrealizedPnl возвращает суммарный нереализованный PnL по снапшоту
func (s *Snapshot) TotalUnrealizedPnl() float64 {
	var total float64
	for _, pos := range s.Positions {
		total += pos.UnrealizedPnl
	}
	return total
}
