package models

import (
	"testing"
)

func pos(coin, side string, size, leverage float64) Position {
	return Position{
		Wallet:   "0xabc",
		Coin:     coin,
		Side:     side,
		Size:     size,
		Leverage: leverage,
	}
}

func TestPosition_SameExposure(t *testing.T) {
	base := pos("ETH", SideLong, 1.5, 10)

	tests := []struct {
		name  string
		other Position
		want  bool
	}{
		{"идентичная экспозиция", pos("ETH", SideLong, 1.5, 10), true},
		{"другой размер", pos("ETH", SideLong, 2.0, 10), false},
		{"другая сторона", pos("ETH", SideShort, 1.5, 10), false},
		{"другое плечо", pos("ETH", SideLong, 1.5, 20), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := tt.other
			if got := base.SameExposure(&other); got != tt.want {
				t.Errorf("SameExposure: ожидали %v, получили %v", tt.want, got)
			}
		})
	}

	// PnL и стоимость не входят в идентичность экспозиции
	same := base
	same.UnrealizedPnl = 999.99
	same.PositionValue = 123456
	same.EntryPrice = 1.0
	if !base.SameExposure(&same) {
		t.Error("изменение PnL/стоимости не должно менять экспозицию")
	}
}

func TestPosition_SameExposure_Nil(t *testing.T) {
	p := pos("ETH", SideLong, 1, 5)
	if p.SameExposure(nil) {
		t.Error("позиция не равна nil")
	}
	var a, b *Position
	if !a.SameExposure(b) {
		t.Error("nil равен nil")
	}
}

func TestSnapshot_Equal(t *testing.T) {
	s1 := NewSnapshot("0xabc")
	s1.Positions["ETH"] = pos("ETH", SideLong, 1.5, 10)
	s1.Positions["BTC"] = pos("BTC", SideShort, 0.5, 5)

	s2 := NewSnapshot("0xabc")
	s2.Positions["ETH"] = pos("ETH", SideLong, 1.5, 10)
	s2.Positions["BTC"] = pos("BTC", SideShort, 0.5, 5)

	if !s1.Equal(s2) {
		t.Error("одинаковые снапшоты должны быть равны")
	}

	// Разное время опроса не влияет на равенство
	s2.FetchedAt = s2.FetchedAt.Add(1000)
	if !s1.Equal(s2) {
		t.Error("FetchedAt не участвует в сравнении")
	}

	s2.Positions["SOL"] = pos("SOL", SideLong, 10, 3)
	if s1.Equal(s2) {
		t.Error("снапшоты с разным набором инструментов не равны")
	}

	delete(s2.Positions, "SOL")
	s2.Positions["ETH"] = pos("ETH", SideLong, 2.0, 10)
	if s1.Equal(s2) {
		t.Error("снапшоты с разным размером позиции не равны")
	}
}

func TestSnapshot_TotalUnrealizedPnl(t *testing.T) {
	s := NewSnapshot("0xabc")
	if got := s.TotalUnrealizedPnl(); got != 0 {
		t.Errorf("пустой снапшот: ожидали 0, получили %f", got)
	}

	p1 := pos("ETH", SideLong, 1, 10)
	p1.UnrealizedPnl = 150.5
	p2 := pos("BTC", SideShort, 1, 10)
	p2.UnrealizedPnl = -50.5
	s.Positions["ETH"] = p1
	s.Positions["BTC"] = p2

	if got := s.TotalUnrealizedPnl(); got != 100.0 {
		t.Errorf("ожидали 100.0, получили %f", got)
	}
}
