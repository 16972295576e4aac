package notify

import (
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"

	"hlwatch/internal/hyperliquid"
	"hlwatch/internal/models"
)

// formatter.go - HTML-форматирование уведомлений для Telegram

const line = "━━━━━━━━━━━━━━━━━━"

// FmtWallet возвращает короткую форму адреса: 0x1234...abcd
func FmtWallet(wallet string) string {
	if len(wallet) < 10 {
		return wallet
	}
	return wallet[:6] + "..." + wallet[len(wallet)-4:]
}

// fmtPnl форматирует PnL с цветовым индикатором
func fmtPnl(value float64) string {
	switch {
	case value > 0:
		return fmt.Sprintf("🟢 <b>+$%s</b>", groupThousands(value))
	case value < 0:
		return fmt.Sprintf("🔴 <b>-$%s</b>", groupThousands(-value))
	default:
		return "⚪ <b>$0.00</b>"
	}
}

// fmtPnlWithPct добавляет к PnL процент возврата на капитал
func fmtPnlWithPct(value, roe float64) string {
	sign := ""
	if roe > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s (%s%.2f%%)", fmtPnl(value), sign, roe*100)
}

func fmtSide(side string) string {
	if side == models.SideLong {
		return "🟢 " + side
	}
	return "🔴 " + side
}

func fmtSize(size float64) string {
	return strconv.FormatFloat(size, 'f', -1, 64)
}

// groupThousands форматирует abs(value) как 1,234,567.89
func groupThousands(value float64) string {
	if value < 0 {
		value = -value
	}
	s := strconv.FormatFloat(value, 'f', 2, 64)
	dot := strings.IndexByte(s, '.')
	intPart, fracPart := s[:dot], s[dot:]

	var b strings.Builder
	n := len(intPart)
	for i, c := range intPart {
		if i > 0 && (n-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String() + fracPart
}

// FormatEvent возвращает HTML-сообщение для события изменения позиции
func FormatEvent(e *models.PositionChangeEvent) string {
	switch e.Type {
	case models.ChangeOpened:
		return formatOpened(e)
	case models.ChangeClosed:
		return formatClosed(e)
	case models.ChangeIncreased, models.ChangeDecreased:
		return formatSizeChange(e)
	case models.ChangeLeverageChanged:
		return formatLeverageChange(e)
	default:
		return fmt.Sprintf("❓ %s %s %s", FmtWallet(e.Wallet), html.EscapeString(e.Coin), html.EscapeString(e.Type))
	}
}

func formatOpened(e *models.PositionChangeEvent) string {
	p := e.New
	return strings.Join([]string{
		"🟢🟢🟢 <b>POSITION OPENED</b> 🟢🟢🟢",
		line,
		"👛 " + FmtWallet(e.Wallet),
		fmt.Sprintf("🪙 <b>%s</b> — %s", html.EscapeString(p.Coin), fmtSide(p.Side)),
		fmt.Sprintf("📏 Size: <b>%s %s</b>", fmtSize(p.Size), html.EscapeString(p.Coin)),
		fmt.Sprintf("💵 Entry: <b>$%s</b>", groupThousands(p.EntryPrice)),
		fmt.Sprintf("⚡ Leverage: <b>%.0fx</b>", p.Leverage),
		fmt.Sprintf("💎 Value: $%s", groupThousands(p.PositionValue)),
	}, "\n")
}

func formatClosed(e *models.PositionChangeEvent) string {
	p := e.Prev
	lines := []string{
		"🔴🔴🔴 <b>POSITION CLOSED</b> 🔴🔴🔴",
		line,
		"👛 " + FmtWallet(e.Wallet),
		fmt.Sprintf("🪙 <b>%s</b>", html.EscapeString(e.Coin)),
		fmt.Sprintf("📊 Side: %s → Closed", fmtSide(p.Side)),
		fmt.Sprintf("💵 Entry: $%s", groupThousands(p.EntryPrice)),
		fmt.Sprintf("📏 Size: %s %s", fmtSize(p.Size), html.EscapeString(e.Coin)),
	}
	if e.RealizedPnl != nil {
		lines = append(lines, "💰 Realized PnL: "+fmtPnl(*e.RealizedPnl))
	}
	return strings.Join(lines, "\n")
}

func formatSizeChange(e *models.PositionChangeEvent) string {
	prev, next := e.Prev, e.New

	direction, icon := "INCREASED", "📈📈📈"
	if e.Type == models.ChangeDecreased {
		direction, icon = "DECREASED", "📉📉📉"
	}

	return strings.Join([]string{
		fmt.Sprintf("%s <b>POSITION %s</b> %s", icon, direction, icon),
		line,
		"👛 " + FmtWallet(e.Wallet),
		fmt.Sprintf("🪙 <b>%s</b> — %s", html.EscapeString(next.Coin), fmtSide(next.Side)),
		fmt.Sprintf("📏 Size: %s → <b>%s %s</b>", fmtSize(prev.Size), fmtSize(next.Size), html.EscapeString(next.Coin)),
		fmt.Sprintf("💵 Entry: $%s → <b>$%s</b>", groupThousands(prev.EntryPrice), groupThousands(next.EntryPrice)),
		fmt.Sprintf("⚡ Leverage: <b>%.0fx</b>", next.Leverage),
		fmt.Sprintf("💎 Value: $%s", groupThousands(next.PositionValue)),
		"💰 Unrealized PnL: " + fmtPnl(next.UnrealizedPnl),
	}, "\n")
}

func formatLeverageChange(e *models.PositionChangeEvent) string {
	prev, next := e.Prev, e.New
	return strings.Join([]string{
		"⚡⚡⚡ <b>LEVERAGE CHANGED</b> ⚡⚡⚡",
		line,
		"👛 " + FmtWallet(e.Wallet),
		fmt.Sprintf("🪙 <b>%s</b> — %s", html.EscapeString(next.Coin), fmtSide(next.Side)),
		fmt.Sprintf("⚡ Leverage: %.0fx → <b>%.0fx</b>", prev.Leverage, next.Leverage),
		fmt.Sprintf("📏 Size: %s %s", fmtSize(next.Size), html.EscapeString(next.Coin)),
		"💰 Unrealized PnL: " + fmtPnl(next.UnrealizedPnl),
	}, "\n")
}

// FormatAlert возвращает HTML-сообщение для операционного алерта
func FormatAlert(a *models.OperationalAlert) string {
	switch a.Kind {
	case models.AlertDisconnected:
		lines := []string{
			"⚠️ <b>Connection Issue</b>",
			"WebSocket disconnected for " + FmtWallet(a.Wallet),
		}
		if a.Detail != "" {
			lines = append(lines, html.EscapeString(a.Detail))
		}
		return strings.Join(lines, "\n")

	case models.AlertReconnecting:
		return strings.Join([]string{
			"⚠️ <b>Connection Issue</b>",
			"WebSocket disconnected for " + FmtWallet(a.Wallet),
			fmt.Sprintf("Reconnecting (attempt %d, next retry in %s)", a.RetryAttempt, a.NextRetryIn),
		}, "\n")

	case models.AlertReconnected:
		return "✅ <b>Connection Restored</b>\nMonitoring resumed for " + FmtWallet(a.Wallet)

	default:
		return fmt.Sprintf("⚠️ %s: %s", FmtWallet(a.Wallet), html.EscapeString(a.Kind))
	}
}

// FormatPositionSummary возвращает сводку открытых позиций для /position
func FormatPositionSummary(wallet string, snapshot *models.Snapshot) string {
	if snapshot == nil || len(snapshot.Positions) == 0 {
		return fmt.Sprintf("📊 <b>%s</b>\n😴 No open positions.", FmtWallet(wallet))
	}

	lines := []string{fmt.Sprintf("📊 <b>Positions — %s</b>\n%s\n", FmtWallet(wallet), line)}
	coins := make([]string, 0, len(snapshot.Positions))
	for coin := range snapshot.Positions {
		coins = append(coins, coin)
	}
	sort.Strings(coins)

	for _, coin := range coins {
		p := snapshot.Positions[coin]
		lines = append(lines, strings.Join([]string{
			fmt.Sprintf("🪙 <b>%s</b> — %s", html.EscapeString(p.Coin), fmtSide(p.Side)),
			fmt.Sprintf("  📏 Size: %s %s", fmtSize(p.Size), html.EscapeString(p.Coin)),
			fmt.Sprintf("  💵 Entry: $%s", groupThousands(p.EntryPrice)),
			fmt.Sprintf("  ⚡ Leverage: %.0fx", p.Leverage),
			fmt.Sprintf("  💎 Value: $%s", groupThousands(p.PositionValue)),
			"  💰 PnL: " + fmtPnlWithPct(p.UnrealizedPnl, p.ReturnOnEquity),
			"",
		}, "\n"))
	}

	lines = append(lines, fmt.Sprintf("%s\n💰 Total PnL: %s", line, fmtPnl(snapshot.TotalUnrealizedPnl())))
	return strings.Join(lines, "\n")
}

// FormatBalance возвращает сводку аккаунта для /balance
func FormatBalance(wallet string, state *hyperliquid.AccountState) string {
	return strings.Join([]string{
		fmt.Sprintf("💰 <b>Balance — %s</b>", FmtWallet(wallet)),
		line,
		fmt.Sprintf("🏦 Account Value: <b>$%s</b>", groupThousands(state.AccountValue)),
		fmt.Sprintf("📊 Position Value: $%s", groupThousands(state.TotalNtlPos)),
		fmt.Sprintf("🔒 Margin Used: $%s", groupThousands(state.TotalMarginUsed)),
		fmt.Sprintf("💸 Withdrawable: <b>$%s</b>", groupThousands(state.Withdrawable)),
	}, "\n")
}
