package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"hlwatch/internal/hyperliquid"
	"hlwatch/internal/models"
	"hlwatch/pkg/utils"
)

// SnapshotReader отдает сохраненное состояние кошелька для команды /position
type SnapshotReader interface {
	GetSnapshot(ctx context.Context, wallet string) (*models.Snapshot, bool, error)
}

// AccountReader отдает сводку аккаунта для команды /balance
type AccountReader interface {
	FetchAccountState(ctx context.Context, wallet string) (*hyperliquid.AccountState, error)
}

// TelegramBot - доставка уведомлений и обработка команд.
//
// Назначение:
// - Реализует Sender: все уведомления уходят в единственный
//   авторизованный чат
// - Обрабатывает команды: /start, /help, /position, /balance
// - Сообщения из чужих чатов игнорируются
type TelegramBot struct {
	api       *tgbotapi.BotAPI
	chatID    int64
	wallets   []string
	snapshots SnapshotReader
	accounts  AccountReader
	logger    *utils.Logger
}

// NewTelegramBot создает бота и проверяет токен запросом getMe
func NewTelegramBot(token string, chatID int64, wallets []string, snapshots SnapshotReader, accounts AccountReader, logger *utils.Logger) (*TelegramBot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}

	bot := &TelegramBot{
		api:       api,
		chatID:    chatID,
		wallets:   wallets,
		snapshots: snapshots,
		accounts:  accounts,
		logger:    logger.WithComponent("telegram"),
	}

	bot.logger.Info("Telegram бот авторизован", zap.String("username", api.Self.UserName))
	return bot, nil
}

// SendHTML отправляет HTML-сообщение в авторизованный чат
func (b *TelegramBot) SendHTML(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	_, err := b.api.Send(msg)
	return err
}

// SendStartup отправляет приветственное сообщение при запуске монитора
func (b *TelegramBot) SendStartup(ctx context.Context) error {
	short := make([]string, len(b.wallets))
	for i, w := range b.wallets {
		short[i] = FmtWallet(w)
	}
	text := fmt.Sprintf("🚀 <b>Monitor started</b>\nWatching %d wallet(s): %s",
		len(b.wallets), strings.Join(short, ", "))
	return b.SendHTML(ctx, text)
}

// Run обрабатывает входящие команды до отмены контекста
func (b *TelegramBot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if update.Message.Chat.ID != b.chatID {
				b.logger.Warn("команда из неавторизованного чата",
					zap.Int64("chat_id", update.Message.Chat.ID))
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// mainKeyboard - кнопки быстрого доступа под приветственным сообщением
var mainKeyboard = tgbotapi.NewInlineKeyboardMarkup(
	tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📊 Positions", "positions"),
		tgbotapi.NewInlineKeyboardButtonData("💰 Balance", "balance"),
	),
)

func (b *TelegramBot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	var text string
	var keyboard *tgbotapi.InlineKeyboardMarkup

	switch msg.Command() {
	case "start", "help":
		text = strings.Join([]string{
			"👋 <b>HyperLiquid Position Monitor</b>",
			"",
			"/position — open positions per wallet",
			"/balance — account balance per wallet",
			"/help — this message",
		}, "\n")
		keyboard = &mainKeyboard

	case "position", "positions":
		text = b.positionSummary(ctx)

	case "balance":
		text = b.balanceSummary(ctx)

	default:
		text = "Unknown command. Try /help."
	}

	reply := tgbotapi.NewMessage(b.chatID, text)
	reply.ParseMode = tgbotapi.ModeHTML
	reply.DisableWebPagePreview = true
	if keyboard != nil {
		reply.ReplyMarkup = *keyboard
	}

	if _, err := b.api.Send(reply); err != nil {
		b.logger.Error("ответ на команду не отправлен",
			zap.Error(err), zap.String("command", msg.Command()))
	}
}

// handleCallback обрабатывает нажатия кнопок клавиатуры
func (b *TelegramBot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat.ID != b.chatID {
		return
	}

	// Снимаем "часики" на кнопке
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warn("подтверждение callback не отправлено", zap.Error(err))
	}

	var text string
	switch cb.Data {
	case "positions":
		text = b.positionSummary(ctx)
	case "balance":
		text = b.balanceSummary(ctx)
	default:
		return
	}

	if err := b.SendHTML(ctx, text); err != nil {
		b.logger.Error("ответ на callback не отправлен",
			zap.Error(err), zap.String("data", cb.Data))
	}
}

// positionSummary собирает сводку позиций по всем кошелькам
func (b *TelegramBot) positionSummary(ctx context.Context) string {
	var parts []string
	for _, wallet := range b.wallets {
		snapshot, found, err := b.snapshots.GetSnapshot(ctx, wallet)
		if err != nil {
			b.logger.Error("чтение снапшота не удалось", zap.Error(err), zap.String("wallet", wallet))
			parts = append(parts, fmt.Sprintf("📊 <b>%s</b>\n⚠️ Failed to load positions.", FmtWallet(wallet)))
			continue
		}
		if !found {
			parts = append(parts, fmt.Sprintf("📊 <b>%s</b>\n⏳ Not reconciled yet.", FmtWallet(wallet)))
			continue
		}
		parts = append(parts, FormatPositionSummary(wallet, snapshot))
	}
	return strings.Join(parts, "\n\n")
}

// balanceSummary собирает сводку балансов по всем кошелькам
func (b *TelegramBot) balanceSummary(ctx context.Context) string {
	var parts []string
	for _, wallet := range b.wallets {
		state, err := b.accounts.FetchAccountState(ctx, wallet)
		if err != nil {
			b.logger.Error("запрос баланса не удался", zap.Error(err), zap.String("wallet", wallet))
			parts = append(parts, fmt.Sprintf("💰 <b>%s</b>\n⚠️ Failed to fetch balance.", FmtWallet(wallet)))
			continue
		}
		parts = append(parts, FormatBalance(wallet, state))
	}
	return strings.Join(parts, "\n\n")
}
