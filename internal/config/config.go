package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config содержит всю конфигурацию монитора
type Config struct {
	Wallets     []string
	Telegram    TelegramConfig
	Database    DatabaseConfig
	HyperLiquid HyperLiquidConfig
	Monitor     MonitorConfig
	Server      ServerConfig
	Logging     LoggingConfig
}

// TelegramConfig - настройки Telegram-бота
type TelegramConfig struct {
	BotToken string
	ChatID   int64 // единственный авторизованный чат
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// HyperLiquidConfig - endpoints биржи
type HyperLiquidConfig struct {
	RESTURL     string
	WSURL       string
	HTTPTimeout time.Duration
}

// MonitorConfig - настройки пайплайна мониторинга
type MonitorConfig struct {
	// Переподключение WebSocket: экспоненциальный backoff без лимита попыток
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration

	// Интервал прикладного ping; отсутствие трафика дольше 2x интервала =
	// мертвое соединение
	PingInterval time.Duration

	// Страховочный периодический опрос, независимый от WebSocket
	SafetyPollInterval time.Duration

	// Пауза перед опросом REST после fill - бирже нужно время применить состояние
	SettleDelay time.Duration

	// Размер очереди исходящих уведомлений
	DispatchBuffer int
}

// ServerConfig - настройки HTTP сервера статуса
type ServerConfig struct {
	Host string
	Port int

	// bcrypt-хеш пароля для Basic Auth на /api и /debug.
	// Пусто = аутентификация выключена (только для разработки)
	StatusPasswordHash string
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// walletRe - адрес кошелька: 0x + 40 hex символов
var walletRe = regexp.MustCompile(`^0x[0-9a-f]{40}$`)

// Load загружает конфигурацию из переменных окружения.
// Любая некорректная настройка - фатальная ошибка старта: процесс обязан
// отказаться запускаться, а не работать с неоднозначной конфигурацией.
func Load() (*Config, error) {
	cfg := &Config{
		Wallets: parseWallets(),
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnvAsInt64("TELEGRAM_CHAT_ID", 0),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "hlwatch"),
			User:     getEnv("DB_USER", "hlwatch"),
			Password: getEnv("DB_PASSWORD", ""),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		HyperLiquid: HyperLiquidConfig{
			RESTURL:     getEnv("HL_REST_URL", "https://api.hyperliquid.xyz/info"),
			WSURL:       getEnv("HL_WS_URL", "wss://api.hyperliquid.xyz/ws"),
			HTTPTimeout: getEnvAsDuration("HL_HTTP_TIMEOUT", 30*time.Second),
		},
		Monitor: MonitorConfig{
			ReconnectBaseDelay: getEnvAsDuration("RECONNECT_BASE_DELAY", 5*time.Second),
			ReconnectMaxDelay:  getEnvAsDuration("RECONNECT_MAX_DELAY", 5*time.Minute),
			PingInterval:       getEnvAsDuration("PING_INTERVAL", 50*time.Second),
			SafetyPollInterval: getEnvAsDuration("SAFETY_POLL_INTERVAL", 10*time.Minute),
			SettleDelay:        getEnvAsDuration("SETTLE_DELAY", 1*time.Second),
			DispatchBuffer:     getEnvAsInt("DISPATCH_BUFFER", 256),
		},
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "0.0.0.0"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			StatusPasswordHash: getEnv("STATUS_API_PASSWORD_HASH", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_PATH", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseWallets читает адреса: WALLET_ADDRESSES (список через запятую)
// или WALLET_ADDRESS (один адрес). Адреса нормализуются в нижний регистр.
func parseWallets() []string {
	raw := os.Getenv("WALLET_ADDRESSES")
	if raw == "" {
		raw = os.Getenv("WALLET_ADDRESS")
	}

	var wallets []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		addr := strings.ToLower(strings.TrimSpace(part))
		if addr == "" {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		wallets = append(wallets, addr)
	}
	return wallets
}

// validate проверяет конфигурацию. Ошибка здесь фатальна для старта.
func (c *Config) validate() error {
	if len(c.Wallets) == 0 {
		return fmt.Errorf("WALLET_ADDRESSES (or WALLET_ADDRESS) is required")
	}
	for _, w := range c.Wallets {
		if !walletRe.MatchString(w) {
			return fmt.Errorf("invalid wallet address %q: expected 0x + 40 hex chars", w)
		}
	}

	if c.Telegram.BotToken == "" || c.Telegram.BotToken == "your_bot_token_here" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}
	if c.Telegram.ChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is not set")
	}

	if c.Monitor.ReconnectBaseDelay <= 0 {
		return fmt.Errorf("RECONNECT_BASE_DELAY must be positive, got %v", c.Monitor.ReconnectBaseDelay)
	}
	if c.Monitor.ReconnectMaxDelay < c.Monitor.ReconnectBaseDelay {
		return fmt.Errorf("RECONNECT_MAX_DELAY (%v) must be >= RECONNECT_BASE_DELAY (%v)",
			c.Monitor.ReconnectMaxDelay, c.Monitor.ReconnectBaseDelay)
	}
	if c.Monitor.PingInterval <= 0 {
		return fmt.Errorf("PING_INTERVAL must be positive, got %v", c.Monitor.PingInterval)
	}
	if c.Monitor.SafetyPollInterval <= 0 {
		return fmt.Errorf("SAFETY_POLL_INTERVAL must be positive, got %v", c.Monitor.SafetyPollInterval)
	}
	if c.Monitor.DispatchBuffer < 1 {
		return fmt.Errorf("DISPATCH_BUFFER must be >= 1, got %d", c.Monitor.DispatchBuffer)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if !strings.HasPrefix(c.HyperLiquid.RESTURL, "http") {
		return fmt.Errorf("HL_REST_URL must be an http(s) URL, got %q", c.HyperLiquid.RESTURL)
	}
	if !strings.HasPrefix(c.HyperLiquid.WSURL, "ws") {
		return fmt.Errorf("HL_WS_URL must be a ws(s) URL, got %q", c.HyperLiquid.WSURL)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
