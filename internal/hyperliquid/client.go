package hyperliquid

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"hlwatch/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// APIError - ошибка REST API биржи
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hyperliquid api: status %d: %s", e.Status, e.Message)
}

// Temporary: 5xx и 429 имеет смысл повторять, 4xx - нет
func (e *APIError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// Client - REST клиент HyperLiquid /info.
// Авторитетный источник состояния позиций (Snapshot Provider):
// WebSocket только сигнализирует "что-то изменилось", актуальное
// состояние всегда берется отсюда.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создает клиент /info endpoint
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// fetchClearinghouseState выполняет POST /info с типом clearinghouseState
func (c *Client) fetchClearinghouseState(ctx context.Context, wallet string) (*clearinghouseState, error) {
	body, err := json.Marshal(infoRequest{Type: "clearinghouseState", User: wallet})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hyperliquid request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("hyperliquid read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(data)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}

	var state clearinghouseState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("hyperliquid decode: %w", err)
	}

	return &state, nil
}

// FetchPositions возвращает снапшот открытых позиций кошелька.
// Позиции с нулевым размером отбрасываются: отсутствие записи = нет позиции.
func (c *Client) FetchPositions(ctx context.Context, wallet string) (*models.Snapshot, error) {
	state, err := c.fetchClearinghouseState(ctx, wallet)
	if err != nil {
		return nil, err
	}

	snapshot := models.NewSnapshot(wallet)
	for _, item := range state.AssetPositions {
		pos, ok, err := parsePosition(wallet, item.Position)
		if err != nil {
			return nil, fmt.Errorf("hyperliquid parse: %w", err)
		}
		if !ok {
			continue
		}
		snapshot.Positions[pos.Coin] = pos
	}

	return snapshot, nil
}

// FetchAccountState возвращает сводку маржи для команды /balance
func (c *Client) FetchAccountState(ctx context.Context, wallet string) (*AccountState, error) {
	state, err := c.fetchClearinghouseState(ctx, wallet)
	if err != nil {
		return nil, err
	}

	fp := &fieldParser{}
	out := &AccountState{
		AccountValue:    fp.float("accountValue", state.MarginSummary.AccountValue),
		TotalNtlPos:     fp.float("totalNtlPos", state.MarginSummary.TotalNtlPos),
		TotalMarginUsed: fp.float("totalMarginUsed", state.MarginSummary.TotalMarginUsed),
		Withdrawable:    fp.float("withdrawable", state.Withdrawable),
	}
	if fp.err != nil {
		return nil, fmt.Errorf("hyperliquid account state: %w", fp.err)
	}
	return out, nil
}

// parsePosition преобразует wire-позицию в доменную модель.
// Знак szi определяет сторону, в модели хранится абсолютный размер.
// Неразбираемое числовое поле проваливает весь запрос: молчаливый ноль
// в szi выглядел бы как закрытие позиции.
func parsePosition(wallet string, wp wirePosition) (models.Position, bool, error) {
	fp := &fieldParser{}
	size := fp.float("szi", wp.Szi)
	pos := models.Position{
		Wallet:         wallet,
		Coin:           wp.Coin,
		Side:           models.SideLong,
		Size:           size,
		EntryPrice:     fp.float("entryPx", wp.EntryPx),
		Leverage:       wp.Leverage.Value,
		PositionValue:  fp.float("positionValue", wp.PositionValue),
		UnrealizedPnl:  fp.float("unrealizedPnl", wp.UnrealizedPnl),
		ReturnOnEquity: fp.float("returnOnEquity", wp.ReturnOnEquity),
		UpdatedAt:      time.Now().UTC(),
	}
	if fp.err != nil {
		return models.Position{}, false, fmt.Errorf("position %s: %w", wp.Coin, fp.err)
	}
	if size == 0 {
		return models.Position{}, false, nil
	}
	if size < 0 {
		pos.Side = models.SideShort
		pos.Size = -size
	}
	return pos, true, nil
}

// fieldParser собирает первую ошибку разбора числовых полей wire-формата
// (биржа присылает числа строками). Пустая строка трактуется как ноль.
type fieldParser struct {
	err error
}

func (p *fieldParser) float(field, s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("%s %q: %w", field, s, err)
		}
		return 0
	}
	return v
}
