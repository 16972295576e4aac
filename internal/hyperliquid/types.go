package hyperliquid

// Wire-типы ответа POST /info {"type":"clearinghouseState","user":...}.
// Числовые значения HyperLiquid отдает строками.

// clearinghouseState - полное состояние аккаунта на бирже
type clearinghouseState struct {
	AssetPositions []assetPosition `json:"assetPositions"`
	MarginSummary  marginSummary   `json:"marginSummary"`
	Withdrawable   string          `json:"withdrawable"`
	Time           int64           `json:"time"`
}

// assetPosition - обертка позиции в ответе clearinghouseState
type assetPosition struct {
	Type     string       `json:"type"`
	Position wirePosition `json:"position"`
}

// wirePosition - позиция как ее отдает биржа.
// szi - знаковый размер: положительный = LONG, отрицательный = SHORT.
type wirePosition struct {
	Coin           string       `json:"coin"`
	Szi            string       `json:"szi"`
	EntryPx        string       `json:"entryPx"`
	PositionValue  string       `json:"positionValue"`
	UnrealizedPnl  string       `json:"unrealizedPnl"`
	ReturnOnEquity string       `json:"returnOnEquity"`
	Leverage       wireLeverage `json:"leverage"`
	LiquidationPx  string       `json:"liquidationPx"`
}

// wireLeverage - плечо; value единственное числовое поле без кавычек
type wireLeverage struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

// marginSummary - сводка маржи аккаунта
type marginSummary struct {
	AccountValue    string `json:"accountValue"`
	TotalNtlPos     string `json:"totalNtlPos"`
	TotalRawUsd     string `json:"totalRawUsd"`
	TotalMarginUsed string `json:"totalMarginUsed"`
}

// AccountState - распарсенная сводка аккаунта для команды /balance
type AccountState struct {
	AccountValue    float64 `json:"account_value"`
	TotalNtlPos     float64 `json:"total_ntl_pos"`
	TotalMarginUsed float64 `json:"total_margin_used"`
	Withdrawable    float64 `json:"withdrawable"`
}

// infoRequest - тело запроса к /info
type infoRequest struct {
	Type string `json:"type"`
	User string `json:"user"`
}
