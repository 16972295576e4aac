package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hlwatch/internal/api/handlers"
	"hlwatch/internal/api/middleware"
	"hlwatch/internal/websocket"
)

// Dependencies содержит зависимости API handlers
type Dependencies struct {
	Status         handlers.StatusSource
	Positions      handlers.PositionReader
	ReconcileTimes handlers.ReconcileTimeReader
	Hub            *websocket.Hub

	// bcrypt-хеш пароля Basic Auth; пусто = без аутентификации
	StatusPasswordHash string
}

// SetupRoutes настраивает HTTP маршруты приложения.
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── GET /status - состояния пайплайнов кошельков
//	└── /wallets/{wallet}/
//	    ├── GET /positions - открытые позиции (read-only)
//	    └── GET /events - история событий
//
// /ws/
//
//	└── /stream - WebSocket live-поток событий и алертов
//
// /healthz - health check (без аутентификации)
// /metrics - Prometheus метрики (без аутентификации)
//
// Middleware: Recovery -> Logging -> CORS для всех маршрутов,
// BasicAuth дополнительно для /api и /ws.
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	statusHandler := handlers.NewStatusHandler(deps.Status, deps.ReconcileTimes)
	positionHandler := handlers.NewPositionHandler(deps.Positions)

	auth := middleware.BasicAuth(deps.StatusPasswordHash)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(auth)
	api.HandleFunc("/status", statusHandler.GetStatus).Methods("GET")
	api.HandleFunc("/wallets/{wallet}/positions", positionHandler.GetPositions).Methods("GET")
	api.HandleFunc("/wallets/{wallet}/events", positionHandler.GetEvents).Methods("GET")

	if deps.Hub != nil {
		ws := router.PathPrefix("/ws").Subrouter()
		ws.Use(auth)
		ws.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.Hub, w, r)
		})
	}

	router.HandleFunc("/healthz", statusHandler.Healthz).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}
