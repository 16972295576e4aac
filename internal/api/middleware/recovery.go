package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"hlwatch/pkg/utils"
)

// Recovery перехватывает панику в handlers и возвращает 500 вместо
// падения всего сервера
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				utils.Error("паника в HTTP handler",
					zap.Any("panic", err),
					zap.String("path", r.URL.Path),
					zap.Stack("stack"))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
