package middleware

import (
	"net/http"

	"hlwatch/pkg/crypto"
)

// BasicAuth возвращает middleware с проверкой пароля через bcrypt-хеш.
// Пустой хеш выключает аутентификацию (режим разработки).
// Имя пользователя не проверяется: доступ защищает только пароль.
func BasicAuth(passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if passwordHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			_, password, ok := r.BasicAuth()
			if !ok || crypto.VerifyPassword(password, passwordHash) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="hlwatch"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
