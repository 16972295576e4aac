package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"hlwatch/pkg/crypto"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestBasicAuth_DisabledWithEmptyHash(t *testing.T) {
	handler := BasicAuth("")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("без хеша аутентификация выключена: ожидали 200, получили %d", rec.Code)
	}
}

func TestBasicAuth_CorrectPassword(t *testing.T) {
	hash, err := crypto.HashPassword("secret")
	if err != nil {
		t.Fatalf("хеширование: %v", err)
	}
	handler := BasicAuth(hash)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.SetBasicAuth("anyuser", "secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("правильный пароль: ожидали 200, получили %d", rec.Code)
	}
}

func TestBasicAuth_Rejects(t *testing.T) {
	hash, err := crypto.HashPassword("secret")
	if err != nil {
		t.Fatalf("хеширование: %v", err)
	}
	handler := BasicAuth(hash)(okHandler())

	tests := []struct {
		name    string
		prepare func(r *http.Request)
	}{
		{"без заголовка", func(r *http.Request) {}},
		{"неверный пароль", func(r *http.Request) { r.SetBasicAuth("u", "wrong") }},
		{"пустой пароль", func(r *http.Request) { r.SetBasicAuth("u", "") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("ожидали 401, получили %d", rec.Code)
			}
			if rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("нет заголовка WWW-Authenticate")
			}
		})
	}
}
