// Package middleware содержит HTTP middleware сервиса расчётов.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/mmeshcher/clickarena-settlement/internal/validation"
)

type contextKey string

const playerKey contextKey = "player"

const (
	authCookieName = "auth_token"
	authCookieTTL  = 365 * 24 * time.Hour
)

// AuthMiddleware выполняет проверку аутентификации игрока по подписанному
// cookie, несущему адрес кошелька.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// Middleware проверяет cookie авторизации и добавляет адрес игрока в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookieName)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		player, ok := a.parseCookie(cookie.Value)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), playerKey, player)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetAuthCookie устанавливает cookie авторизации для указанного адреса игрока.
// Адрес подписывается в нормализованной форме.
func (a *AuthMiddleware) SetAuthCookie(w http.ResponseWriter, player string) {
	value := a.sign(validation.NormalizeAddress(player))

	cookie := &http.Cookie{
		Name:     authCookieName,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(authCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	http.SetCookie(w, cookie)
}

func (a *AuthMiddleware) sign(player string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(player))
	signature := mac.Sum(nil)
	return player + "." + hex.EncodeToString(signature)
}

func (a *AuthMiddleware) parseCookie(cookieValue string) (string, bool) {
	parts := strings.Split(cookieValue, ".")
	if len(parts) != 2 {
		return "", false
	}

	player := parts[0]
	signature := parts[1]

	expected := a.sign(player)
	expectedParts := strings.Split(expected, ".")
	if len(expectedParts) != 2 {
		return "", false
	}

	if !hmac.Equal([]byte(signature), []byte(expectedParts[1])) {
		return "", false
	}

	if !validation.IsValidAddress(player) {
		return "", false
	}

	return player, true
}

// GetPlayerFromContext извлекает адрес игрока из контекста запроса.
func GetPlayerFromContext(ctx context.Context) (string, bool) {
	player, ok := ctx.Value(playerKey).(string)
	return player, ok
}
