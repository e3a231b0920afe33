package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/antibyte/webdesk/pkg/configuration"
	"github.com/antibyte/webdesk/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

// TokenCookie is the cookie carrying the guest token.
const TokenCookie = "guest_token"

var (
	ephemeralOnce   sync.Once
	ephemeralSecret string
)

// getJWTSecret reads the signing key from JWT_SECRET_KEY or the [JWT]
// section. Without either, a random per-process key is used, so tokens do
// not survive a restart.
func getJWTSecret() string {
	if envSecret := os.Getenv("JWT_SECRET_KEY"); envSecret != "" {
		return envSecret
	}
	if secret := configuration.GetString("JWT", "secret_key", ""); secret != "" {
		return secret
	}
	ephemeralOnce.Do(func() {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			panic(fmt.Sprintf("auth: cannot generate signing key: %v", err))
		}
		ephemeralSecret = hex.EncodeToString(buf)
		logger.SecurityWarn("No JWT secret configured - using a random key, tokens will not survive a restart")
	})
	return ephemeralSecret
}

func getTokenExpiration() time.Duration {
	hours := configuration.GetInt("JWT", "token_expiration_hours", 24)
	return time.Duration(hours) * time.Hour
}

func getIssuer() string {
	return configuration.GetString("JWT", "issuer", "webdesk")
}

// GuestClaims binds a token to one desktop session.
type GuestClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// GenerateGuestToken signs a token for sessionID.
func GenerateGuestToken(sessionID string) (string, error) {
	now := time.Now()
	claims := GuestClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(getTokenExpiration())),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    getIssuer(),
			Subject:   "guest",
			ID:        sessionID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(getJWTSecret()))
	if err != nil {
		return "", fmt.Errorf("token could not be signed: %w", err)
	}
	logger.AuthDebug("Guest token generated for session %s", sessionID)
	return signed, nil
}

// ValidateGuestToken checks signature, algorithm and expiry.
func ValidateGuestToken(tokenString string) (*GuestClaims, error) {
	secret := getJWTSecret()
	token, err := jwt.ParseWithClaims(
		tokenString,
		&GuestClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing algorithm: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
		jwt.WithIssuer(getIssuer()),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("token parsing failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(*GuestClaims)
	if !ok || claims.SessionID == "" {
		return nil, fmt.Errorf("could not extract token claims")
	}
	return claims, nil
}

// ExtractTokenFromRequest looks in the Authorization header, then the cookie,
// then the token query parameter. Browsers cannot set headers on WebSocket
// upgrades, hence the fallbacks.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1], nil
		}
		return "", fmt.Errorf("invalid authorization header format")
	}
	if cookie, err := r.Cookie(TokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", fmt.Errorf("no token found in request")
}

// RequireGuestToken rejects requests without a valid guest token and stores
// the claims in the request context.
func RequireGuestToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next(w, r)
			return
		}
		tokenString, err := ExtractTokenFromRequest(r)
		if err != nil {
			logger.AuthWarn("No token in request: %v", err)
			http.Error(w, "Unauthorized: token missing", http.StatusUnauthorized)
			return
		}
		claims, err := ValidateGuestToken(tokenString)
		if err != nil {
			logger.AuthWarn("Invalid token: %v", err)
			http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(AddClaimsToContext(r.Context(), claims)))
	}
}
