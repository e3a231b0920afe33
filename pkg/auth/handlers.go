package auth

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/antibyte/webdesk/pkg/configuration"
	"github.com/antibyte/webdesk/pkg/logger"
)

// ErrTooManySessions is returned by a SessionCreator that refuses a new
// session for the caller's address.
var ErrTooManySessions = errors.New("too many sessions")

// SessionCreator creates desktop sessions for HandleCreateSession.
type SessionCreator interface {
	CreateSession(ipAddress string) (string, error)
}

// SessionResponse is the body of every auth endpoint.
type SessionResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId,omitempty"`
	Token     string `json:"token,omitempty"`
	Message   string `json:"message"`
}

// Handlers serves the session endpoints.
type Handlers struct {
	sessions SessionCreator
}

func NewHandlers(sessions SessionCreator) *Handlers {
	return &Handlers{sessions: sessions}
}

func setJSONHeaders(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Content-Type", "application/json")
}

func tokenCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     TokenCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   configuration.GetBool("TLS", "enable_tls", false),
		SameSite: http.SameSiteLaxMode,
	}
}

// HandleCreateSession creates a desktop session and returns its id together
// with a guest token that lets the browser reattach after a reload.
func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	setJSONHeaders(w, "POST, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		logger.AuthWarn("Invalid method for session creation: %s", r.Method)
		respondWithError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := GetClientIP(r)
	sessionID, err := h.sessions.CreateSession(clientIP)
	if err != nil {
		if errors.Is(err, ErrTooManySessions) {
			respondWithError(w, "Too many sessions from this address", http.StatusTooManyRequests)
			return
		}
		logger.AuthError("Session creation failed for %s: %v", clientIP, err)
		respondWithError(w, "Session could not be created", http.StatusInternalServerError)
		return
	}

	token, err := GenerateGuestToken(sessionID)
	if err != nil {
		logger.AuthError("Failed to generate token for session %s: %v", sessionID, err)
		respondWithError(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, tokenCookie(token, int(getTokenExpiration().Seconds())))

	logger.AuthInfo("New guest session created: %s for IP: %s", sessionID, clientIP)
	json.NewEncoder(w).Encode(SessionResponse{
		Success:   true,
		SessionID: sessionID,
		Token:     token,
		Message:   "Session created successfully",
	})
}

// HandleTokenValidation reports the session a token belongs to.
func HandleTokenValidation(w http.ResponseWriter, r *http.Request) {
	setJSONHeaders(w, "GET, POST, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	tokenString, err := ExtractTokenFromRequest(r)
	if err != nil {
		logger.AuthWarn("No token found in validation request: %v", err)
		respondWithError(w, "Token not found", http.StatusUnauthorized)
		return
	}
	claims, err := ValidateGuestToken(tokenString)
	if err != nil {
		logger.AuthWarn("Token validation failed: %v", err)
		respondWithError(w, "Invalid token", http.StatusUnauthorized)
		return
	}
	json.NewEncoder(w).Encode(SessionResponse{
		Success:   true,
		SessionID: claims.SessionID,
		Message:   "Token valid",
	})
}

// HandleLogout clears the token cookie.
func HandleLogout(w http.ResponseWriter, r *http.Request) {
	setJSONHeaders(w, "POST, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	http.SetCookie(w, tokenCookie("", -1))
	json.NewEncoder(w).Encode(SessionResponse{Success: true, Message: "Logout successful"})
}

// GetClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the connection's address without the port.
func GetClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func respondWithError(w http.ResponseWriter, message string, statusCode int) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(SessionResponse{Success: false, Message: message})
}
