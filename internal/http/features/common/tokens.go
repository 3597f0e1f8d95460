package common

import (
	"net/http"
	"time"

	"github.com/introspect-app/authcore/internal/httputil"
	"github.com/introspect-app/authcore/pkg/domain"
)

// TokenResponse is the JSON body returned to mobile clients; web
// clients get cookies and a body without the token values.
type TokenResponse struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// WriteTokenPair writes tokens as cookies (web) or JSON (mobile).
func WriteTokenPair(w http.ResponseWriter, r *http.Request, tokens *domain.TokenPair, accessTTL, refreshTTL time.Duration, cfg httputil.CookieConfig) {
	if httputil.IsMobileClient(r) {
		httputil.JSON(w, http.StatusOK, TokenResponse{
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
			TokenType:    tokens.TokenType,
			ExpiresIn:    tokens.ExpiresIn,
		})
		return
	}

	httputil.SetAuthCookies(w, tokens.AccessToken, tokens.RefreshToken, accessTTL, refreshTTL, cfg)
	httputil.JSON(w, http.StatusOK, TokenResponse{
		TokenType: tokens.TokenType,
		ExpiresIn: tokens.ExpiresIn,
	})
}

// ReadRefreshToken extracts the refresh token from the request body
// value (mobile) or the cookie (web).
func ReadRefreshToken(r *http.Request, bodyToken string) (string, bool) {
	if httputil.IsMobileClient(r) {
		return bodyToken, bodyToken != ""
	}
	return httputil.GetRefreshTokenFromCookie(r)
}
