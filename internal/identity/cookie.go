// Copyright (c) 2026 Registra. All rights reserved.

package identity

import (
	"net/http"
	"time"

	"github.com/registra/registra/internal/platform/constants"
)

// CookiePolicy decides the attributes of the access token cookie.
//
// The token travels both in the JSON body (for API clients) and in an
// HttpOnly cookie (for browser clients). SameSite is relaxed to Lax outside
// production so local frontends on another port can authenticate.
type CookiePolicy struct {
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

// NewCookiePolicy derives the cookie attributes from the runtime environment.
func NewCookiePolicy(isProduction bool, tokenTTL time.Duration) CookiePolicy {
	sameSite := http.SameSiteLaxMode
	if isProduction {
		sameSite = http.SameSiteStrictMode
	}

	return CookiePolicy{
		Secure:   isProduction,
		SameSite: sameSite,
		MaxAge:   tokenTTL,
	}
}

// Write sets the access token cookie on the response.
func (policy CookiePolicy) Write(writer http.ResponseWriter, token string) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.AccessTokenCookieName,
		Value:    token,
		Path:     constants.AccessTokenCookiePath,
		MaxAge:   int(policy.MaxAge / time.Second),
		Secure:   policy.Secure,
		HttpOnly: true,
		SameSite: policy.SameSite,
	})
}

// Clear expires the access token cookie on the client.
func (policy CookiePolicy) Clear(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.AccessTokenCookieName,
		Value:    "",
		Path:     constants.AccessTokenCookiePath,
		MaxAge:   -1,
		Secure:   policy.Secure,
		HttpOnly: true,
		SameSite: policy.SameSite,
	})
}
