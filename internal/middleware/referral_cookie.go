package middleware

import (
	"net/http"
	"strings"
	"time"
)

const (
	ReferralCookie    = "ref"
	ReferralQueryKey  = "ref"
	referralCookieTTL = 30 * 24 * time.Hour
)

// ReferralCapture stores ?ref=CODE in a first-party cookie so it survives the sign-up redirect.
// The cookie is not HttpOnly so the frontend can read it.
func ReferralCapture(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if code := strings.TrimSpace(r.URL.Query().Get(ReferralQueryKey)); code != "" && len(code) <= 32 {
				http.SetCookie(w, &http.Cookie{
					Name:     ReferralCookie,
					Value:    code,
					Path:     "/",
					MaxAge:   int(referralCookieTTL / time.Second),
					Expires:  time.Now().Add(referralCookieTTL),
					HttpOnly: false,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ReferralCodeFromCookie returns the captured referral code, if any.
func ReferralCodeFromCookie(r *http.Request) string {
	c, err := r.Cookie(ReferralCookie)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}
