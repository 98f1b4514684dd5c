package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestReferralCaptureSetsCookie(t *testing.T) {
	h := ReferralCapture(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/sign-up?ref=AB12CD34", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != ReferralCookie || c.Value != "AB12CD34" {
		t.Fatalf("unexpected cookie %s=%s", c.Name, c.Value)
	}
	if c.Path != "/" || c.HttpOnly || c.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected cookie attributes: %+v", c)
	}
	if c.MaxAge != 30*24*60*60 {
		t.Fatalf("expected 30 day max-age, got %d", c.MaxAge)
	}
}

func TestReferralCaptureIgnoresRequestsWithoutRef(t *testing.T) {
	h := ReferralCapture(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	if len(w.Result().Cookies()) != 0 {
		t.Fatal("expected no cookie")
	}
}

func TestReferralCodeFromCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/referrals/attach", nil)
	if got := ReferralCodeFromCookie(req); got != "" {
		t.Fatalf("expected empty code, got %q", got)
	}
	req.AddCookie(&http.Cookie{Name: ReferralCookie, Value: " XY98ZW76 "})
	if got := ReferralCodeFromCookie(req); got != "XY98ZW76" {
		t.Fatalf("expected trimmed code, got %q", got)
	}
}
