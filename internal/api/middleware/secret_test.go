package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func callWithSecret(t *testing.T, configured, sent string) int {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/updates", nil)
	if sent != "" {
		req.Header.Set(SecretHeader, sent)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	err := SharedSecret(configured)(next)(c)
	if err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec.Code
}

func TestSharedSecret_Matching(t *testing.T) {
	if code := callWithSecret(t, "hunter2", "hunter2"); code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
}

func TestSharedSecret_Wrong(t *testing.T) {
	if code := callWithSecret(t, "hunter2", "nope"); code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", code)
	}
}

func TestSharedSecret_Missing(t *testing.T) {
	if code := callWithSecret(t, "hunter2", ""); code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", code)
	}
}
