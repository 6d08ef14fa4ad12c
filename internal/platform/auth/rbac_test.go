package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  int
	}{
		{"operator allowed", []string{"operator"}, http.StatusOK},
		{"admin allowed", []string{"admin"}, http.StatusOK},
		{"other denied", []string{"viewer"}, http.StatusForbidden},
		{"none denied", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(context.WithValue(req.Context(), UserRolesKey, tt.roles))
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := RequireRole("operator")(okHandler)(c)
			if tt.want == http.StatusOK {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != tt.want {
				t.Errorf("expected %d, got %v", tt.want, err)
			}
		})
	}
}

func TestHasRole(t *testing.T) {
	if !HasRole([]string{RoleAdmin}, "anything") {
		t.Error("expected admin to hold every role")
	}
	if HasRole([]string{"viewer"}, RoleOperator) {
		t.Error("expected viewer not to hold operator")
	}
	if HasRole(nil, RoleOperator) {
		t.Error("expected no roles to hold nothing")
	}
}
