package main

import (
	"context"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/clinic/agenda/internal/config"
	"github.com/clinic/agenda/internal/platform/auth"
	"github.com/clinic/agenda/internal/platform/middleware"
)

func TestSplitRoles(t *testing.T) {
	got := splitRoles(" operator, admin ,,")
	if len(got) != 2 || got[0] != "operator" || got[1] != "admin" {
		t.Errorf("expected [operator admin], got %v", got)
	}
	if got := splitRoles(""); len(got) != 0 {
		t.Errorf("expected no roles, got %v", got)
	}
}

func TestMigrationsFS_Embedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS(""), ".")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) < 3 {
		t.Errorf("expected embedded migrations, got %d entries", len(entries))
	}
}

func TestOperatorJWT_RoundTrip(t *testing.T) {
	cfg := &config.Config{OperatorTokenSecret: "operator-secret-0123456789"}
	jc := operatorJWT(cfg)
	if jc.Issuer != operatorIssuer || string(jc.SigningKey) != cfg.OperatorTokenSecret {
		t.Errorf("unexpected jwt config: %+v", jc)
	}
	tok, err := auth.IssueOperatorToken(jc, "ops", []string{"operator"}, time.Hour, time.Now())
	if err != nil || tok == "" {
		t.Fatalf("expected token, got %q / %v", tok, err)
	}
}

func TestApp_LocalLimiterWithoutRedis(t *testing.T) {
	a := &app{cfg: &config.Config{RateLimitRPS: 5, RateLimitBurst: 1}}
	l, ok := a.limiter().(*middleware.LocalLimiter)
	if !ok {
		t.Fatalf("expected local limiter, got %T", a.limiter())
	}
	allowed, _, _ := l.Allow(context.Background(), "1.2.3.4")
	if !allowed {
		t.Error("expected first request allowed")
	}
	allowed, _, _ = l.Allow(context.Background(), "1.2.3.4")
	if allowed {
		t.Error("expected second request rejected with burst 1")
	}
}

func TestTokensOrNil(t *testing.T) {
	if tokensOrNil(nil) != nil {
		t.Error("expected untyped nil")
	}
	if tokensOrNil(auth.NewConfirmationTokens("0123456789abcdef", time.Hour, time.Now)) == nil {
		t.Error("expected parser")
	}
}

func TestRunServer_ReturnsConfigError(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/agenda")
	t.Setenv("TIMEZONE", "Nowhere/Invalid")

	err := runServer()
	if err == nil || !strings.Contains(err.Error(), "TIMEZONE") {
		t.Fatalf("expected TIMEZONE error, got %v", err)
	}
}
