package tunnel

import (
	"context"
	"testing"

	cfgpkg "github.com/bailanluo/autofish/internal/config"
)

func TestExposeSkipsWhenDisabled(t *testing.T) {
	tun, err := Expose(context.Background(), cfgpkg.Tunnel{Enabled: false}, "127.0.0.1:8080")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tun != nil {
		t.Fatalf("expected a nil tunnel when disabled")
	}
}

func TestExposeSkipsWhenNoAuthtoken(t *testing.T) {
	t.Setenv("NGROK_AUTHTOKEN", "")
	tun, err := Expose(context.Background(), cfgpkg.Tunnel{Enabled: true}, "127.0.0.1:8080")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tun != nil {
		t.Fatalf("expected a nil tunnel when no authtoken is configured")
	}
}

func TestExposeRejectsEmptyStatusAddr(t *testing.T) {
	t.Setenv("NGROK_AUTHTOKEN", "token")
	_, err := Expose(context.Background(), cfgpkg.Tunnel{Enabled: true}, "")
	if err == nil {
		t.Fatalf("expected an error for an empty status address")
	}
}

func TestURLAndCloseAreNilSafe(t *testing.T) {
	var tun *Tunnel
	if got := tun.URL(); got != "" {
		t.Fatalf("expected empty URL on a nil tunnel, got %q", got)
	}
	if err := tun.Close(); err != nil {
		t.Fatalf("expected Close on a nil tunnel to be a no-op, got %v", err)
	}
}
