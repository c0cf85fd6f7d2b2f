// Package tunnel optionally exposes the status HTTP server
// (internal/statusserver) on a public ngrok URL, grounded on the teacher's
// internal/remote/ngrok tunnel wrapper. Unlike the teacher's generic
// Options struct, Expose is driven straight off the loaded
// internal/config.Tunnel section and the status server's own listen
// address, since this module has exactly one thing it ever tunnels.
package tunnel

import (
	"context"
	"errors"
	"net/url"
	"os"
	"time"

	ngrok "golang.ngrok.com/ngrok"
	"golang.ngrok.com/ngrok/config"

	cfgpkg "github.com/bailanluo/autofish/internal/config"
)

// Tunnel is a live forward from a public ngrok URL to the local status
// server. Close it to tear the forward down.
type Tunnel struct {
	forwarder ngrok.Forwarder
}

// Expose dials ngrok and begins forwarding to the status server listening
// on statusAddr, configured from cfg (internal/config.Tunnel). It returns
// (nil, nil) without dialing anything if cfg.Enabled is false or no
// authtoken is available, either on cfg or via NGROK_AUTHTOKEN — the caller
// need not duplicate that gating itself. The returned Tunnel stays up until
// ctx is canceled or Close is called.
func Expose(ctx context.Context, cfg cfgpkg.Tunnel, statusAddr string) (*Tunnel, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if statusAddr == "" {
		return nil, errors.New("tunnel: status server address is required")
	}

	connectOpts := make([]ngrok.ConnectOption, 0, 1)
	switch {
	case cfg.Authtoken != "":
		connectOpts = append(connectOpts, ngrok.WithAuthtoken(cfg.Authtoken))
	case os.Getenv("NGROK_AUTHTOKEN") != "":
		connectOpts = append(connectOpts, ngrok.WithAuthtokenFromEnv())
	default:
		return nil, nil
	}

	backend, err := url.Parse("http://" + statusAddr)
	if err != nil {
		return nil, err
	}

	httpOpts := make([]config.HTTPEndpointOption, 0, 1)
	if cfg.Domain != "" {
		httpOpts = append(httpOpts, config.WithDomain(cfg.Domain))
	}

	fwd, err := ngrok.ListenAndForward(ctx, backend, config.HTTPEndpoint(httpOpts...), connectOpts...)
	if err != nil {
		return nil, err
	}

	return &Tunnel{forwarder: fwd}, nil
}

// URL reports the public ngrok URL, or "" if the tunnel never started.
func (t *Tunnel) URL() string {
	if t == nil || t.forwarder == nil {
		return ""
	}
	return t.forwarder.URL()
}

// Close tears down the forward.
func (t *Tunnel) Close() error {
	if t == nil || t.forwarder == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return t.forwarder.CloseWithContext(ctx)
}
