package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/soyeahso/parley/internal/config"
)

// tokenScope is the Entra scope for the speech service.
const tokenScope = "https://cognitiveservices.azure.com/.default"

// ErrNoCredentials is returned when neither an API key nor Entra
// client credentials are configured.
var ErrNoCredentials = errors.New("no speech credentials configured")

// Dialer opens authenticated connections to the speech service.
type Dialer struct {
	cfg   config.SpeechConfig
	entra *clientcredentials.Config
}

// NewDialer creates a Dialer from speech configuration. API key auth is
// preferred; Entra client credentials are used when no key is set.
func NewDialer(cfg config.SpeechConfig) *Dialer {
	d := &Dialer{cfg: cfg}
	if cfg.APIKey == "" && cfg.Entra != nil {
		d.entra = &clientcredentials.Config{
			ClientID:     cfg.Entra.ClientID,
			ClientSecret: cfg.Entra.ClientSecret,
			TokenURL: fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token",
				cfg.Entra.TenantID),
			Scopes: []string{tokenScope},
		}
	}
	return d
}

// Dial connects to the speech service and returns the live connection.
func (d *Dialer) Dial(ctx context.Context) (Conn, error) {
	u, err := d.url()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	switch {
	case d.cfg.APIKey != "":
		header.Set("api-key", d.cfg.APIKey)
	case d.entra != nil:
		tok, err := d.entra.TokenSource(ctx).Token()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire token: %w", err)
		}
		header.Set("Authorization", "Bearer "+tok.AccessToken)
	default:
		return nil, ErrNoCredentials
	}

	sock, resp, err := websocket.DefaultDialer.DialContext(ctx, u, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect (%d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return NewConn(sock), nil
}

// url builds the realtime endpoint URL from the configured resource
// endpoint, API version and model.
func (d *Dialer) url() (string, error) {
	u, err := url.Parse(d.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", d.cfg.Endpoint, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid endpoint %q: unsupported scheme", d.cfg.Endpoint)
	}
	if !strings.HasSuffix(u.Path, "/voice-live/realtime") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/voice-live/realtime"
	}

	q := u.Query()
	q.Set("api-version", d.cfg.APIVersion)
	q.Set("model", d.cfg.Model)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
