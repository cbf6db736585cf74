// Package realtime follows the backend change feed for the signed-in user.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"buzz-client/internal/authctx"
	"buzz-client/internal/domain/auth"
	wstypes "buzz-client/internal/domain/websocket"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	handshakeTimeout = 10 * time.Second
	readWait         = 90 * time.Second
	writeWait        = 5 * time.Second
)

// Target is the auth state the feed reacts on.
type Target interface {
	Snapshot() authctx.Value
	RefreshProfile(ctx context.Context) (authctx.Value, error)
	SignOut(ctx context.Context) error
}

type Option func(*Client)

// WithLimiter overrides reconnect pacing.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

type Client struct {
	url     string
	anonKey string
	target  Target
	dialer  *websocket.Dialer
	limiter *rate.Limiter
	logger  *zap.Logger

	// wake is poked whenever the auth value changes
	wake chan struct{}

	mu        sync.Mutex
	connected bool
}

func New(rawURL, anonKey string, target Target, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		url:     rawURL,
		anonKey: anonKey,
		target:  target,
		dialer:  &websocket.Dialer{HandshakeTimeout: handshakeTimeout, Proxy: http.ProxyFromEnvironment},
		limiter: rate.NewLimiter(rate.Every(5*time.Second), 3),
		logger:  logger,
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Notify tells the client the auth value changed. Never blocks.
func (c *Client) Notify(authctx.Value) {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Connected reports whether a feed connection is open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Run keeps a feed connection open while someone is signed in and returns when ctx ends. An
// empty URL disables the feed.
func (c *Client) Run(ctx context.Context) {
	if c.url == "" {
		c.logger.Info("realtime feed disabled")
		return
	}

	for {
		ident := c.target.Snapshot().Identity
		// An expired token would be refused by the feed; wait for the session refresh to land.
		if ident == nil || ident.Expired(time.Now()) {
			select {
			case <-ctx.Done():
				return
			case <-c.wake:
				continue
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return
		}

		err := c.follow(ctx, ident)
		if ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, errSubjectChanged) {
			c.logger.Warn("realtime feed dropped", zap.String("user_id", ident.ID.String()), zap.Error(err))
		}
	}
}

var errSubjectChanged = errors.New("signed-in user changed")

// follow holds one connection for ident until it fails or another user signs in.
func (c *Client) follow(ctx context.Context, ident *auth.Identity) error {
	target, err := c.endpoint()
	if err != nil {
		return err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+ident.AccessToken)

	conn, _, err := c.dialer.DialContext(ctx, target, header)
	if err != nil {
		return fmt.Errorf("dial realtime feed: %w", err)
	}
	defer conn.Close()

	c.setConnected(true)
	defer c.setConnected(false)
	c.logger.Info("realtime feed connected", zap.String("user_id", ident.ID.String()))

	connCtx, cancel := context.WithCancel(ctx)
	var (
		wg      sync.WaitGroup
		changed bool
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-connCtx.Done():
				conn.Close()
				return
			case <-c.wake:
				if !ident.SameSubject(c.target.Snapshot().Identity) {
					changed = true
					conn.Close()
					return
				}
			}
		}
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			cancel()
			wg.Wait()
			if changed {
				return errSubjectChanged
			}
			return err
		}
		conn.SetReadDeadline(time.Now().Add(readWait))

		msg, err := wstypes.ParseMessage(data)
		if err != nil {
			c.logger.Warn("unreadable realtime frame", zap.Error(err))
			continue
		}
		c.dispatch(ctx, conn, ident, msg)
	}
}

func (c *Client) dispatch(ctx context.Context, conn *websocket.Conn, ident *auth.Identity, msg *wstypes.WSMessage) {
	switch msg.Type {
	case wstypes.EventTypeProfileUpdated:
		var data wstypes.ProfileUpdatedData
		if err := msg.DecodeData(&data); err != nil {
			c.logger.Warn("bad profile:updated payload", zap.Error(err))
			return
		}
		if data.ID != "" && data.ID != ident.ID.String() {
			return
		}
		if _, err := c.target.RefreshProfile(ctx); err != nil {
			c.logger.Warn("profile refresh after change failed", zap.Error(err))
		}

	case wstypes.EventTypeForceLogout, wstypes.EventTypeSessionExpired:
		var data wstypes.SessionEventData
		_ = msg.DecodeData(&data)
		c.logger.Info("backend ended the session", zap.String("event", string(msg.Type)), zap.String("reason", data.Reason))
		if err := c.target.SignOut(ctx); err != nil {
			c.logger.Warn("remote sign-out failed, local session cleared", zap.Error(err))
		}

	case wstypes.EventTypePing:
		pong, err := wstypes.NewMessage(wstypes.EventTypePong, nil).ToJSON()
		if err != nil {
			return
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, pong); err != nil {
			c.logger.Debug("realtime pong failed", zap.Error(err))
		}

	default:
		c.logger.Debug("ignoring realtime event", zap.String("type", string(msg.Type)))
	}
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if c.anonKey != "" {
		q := u.Query()
		q.Set("apikey", c.anonKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
