package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "buzz-client/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func startShell(t *testing.T) (*ws.Hub, string) {
	t.Helper()
	hub := ws.NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	h := NewWebSocketHandler(hub, []string{"http://localhost:5173/"}, zap.NewNop())
	r := gin.New()
	r.GET("/ws", h.HandleConnection)
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dialWithOrigin(url, origin string) (*websocket.Conn, *http.Response, error) {
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func TestHandleConnection_Origins(t *testing.T) {
	cases := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"no origin", "", true},
		{"allowed origin", "http://localhost:5173", true},
		{"foreign origin", "https://evil.example.com", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hub, url := startShell(t)

			conn, resp, err := dialWithOrigin(url, tc.origin)
			if !tc.ok {
				require.Error(t, err)
				require.NotNil(t, resp)
				assert.Equal(t, http.StatusForbidden, resp.StatusCode)
				return
			}
			require.NoError(t, err)
			defer conn.Close()
			assert.Eventually(t, func() bool { return hub.TotalClients() == 1 }, 2*time.Second, 10*time.Millisecond)
		})
	}
}
