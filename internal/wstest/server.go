// Package wstest runs in-process websocket servers for tests.
package wstest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

// HandlerFunc serves one upgraded connection. The connection is closed when
// it returns.
type HandlerFunc func(c *websocket.Conn, r *http.Request)

// NewServer starts a websocket server and returns its ws:// URL. The server
// stops when the test ends.
func NewServer(t testing.TB, handler HandlerFunc) string {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer reject" {
			http.Error(w, "invalid api key", http.StatusUnauthorized)
			return
		}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		handler(c, r)
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// Echo sends every text message back.
func Echo(c *websocket.Conn, _ *http.Request) {
	for {
		typ, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		if err := c.WriteMessage(typ, data); err != nil {
			return
		}
	}
}
