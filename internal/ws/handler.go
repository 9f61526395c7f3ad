package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/yahtzee-backend/internal/hub"
	"github.com/DoyleJ11/yahtzee-backend/internal/transport"
)

const writeTimeout = 3 * time.Second

// Handler speaks the line protocol over WebSocket text frames, one line per
// frame. ?code= joins a specific table; without it the session takes the open one.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	log = log.Named("ws")
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.ToUpper(r.URL.Query().Get("code"))
		if code != "" {
			if _, err := h.Table(r.Context(), code); err != nil {
				http.Error(w, "table not found", http.StatusNotFound)
				return
			}
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			log.Info("upgrade failed", zap.Error(err))
			return
		}

		conn := &wsConn{conn: c, remote: r.RemoteAddr}
		_ = transport.Serve(r.Context(), h, code, conn, log)
	}
}

type wsConn struct {
	conn    *websocket.Conn
	remote  string
	pending []string // lines left over from a multi-line frame

	closeOnce sync.Once
}

func (c *wsConn) ReadLine(ctx context.Context) (string, error) {
	for len(c.pending) == 0 {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			return "", err
		}
		if typ != websocket.MessageText {
			continue
		}
		c.pending = strings.Split(strings.TrimRight(string(data), "\r\n"), "\n")
	}
	line := c.pending[0]
	c.pending = c.pending[1:]
	return line, nil
}

func (c *wsConn) WriteLine(ctx context.Context, line string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, []byte(line))
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close(websocket.StatusNormalClosure, "bye")
		// Treat clean close/going-away as normal
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			err = nil
		}
	})
	return err
}

func (c *wsConn) RemoteAddr() string { return c.remote }
