package socket

import (
	"context"

	"nhooyr.io/websocket"
)

// WebsocketDialer returns the production Dialer backed by a websocket.
func WebsocketDialer() Dialer {
	return func(ctx context.Context, rawURL string) (Conn, error) {
		c, _, err := websocket.Dial(ctx, rawURL, nil)
		if err != nil {
			return nil, err
		}
		return &wsConn{conn: c}, nil
	}
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "client disconnect")
}
