package delivery

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const pingPeriod = 30 * time.Second

// SocketChannel is a Channel over a websocket. Payloads go through a bounded
// queue drained by a single writer goroutine, so frames reach the client in
// the order they were delivered. Only the writer goroutine touches the
// socket; Deliver and Close never block on the network.
type SocketChannel struct {
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	once      sync.Once
	closeMsg  []byte
	writeWait time.Duration
}

var _ Channel = (*SocketChannel)(nil)

func NewSocketChannel(ws *websocket.Conn, buffer int, writeWait time.Duration) *SocketChannel {
	return &SocketChannel{
		ws:        ws,
		send:      make(chan []byte, buffer),
		done:      make(chan struct{}),
		writeWait: writeWait,
	}
}

// Start launches the write loop. It must be called exactly once.
func (c *SocketChannel) Start() {
	go c.writeLoop()
}

func (c *SocketChannel) Deliver(payload []byte) error {
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
		c.CloseWith(websocket.ClosePolicyViolation, "send buffer full")
		return ErrChannelFull
	}
}

func (c *SocketChannel) Close() {
	c.CloseWith(websocket.CloseNormalClosure, "session closed")
}

// CloseWith marks the channel terminated. The writer goroutine sends the
// close frame with the given code and releases the socket.
func (c *SocketChannel) CloseWith(code int, reason string) {
	c.once.Do(func() {
		c.closeMsg = websocket.FormatCloseMessage(code, reason)
		close(c.done)
	})
}

func (c *SocketChannel) Done() <-chan struct{} {
	return c.done
}

func (c *SocketChannel) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		// closeMsg is set before done is closed
		_ = c.ws.WriteControl(websocket.CloseMessage, c.closeMsg, time.Now().Add(c.writeWait))
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.CloseWith(websocket.CloseInternalServerErr, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.CloseWith(websocket.CloseInternalServerErr, "ping failed")
				return
			}
		}
	}
}

func (c *SocketChannel) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}
