package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	readWait   = 5 * time.Minute
	pingPeriod = 30 * time.Second
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(readWait))
	return conn.ReadJSON(v)
}

// Outbox serializes writes to one connection. Any goroutine may Send;
// only Pump writes to the socket.
type Outbox struct {
	ch   chan interface{}
	done chan struct{}
	once sync.Once
}

// NewOutbox creates an outbox holding up to size pending messages.
func NewOutbox(size int) *Outbox {
	return &Outbox{
		ch:   make(chan interface{}, size),
		done: make(chan struct{}),
	}
}

// Send queues v without blocking. It reports false when the outbox is
// closed or full; a full outbox means the client stopped reading.
func (o *Outbox) Send(v interface{}) bool {
	select {
	case <-o.done:
		return false
	default:
	}
	select {
	case o.ch <- v:
		return true
	case <-o.done:
		return false
	default:
		return false
	}
}

// Close stops Pump. Safe to call more than once.
func (o *Outbox) Close() {
	o.once.Do(func() { close(o.done) })
}

// Done is closed once the outbox is closed.
func (o *Outbox) Done() <-chan struct{} {
	return o.done
}

// Pump writes queued messages and keep-alive pings until Close or a write
// error. Messages queued before Close are flushed first.
func (o *Outbox) Pump(conn *websocket.Conn) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case v := <-o.ch:
			if err := WriteTyped(conn, v); err != nil {
				return err
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		case <-o.done:
			for {
				select {
				case v := <-o.ch:
					if err := WriteTyped(conn, v); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		}
	}
}

// KeepAlive extends the read deadline whenever the client answers a ping.
func KeepAlive(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})
}
