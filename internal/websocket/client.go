package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/session"
)

const sendBuffer = 64

// Conn is the part of *websocket.Conn the client writes through.
type Conn interface {
	SetWriteDeadline(t time.Time) error
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type closeFrame struct {
	code   int
	reason string
}

// Client is one student's socket as seen by a session: it delivers
// notifications to the browser and feeds browser signals back in.
// Writes happen on a dedicated goroutine and Send never waits on it, so
// a slow socket cannot stall the session while it holds its lock. A
// client that falls a full buffer behind is dropped.
type Client struct {
	conn Conn
	log  zerolog.Logger

	send     chan interface{}
	done     chan struct{}
	stop     chan struct{}
	stopped  sync.Once
	finished sync.Once

	subMu   sync.Mutex
	nextSub int
	subs    map[int]func(proctor.Signal)
}

// NewClient starts the write loop for conn.
func NewClient(conn Conn, log zerolog.Logger) *Client {
	c := &Client{
		conn: conn,
		log:  log,
		send: make(chan interface{}, sendBuffer),
		done: make(chan struct{}),
		stop: make(chan struct{}),
		subs: make(map[int]func(proctor.Signal)),
	}
	go c.writeLoop()
	return c
}

func (c *Client) writeLoop() {
	defer close(c.done)
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if cf, ok := msg.(closeFrame); ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(cf.code, cf.reason))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.Debug().Err(err).Msg("Write failed, dropping client")
				return
			}
		case <-c.stop:
			// closing the socket ends the reader on the other side
			_ = c.conn.Close()
			return
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug().Err(err).Msg("Ping failed, dropping client")
				return
			}
		}
	}
}

// Send queues v for delivery without blocking. It returns false once the
// client is gone, or when the buffer is full, in which case the client is
// dropped.
func (c *Client) Send(v interface{}) bool {
	select {
	case <-c.done:
		return false
	case <-c.stop:
		return false
	default:
	}
	select {
	case c.send <- v:
		return true
	default:
		c.log.Warn().Int("buffered", len(c.send)).Msg("Send buffer full, dropping client")
		c.drop()
		return false
	}
}

func (c *Client) drop() {
	c.stopped.Do(func() { close(c.stop) })
}

// SendError queues an error event.
func (c *Client) SendError(code, msg string, fields map[string]string) {
	c.Send(ErrorResponse{Event: EventError, Code: code, Error: msg, Field: fields})
}

// Finish queues a close frame after everything already sent and waits
// for the writer to stop.
func (c *Client) Finish(code int, reason string) {
	c.finished.Do(func() {
		c.Send(closeFrame{code: code, reason: reason})
	})
	<-c.done
}

// Done is closed when the writer has stopped.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ─── session.EventSource ────────────────────────────────────────────

func (c *Client) Subscribe(handler func(proctor.Signal)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = handler
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// Emit hands a browser signal to every subscriber.
func (c *Client) Emit(s proctor.Signal) {
	c.subMu.Lock()
	handlers := make([]func(proctor.Signal), 0, len(c.subs))
	for _, h := range c.subs {
		handlers = append(handlers, h)
	}
	c.subMu.Unlock()

	for _, h := range handlers {
		h(s)
	}
}

// ─── session.Notifier ───────────────────────────────────────────────

func (c *Client) StateChanged(v session.View) {
	c.Send(StateResponse{Event: EventState, Data: v})
}

func (c *Client) Tick(timeLeft int) {
	c.Send(TickResponse{Event: EventTick, TimeLeftSeconds: timeLeft})
}

func (c *Client) Warning(count, max int) {
	c.Send(WarningResponse{Event: EventWarning, ViolationCount: count, MaxViolations: max, Message: WarningMessage})
}

func (c *Client) Blocked(s proctor.Signal) {
	c.Send(BlockedResponse{Event: EventBlocked, Signal: s, Message: BlockedMessage})
}

func (c *Client) Escalated(count, max int) {
	c.Send(WarningResponse{Event: EventEscalated, ViolationCount: count, MaxViolations: max, Message: EscalatedMessage})
}

func (c *Client) Completed(r model.Result) {
	c.Send(CompletedResponse{Event: EventCompleted, Result: r})
}

func (c *Client) Error(err error) {
	c.SendError("SUBMIT_FAILED", err.Error(), nil)
}

var (
	_ session.Notifier    = (*Client)(nil)
	_ session.EventSource = (*Client)(nil)
)
