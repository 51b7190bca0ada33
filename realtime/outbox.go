package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultSendBuffer is how many events may wait for a slow connection
// before new ones are dropped
const DefaultSendBuffer = 256

// DefaultCloseGrace is how long a rejected connection stays open after its
// last event was handed to the transport. Polling clients only receive an
// event on their next poll.
const DefaultCloseGrace = time.Second

type outbound struct {
	event string
	args  []interface{}
}

// outbox queues events for one connection and writes them from its own
// goroutine. Rooms enqueue under their lock and never wait on the network.
type outbox struct {
	pending int64 // queued or being written, first for 64-bit alignment

	conn  Conn
	send  chan outbound
	grace time.Duration

	stop      chan struct{}
	stopOnce  sync.Once
	closeConn bool
	done      chan struct{}
}

func newOutbox(conn Conn, size int, grace time.Duration) *outbox {
	if size <= 0 {
		size = DefaultSendBuffer
	}
	o := &outbox{
		conn:  conn,
		send:  make(chan outbound, size),
		grace: grace,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go o.writePump()
	return o
}

// ID returns the id of the underlying connection
func (o *outbox) ID() string {
	return o.conn.ID()
}

// Emit queues an event. When the queue is full or the outbox is stopped the
// event is dropped.
func (o *outbox) Emit(event string, v ...interface{}) {
	select {
	case <-o.stop:
		return
	default:
	}

	atomic.AddInt64(&o.pending, 1)
	select {
	case o.send <- outbound{event: event, args: v}:
	default:
		atomic.AddInt64(&o.pending, -1)
		zap.S().Warnw("send buffer full, dropping event",
			"conn", o.conn.ID(),
			"event", event,
		)
	}
}

// Close writes out what is already queued and closes the connection once the
// grace period has passed
func (o *outbox) Close() error {
	o.finish(true)
	return nil
}

// release writes out what is already queued and stops the writer, leaving
// the connection open
func (o *outbox) release() {
	o.finish(false)
}

func (o *outbox) finish(closeConn bool) {
	o.stopOnce.Do(func() {
		o.closeConn = closeConn
		close(o.stop)
	})
}

// idle reports whether nothing is waiting to be written
func (o *outbox) idle() bool {
	return atomic.LoadInt64(&o.pending) == 0
}

func (o *outbox) writePump() {
	defer close(o.done)

	for {
		select {
		case msg := <-o.send:
			o.write(msg)
		case <-o.stop:
			for {
				select {
				case msg := <-o.send:
					o.write(msg)
				default:
					if o.closeConn {
						time.Sleep(o.grace)
						if err := o.conn.Close(); err != nil {
							zap.S().Debugw("close failed", "conn", o.conn.ID(), "error", err)
						}
					}
					return
				}
			}
		}
	}
}

func (o *outbox) write(msg outbound) {
	o.conn.Emit(msg.event, msg.args...)
	atomic.AddInt64(&o.pending, -1)
}
