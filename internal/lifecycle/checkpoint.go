// Package lifecycle runs the background housekeeping: the sweeper that
// forfeits abandoned games and prunes expired records, and the
// checkpointer that coalesces snapshot writes.
package lifecycle

import (
	"sync"

	"github.com/decred/slog"
)

// Checkpointer coalesces snapshot requests: any number of Request calls
// between two writes produce one write. A failed write is logged and the
// next request retries it.
type Checkpointer struct {
	save     func() error
	requests chan struct{}
	quit     chan struct{}
	done     chan struct{}
	once     sync.Once
	log      slog.Logger
}

// NewCheckpointer starts the write loop. A nil save disables persistence;
// Request becomes a no-op.
func NewCheckpointer(save func() error, log slog.Logger) *Checkpointer {
	c := &Checkpointer{
		save:     save,
		requests: make(chan struct{}, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		log:      log,
	}
	go c.run()
	return c
}

// Request asks for a snapshot write. It never blocks: a write is already
// pending when the buffer is full, and that write will cover this change.
func (c *Checkpointer) Request() {
	if c.save == nil {
		return
	}
	select {
	case c.requests <- struct{}{}:
	default:
	}
}

func (c *Checkpointer) run() {
	defer close(c.done)
	for {
		select {
		case <-c.requests:
			c.write()
		case <-c.quit:
			// Flush anything requested before shutdown.
			select {
			case <-c.requests:
				c.write()
			default:
			}
			return
		}
	}
}

func (c *Checkpointer) write() {
	if c.save == nil {
		return
	}
	if err := c.save(); err != nil {
		c.log.Errorf("snapshot checkpoint failed: %v", err)
	}
}

// Close stops the loop after flushing one final pending write.
func (c *Checkpointer) Close() {
	c.once.Do(func() {
		close(c.quit)
		<-c.done
	})
}
