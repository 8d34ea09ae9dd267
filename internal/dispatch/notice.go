package dispatch

import "sync"

// Notice levels
const (
	LevelInfo     = "info"
	LevelError    = "error"
	LevelBlocking = "blocking"
)

// Notice is a user-facing message raised during a dispatch
type Notice struct {
	Level     string `json:"level"`
	PrinterID string `json:"printer_id,omitempty"`
	Message   string `json:"message"`
}

// Notifier receives notices. Notify may be called from several
// goroutines at once.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// collector gathers the notices of one dispatch and forwards them
type collector struct {
	mu      sync.Mutex
	notices []Notice
	next    Notifier
}

func (c *collector) Notify(n Notice) {
	c.mu.Lock()
	c.notices = append(c.notices, n)
	c.mu.Unlock()

	if c.next != nil {
		c.next.Notify(n)
	}
}

func (c *collector) list() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notice(nil), c.notices...)
}
