// Package notify carries transient, non-fatal user notices (the toast the UI
// shows when a shared link cannot be decoded, a URL is malformed, and so on).
package notify

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

type Notifier interface {
	Notify(n Notice)
}

type Func func(Notice)

func (f Func) Notify(n Notice) {
	if f != nil {
		f(n)
	}
}

func Warn(n Notifier, msg string) {
	if n == nil {
		return
	}
	n.Notify(Notice{Level: LevelWarning, Message: msg})
}

func Error(n Notifier, msg string) {
	if n == nil {
		return
	}
	n.Notify(Notice{Level: LevelError, Message: msg})
}

// Log writes notices to a logrus logger.
type Log struct {
	Logger logrus.FieldLogger
}

func (l Log) Notify(n Notice) {
	logger := l.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	entry := logger.WithField("notice", string(n.Level))
	switch n.Level {
	case LevelError:
		entry.Error(n.Message)
	case LevelWarning:
		entry.Warn(n.Message)
	default:
		entry.Info(n.Message)
	}
}

// Collector buffers notices so they can be handed back with a response.
type Collector struct {
	mu      sync.Mutex
	notices []Notice
}

func (c *Collector) Notify(n Notice) {
	c.mu.Lock()
	c.notices = append(c.notices, n)
	c.mu.Unlock()
}

func (c *Collector) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notice, len(c.notices))
	copy(out, c.notices)
	return out
}

func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.notices)
}

// Tee fans a notice out to every non-nil notifier.
func Tee(notifiers ...Notifier) Notifier {
	return Func(func(n Notice) {
		for _, target := range notifiers {
			if target != nil {
				target.Notify(n)
			}
		}
	})
}
