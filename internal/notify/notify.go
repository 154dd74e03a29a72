// Package notify carries user-facing notices (toasts in the dashboard).
package notify

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type Level string

const (
	Success Level = "success"
	Info    Level = "info"
	Warning Level = "warning"
	Error   Level = "error"
)

// Notice is one message for the user. Field names the offending input for
// validation failures.
type Notice struct {
	Level   Level
	Title   string
	Message string
	Field   string
}

type Notifier interface {
	Notify(Notice)
}

// Func adapts a function to Notifier.
type Func func(Notice)

func (f Func) Notify(n Notice) { f(n) }

// LogNotifier writes notices to a Logrus entry.
type LogNotifier struct {
	Entry *logrus.Entry
}

func (l LogNotifier) Notify(n Notice) {
	entry := l.Entry
	if entry == nil {
		entry = logrus.NewEntry(logrus.StandardLogger())
	}
	entry = entry.WithFields(logrus.Fields{"notice": n.Level, "title": n.Title})
	if n.Field != "" {
		entry = entry.WithField("field", n.Field)
	}
	switch n.Level {
	case Error:
		entry.Error(n.Message)
	case Warning:
		entry.Warn(n.Message)
	default:
		entry.Info(n.Message)
	}
}

// Recorder keeps every notice in memory.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Last returns the most recent notice.
func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}

// Fanout delivers each notice to every notifier.
type Fanout []Notifier

func (f Fanout) Notify(n Notice) {
	for _, x := range f {
		if x != nil {
			x.Notify(n)
		}
	}
}
