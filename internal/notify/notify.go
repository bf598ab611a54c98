package notify

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// ErrUnavailable means permission was denied or no delivery channel exists.
var ErrUnavailable = errors.New("notifications unavailable")

// Notifier is the outbound port for user-visible alerts. Emit is fire and
// forget: callers log its error and move on.
type Notifier interface {
	RequestPermission(ctx context.Context) error
	Emit(title, body string) error
}

type Alert struct {
	Title string
	Body  string
	At    time.Time
}

type permission int

const (
	undetermined permission = iota
	granted
	denied
)

// Terminal delivers alerts to the running terminal UI and rings the bell.
// It is only usable when its output is a TTY.
type Terminal struct {
	out    io.Writer
	tty    bool
	alerts chan Alert

	mu    sync.Mutex
	state permission
}

func NewTerminal(f *os.File) *Terminal {
	fd := f.Fd()
	return newTerminal(f, isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd))
}

func newTerminal(out io.Writer, tty bool) *Terminal {
	return &Terminal{
		out:    out,
		tty:    tty,
		alerts: make(chan Alert, 16),
	}
}

func (t *Terminal) RequestPermission(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == undetermined {
		t.state = denied
		if t.tty {
			t.state = granted
		}
	}
	if t.state != granted {
		return ErrUnavailable
	}
	return nil
}

func (t *Terminal) Emit(title, body string) error {
	t.mu.Lock()
	ok := t.state == granted
	t.mu.Unlock()
	if !ok {
		return ErrUnavailable
	}

	select {
	case t.alerts <- Alert{Title: title, Body: body, At: time.Now()}:
	default:
		// UI is not draining; the bell still rings.
	}
	_, err := io.WriteString(t.out, "\a")
	return err
}

// Alerts is drained by the UI.
func (t *Terminal) Alerts() <-chan Alert {
	return t.alerts
}

type Log struct {
	logger zerolog.Logger
}

func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "notifier").Logger()}
}

func (*Log) RequestPermission(context.Context) error { return nil }

func (l *Log) Emit(title, body string) error {
	l.logger.Info().Str("title", title).Str("body", body).Msg("reminder")
	return nil
}

// Multi fans out to every notifier. It is available when at least one of
// them is.
type Multi []Notifier

func (m Multi) RequestPermission(ctx context.Context) error {
	var errs []error
	for _, n := range m {
		if err := n.RequestPermission(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(m) == 0 || len(errs) == len(m) {
		return errors.Join(append([]error{ErrUnavailable}, errs...)...)
	}
	return nil
}

func (m Multi) Emit(title, body string) error {
	var errs []error
	for _, n := range m {
		if err := n.Emit(title, body); err != nil {
			errs = append(errs, err)
		}
	}
	if len(m) == 0 {
		return ErrUnavailable
	}
	if len(errs) == len(m) {
		return errors.Join(errs...)
	}
	return nil
}
