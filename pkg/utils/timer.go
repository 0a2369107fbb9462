package utils

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// TimerOutput receives the lines of a timing summary.
type TimerOutput interface {
	Output(format string, args ...interface{})
}

// LoggerOutput adapts Logger to TimerOutput.
type LoggerOutput struct {
	Logger Logger
}

// Output implements TimerOutput using Logger.Info.
func (o *LoggerOutput) Output(format string, args ...interface{}) {
	if o.Logger != nil {
		o.Logger.Info(format, args...)
	}
}

// Phase is one timed stage of a dump: map, decode, walk or render.
type Phase struct {
	Name     string
	Start    time.Time
	Duration time.Duration
	Failed   bool

	done bool
}

// PhaseTimer stops a single phase; it is meant to be deferred.
type PhaseTimer struct {
	timer *Timer
	name  string
}

// Stop records the phase duration. Only the first call has effect.
func (pt *PhaseTimer) Stop() time.Duration {
	return pt.timer.StopPhase(pt.name)
}

// Timer records named phases in first-start order. Restarting a phase
// discards its earlier measurement.
type Timer struct {
	mu      sync.Mutex
	name    string
	clock   Clock
	start   time.Time
	phases  []*Phase
	output  TimerOutput
	enabled bool
}

// TimerOption configures a Timer instance.
type TimerOption func(*Timer)

// WithOutput sets where PrintSummary writes.
func WithOutput(output TimerOutput) TimerOption {
	return func(t *Timer) { t.output = output }
}

// WithLogger makes PrintSummary log at info level.
func WithLogger(logger Logger) TimerOption {
	return func(t *Timer) {
		if logger != nil {
			t.output = &LoggerOutput{Logger: logger}
		}
	}
}

// WithEnabled toggles recording. A disabled timer records nothing.
func WithEnabled(enabled bool) TimerOption {
	return func(t *Timer) { t.enabled = enabled }
}

// WithClock sets a custom clock.
func WithClock(clock Clock) TimerOption {
	return func(t *Timer) { t.clock = clock }
}

// NewTimer creates a Timer; its total starts now.
func NewTimer(name string, opts ...TimerOption) *Timer {
	t := &Timer{name: name, enabled: true, clock: RealClock{}}
	for _, opt := range opts {
		opt(t)
	}
	t.start = t.clock.Now()
	return t
}

func (t *Timer) find(name string) *Phase {
	for _, p := range t.phases {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Start starts timing a phase.
func (t *Timer) Start(name string) *PhaseTimer {
	pt := &PhaseTimer{timer: t, name: name}
	if !t.enabled {
		return pt
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.find(name)
	if p == nil {
		p = &Phase{Name: name}
		t.phases = append(t.phases, p)
	}
	*p = Phase{Name: name, Start: t.clock.Now()}
	return pt
}

// StopPhase stops a phase and returns its duration.
func (t *Timer) StopPhase(name string) time.Duration {
	if !t.enabled {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.find(name)
	if p == nil {
		return 0
	}
	if !p.done {
		p.Duration = t.clock.Now().Sub(p.Start)
		p.done = true
	}
	return p.Duration
}

// TimeFuncWithError times fn as a phase, marking it failed when fn errors.
func (t *Timer) TimeFuncWithError(name string, fn func() error) (time.Duration, error) {
	pt := t.Start(name)
	err := fn()
	d := pt.Stop()
	if err != nil && t.enabled {
		t.mu.Lock()
		if p := t.find(name); p != nil {
			p.Failed = true
		}
		t.mu.Unlock()
	}
	return d, err
}

// GetPhases returns copies of all phases in start order.
func (t *Timer) GetPhases() []Phase {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Phase, len(t.phases))
	for i, p := range t.phases {
		out[i] = *p
	}
	return out
}

// TotalDuration returns the time elapsed since the timer was created.
func (t *Timer) TotalDuration() time.Duration {
	return t.clock.Now().Sub(t.start)
}

// Summary returns the summary lines joined by newlines.
func (t *Timer) Summary() string {
	if !t.enabled {
		return ""
	}
	var sb strings.Builder
	t.each(func(format string, args ...interface{}) {
		fmt.Fprintf(&sb, format, args...)
		sb.WriteByte('\n')
	})
	return sb.String()
}

// PrintSummary writes the summary through the configured output.
func (t *Timer) PrintSummary() {
	if !t.enabled || t.output == nil {
		return
	}
	t.each(t.output.Output)
}

// each emits a header, one line per phase with its share of the total, and the total.
func (t *Timer) each(emit func(format string, args ...interface{})) {
	total := t.TotalDuration()
	emit("=== %s timing ===", t.name)
	for _, p := range t.GetPhases() {
		share := 0.0
		if total > 0 {
			share = 100 * float64(p.Duration) / float64(total)
		}
		mark := ""
		if p.Failed {
			mark = " FAILED"
		}
		emit("%-8s %10v %5.1f%%%s", p.Name, p.Duration, share, mark)
	}
	emit("%-8s %10v", "total", total)
}

// NullTimer is a no-op timer.
var NullTimer = NewTimer("null", WithEnabled(false))
