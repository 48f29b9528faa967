package composite

import (
	"fmt"
	"time"
)

// Window is the closed-open [Start, End) range a composite schedule is
// resolved for. Both ends must fall on whole seconds.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow returns the window starting at start and lasting duration.
func NewWindow(start time.Time, duration time.Duration) Window {
	return Window{Start: start, End: start.Add(duration)}
}

// Duration returns the length of the window.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Validate checks that the window is non-empty and second aligned.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidWindow)
	}
	if !w.End.After(w.Start) {
		return fmt.Errorf("%w: end %s is not after start %s", ErrInvalidWindow, w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}
	if !w.Start.Truncate(time.Second).Equal(w.Start) || !w.End.Truncate(time.Second).Equal(w.End) {
		return fmt.Errorf("%w: start and end must be whole seconds", ErrInvalidWindow)
	}
	return nil
}

// clip narrows [start, end) to the window and reports whether anything is
// left.
func (w Window) clip(start, end time.Time) (time.Time, time.Time, bool) {
	if start.Before(w.Start) {
		start = w.Start
	}
	if end.After(w.End) {
		end = w.End
	}
	return start, end, start.Before(end)
}
