// Package common provides shared timing helpers.
package common

import (
	"fmt"
	"strings"
	"time"
)

// Timer measures one named span.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewNamedTimer starts a timer with the given name.
func NewNamedTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now()}
}

// Stop stops the timer and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration { return t.duration }

// Name returns the timer name.
func (t *Timer) Name() string { return t.name }

func (t *Timer) String() string {
	return fmt.Sprintf("%s: %v", t.name, t.duration)
}

// Lap is a finished timer.
type Lap struct {
	Name     string        `json:"name" yaml:"name"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Stopwatch records consecutive named laps, e.g. one per pipeline stage.
type Stopwatch struct {
	laps []Lap
}

// Time runs fn and records its duration under name.
func (s *Stopwatch) Time(name string, fn func()) {
	t := NewNamedTimer(name)
	fn()
	s.laps = append(s.laps, Lap{Name: name, Duration: t.Stop()})
}

// Laps returns the recorded laps in order.
func (s *Stopwatch) Laps() []Lap { return append([]Lap(nil), s.laps...) }

// Total returns the sum of all laps.
func (s *Stopwatch) Total() time.Duration {
	var total time.Duration
	for _, l := range s.laps {
		total += l.Duration
	}
	return total
}

func (s *Stopwatch) String() string {
	parts := make([]string, len(s.laps))
	for i, l := range s.laps {
		parts[i] = fmt.Sprintf("%s=%v", l.Name, l.Duration)
	}
	return strings.Join(parts, " ")
}
