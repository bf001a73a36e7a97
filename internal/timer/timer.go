// Package timer runs pomodoro focus sessions: alternating work and break
// phases with a terminal countdown.
package timer

import (
	"context"
	"fmt"
	"io"
	"time"
)

type Phase string

const (
	PhaseWork  Phase = "work"
	PhaseBreak Phase = "break"
)

// Session is one focus run. Cycles counts work phases; every work phase
// except the last is followed by a break.
type Session struct {
	Work   time.Duration
	Break  time.Duration
	Cycles int
	Out    io.Writer

	// Tick overrides the countdown resolution, for tests.
	Tick time.Duration
	// OnPhase is called as each phase starts.
	OnPhase func(phase Phase, cycle int)
}

// Run blocks until every cycle finishes or the context is canceled.
func (s *Session) Run(ctx context.Context) error {
	if s.Work <= 0 {
		s.Work = 25 * time.Minute
	}
	if s.Break <= 0 {
		s.Break = 5 * time.Minute
	}
	if s.Cycles <= 0 {
		s.Cycles = 1
	}
	if s.Out == nil {
		s.Out = io.Discard
	}
	tick := s.Tick
	if tick <= 0 {
		tick = time.Second
	}

	for cycle := 1; cycle <= s.Cycles; cycle++ {
		if err := s.phase(ctx, PhaseWork, cycle, s.Work, tick); err != nil {
			return err
		}
		if cycle == s.Cycles {
			break
		}
		if err := s.phase(ctx, PhaseBreak, cycle, s.Break, tick); err != nil {
			return err
		}
	}
	fmt.Fprintln(s.Out, "session complete")
	return nil
}

func (s *Session) phase(ctx context.Context, phase Phase, cycle int, total, tick time.Duration) error {
	if s.OnPhase != nil {
		s.OnPhase(phase, cycle)
	}
	fmt.Fprintf(s.Out, "%s %d/%d (%s)\n", phase, cycle, s.Cycles, format(total))

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	deadline := time.Now().Add(total)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			remaining := deadline.Sub(now)
			if remaining <= 0 {
				return nil
			}
			fmt.Fprintf(s.Out, "\r%s remaining: %s ", phase, format(remaining))
		}
	}
}

func format(d time.Duration) string {
	d = d.Round(time.Second)
	m := int(d.Minutes())
	sec := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", m, sec)
}
