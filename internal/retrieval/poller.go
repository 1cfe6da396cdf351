package retrieval

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/otpmail/internal/model"
	"github.com/nhle/otpmail/internal/source"
)

// PollState is a step in the life of one poll.
type PollState int

const (
	StateConnecting PollState = iota
	StateScanning
	StateWaitingForNextRound
	StateFound
	StateTimedOut
)

func (s PollState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateScanning:
		return "scanning"
	case StateWaitingForNextRound:
		return "waiting"
	case StateFound:
		return "found"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions follow s.
func (s PollState) Terminal() bool {
	return s == StateFound || s == StateTimedOut
}

// StateFunc observes poll transitions. round is the 1-based round the
// state belongs to, or 0 before the first round.
type StateFunc func(state PollState, round int)

// PollResult is the terminal outcome of a poll.
type PollResult struct {
	Match  *model.Match
	Rounds int
	State  PollState
}

// Poller repeats stop-at-first rounds on one session until a code turns up
// or the deadline passes.
type Poller struct {
	round    *Round
	timeout  time.Duration
	interval time.Duration
	log      *zap.Logger

	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	observe StateFunc
}

// NewPoller creates a poller. timeout and interval are expected to be
// clamped already.
func NewPoller(round *Round, timeout, interval time.Duration, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		round:    round,
		timeout:  timeout,
		interval: interval,
		log:      log,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Observe registers fn to receive state transitions.
func (p *Poller) Observe(fn StateFunc) {
	p.observe = fn
}

// Poll runs rounds until one finds a code or the deadline passes. The
// deadline is only checked between rounds, so a round in flight always
// completes. The wait between rounds is the interval or the time left,
// whichever is shorter. Context cancellation aborts with ctx.Err().
func (p *Poller) Poll(ctx context.Context, sess source.Session) (PollResult, error) {
	deadline := p.now().Add(p.timeout)
	var res PollResult

	for {
		res.Rounds++
		p.transition(StateScanning, res.Rounds)

		matches, err := p.round.Run(ctx, sess, StopAtFirst)
		if err != nil {
			return res, err
		}
		if len(matches) > 0 {
			m := matches[0]
			res.Match = &m
			res.State = StateFound
			p.transition(StateFound, res.Rounds)
			return res, nil
		}

		remaining := deadline.Sub(p.now())
		if remaining <= 0 {
			res.State = StateTimedOut
			p.transition(StateTimedOut, res.Rounds)
			return res, nil
		}

		p.transition(StateWaitingForNextRound, res.Rounds)
		if err := p.sleep(ctx, min(p.interval, remaining)); err != nil {
			return res, err
		}
	}
}

func (p *Poller) transition(s PollState, round int) {
	p.log.Debug("poll state", zap.Stringer("state", s), zap.Int("round", round))
	if p.observe != nil {
		p.observe(s, round)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
