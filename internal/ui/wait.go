package ui

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/otpmail/internal/keys"
	"github.com/nhle/otpmail/internal/model"
	"github.com/nhle/otpmail/internal/retrieval"
	"github.com/nhle/otpmail/internal/theme"
)

// PollFunc runs one poll, reporting transitions to onState.
type PollFunc func(ctx context.Context, onState retrieval.StateFunc) (*model.Match, error)

// pollStateMsg is a tea.Msg carrying a poll transition.
type pollStateMsg struct {
	state retrieval.PollState
	round int
}

// pollDoneMsg is a tea.Msg sent when the poll returns.
type pollDoneMsg struct {
	match *model.Match
	err   error
}

// WaitModel shows a spinner with the poll state until the poll ends.
type WaitModel struct {
	spinner spinner.Model
	keys    *keys.KeyMap
	email   string
	timeout time.Duration
	cancel  context.CancelFunc

	state   retrieval.PollState
	round   int
	started time.Time
	now     func() time.Time

	done  bool
	match *model.Match
	err   error
}

// NewWaitModel creates the spinner model. cancel is called when the user
// quits early.
func NewWaitModel(email string, timeout time.Duration, cancel context.CancelFunc) WaitModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.CodeStyle

	return WaitModel{
		spinner: sp,
		keys:    keys.DefaultKeyMap(),
		email:   email,
		timeout: timeout,
		cancel:  cancel,
		state:   retrieval.StateConnecting,
		started: time.Now(),
		now:     time.Now,
	}
}

// Init starts the spinner.
func (m WaitModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles spinner ticks, poll messages and quit keys.
func (m WaitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case pollStateMsg:
		m.state = msg.state
		m.round = msg.round
		return m, nil

	case pollDoneMsg:
		m.done = true
		m.match = msg.match
		m.err = msg.err
		return m, tea.Quit

	case tea.KeyMsg:
		// The poll returns context.Canceled, which ends the program.
		if key.Matches(msg, m.keys.Cancel) && m.cancel != nil {
			m.cancel()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the status line; nothing once the poll is done.
func (m WaitModel) View() string {
	if m.done {
		return ""
	}

	elapsed := m.now().Sub(m.started).Truncate(time.Second)
	status := m.state.String()
	if m.round > 0 {
		status = fmt.Sprintf("%s (round %d)", status, m.round)
	}

	return fmt.Sprintf("%s Waiting for a code for %s · %s · %s of %s\n%s\n",
		m.spinner.View(),
		m.email,
		status,
		elapsed,
		m.timeout,
		theme.HelpStyle.Render(m.keys.HelpLine()),
	)
}

// Result returns the poll outcome once the program has exited.
func (m WaitModel) Result() (*model.Match, error) {
	return m.match, m.err
}

// RunWait runs poll under a spinner written to out and returns its result.
func RunWait(
	ctx context.Context,
	out io.Writer,
	email string,
	timeout time.Duration,
	poll PollFunc,
) (*model.Match, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewWaitModel(email, timeout, cancel), tea.WithOutput(out))

	go func() {
		match, err := poll(ctx, func(s retrieval.PollState, round int) {
			p.Send(pollStateMsg{state: s, round: round})
		})
		p.Send(pollDoneMsg{match: match, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("running spinner: %w", err)
	}

	wm, ok := final.(WaitModel)
	if !ok {
		return nil, fmt.Errorf("unexpected model %T", final)
	}
	return wm.Result()
}
