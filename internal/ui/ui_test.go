package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/otpmail/internal/model"
	"github.com/nhle/otpmail/internal/retrieval"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestRelativeTime(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{ago: 10 * time.Second, want: "just now"},
		{ago: 5 * time.Minute, want: "5m ago"},
		{ago: 3 * time.Hour, want: "3h ago"},
		{ago: 50 * time.Hour, want: "2d ago"},
	}
	for _, tc := range tests {
		if got := relativeTime(now.Add(-tc.ago), now); got != tc.want {
			t.Errorf("relativeTime(-%s) = %q, want %q", tc.ago, got, tc.want)
		}
	}
	if got := relativeTime(time.Time{}, now); got != "" {
		t.Errorf("relativeTime(zero) = %q", got)
	}
}

func TestRenderMatches(t *testing.T) {
	sent := now.Add(-2 * time.Minute)
	out := RenderMatches([]model.Match{
		{Code: "123456", Subject: "验证码", From: "Contoso <a@contoso.com>", SentAt: &sent, Mailbox: "INBOX"},
		{Code: "654321", Subject: "code", Mailbox: "Junk"},
	}, now)

	for _, want := range []string{"CODE", "123456", "2m ago", "654321", "date unknown", "Junk"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "123456") > strings.Index(out, "654321") {
		t.Errorf("rows reordered:\n%s", out)
	}
}

func TestRenderEmpty(t *testing.T) {
	if out := RenderMatches(nil, now); !strings.Contains(out, "No verification codes") {
		t.Fatalf("RenderMatches(nil) = %q", out)
	}
	if out := RenderHistory(nil, now); !strings.Contains(out, "No retrievals") {
		t.Fatalf("RenderHistory(nil) = %q", out)
	}
}

func TestRenderHistory(t *testing.T) {
	out := RenderHistory([]model.Retrieval{
		{Mode: model.ModePoll, Email: "a@outlook.com", Outcome: model.OutcomeFound, MatchCount: 1, Rounds: 3, StartedAt: now.Add(-time.Hour), DurationMS: 12300},
		{Mode: model.ModeList, Email: "b@outlook.com", Outcome: model.OutcomeError, Error: "token rejected", StartedAt: now},
	}, now)

	for _, want := range []string{"OUTCOME", "found", "1h ago", "12.3s", "token rejected"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderMatchNeverShowsCredential(t *testing.T) {
	out := RenderMatch(model.Match{Code: "778899", Subject: "Sign in", Mailbox: "INBOX"}, now)
	if !strings.Contains(out, "778899") || !strings.Contains(out, "date unknown") {
		t.Fatalf("RenderMatch = %q", out)
	}
}

func TestWaitModelFlow(t *testing.T) {
	cancelled := false
	m := NewWaitModel("a@outlook.com", time.Minute, func() { cancelled = true })
	m.now = func() time.Time { return m.started.Add(7 * time.Second) }

	next, _ := m.Update(pollStateMsg{state: retrieval.StateWaitingForNextRound, round: 2})
	m = next.(WaitModel)
	view := m.View()
	if !strings.Contains(view, "waiting (round 2)") || !strings.Contains(view, "7s of 1m0s") {
		t.Fatalf("View() = %q", view)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = next.(WaitModel)
	if !cancelled {
		t.Fatalf("q did not cancel the poll")
	}

	next, cmd := m.Update(pollDoneMsg{err: context.Canceled})
	m = next.(WaitModel)
	if cmd == nil || m.View() != "" {
		t.Fatalf("done message did not quit")
	}
	if _, err := m.Result(); !errors.Is(err, context.Canceled) {
		t.Fatalf("Result() error = %v", err)
	}
}

func TestLoginFormTrims(t *testing.T) {
	f := NewLoginForm(model.Credential{Email: " me@outlook.com ", ClientID: "cid\n", RefreshToken: " rt"})
	got := f.Credential()
	want := model.Credential{Email: "me@outlook.com", ClientID: "cid", RefreshToken: "rt"}
	if got != want {
		t.Fatalf("Credential() = %+v, want %+v", got, want)
	}
}

func TestValidateEmail(t *testing.T) {
	for _, ok := range []string{"me@outlook.com", " a.b@contoso.onmicrosoft.com "} {
		if err := validateEmail(ok); err != nil {
			t.Errorf("validateEmail(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "not-an-address", "Me <me@outlook.com>"} {
		if err := validateEmail(bad); err == nil {
			t.Errorf("validateEmail(%q) accepted", bad)
		}
	}
}
