package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/otpmail/internal/model"
	"github.com/nhle/otpmail/internal/store"
	"github.com/nhle/otpmail/internal/testutil"
)

func TestRecordAndListRetrievals(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	records := []model.Retrieval{
		{Mode: model.ModePoll, Email: "a@outlook.com", Outcome: model.OutcomeFound, MatchCount: 1, Rounds: 2, StartedAt: base},
		{Mode: model.ModeList, Email: "b@outlook.com", Outcome: model.OutcomeListed, MatchCount: 3, Rounds: 1, StartedAt: base.Add(time.Minute)},
		{Mode: model.ModePoll, Email: "a@outlook.com", Outcome: model.OutcomeError, Error: "token rejected", StartedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range records {
		if err := s.RecordRetrieval(ctx, r); err != nil {
			t.Fatalf("RecordRetrieval() error = %v", err)
		}
	}

	got, err := s.RecentRetrievals(ctx, store.HistoryFilter{})
	if err != nil {
		t.Fatalf("RecentRetrievals() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	if got[0].Outcome != model.OutcomeError || got[2].Outcome != model.OutcomeFound {
		t.Fatalf("order = %s, %s, %s", got[0].Outcome, got[1].Outcome, got[2].Outcome)
	}
	if got[0].ID == "" || got[0].ID == got[1].ID {
		t.Fatalf("ids not assigned: %q %q", got[0].ID, got[1].ID)
	}
	if got[0].Error != "token rejected" {
		t.Fatalf("error = %q", got[0].Error)
	}
	if !got[2].StartedAt.Equal(base) {
		t.Fatalf("started_at = %v, want %v", got[2].StartedAt, base)
	}
}

func TestRecentRetrievalsFilter(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		email := "a@outlook.com"
		if i%2 == 1 {
			email = "b@outlook.com"
		}
		err := s.RecordRetrieval(ctx, model.Retrieval{
			Mode:      model.ModePoll,
			Email:     email,
			Outcome:   model.OutcomeNotFound,
			StartedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("RecordRetrieval() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		filter store.HistoryFilter
		want   int
	}{
		{name: "by-email", filter: store.HistoryFilter{Email: "a@outlook.com"}, want: 3},
		{name: "limit", filter: store.HistoryFilter{Limit: 2}, want: 2},
		{name: "by-mode", filter: store.HistoryFilter{Mode: model.ModeList}, want: 0},
		{name: "by-outcome", filter: store.HistoryFilter{Outcome: model.OutcomeNotFound}, want: 5},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.RecentRetrievals(ctx, tc.filter)
			if err != nil {
				t.Fatalf("RecentRetrievals() error = %v", err)
			}
			if len(got) != tc.want {
				t.Fatalf("got %d records, want %d", len(got), tc.want)
			}
		})
	}
}

func TestRecordRetrievalRejectsUnknownMode(t *testing.T) {
	s := testutil.NewTestStore(t)

	err := s.RecordRetrieval(context.Background(), model.Retrieval{
		Mode:      "push",
		Email:     "a@outlook.com",
		Outcome:   model.OutcomeFound,
		StartedAt: time.Now(),
	})
	if err == nil {
		t.Fatalf("expected constraint error")
	}
}
