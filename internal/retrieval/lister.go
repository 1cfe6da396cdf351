package retrieval

import (
	"context"

	"github.com/nhle/otpmail/internal/model"
	"github.com/nhle/otpmail/internal/source"
)

// Lister collects every code visible in one pass.
type Lister struct {
	round *Round
}

// NewLister creates a lister over round.
func NewLister(round *Round) *Lister {
	return &Lister{round: round}
}

// List runs one collect-all round and returns the matches newest first.
// Undated matches go last; equal timestamps keep folder order.
func (l *Lister) List(ctx context.Context, sess source.Session) ([]model.Match, error) {
	matches, err := l.round.Run(ctx, sess, CollectAll)
	if err != nil {
		return nil, err
	}
	model.SortNewestFirst(matches)
	if matches == nil {
		matches = []model.Match{}
	}
	return matches, nil
}
