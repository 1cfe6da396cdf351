// Package retrieval scans mailbox sessions for verification codes, either
// once (listing) or repeatedly until a deadline (polling).
package retrieval

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/otpmail/internal/metrics"
	"github.com/nhle/otpmail/internal/model"
	"github.com/nhle/otpmail/internal/otp"
	"github.com/nhle/otpmail/internal/source"
	"github.com/nhle/otpmail/internal/source/email"
)

// Mode selects how much of a round runs.
type Mode int

const (
	// StopAtFirst ends the round at the first qualifying message.
	StopAtFirst Mode = iota

	// CollectAll scans every folder and keeps every match.
	CollectAll
)

func (m Mode) String() string {
	if m == CollectAll {
		return "collect_all"
	}
	return "stop_at_first"
}

// PostFilter narrows the messages that qualify after decoding. Within one
// list any entry may match; both lists must pass when both are set.
type PostFilter struct {
	SenderDomains  []string
	SubjectMarkers []string
}

// Allows reports whether msg passes the filter.
func (f PostFilter) Allows(msg *email.Message) bool {
	if len(f.SenderDomains) > 0 && !containsAny(msg.FromAddress, f.SenderDomains) {
		return false
	}
	if len(f.SubjectMarkers) > 0 && !containsAny(msg.Subject, f.SubjectMarkers) {
		return false
	}
	return true
}

func containsAny(s string, needles []string) bool {
	s = strings.ToLower(s)
	for _, n := range needles {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// Round is one pass over the configured folders of an open session.
type Round struct {
	Mailboxes    []string
	Filter       source.SearchFilter
	MaxPerFolder int
	PostFilter   PostFilter
	Extractor    *otp.Extractor
	Log          *zap.Logger
}

// Run scans the folders in order. Within a folder the newest MaxPerFolder
// search results are examined, newest first. A folder that cannot be
// opened or searched is logged and skipped, as is a message that cannot be
// fetched or decoded. Only context cancellation is returned as an error.
func (r *Round) Run(ctx context.Context, sess source.Session, mode Mode) ([]model.Match, error) {
	log := r.logger()
	metrics.RecordScanRound(mode.String())

	var matches []model.Match
	for _, mailbox := range r.Mailboxes {
		if err := ctx.Err(); err != nil {
			return matches, err
		}

		found, err := r.scanFolder(ctx, sess, mailbox, mode, log.With(zap.String("mailbox", mailbox)))
		matches = append(matches, found...)
		if err != nil {
			return matches, err
		}
		if mode == StopAtFirst && len(matches) > 0 {
			return matches[:1], nil
		}
	}
	return matches, nil
}

func (r *Round) scanFolder(
	ctx context.Context,
	sess source.Session,
	mailbox string,
	mode Mode,
	log *zap.Logger,
) ([]model.Match, error) {
	if err := sess.SelectFolder(ctx, mailbox); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		metrics.RecordScanFailure("select")
		log.Warn("skipping folder", zap.Error(err))
		return nil, nil
	}

	ids, err := sess.Search(ctx, r.Filter)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		metrics.RecordScanFailure("search")
		log.Warn("search failed, skipping folder", zap.Error(err))
		return nil, nil
	}

	ids = newest(ids, r.MaxPerFolder)
	log.Debug("folder searched", zap.Int("candidates", len(ids)))

	var matches []model.Match
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return matches, err
		}

		m, ok := r.examine(ctx, sess, mailbox, id, log)
		if !ok {
			continue
		}
		matches = append(matches, m)
		if mode == StopAtFirst {
			break
		}
	}
	return matches, nil
}

// examine fetches, decodes and extracts from one message.
func (r *Round) examine(
	ctx context.Context,
	sess source.Session,
	mailbox string,
	id source.MessageID,
	log *zap.Logger,
) (model.Match, bool) {
	raw, err := sess.FetchRaw(ctx, id)
	if err != nil {
		metrics.RecordScanFailure("fetch")
		log.Warn("skipping message", zap.Uint32("id", uint32(id)), zap.Error(err))
		return model.Match{}, false
	}
	if raw == nil {
		log.Debug("message not returned", zap.Uint32("id", uint32(id)))
		return model.Match{}, false
	}

	msg, err := email.Decode(raw)
	if err != nil {
		metrics.RecordScanFailure("decode")
		log.Warn("skipping undecodable message", zap.Uint32("id", uint32(id)), zap.Error(err))
		return model.Match{}, false
	}
	metrics.RecordMessageScanned()

	if !r.PostFilter.Allows(msg) {
		return model.Match{}, false
	}

	code, ok := r.extractor().ExtractFromBodies(msg.TextBody, msg.HTMLBody)
	if !ok {
		return model.Match{}, false
	}

	var sentAt *time.Time
	if msg.Date != nil {
		utc := msg.Date.UTC()
		sentAt = &utc
	}

	return model.Match{
		Code:    code,
		Subject: msg.Subject,
		From:    msg.From,
		SentAt:  sentAt,
		Mailbox: mailbox,
	}, true
}

func (r *Round) extractor() *otp.Extractor {
	if r.Extractor == nil {
		r.Extractor = otp.NewExtractor(otp.Strict)
	}
	return r.Extractor
}

func (r *Round) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

// newest returns the last n of the ascending ids, newest first. n <= 0
// keeps them all.
func newest(ids []source.MessageID, n int) []source.MessageID {
	if n > 0 && len(ids) > n {
		ids = ids[len(ids)-n:]
	}
	out := make([]source.MessageID, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}
