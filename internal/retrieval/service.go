package retrieval

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/nhle/otpmail/internal/logger"
	"github.com/nhle/otpmail/internal/metrics"
	"github.com/nhle/otpmail/internal/model"
	"github.com/nhle/otpmail/internal/oauth"
	"github.com/nhle/otpmail/internal/otp"
	"github.com/nhle/otpmail/internal/source"
)

// requestGrace bounds the time spent outside the poll window on token
// exchange, connecting and the last round.
const requestGrace = 2 * time.Minute

// TokenExchanger trades a refresh token for an access token.
type TokenExchanger interface {
	Exchange(ctx context.Context, clientID, refreshToken string) (*oauth2.Token, error)
}

// AuditRecorder stores one record per completed request.
type AuditRecorder interface {
	RecordRetrieval(ctx context.Context, r model.Retrieval) error
}

// PollRequest asks for the first code to arrive within a deadline.
type PollRequest struct {
	Credential      model.Credential
	TimeoutSeconds  int
	IntervalSeconds int
	MaxPerFolder    int

	// OnState, if set, receives every poll transition.
	OnState StateFunc
}

// ListRequest asks for every code currently visible.
type ListRequest struct {
	Credential   model.Credential
	MaxPerFolder int
}

// Service runs retrievals end to end: token exchange, session scope,
// scanning and bookkeeping.
type Service struct {
	tokens    TokenExchanger
	src       source.Source
	scan      model.ScanConfig
	extractor *otp.Extractor
	limits    model.PollLimits
	audit     AuditRecorder
	log       *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Service.
type Option func(*Service)

// WithAudit records every completed request to a.
func WithAudit(a AuditRecorder) Option {
	return func(s *Service) { s.audit = a }
}

// NewService creates a Service. It fails only on an unknown extractor
// strictness.
func NewService(
	tokens TokenExchanger,
	src source.Source,
	scan model.ScanConfig,
	limits model.PollLimits,
	log *zap.Logger,
	opts ...Option,
) (*Service, error) {
	strictness, err := otp.ParseStrictness(scan.Strictness)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &Service{
		tokens:    tokens,
		src:       src,
		scan:      scan,
		extractor: otp.NewExtractor(strictness),
		limits:    limits,
		log:       log,
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// WaitForCode polls the mailbox until a code arrives or the clamped
// timeout passes. A timeout returns (nil, nil).
func (s *Service) WaitForCode(ctx context.Context, req PollRequest) (match *model.Match, err error) {
	if err := validate(req.Credential); err != nil {
		return nil, err
	}

	timeout := s.limits.Timeout(req.TimeoutSeconds)
	interval := s.limits.Interval(req.IntervalSeconds)
	rec, log := s.begin(ctx, model.ModePoll, req.Credential.Email)
	log.Info("poll started",
		zap.Duration("timeout", timeout),
		zap.Duration("interval", interval),
	)

	var res PollResult
	defer func() {
		rec.Rounds = res.Rounds
		switch {
		case err != nil:
		case match != nil:
			rec.Outcome = model.OutcomeFound
			rec.MatchCount = 1
		default:
			rec.Outcome = model.OutcomeNotFound
		}
		s.finish(ctx, rec, err, log)
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout+requestGrace)
	defer cancel()

	notify(req.OnState, StateConnecting, 0)
	tok, err := s.exchange(ctx, req.Credential)
	if err != nil {
		return nil, err
	}
	if !tok.Expiry.IsZero() && tok.Expiry.Before(s.now().Add(timeout)) {
		log.Warn("access token expires before the poll deadline",
			zap.Time("expiry", tok.Expiry),
			zap.Duration("timeout", timeout),
		)
	}

	poller := NewPoller(s.round(s.limits.PollPerFolder(req.MaxPerFolder), log), timeout, interval, log)
	poller.now = s.now
	poller.sleep = s.sleep
	poller.Observe(req.OnState)

	err = s.withSession(ctx, req.Credential.Email, tok.AccessToken, log, func(sess source.Session) error {
		var pollErr error
		res, pollErr = poller.Poll(ctx, sess)
		return pollErr
	})
	if err != nil {
		return nil, err
	}
	return res.Match, nil
}

// ListCodes runs one collect-all pass and returns every match newest
// first.
func (s *Service) ListCodes(ctx context.Context, req ListRequest) (matches []model.Match, err error) {
	if err := validate(req.Credential); err != nil {
		return nil, err
	}

	rec, log := s.begin(ctx, model.ModeList, req.Credential.Email)
	defer func() {
		if err == nil {
			rec.Outcome = model.OutcomeListed
			rec.MatchCount = len(matches)
			rec.Rounds = 1
		}
		s.finish(ctx, rec, err, log)
	}()

	tok, err := s.exchange(ctx, req.Credential)
	if err != nil {
		return nil, err
	}

	lister := NewLister(s.round(s.limits.ListPerFolder(req.MaxPerFolder), log))
	err = s.withSession(ctx, req.Credential.Email, tok.AccessToken, log, func(sess source.Session) error {
		var listErr error
		matches, listErr = lister.List(ctx, sess)
		return listErr
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (s *Service) round(perFolder int, log *zap.Logger) *Round {
	return &Round{
		Mailboxes:    s.scan.Mailboxes,
		Filter:       source.AnySubject(s.scan.SubjectKeywords...),
		MaxPerFolder: perFolder,
		PostFilter: PostFilter{
			SenderDomains:  s.scan.SenderDomains,
			SubjectMarkers: s.scan.SubjectMarkers,
		},
		Extractor: s.extractor,
		Log:       log,
	}
}

func (s *Service) exchange(ctx context.Context, cred model.Credential) (*oauth2.Token, error) {
	tok, err := s.tokens.Exchange(ctx, cred.ClientID, cred.RefreshToken)
	var missing *oauth.MissingTokenError
	switch {
	case err == nil:
		metrics.RecordTokenExchange("ok")
	case errors.As(err, &missing):
		metrics.RecordTokenExchange("missing_token")
	case oauth.IsAuthError(err):
		metrics.RecordTokenExchange("rejected")
	default:
		metrics.RecordTokenExchange("error")
	}
	return tok, err
}

// withSession runs fn in a session scope, turning connect failures into
// ConnectError.
func (s *Service) withSession(
	ctx context.Context,
	user, accessToken string,
	log *zap.Logger,
	fn func(source.Session) error,
) error {
	onCloseErr := func(err error) {
		log.Debug("closing session", zap.Error(err))
	}

	err := source.WithSession(ctx, s.src, user, accessToken, onCloseErr, fn)
	var openErr *source.OpenError
	if errors.As(err, &openErr) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &ConnectError{Err: openErr.Err}
	}
	return err
}

func (s *Service) begin(ctx context.Context, mode model.RetrievalMode, email string) (*model.Retrieval, *zap.Logger) {
	rec := &model.Retrieval{
		RequestID: logger.RequestIDFromContext(ctx),
		Mode:      mode,
		Email:     email,
		StartedAt: s.now(),
	}
	log := logger.FromContext(ctx, s.log).With(
		zap.String("mode", string(mode)),
		zap.String("email", email),
	)
	return rec, log
}

// finish logs, counts and audits a completed request. Validation failures
// never reach here.
func (s *Service) finish(ctx context.Context, rec *model.Retrieval, err error, log *zap.Logger) {
	duration := s.now().Sub(rec.StartedAt)
	rec.DurationMS = duration.Milliseconds()
	if err != nil {
		rec.Outcome = model.OutcomeError
		rec.Error = err.Error()
		log.Warn("retrieval failed", zap.Error(err), zap.Int("rounds", rec.Rounds))
	} else {
		log.Info("retrieval finished",
			zap.String("outcome", rec.Outcome),
			zap.Int("matches", rec.MatchCount),
			zap.Int("rounds", rec.Rounds),
			zap.Duration("duration", duration),
		)
	}

	metrics.RecordRetrieval(string(rec.Mode), rec.Outcome, duration)

	if s.audit == nil {
		return
	}
	// The request context may already be done; the record is still wanted.
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if auditErr := s.audit.RecordRetrieval(auditCtx, *rec); auditErr != nil {
		log.Warn("writing audit record", zap.Error(auditErr))
	}
}

func validate(cred model.Credential) error {
	var missing []string
	if strings.TrimSpace(cred.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(cred.ClientID) == "" {
		missing = append(missing, "clientId")
	}
	if strings.TrimSpace(cred.RefreshToken) == "" {
		missing = append(missing, "refreshToken")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

func notify(fn StateFunc, s PollState, round int) {
	if fn != nil {
		fn(s, round)
	}
}
