package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/otpmail/internal/source"
)

// IMAPClient holds the server settings shared by all sessions. It
// implements source.Source.
type IMAPClient struct {
	addr        string
	serverName  string
	dialTimeout time.Duration
	tlsConfig   *tls.Config
	debug       io.Writer
}

// Option customizes an IMAPClient.
type Option func(*IMAPClient)

// WithTLSConfig overrides the TLS configuration used when dialing.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *IMAPClient) { c.tlsConfig = cfg }
}

// WithDebug writes the raw IMAP conversation to w.
func WithDebug(w io.Writer) Option {
	return func(c *IMAPClient) { c.debug = w }
}

// NewIMAPClient creates a client for the server at host:port, reached
// over implicit TLS.
func NewIMAPClient(
	host string, port int, dialTimeout time.Duration, opts ...Option,
) *IMAPClient {
	c := &IMAPClient{
		addr:        net.JoinHostPort(host, fmt.Sprint(port)),
		serverName:  host,
		dialTimeout: dialTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tlsConfig == nil {
		c.tlsConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	}
	return c
}

// NewSession returns an unopened session for user.
func (c *IMAPClient) NewSession(user, accessToken string) source.Session {
	return &imapSession{cfg: c, user: user, token: accessToken}
}

var _ source.Source = (*IMAPClient)(nil)

// imapSession is one authenticated IMAP connection.
type imapSession struct {
	cfg     *IMAPClient
	user    string
	token   string
	client  *imapclient.Client
	mailbox string
	closed  bool
}

// Open dials the server over TLS and authenticates with XOAUTH2. The
// request deadline, if any, is applied to the whole connection so that no
// single round trip can outlive the request.
func (s *imapSession) Open(ctx context.Context) error {
	if s.client != nil {
		return errors.New("session already open")
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: s.cfg.dialTimeout},
		Config:    s.cfg.tlsConfig,
	}
	conn, err := dialer.DialContext(ctx, "tcp", s.cfg.addr)
	if err != nil {
		return fmt.Errorf("connecting to IMAP %s: %w", s.cfg.addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client := imapclient.New(conn, &imapclient.Options{
		TLSConfig:   s.cfg.tlsConfig,
		DebugWriter: s.cfg.debug,
	})
	s.client = client

	if err := client.WaitGreeting(); err != nil {
		return fmt.Errorf("waiting for IMAP greeting: %w", err)
	}

	if err := client.Authenticate(NewXOAuth2Client(s.user, s.token)); err != nil {
		return fmt.Errorf("XOAUTH2 authentication failed for %s: %w", s.user, err)
	}

	return nil
}

// SelectFolder opens name read-only, so scanning never changes flags.
func (s *imapSession) SelectFolder(ctx context.Context, name string) error {
	if err := s.ready(ctx); err != nil {
		return &source.FolderOpenError{Mailbox: name, Err: err}
	}

	if _, err := s.client.Select(name, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return &source.FolderOpenError{Mailbox: name, Err: err}
	}
	s.mailbox = name
	return nil
}

// Search runs UID SEARCH in the current folder and returns UIDs ascending.
func (s *imapSession) Search(
	ctx context.Context, filter source.SearchFilter,
) ([]source.MessageID, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	data, err := s.client.UIDSearch(searchCriteria(filter), nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", s.mailbox, err)
	}

	uids := data.AllUIDs()
	ids := make([]source.MessageID, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, source.MessageID(uid))
	}
	slices.Sort(ids)
	return ids, nil
}

// FetchRaw fetches BODY.PEEK[] for one UID. A UID that no longer exists
// yields nil, nil.
func (s *imapSession) FetchRaw(
	ctx context.Context, id source.MessageID,
) ([]byte, error) {
	if err := s.ready(ctx); err != nil {
		return nil, &source.FetchError{Mailbox: s.mailbox, ID: id, Err: err}
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := s.client.Fetch(imap.UIDSetNum(imap.UID(id)), fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		if err := fetchCmd.Close(); err != nil {
			return nil, &source.FetchError{Mailbox: s.mailbox, ID: id, Err: err}
		}
		return nil, nil
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, &source.FetchError{Mailbox: s.mailbox, ID: id, Err: err}
	}

	raw := buf.FindBodySection(bodySection)

	if err := fetchCmd.Close(); err != nil {
		return nil, &source.FetchError{Mailbox: s.mailbox, ID: id, Err: err}
	}

	return raw, nil
}

// Close logs out and closes the connection. It is a no-op on a session
// that never connected and on the second call.
func (s *imapSession) Close() error {
	if s.closed || s.client == nil {
		s.closed = true
		return nil
	}
	s.closed = true

	logoutErr := s.client.Logout().Wait()
	closeErr := s.client.Close()
	if logoutErr != nil {
		return fmt.Errorf("logging out: %w", logoutErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing connection: %w", closeErr)
	}
	return nil
}

func (s *imapSession) ready(ctx context.Context) error {
	if s.client == nil || s.closed {
		return errors.New("session is not open")
	}
	return ctx.Err()
}

// searchCriteria translates a SearchFilter into IMAP SEARCH criteria.
// Several subjects become nested ORs: OR (OR a b) c.
func searchCriteria(filter source.SearchFilter) *imap.SearchCriteria {
	if filter.IsAll() {
		return &imap.SearchCriteria{}
	}

	subject := func(s string) imap.SearchCriteria {
		return imap.SearchCriteria{
			Header: []imap.SearchCriteriaHeaderField{{Key: "Subject", Value: s}},
		}
	}

	criteria := subject(filter.Subjects[0])
	for _, s := range filter.Subjects[1:] {
		criteria = imap.SearchCriteria{
			Or: [][2]imap.SearchCriteria{{criteria, subject(s)}},
		}
	}
	return &criteria
}
