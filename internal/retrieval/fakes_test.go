package retrieval

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"

	"github.com/nhle/otpmail/internal/model"
	"github.com/nhle/otpmail/internal/source"
	"github.com/nhle/otpmail/internal/testutil"
)

func mail(subject, from string, date time.Time, body string) []byte {
	return testutil.PlainMail(subject, from, date, body)
}

func codeMail(code string, date time.Time) []byte {
	return mail("Your verification code", "Contoso <no-reply@contoso.com>", date, "Your code is "+code+".")
}

type fakeFolder struct {
	ids      []source.MessageID
	raw      map[source.MessageID][]byte
	fetchErr map[source.MessageID]error
}

func (f *fakeFolder) add(id source.MessageID, raw []byte) {
	if f.raw == nil {
		f.raw = make(map[source.MessageID][]byte)
	}
	f.ids = append(f.ids, id)
	f.raw[id] = raw
}

type fakeSession struct {
	folders  map[string]*fakeFolder
	openErr  error
	onSearch func()

	current  *fakeFolder
	opens    int
	closes   int
	selected []string
	fetched  []source.MessageID
	filters  []source.SearchFilter
}

func newFakeSession() *fakeSession {
	return &fakeSession{folders: make(map[string]*fakeFolder)}
}

func (s *fakeSession) folder(name string) *fakeFolder {
	f, ok := s.folders[name]
	if !ok {
		f = &fakeFolder{}
		s.folders[name] = f
	}
	return f
}

func (s *fakeSession) Open(context.Context) error {
	s.opens++
	return s.openErr
}

func (s *fakeSession) SelectFolder(_ context.Context, name string) error {
	s.selected = append(s.selected, name)
	f, ok := s.folders[name]
	if !ok {
		s.current = nil
		return &source.FolderOpenError{Mailbox: name, Err: errors.New("no such mailbox")}
	}
	s.current = f
	return nil
}

func (s *fakeSession) Search(_ context.Context, filter source.SearchFilter) ([]source.MessageID, error) {
	s.filters = append(s.filters, filter)
	if s.onSearch != nil {
		s.onSearch()
	}
	if s.current == nil {
		return nil, errors.New("no folder selected")
	}
	return append([]source.MessageID(nil), s.current.ids...), nil
}

func (s *fakeSession) FetchRaw(_ context.Context, id source.MessageID) ([]byte, error) {
	s.fetched = append(s.fetched, id)
	if err := s.current.fetchErr[id]; err != nil {
		return nil, err
	}
	return s.current.raw[id], nil
}

func (s *fakeSession) Close() error {
	s.closes++
	return nil
}

type fakeSource struct {
	sess  *fakeSession
	calls int
	user  string
	token string
}

func (f *fakeSource) NewSession(user, accessToken string) source.Session {
	f.calls++
	f.user = user
	f.token = accessToken
	return f.sess
}

type fakeTokens struct {
	tok   *oauth2.Token
	err   error
	calls int
}

func (f *fakeTokens) Exchange(context.Context, string, string) (*oauth2.Token, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.tok, nil
}

type fakeAudit struct {
	records []model.Retrieval
}

func (a *fakeAudit) RecordRetrieval(_ context.Context, r model.Retrieval) error {
	a.records = append(a.records, r)
	return nil
}

// fakeClock only moves when slept on.
type fakeClock struct {
	t      time.Time
	sleeps []time.Duration
	onWake func()
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.t = c.t.Add(d)
	if c.onWake != nil {
		c.onWake()
	}
	return nil
}
