package source

import (
	"context"
	"errors"
	"testing"
)

type fakeSession struct {
	openErr  error
	closeErr error
	opens    int
	closes   int
}

func (f *fakeSession) Open(context.Context) error {
	f.opens++
	return f.openErr
}

func (f *fakeSession) SelectFolder(context.Context, string) error { return nil }

func (f *fakeSession) Search(context.Context, SearchFilter) ([]MessageID, error) {
	return nil, nil
}

func (f *fakeSession) FetchRaw(context.Context, MessageID) ([]byte, error) {
	return nil, nil
}

func (f *fakeSession) Close() error {
	f.closes++
	return f.closeErr
}

type fakeSource struct {
	sess      *fakeSession
	user      string
	token     string
	newCalled int
}

func (f *fakeSource) NewSession(user, accessToken string) Session {
	f.newCalled++
	f.user = user
	f.token = accessToken
	return f.sess
}

func TestWithSessionClosesOnce(t *testing.T) {
	errWork := errors.New("work failed")

	tests := []struct {
		name      string
		openErr   error
		workErr   error
		wantOpen  bool
		wantWork  bool
		wantErrIs error
	}{
		{name: "success", wantWork: true},
		{name: "work-error", workErr: errWork, wantWork: true, wantErrIs: errWork},
		{name: "open-error", openErr: errors.New("dial refused"), wantOpen: true},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			sess := &fakeSession{openErr: tc.openErr, closeErr: errors.New("bye failed")}
			src := &fakeSource{sess: sess}
			worked := false
			var closeErrs []error

			err := WithSession(context.Background(), src, "me@example.com", "at",
				func(err error) { closeErrs = append(closeErrs, err) },
				func(s Session) error {
					worked = true
					return tc.workErr
				})

			if sess.closes != 1 {
				t.Fatalf("close called %d times, want 1", sess.closes)
			}
			if len(closeErrs) != 1 {
				t.Fatalf("close error callback called %d times", len(closeErrs))
			}
			if worked != tc.wantWork {
				t.Fatalf("worked = %v, want %v", worked, tc.wantWork)
			}
			if tc.wantOpen {
				var openErr *OpenError
				if !errors.As(err, &openErr) {
					t.Fatalf("expected *OpenError, got %v", err)
				}
			}
			if tc.wantErrIs != nil && !errors.Is(err, tc.wantErrIs) {
				t.Fatalf("err = %v, want %v", err, tc.wantErrIs)
			}
			if src.user != "me@example.com" || src.token != "at" {
				t.Fatalf("session created with %q/%q", src.user, src.token)
			}
		})
	}
}

func TestAnySubjectDropsEmpty(t *testing.T) {
	f := AnySubject("验证码", "", "code")
	if len(f.Subjects) != 2 {
		t.Fatalf("subjects = %v", f.Subjects)
	}
	if !AnySubject().IsAll() || !AllMessages().IsAll() {
		t.Fatalf("empty filter should match all")
	}
	if SubjectContains("x").IsAll() {
		t.Fatalf("subject filter should not match all")
	}
}
