// Package source defines the mailbox session contract the retrieval
// engine scans through, independent of the wire protocol.
package source

import (
	"context"
	"errors"
	"fmt"
)

// MessageID is a server-assigned identifier, unique within a folder.
// Larger values were assigned later.
type MessageID uint32

// SearchFilter selects which messages a folder search returns.
// No subjects means all messages, one subject is a substring match and
// several subjects are OR-ed together.
type SearchFilter struct {
	Subjects []string
}

// AllMessages returns a filter matching every message in a folder.
func AllMessages() SearchFilter {
	return SearchFilter{}
}

// SubjectContains returns a filter matching subjects containing s.
func SubjectContains(s string) SearchFilter {
	return SearchFilter{Subjects: []string{s}}
}

// AnySubject returns a filter matching subjects containing any of ss.
func AnySubject(ss ...string) SearchFilter {
	subjects := make([]string, 0, len(ss))
	for _, s := range ss {
		if s != "" {
			subjects = append(subjects, s)
		}
	}
	return SearchFilter{Subjects: subjects}
}

// IsAll reports whether the filter matches every message.
func (f SearchFilter) IsAll() bool {
	return len(f.Subjects) == 0
}

// FolderOpenError indicates that a folder could not be selected, because
// it does not exist or access was denied.
type FolderOpenError struct {
	Mailbox string
	Err     error
}

func (e *FolderOpenError) Error() string {
	return fmt.Sprintf("opening folder %s: %v", e.Mailbox, e.Err)
}

func (e *FolderOpenError) Unwrap() error { return e.Err }

// FetchError indicates that one message could not be retrieved.
type FetchError struct {
	Mailbox string
	ID      MessageID
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching message %d in %s: %v", e.ID, e.Mailbox, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFolderOpenError reports whether err (or any error in its chain) is a
// FolderOpenError.
func IsFolderOpenError(err error) bool {
	var folderErr *FolderOpenError
	return errors.As(err, &folderErr)
}

// Session is a scoped connection to a mail server. A Session is used by
// one request at a time and is not safe for concurrent use.
type Session interface {
	// Open connects and authenticates.
	Open(ctx context.Context) error

	// SelectFolder makes name the current folder.
	SelectFolder(ctx context.Context, name string) error

	// Search returns matching ids in the current folder, ascending.
	Search(ctx context.Context, filter SearchFilter) ([]MessageID, error)

	// FetchRaw returns the full RFC 5322 message, or nil when the server
	// returned nothing for id.
	FetchRaw(ctx context.Context, id MessageID) ([]byte, error)

	// Close ends the session. It is safe to call after a failed Open.
	Close() error
}

// Source creates sessions for a mailbox identity.
type Source interface {
	// NewSession returns an unopened session that authenticates as user
	// with the given OAuth2 access token.
	NewSession(user, accessToken string) Session
}
