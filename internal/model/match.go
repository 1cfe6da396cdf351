package model

import (
	"slices"
	"time"
)

// Credential identifies the mailbox and the refresh credential used to
// reach it. It is supplied per request and never stored by the server.
type Credential struct {
	// Email is the mailbox address, used as the SASL user identity.
	Email string `json:"email"`

	// ClientID is the OAuth2 application (client) identifier.
	ClientID string `json:"clientId"`

	// RefreshToken is the long-lived credential exchanged for an
	// access token. It is never sent to the mail server.
	RefreshToken string `json:"refreshToken"`
}

// Match is one verification code found in a message.
type Match struct {
	// Code is a contiguous run of 4-8 ASCII digits.
	Code string `json:"code"`

	// Subject is the decoded message subject.
	Subject string `json:"subject"`

	// From is the sender as displayed, e.g. `Contoso <no-reply@contoso.com>`.
	From string `json:"from"`

	// SentAt is the message date. Nil when the date header is missing or
	// unparsable; it is serialized as null in that case.
	SentAt *time.Time `json:"sentAt"`

	// Mailbox is the folder the message was found in.
	Mailbox string `json:"mailbox"`
}

// SortNewestFirst orders matches by SentAt descending, with undated
// matches after every dated one. The sort is stable, so matches with equal
// timestamps keep their scan order.
func SortNewestFirst(matches []Match) {
	slices.SortStableFunc(matches, func(a, b Match) int {
		switch {
		case a.SentAt == nil && b.SentAt == nil:
			return 0
		case a.SentAt == nil:
			return 1
		case b.SentAt == nil:
			return -1
		}
		return b.SentAt.Compare(*a.SentAt)
	})
}
