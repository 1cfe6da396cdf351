package email

import (
	"fmt"
	"time"
)

// Message holds the decoded fields of one RFC 5322 message.
type Message struct {
	Subject string

	// From is the display form of the first sender, `Name <addr>` or
	// just the address.
	From string

	// FromAddress is the bare address of the first sender, lower-cased.
	FromAddress string

	// Date is nil when the Date header is missing or unparsable.
	Date *time.Time

	TextBody string
	HTMLBody string

	// Headers maps canonical header keys to their first decoded value.
	Headers map[string]string
}

// DecodeError indicates that a message could not be parsed at all.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding message: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
