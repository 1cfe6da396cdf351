package testutil

import (
	"fmt"
	"strings"
	"time"
)

// PlainMail builds a single-part text/plain RFC 5322 message. A zero date
// leaves the Date header out.
func PlainMail(subject, from string, date time.Time, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	b.WriteString("To: someone@example.com\r\n")
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	if !date.IsZero() {
		fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
