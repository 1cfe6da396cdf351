package email

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// Decode parses a raw RFC 5322 message using go-message and extracts the
// subject, sender, date, text/plain and text/html bodies and headers.
// Unknown charsets are tolerated; a message whose header block cannot be
// parsed yields a *DecodeError.
func Decode(raw []byte) (*Message, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &DecodeError{Err: errors.New("empty message")}
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, &DecodeError{Err: err}
	}
	if mr == nil {
		return nil, &DecodeError{Err: errors.New("no message reader")}
	}
	defer mr.Close()

	msg := &Message{
		Headers: headerMap(mr.Header),
	}

	msg.Subject, err = mr.Header.Subject()
	if err != nil {
		msg.Subject = mr.Header.Get("Subject")
	}

	msg.From, msg.FromAddress = sender(mr.Header)
	msg.Date = resolveDate(mr.Header)

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			// Keep whatever parts were read before the damage.
			break
		}
		if part == nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		if contentType == "" {
			contentType = "text/plain"
		}

		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain") && msg.TextBody == "":
			msg.TextBody = string(body)
		case strings.HasPrefix(contentType, "text/html") && msg.HTMLBody == "":
			msg.HTMLBody = string(body)
		}
	}

	return msg, nil
}

// headerMap returns the first decoded value of every header field.
func headerMap(h mail.Header) map[string]string {
	out := make(map[string]string)
	fields := h.Fields()
	for fields.Next() {
		key := fields.Key()
		if _, seen := out[key]; seen {
			continue
		}
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		out[key] = value
	}
	return out
}

// sender returns the display form and bare address of the first From
// address, falling back to the raw header text.
func sender(h mail.Header) (display, addr string) {
	list, err := h.AddressList("From")
	if err != nil || len(list) == 0 {
		raw, textErr := h.Text("From")
		if textErr != nil {
			raw = h.Get("From")
		}
		return strings.TrimSpace(raw), strings.ToLower(extractAddr(raw))
	}

	first := list[0]
	addr = strings.ToLower(first.Address)
	if first.Name != "" {
		return fmt.Sprintf("%s <%s>", first.Name, first.Address), addr
	}
	return first.Address, addr
}

var angleAddr = regexp.MustCompile(`<([^<>\s]+@[^<>\s]+)>`)

func extractAddr(raw string) string {
	if m := angleAddr.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return strings.TrimSpace(raw)
}

// fallbackDateLayouts are tried against the raw Date header when the
// RFC 5322 parser rejects it.
var fallbackDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 06 15:04:05 -0700",
	"Mon Jan 2 15:04:05 2006",
	"Mon Jan 2 15:04:05 -0700 2006",
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
}

var dateComment = regexp.MustCompile(`\s*\([^)]*\)\s*$`)

// resolveDate prefers the structured Date header and falls back to a
// lenient parse of its raw text. Anything unparsable resolves to nil.
func resolveDate(h mail.Header) *time.Time {
	if t, err := h.Date(); err == nil && validDate(t) {
		return &t
	}
	return parseDateFallback(h.Get("Date"))
}

func parseDateFallback(raw string) *time.Time {
	raw = strings.TrimSpace(dateComment.ReplaceAllString(raw, ""))
	raw = strings.Join(strings.Fields(raw), " ")
	if raw == "" {
		return nil
	}
	for _, layout := range fallbackDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil && validDate(t) {
			return &t
		}
	}
	return nil
}

func validDate(t time.Time) bool {
	return !t.IsZero() && t.Year() > 1
}
