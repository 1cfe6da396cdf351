package email

import (
	"errors"

	"github.com/emersion/go-sasl"
)

// xoauth2Mechanism is the SASL mechanism name Outlook and Gmail accept
// for bearer-token IMAP logins.
const xoauth2Mechanism = "XOAUTH2"

// xoauth2Client implements sasl.Client for XOAUTH2. The initial response
// is sent raw; the IMAP client base64-encodes it on the wire.
type xoauth2Client struct {
	username string
	token    string
}

// NewXOAuth2Client returns a sasl.Client authenticating username with an
// OAuth2 access token.
func NewXOAuth2Client(username, accessToken string) sasl.Client {
	return &xoauth2Client{username: username, token: accessToken}
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	ir := []byte("user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01")
	return xoauth2Mechanism, ir, nil
}

// Next answers a server challenge. XOAUTH2 only challenges on failure,
// with a JSON error; replying with an empty response lets the server
// finish the exchange with a tagged NO.
func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	if len(challenge) == 0 {
		return nil, errors.New("xoauth2: unexpected empty challenge")
	}
	return []byte{}, nil
}
