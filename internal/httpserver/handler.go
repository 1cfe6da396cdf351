package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nhle/otpmail/internal/logger"
	"github.com/nhle/otpmail/internal/model"
	"github.com/nhle/otpmail/internal/oauth"
	"github.com/nhle/otpmail/internal/retrieval"
)

// Retriever is the part of retrieval.Service the handlers need.
type Retriever interface {
	WaitForCode(ctx context.Context, req retrieval.PollRequest) (*model.Match, error)
	ListCodes(ctx context.Context, req retrieval.ListRequest) ([]model.Match, error)
}

// statusClientClosedRequest is reported when the caller disconnects
// before the retrieval finishes. Nothing is written to the connection.
const statusClientClosedRequest = 499

// looseInt is a JSON number that may also arrive as a string, as in
// {"maxPerBox":"50"}. A string that is not a number decodes to 0, which
// selects the configured default.
type looseInt int

func (n *looseInt) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	var f float64
	switch x := v.(type) {
	case nil:
		f = 0
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(parsed) {
			parsed = 0
		}
		f = parsed
	default:
		return fmt.Errorf("expected a number, got %s", data)
	}

	*n = looseInt(max(math.MinInt32, min(math.MaxInt32, math.Trunc(f))))
	return nil
}

// requestBody is the JSON accepted by both endpoints. The snake_case
// names are accepted for older clients.
type requestBody struct {
	Email           string   `json:"email"`
	ClientID        string   `json:"clientId"`
	RefreshToken    string   `json:"refreshToken"`
	TimeoutSeconds  looseInt `json:"timeoutSeconds"`
	IntervalSeconds looseInt `json:"intervalSeconds"`
	MaxPerFolder    looseInt `json:"maxPerFolder"`

	LegacyClientID     string   `json:"client_id"`
	LegacyRefreshToken string   `json:"refresh_token"`
	LegacyMaxPerBox    looseInt `json:"maxPerBox"`
}

func (b requestBody) credential() model.Credential {
	cred := model.Credential{
		Email:        b.Email,
		ClientID:     b.ClientID,
		RefreshToken: b.RefreshToken,
	}
	if cred.ClientID == "" {
		cred.ClientID = b.LegacyClientID
	}
	if cred.RefreshToken == "" {
		cred.RefreshToken = b.LegacyRefreshToken
	}
	return cred
}

func (b requestBody) maxPerFolder() int {
	if b.MaxPerFolder != 0 {
		return int(b.MaxPerFolder)
	}
	return int(b.LegacyMaxPerBox)
}

// Handler serves the retrieval endpoints.
type Handler struct {
	svc    Retriever
	logger *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(svc Retriever, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// WaitForCode handles POST /api/code.
func (h *Handler) WaitForCode(c *gin.Context) {
	body, ok := h.bind(c)
	if !ok {
		return
	}

	match, err := h.svc.WaitForCode(c.Request.Context(), retrieval.PollRequest{
		Credential:      body.credential(),
		TimeoutSeconds:  int(body.TimeoutSeconds),
		IntervalSeconds: int(body.IntervalSeconds),
		MaxPerFolder:    body.maxPerFolder(),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	if match == nil {
		c.JSON(http.StatusOK, gin.H{
			"ok":      true,
			"found":   false,
			"data":    nil,
			"message": "no verification code arrived before the deadline",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "found": true, "data": match})
}

// ListCodes handles POST /api/codes.
func (h *Handler) ListCodes(c *gin.Context) {
	body, ok := h.bind(c)
	if !ok {
		return
	}

	matches, err := h.svc.ListCodes(c.Request.Context(), retrieval.ListRequest{
		Credential:   body.credential(),
		MaxPerFolder: body.maxPerFolder(),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "count": len(matches), "data": matches})
}

func (h *Handler) bind(c *gin.Context) (requestBody, bool) {
	var body requestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"ok": false, "error": "request body too large"})
			return body, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid request body"})
		return body, false
	}
	return body, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == statusClientClosedRequest {
		logger.FromContext(c.Request.Context(), h.logger).Debug("client went away", zap.Error(err))
		c.AbortWithStatus(status)
		return
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context(), h.logger).Error("request failed",
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	var details any
	if d := oauth.Details(err); d != nil {
		details = d
	}
	c.JSON(status, gin.H{"ok": false, "error": err.Error(), "details": details})
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	var missing *oauth.MissingTokenError
	switch {
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case retrieval.IsValidationError(err):
		return http.StatusBadRequest
	case errors.As(err, &missing), retrieval.IsConnectError(err):
		return http.StatusBadGateway
	case oauth.IsAuthError(err):
		return http.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
