package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/nhle/otpmail/internal/logger"
	"github.com/nhle/otpmail/internal/model"
	"github.com/nhle/otpmail/internal/oauth"
	"github.com/nhle/otpmail/internal/retrieval"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeRetriever struct {
	match   *model.Match
	matches []model.Match
	err     error

	pollReq   *retrieval.PollRequest
	listReq   *retrieval.ListRequest
	requestID string
}

func (f *fakeRetriever) WaitForCode(ctx context.Context, req retrieval.PollRequest) (*model.Match, error) {
	f.pollReq = &req
	f.requestID = logger.RequestIDFromContext(ctx)
	return f.match, f.err
}

func (f *fakeRetriever) ListCodes(ctx context.Context, req retrieval.ListRequest) ([]model.Match, error) {
	f.listReq = &req
	f.requestID = logger.RequestIDFromContext(ctx)
	return f.matches, f.err
}

type response struct {
	OK      bool            `json:"ok"`
	Found   *bool           `json:"found"`
	Count   *int            `json:"count"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Details map[string]any  `json:"details"`
}

func serve(t *testing.T, svc Retriever, method, path, body string) (*httptest.ResponseRecorder, response) {
	t.Helper()

	log := zaptest.NewLogger(t)
	router := NewRouter(NewHandler(svc, log), log, 1024)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, req)

	var resp response
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding %q: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

const validBody = `{"email":"me@outlook.com","clientId":"cid","refreshToken":"rt"}`

func TestMethodNotAllowed(t *testing.T) {
	for _, path := range []string{"/api/code", "/api/codes"} {
		for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
			svc := &fakeRetriever{}
			rec, resp := serve(t, svc, method, path, "")
			if rec.Code != http.StatusMethodNotAllowed || resp.OK {
				t.Fatalf("%s %s = %d %+v", method, path, rec.Code, resp)
			}
			if svc.pollReq != nil || svc.listReq != nil {
				t.Fatalf("%s %s reached the service", method, path)
			}
		}
	}
}

func TestInvalidJSON(t *testing.T) {
	rec, resp := serve(t, &fakeRetriever{}, http.MethodPost, "/api/code", "{")
	if rec.Code != http.StatusBadRequest || resp.Error != "invalid request body" {
		t.Fatalf("got %d %+v", rec.Code, resp)
	}
}

func TestBodyTooLarge(t *testing.T) {
	body := `{"email":"` + strings.Repeat("a", 2048) + `"}`
	rec, _ := serve(t, &fakeRetriever{}, http.MethodPost, "/api/codes", body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestPollFound(t *testing.T) {
	sent := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc := &fakeRetriever{match: &model.Match{Code: "123456", Subject: "验证码", SentAt: &sent, Mailbox: "INBOX"}}

	body := `{"email":"me@outlook.com","clientId":"cid","refreshToken":"rt","timeoutSeconds":30,"intervalSeconds":3,"maxPerFolder":7}`
	rec, resp := serve(t, svc, http.MethodPost, "/api/code", body)
	if rec.Code != http.StatusOK || !resp.OK || resp.Found == nil || !*resp.Found {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}

	var m model.Match
	if err := json.Unmarshal(resp.Data, &m); err != nil || m.Code != "123456" {
		t.Fatalf("data = %s", resp.Data)
	}

	req := svc.pollReq
	if req.TimeoutSeconds != 30 || req.IntervalSeconds != 3 || req.MaxPerFolder != 7 {
		t.Fatalf("request = %+v", req)
	}
	if req.Credential.ClientID != "cid" || req.Credential.RefreshToken != "rt" {
		t.Fatalf("credential = %+v", req.Credential)
	}
	if svc.requestID == "" || rec.Header().Get(RequestIDHeader) != svc.requestID {
		t.Fatalf("request id %q, header %q", svc.requestID, rec.Header().Get(RequestIDHeader))
	}
}

func TestPollNotFound(t *testing.T) {
	rec, resp := serve(t, &fakeRetriever{}, http.MethodPost, "/api/code", validBody)
	if rec.Code != http.StatusOK || !resp.OK || resp.Found == nil || *resp.Found {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
	if string(resp.Data) != "null" || resp.Message == "" {
		t.Fatalf("got %s", rec.Body.String())
	}
}

func TestListCodes(t *testing.T) {
	svc := &fakeRetriever{matches: []model.Match{{Code: "111111"}, {Code: "222222"}}}

	rec, resp := serve(t, svc, http.MethodPost, "/api/codes", validBody)
	if rec.Code != http.StatusOK || !resp.OK || resp.Count == nil || *resp.Count != 2 {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}

	var data []model.Match
	if err := json.Unmarshal(resp.Data, &data); err != nil || len(data) != 2 {
		t.Fatalf("data = %s", resp.Data)
	}
	if data[0].SentAt != nil {
		t.Fatalf("sentAt = %v, want null", data[0].SentAt)
	}
}

func TestLegacyFieldNames(t *testing.T) {
	svc := &fakeRetriever{matches: []model.Match{}}
	body := `{"email":"me@outlook.com","client_id":"cid","refresh_token":"rt","maxPerBox":42}`

	rec, _ := serve(t, svc, http.MethodPost, "/api/codes", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.listReq.Credential.ClientID != "cid" || svc.listReq.Credential.RefreshToken != "rt" || svc.listReq.MaxPerFolder != 42 {
		t.Fatalf("request = %+v", svc.listReq)
	}
}

func TestNumericFieldsAsStrings(t *testing.T) {
	svc := &fakeRetriever{}
	body := `{"email":"me@outlook.com","clientId":"cid","refreshToken":"rt",` +
		`"timeoutSeconds":"30","intervalSeconds":" 4 ","maxPerBox":"50"}`

	rec, _ := serve(t, svc, http.MethodPost, "/api/code", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if svc.pollReq.TimeoutSeconds != 30 || svc.pollReq.IntervalSeconds != 4 || svc.pollReq.MaxPerFolder != 50 {
		t.Fatalf("request = %+v", svc.pollReq)
	}

	svc = &fakeRetriever{matches: []model.Match{}}
	rec, _ = serve(t, svc, http.MethodPost, "/api/codes",
		`{"email":"me@outlook.com","clientId":"cid","refreshToken":"rt","maxPerFolder":"lots"}`)
	if rec.Code != http.StatusOK || svc.listReq.MaxPerFolder != 0 {
		t.Fatalf("non-numeric string: status %d, request %+v", rec.Code, svc.listReq)
	}

	rec, resp := serve(t, &fakeRetriever{}, http.MethodPost, "/api/codes",
		`{"email":"me@outlook.com","clientId":"cid","refreshToken":"rt","maxPerFolder":{"n":1}}`)
	if rec.Code != http.StatusBadRequest || resp.Error != "invalid request body" {
		t.Fatalf("object value: %d %+v", rec.Code, resp)
	}
}

func TestClientGoneWritesNoBody(t *testing.T) {
	rec, _ := serve(t, &fakeRetriever{err: fmt.Errorf("scanning: %w", context.Canceled)},
		http.MethodPost, "/api/code", validBody)
	if rec.Code != statusClientClosedRequest {
		t.Fatalf("status = %d, want %d", rec.Code, statusClientClosedRequest)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("body = %q, want empty", rec.Body.String())
	}
}

func TestErrorStatuses(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantDetails bool
	}{
		{
			name:       "validation",
			err:        &retrieval.ValidationError{Fields: []string{"email"}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:        "auth",
			err:         &oauth.AuthError{StatusCode: 400, Details: map[string]any{"error": "invalid_grant"}},
			wantStatus:  http.StatusUnauthorized,
			wantDetails: true,
		},
		{
			name:        "missing-token",
			err:         &oauth.MissingTokenError{Details: map[string]any{"token_type": "Bearer"}},
			wantStatus:  http.StatusBadGateway,
			wantDetails: true,
		},
		{
			name:       "connect",
			err:        &retrieval.ConnectError{Err: errors.New("dial tcp: timeout")},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "deadline",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name:       "other",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			rec, resp := serve(t, &fakeRetriever{err: tc.err}, http.MethodPost, "/api/code", validBody)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if resp.OK || resp.Error != tc.err.Error() {
				t.Fatalf("body = %s", rec.Body.String())
			}
			if (resp.Details != nil) != tc.wantDetails {
				t.Fatalf("details = %v", resp.Details)
			}
		})
	}
}

func TestRequestIDPropagated(t *testing.T) {
	log := zaptest.NewLogger(t)
	svc := &fakeRetriever{matches: []model.Match{}}
	router := NewRouter(NewHandler(svc, log), log, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/codes", strings.NewReader(validBody))
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, req)

	if svc.requestID != "abc-123" || rec.Header().Get(RequestIDHeader) != "abc-123" {
		t.Fatalf("request id %q, header %q", svc.requestID, rec.Header().Get(RequestIDHeader))
	}
}

func TestHealthAndMetrics(t *testing.T) {
	rec, _ := serve(t, &fakeRetriever{}, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}

	log := zaptest.NewLogger(t)
	router := NewRouter(NewHandler(&fakeRetriever{}, log), log, 0)
	mrec := httptest.NewRecorder()
	router.Engine.ServeHTTP(mrec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if mrec.Code != http.StatusOK || !strings.Contains(mrec.Body.String(), "otpmail_http_request_duration_seconds") {
		t.Fatalf("metrics = %d", mrec.Code)
	}
}

func TestRecoveryReturns500(t *testing.T) {
	log := zaptest.NewLogger(t)
	router := NewRouter(NewHandler(&fakeRetriever{}, log), log, 0)
	router.Engine.GET("/panic", func(*gin.Context) { panic("kaboom") })

	rec := httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
