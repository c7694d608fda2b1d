package server

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/textchain/internal/health"
	"github.com/vietddude/textchain/internal/platform/ratelimiter"
)

type recordingResponder struct {
	mu    sync.Mutex
	reply string
	calls []string
}

func (r *recordingResponder) Process(ctx context.Context, from, body string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, from+"|"+body)
	return r.reply
}

type failingDeduper struct{}

func (failingDeduper) FirstDelivery(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

type stubPinger struct{ err error }

func (s stubPinger) Health(context.Context) error { return s.err }

func newTestServer(responder Responder, opts ...Option) *Server {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewServer(Config{RequestTimeout: time.Second}, responder, opts...)
}

func postForm(t *testing.T, h http.Handler, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/sms/twilio", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeTwiML(t *testing.T, body string) twimlResponse {
	t.Helper()
	if !strings.HasPrefix(body, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Fatalf("missing xml header: %q", body)
	}
	var resp twimlResponse
	if err := xml.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("invalid twiml: %v", err)
	}
	return resp
}

func TestTwilioWebhook(t *testing.T) {
	responder := &recordingResponder{reply: "Balances:\nA & B <ok>"}
	srv := newTestServer(responder)

	rec := postForm(t, srv.Handler(), url.Values{
		"From":       {"+917123456789"},
		"To":         {"+15550000"},
		"Body":       {"balance"},
		"MessageSid": {"SM1"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/xml" {
		t.Errorf("unexpected content type %q", ct)
	}
	if strings.Contains(rec.Body.String(), "A & B <ok>") {
		t.Error("reply was not escaped")
	}

	resp := decodeTwiML(t, rec.Body.String())
	if resp.Message == nil || *resp.Message != "Balances:\nA & B <ok>" {
		t.Errorf("unexpected message %v", resp.Message)
	}
	if len(responder.calls) != 1 || responder.calls[0] != "+917123456789|balance" {
		t.Errorf("unexpected calls %v", responder.calls)
	}
}

func TestTwilioWebhook_MissingFrom(t *testing.T) {
	responder := &recordingResponder{}
	rec := postForm(t, newTestServer(responder).Handler(), url.Values{"Body": {"HELP"}})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if len(responder.calls) != 0 {
		t.Error("responder must not run without a sender")
	}
}

func TestTwilioWebhook_DuplicateSid(t *testing.T) {
	responder := &recordingResponder{reply: "PIN set!"}
	srv := newTestServer(responder, WithDeduper(NewMemoryDeduper(time.Hour)))
	form := url.Values{"From": {"+1"}, "Body": {"PIN 1234"}, "MessageSid": {"SM42"}}

	postForm(t, srv.Handler(), form)
	rec := postForm(t, srv.Handler(), form)

	if len(responder.calls) != 1 {
		t.Fatalf("expected one execution, got %d", len(responder.calls))
	}
	if resp := decodeTwiML(t, rec.Body.String()); resp.Message != nil {
		t.Errorf("expected empty response for duplicate, got %q", *resp.Message)
	}
}

func TestTwilioWebhook_DedupeErrorStillProcesses(t *testing.T) {
	responder := &recordingResponder{reply: "ok"}
	srv := newTestServer(responder, WithDeduper(failingDeduper{}))

	postForm(t, srv.Handler(), url.Values{"From": {"+1"}, "Body": {"HELP"}, "MessageSid": {"SM1"}})

	if len(responder.calls) != 1 {
		t.Errorf("expected message to be processed, got %d calls", len(responder.calls))
	}
}

func TestTwilioWebhook_RateLimited(t *testing.T) {
	responder := &recordingResponder{reply: "ok"}
	srv := newTestServer(responder, WithLimiter(ratelimiter.New(0.001, 1, time.Minute)))

	postForm(t, srv.Handler(), url.Values{"From": {"+1"}, "Body": {"HELP"}})
	rec := postForm(t, srv.Handler(), url.Values{"From": {"+1"}, "Body": {"HELP"}})

	resp := decodeTwiML(t, rec.Body.String())
	if resp.Message == nil || *resp.Message != replyRateLimited {
		t.Errorf("expected rate limit reply, got %v", resp.Message)
	}
	if len(responder.calls) != 1 {
		t.Errorf("expected one execution, got %d", len(responder.calls))
	}

	postForm(t, srv.Handler(), url.Values{"From": {"+2"}, "Body": {"HELP"}})
	if len(responder.calls) != 2 {
		t.Error("other senders must not be limited")
	}
}

func TestJSONWebhook(t *testing.T) {
	responder := &recordingResponder{reply: "Welcome back!"}
	srv := newTestServer(responder)

	req := httptest.NewRequest(http.MethodPost, "/sms/json", strings.NewReader(`{"From":"+44700","Body":"join"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got jsonReply
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !got.Success || got.Response != "Welcome back!" {
		t.Errorf("unexpected reply %+v", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/sms/json", strings.NewReader(`{"From":`))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed json, got %d", rec.Code)
	}
}

func TestWebhook_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&recordingResponder{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sms/twilio", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	monitor := health.NewMonitor()
	monitor.AddDependency("database", stubPinger{err: errors.New("down")}, true)
	srv := newTestServer(&recordingResponder{}, WithMonitor(monitor))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))
	var report health.HealthReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if report.Components["database"].Error != "down" {
		t.Errorf("unexpected report %+v", report)
	}

	rec = httptest.NewRecorder()
	newTestServer(&recordingResponder{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 without monitor, got %d", rec.Code)
	}
}

func TestMemoryDeduper_Expires(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	d := NewMemoryDeduper(time.Minute)
	d.now = func() time.Time { return now }

	first, _ := d.FirstDelivery(context.Background(), "SM1")
	again, _ := d.FirstDelivery(context.Background(), "SM1")
	if !first || again {
		t.Fatalf("expected first=true again=false, got %v %v", first, again)
	}

	now = now.Add(time.Minute)
	if ok, _ := d.FirstDelivery(context.Background(), "SM1"); !ok {
		t.Error("expected id to be forgotten after ttl")
	}
}

func TestTwilioWebhook_Signature(t *testing.T) {
	responder := &recordingResponder{reply: "ok"}
	srv := NewServer(Config{
		TwilioAccountSID: "AC123",
		TwilioAuthToken:  "secret",
		TwilioWebhookURL: "https://sms.example.com/sms/twilio",
	}, responder, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	form := url.Values{"AccountSid": {"AC123"}, "From": {"+1"}, "Body": {"HELP"}}

	send := func(sig string, values url.Values) int {
		req := httptest.NewRequest(http.MethodPost, "/sms/twilio", strings.NewReader(values.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Twilio-Signature", sig)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("bogus", form); code != http.StatusForbidden {
		t.Errorf("expected 403 for bad signature, got %d", code)
	}

	other := url.Values{"AccountSid": {"AC999"}, "From": {"+1"}, "Body": {"HELP"}}
	if code := send(twilioSignature("secret", "https://sms.example.com/sms/twilio", other), other); code != http.StatusForbidden {
		t.Errorf("expected 403 for foreign account, got %d", code)
	}

	if code := send(twilioSignature("secret", "https://sms.example.com/sms/twilio", form), form); code != http.StatusOK {
		t.Errorf("expected 200 for valid signature, got %d", code)
	}
	if len(responder.calls) != 1 {
		t.Errorf("expected one execution, got %d", len(responder.calls))
	}
}

func TestTwilioSignature_KnownVector(t *testing.T) {
	// example from Twilio's request validation documentation
	form := url.Values{
		"CallSid": {"CA1234567890ABCDE"},
		"Caller":  {"+12349013030"},
		"Digits":  {"1234"},
		"From":    {"+12349013030"},
		"To":      {"+18005551212"},
	}
	got := twilioSignature("12345", "https://mycompany.com/myapp.php?foo=1&bar=2", form)
	if got != "0/KCTR6DLpKmkAf8muzZqo1nDgQ=" {
		t.Errorf("unexpected signature %s", got)
	}
}
