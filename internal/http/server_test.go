package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"dinebot/app/internal/chat"
	"dinebot/app/internal/keywords"
	"dinebot/app/internal/memory"
)

func TestHomeRouteRendersChatPage(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubChatService{})
	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	if ct := rec.Header().Get("Content-Type"); ct != htmlContentType {
		t.Fatalf("expected content type %q, got %q", htmlContentType, ct)
	}

	body := rec.Body.String()
	if !contains(body, "<h1>DineBot</h1>") {
		t.Fatalf("expected body to contain title, got %q", body)
	}

	if !contains(body, `data-endpoint="/chat"`) {
		t.Fatalf("expected chat form endpoint, got %q", body)
	}
}

func TestChatRouteReturnsReply(t *testing.T) {
	t.Parallel()

	service := &stubChatService{reply: "Try the nihari at Waris."}
	srv := newTestServer(t, service)

	req := httptest.NewRequest("POST", "/chat", strings.NewReader(`{"user_id":"u1","user_input":"Where to eat?"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	if body.Response != "Try the nihari at Waris." {
		t.Fatalf("unexpected response %q", body.Response)
	}

	if service.lastUserID != "u1" || service.lastInput != "Where to eat?" {
		t.Fatalf("unexpected service arguments %q %q", service.lastUserID, service.lastInput)
	}

	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestChatQueryRouteReturnsReply(t *testing.T) {
	t.Parallel()

	service := &stubChatService{reply: "Karahi it is."}
	srv := newTestServer(t, service)

	req := httptest.NewRequest("GET", "/chat?user_id=u2&user_input=dinner+idea", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if !contains(rec.Body.String(), "Karahi it is.") {
		t.Fatalf("expected reply in body, got %q", rec.Body.String())
	}

	if service.lastUserID != "u2" || service.lastInput != "dinner idea" {
		t.Fatalf("unexpected service arguments %q %q", service.lastUserID, service.lastInput)
	}
}

func TestChatRouteRejectsBlankInput(t *testing.T) {
	t.Parallel()

	service := &stubChatService{replyErr: chat.ErrInputRequired}
	srv := newTestServer(t, service)

	req := httptest.NewRequest("POST", "/chat", strings.NewReader(`{"user_id":"u1","user_input":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}

	if !contains(rec.Body.String(), "user_input is required") {
		t.Fatalf("expected validation detail, got %q", rec.Body.String())
	}
}

func TestChatRouteReturns500OnFailure(t *testing.T) {
	t.Parallel()

	service := &stubChatService{replyErr: eris.New("upstream timeout")}
	srv := newTestServer(t, service)

	req := httptest.NewRequest("POST", "/chat", strings.NewReader(`{"user_id":"u1","user_input":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 500 {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}

	if contains(rec.Body.String(), "upstream timeout") {
		t.Fatalf("internal error leaked into response: %q", rec.Body.String())
	}
}

func TestMemoryRouteReturnsSummary(t *testing.T) {
	t.Parallel()

	stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	service := &stubChatService{summary: &memory.Summary{
		UserID:    "u1",
		Text:      "The user likes spicy food.",
		CreatedAt: stamp,
		UpdatedAt: stamp,
	}}
	srv := newTestServer(t, service)

	req := httptest.NewRequest("GET", "/memory/u1", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		UserID  string `json:"user_id"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	if body.UserID != "u1" || body.Summary != "The user likes spicy food." {
		t.Fatalf("unexpected memory body %+v", body)
	}
}

func TestMemoryRouteReturns404WhenAbsent(t *testing.T) {
	t.Parallel()

	service := &stubChatService{memoryErr: eris.Wrap(chat.ErrMemoryNotFound, "loading memory for user: ghost")}
	srv := newTestServer(t, service)

	req := httptest.NewRequest("GET", "/memory/ghost", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 404 {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestForgetRouteReturns204(t *testing.T) {
	t.Parallel()

	service := &stubChatService{}
	srv := newTestServer(t, service)

	req := httptest.NewRequest("DELETE", "/memory/u1", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 204 {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}

	if service.forgotten != "u1" {
		t.Fatalf("expected u1 to be forgotten, got %q", service.forgotten)
	}
}

func TestExtractKeywordsRoute(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubChatService{})

	req := httptest.NewRequest("POST", "/extract-keywords", strings.NewReader(`{"wishlistItems":["Leather wallet","the"]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Keywords map[string][]string `json:"keywords"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	got := body.Keywords["Leather wallet"]
	if len(got) != 2 || got[0] != "leather" || got[1] != "wallet" {
		t.Fatalf("unexpected keywords %v", got)
	}

	if words, ok := body.Keywords["the"]; !ok || len(words) != 0 {
		t.Fatalf("expected empty keyword list for stop word item, got %v (present=%t)", words, ok)
	}
}

func TestHealthRouteReportsOK(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubChatService{})

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestHealthRouteReportsDegradedStore(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubChatService{pingErr: eris.New("connection refused")})

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 503 {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}

	if !contains(rec.Body.String(), "degraded") {
		t.Fatalf("expected degraded status, got %q", rec.Body.String())
	}
}

func TestCORSAllowsAnyOriginByDefault(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubChatService{})

	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Fatalf("expected wildcard CORS origin, got %q", origin)
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubChatService{})
	const requestID = "0b5c6f4e-3c1a-4d5e-9a57-2f1d3c4b5a69"

	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("X-Request-ID", requestID)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != requestID {
		t.Fatalf("expected request id %q, got %q", requestID, got)
	}
}

func TestNewServerRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewServer(Options{}); err == nil {
		t.Fatalf("expected error without chat service")
	}

	if _, err := NewServer(Options{ChatService: &stubChatService{}}); err == nil {
		t.Fatalf("expected error without keyword extractor")
	}
}

func TestChatRouteMissingFieldIsBadRequest(t *testing.T) {
	t.Parallel()

	service := &stubChatService{replyErr: chat.ErrInputRequired}
	srv := newTestServer(t, service)

	req := httptest.NewRequest("POST", "/chat", strings.NewReader(`{"user_id":"u1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Fatalf("expected status 400, got %d: %s", rec.Code, rec.Body.String())
	}

	if service.lastUserID != "u1" || service.lastInput != "" {
		t.Fatalf("expected the service to validate the request, got %q %q", service.lastUserID, service.lastInput)
	}
}

func TestChatFailureIsNotRecordedTwice(t *testing.T) {
	t.Parallel()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	hook := logtest.NewLocal(logger)

	srv := newTestServerWithLogger(t, &stubChatService{replyErr: eris.New("upstream timeout")}, logger)

	req := httptest.NewRequest("POST", "/chat", strings.NewReader(`{"user_id":"u1","user_input":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 500 {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}

	if got := countErrorEntries(hook); got != 0 {
		t.Fatalf("expected the transport to leave error reporting to the service, got %d error entries", got)
	}
}

func TestHealthFailureIsRecordedOnce(t *testing.T) {
	t.Parallel()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	hook := logtest.NewLocal(logger)

	srv := newTestServerWithLogger(t, &stubChatService{pingErr: eris.New("connection refused")}, logger)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if got := countErrorEntries(hook); got != 1 {
		t.Fatalf("expected one error entry, got %d", got)
	}
}

func TestPanicIsRecoveredAsServerError(t *testing.T) {
	t.Parallel()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	hook := logtest.NewLocal(logger)

	srv := newTestServerWithLogger(t, &stubChatService{panicWith: "nil map"}, logger)

	req := httptest.NewRequest("POST", "/chat", strings.NewReader(`{"user_id":"u1","user_input":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 500 {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}

	if got := countErrorEntries(hook); got != 1 {
		t.Fatalf("expected the panic to be recorded once, got %d", got)
	}
}

// helper utilities

func newTestServer(t *testing.T, svc chat.Service) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return newTestServerWithLogger(t, svc, logger)
}

func newTestServerWithLogger(t *testing.T, svc chat.Service, logger *logrus.Logger) *Server {
	t.Helper()

	extractor, err := keywords.NewExtractor(keywords.Options{Tagger: nounTagger{}, Logger: logger})
	if err != nil {
		t.Fatalf("NewExtractor returned error: %v", err)
	}

	srv, err := NewServer(Options{
		ChatService: svc,
		Extractor:   extractor,
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("NewServer returned error: %v", err)
	}

	return srv
}

func countErrorEntries(hook *logtest.Hook) int {
	count := 0
	for _, entry := range hook.AllEntries() {
		if entry.Level <= logrus.ErrorLevel {
			count++
		}
	}
	return count
}

func contains(body, substring string) bool {
	return strings.Contains(body, substring)
}

// stubs

type stubChatService struct {
	mu         sync.Mutex
	reply      string
	replyErr   error
	summary    *memory.Summary
	memoryErr  error
	pingErr    error
	lastUserID string
	lastInput  string
	forgotten  string
	panicWith  string
}

func (s *stubChatService) Reply(_ context.Context, userID, input string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.panicWith != "" {
		panic(s.panicWith)
	}

	s.lastUserID = userID
	s.lastInput = input
	if s.replyErr != nil {
		return "", s.replyErr
	}
	return s.reply, nil
}

func (s *stubChatService) Memory(_ context.Context, _ string) (*memory.Summary, error) {
	if s.memoryErr != nil {
		return nil, s.memoryErr
	}
	return s.summary, nil
}

func (s *stubChatService) Forget(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.forgotten = userID
	return nil
}

func (s *stubChatService) Ping(_ context.Context) error {
	return s.pingErr
}

// nounTagger splits on whitespace and tags every word as a noun.
type nounTagger struct{}

func (nounTagger) Tokenize(text string) ([]string, error) {
	return strings.Fields(text), nil
}

func (nounTagger) Tag(words []string) ([]keywords.TaggedWord, error) {
	tagged := make([]keywords.TaggedWord, 0, len(words))
	for _, word := range words {
		tagged = append(tagged, keywords.TaggedWord{Word: word, Tag: "NN"})
	}
	return tagged, nil
}

var _ chat.Service = (*stubChatService)(nil)
var _ keywords.Tagger = nounTagger{}
