package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/goleak"

	"coursechat/internal/log"
	"coursechat/internal/rag"
	"coursechat/internal/search"
	"coursechat/internal/session"
	"coursechat/internal/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

type stubAnswerer struct {
	resp *rag.Response
	err  error

	lastSessionID string
	lastQuery     string
}

func (s *stubAnswerer) AnswerQuery(_ context.Context, sessionID, query string) (*rag.Response, error) {
	s.lastSessionID = sessionID
	s.lastQuery = query
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

type stubCatalog struct {
	titles  []string
	course  *search.Course
	chunks  int64
	listErr error
	outErr  error
}

func (s *stubCatalog) ListCourseTitles(context.Context) ([]string, error) {
	return s.titles, s.listErr
}

func (s *stubCatalog) Outline(context.Context, string) (*search.Course, error) {
	if s.outErr != nil {
		return nil, s.outErr
	}
	return s.course, nil
}

func (s *stubCatalog) CountChunks(context.Context) (int64, error) {
	return s.chunks, nil
}

type stubSessions struct {
	sessions  []*session.Session
	exchanges []session.Exchange
	deleteErr error

	deleted []uuid.UUID
}

func (s *stubSessions) List(context.Context, int32, int32) ([]*session.Session, error) {
	return s.sessions, nil
}

func (s *stubSessions) Delete(_ context.Context, id uuid.UUID) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubSessions) History(context.Context, uuid.UUID, int32) ([]session.Exchange, error) {
	return s.exchanges, nil
}

func testServer(t *testing.T, cfg ServerConfig) *Server {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	if cfg.RAG == nil {
		cfg.RAG = &stubAnswerer{resp: &rag.Response{Answer: "ok"}}
	}
	if cfg.Courses == nil {
		cfg.Courses = &stubCatalog{}
	}
	if cfg.Sessions == nil {
		cfg.Sessions = &stubSessions{}
	}
	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func TestNewServer_MissingDependencies(t *testing.T) {
	if _, err := NewServer(ServerConfig{}); err == nil {
		t.Fatal("NewServer(empty config) expected error, got nil")
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t, ServerConfig{})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestReadyEndpoint_NoPool(t *testing.T) {
	srv := testServer(t, ServerConfig{})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("GET /ready status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestQueryEndpoint(t *testing.T) {
	sessionID := uuid.New()
	answerer := &stubAnswerer{resp: &rag.Response{
		Answer:    "MCP is a protocol.",
		Sources:   []tools.Source{{Text: "Intro to MCP - Lesson 1", Link: "https://example.com/l1"}},
		SessionID: sessionID,
	}}
	srv := testServer(t, ServerConfig{RAG: answerer})

	body := bytes.NewBufferString(`{"query": "What is MCP?", "session_id": "` + sessionID.String() + `"}`)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/query", body))

	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/query status = %d, body %s", w.Code, w.Body.String())
	}
	if answerer.lastQuery != "What is MCP?" || answerer.lastSessionID != sessionID.String() {
		t.Errorf("handler passed query %q session %q", answerer.lastQuery, answerer.lastSessionID)
	}

	var resp rag.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Answer != "MCP is a protocol." || len(resp.Sources) != 1 || resp.SessionID != sessionID {
		t.Errorf("response = %+v", resp)
	}
}

func TestQueryEndpoint_EmptyQuery(t *testing.T) {
	srv := testServer(t, ServerConfig{})

	body := bytes.NewBufferString(`{"query": "  "}`)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/query", body))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty query status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestQueryEndpoint_InvalidSessionID(t *testing.T) {
	srv := testServer(t, ServerConfig{
		RAG: &stubAnswerer{err: session.ErrInvalidSessionID},
	})

	body := bytes.NewBufferString(`{"query": "hi", "session_id": "not-a-uuid"}`)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/query", body))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid session status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestQueryEndpoint_InternalError(t *testing.T) {
	srv := testServer(t, ServerConfig{
		RAG: &stubAnswerer{err: errors.New("pool exhausted")},
	})

	body := bytes.NewBufferString(`{"query": "hi"}`)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/query", body))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("internal error status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("pool exhausted")) {
		t.Error("internal error details leaked to client")
	}
}

func TestCoursesEndpoint(t *testing.T) {
	srv := testServer(t, ServerConfig{
		Courses: &stubCatalog{titles: []string{"Intro to MCP", "Advanced Retrieval"}, chunks: 42},
	})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/courses", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/courses status = %d", w.Code)
	}

	var resp struct {
		TotalCourses int      `json:"total_courses"`
		CourseTitles []string `json:"course_titles"`
		TotalChunks  int64    `json:"total_chunks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.TotalCourses != 2 || resp.TotalChunks != 42 {
		t.Errorf("response = %+v", resp)
	}
}

func TestOutlineEndpoint_NotFound(t *testing.T) {
	srv := testServer(t, ServerConfig{
		Courses: &stubCatalog{outErr: search.ErrCourseNotFound},
	})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/courses/nonexistent", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown course status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestOutlineEndpoint_Ambiguous(t *testing.T) {
	srv := testServer(t, ServerConfig{
		Courses: &stubCatalog{outErr: search.ErrCourseAmbiguous},
	})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/courses/intro", nil))

	if w.Code != http.StatusConflict {
		t.Fatalf("ambiguous course status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestDeleteSession(t *testing.T) {
	sessions := &stubSessions{}
	srv := testServer(t, ServerConfig{Sessions: sessions})
	id := uuid.New()

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id.String(), nil))

	if w.Code != http.StatusOK {
		t.Fatalf("DELETE session status = %d", w.Code)
	}
	if len(sessions.deleted) != 1 || sessions.deleted[0] != id {
		t.Errorf("deleted = %v, want [%s]", sessions.deleted, id)
	}
}

func TestDeleteSession_BadID(t *testing.T) {
	srv := testServer(t, ServerConfig{})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/sessions/garbage", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestDeleteSession_NotFound(t *testing.T) {
	srv := testServer(t, ServerConfig{
		Sessions: &stubSessions{deleteErr: session.ErrSessionNotFound},
	})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+uuid.NewString(), nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("missing session status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	handler := requestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	got := w.Header().Get("X-Request-ID")
	if got == "" {
		t.Fatal("requestIDMiddleware() did not set X-Request-ID header")
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("requestIDMiddleware() X-Request-ID = %q, not a valid UUID", got)
	}
}

func TestRequestIDMiddleware_ReusesValidID(t *testing.T) {
	handler := requestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	want := uuid.NewString()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", want)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if got := w.Header().Get("X-Request-ID"); got != want {
		t.Errorf("X-Request-ID = %q, want %q", got, want)
	}
}

func TestRequestIDMiddleware_RejectsInvalidID(t *testing.T) {
	handler := requestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "<script>alert(1)</script>")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	got := w.Header().Get("X-Request-ID")
	if got == "<script>alert(1)</script>" {
		t.Error("invalid X-Request-ID was reused")
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("X-Request-ID = %q, not a valid UUID", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := recoveryMiddleware(log.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("panic status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestRateLimit(t *testing.T) {
	rl := newRateLimiter(1.0, 2)
	handler := rateLimitMiddleware(rl, false, log.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := range 2 {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		handler.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("exhausted bucket status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	// A different IP has its own bucket.
	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.2:1234"
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("fresh IP status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		realIP     string
		forwarded  string
		trustProxy bool
		want       string
	}{
		{name: "remote addr", remoteAddr: "10.0.0.1:1234", want: "10.0.0.1"},
		{name: "x-real-ip trusted", remoteAddr: "127.0.0.1:1", realIP: "203.0.113.7", trustProxy: true, want: "203.0.113.7"},
		{name: "x-real-ip untrusted", remoteAddr: "127.0.0.1:1", realIP: "203.0.113.7", want: "127.0.0.1"},
		{name: "forwarded first ip", remoteAddr: "127.0.0.1:1", forwarded: "203.0.113.9, 10.0.0.1", trustProxy: true, want: "203.0.113.9"},
		{name: "garbage header falls back", remoteAddr: "127.0.0.1:1", realIP: "not-an-ip", trustProxy: true, want: "127.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
