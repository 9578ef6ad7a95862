package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"notedeck/internal/auth"
	"notedeck/internal/db"
	"notedeck/internal/generate"
	"notedeck/internal/services"
)

type stubProvider struct {
	response string
}

func (p stubProvider) Name() string { return "stub" }

func (p stubProvider) Generate(ctx context.Context, req generate.Request) (string, error) {
	return p.response, nil
}

type testEnv struct {
	server  *Server
	results *services.ResultService
}

func newTestEnv(t *testing.T, providers ...generate.Provider) *testEnv {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	schedule := services.NewScheduleService(conn)
	results := services.NewResultService(conn, schedule)
	server := NewServer(
		generate.NewPipeline(0, providers...),
		services.NewSetService(conn),
		results,
		schedule,
		services.NewNotesService(),
	)
	return &testEnv{server: server, results: results}
}

func (e *testEnv) do(t *testing.T, userID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req = req.WithContext(auth.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return payload
}

func stubCardsJSON(n int) string {
	cards := make([]generate.Draft, n)
	for i := range cards {
		cards[i] = generate.Draft{
			Question: fmt.Sprintf("What is the meaning of concept number %d?", i),
			Answer:   fmt.Sprintf("Concept number %d means something specific.", i),
		}
	}
	payload, _ := json.Marshal(map[string]any{"flashcards": cards})
	return string(payload)
}

func longNotes(words int) string {
	parts := make([]string, words)
	for i := range parts {
		parts[i] = fmt.Sprintf("word%d", i)
	}
	return strings.Join(parts, " ")
}

func TestGenerateEndpoint(t *testing.T) {
	env := newTestEnv(t, stubProvider{response: stubCardsJSON(9)})

	rec := env.do(t, "user-1", http.MethodPost, "/api/generate", map[string]string{
		"title": "Cells",
		"notes": longNotes(52),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decode(t, rec)
	if count := payload["count"].(float64); count != 9 {
		t.Errorf("expected count 9, got %v", count)
	}
}

func TestGenerateEndpointRejectsShortNotes(t *testing.T) {
	env := newTestEnv(t, stubProvider{response: stubCardsJSON(9)})

	rec := env.do(t, "user-1", http.MethodPost, "/api/generate", map[string]string{
		"title": "Cells",
		"notes": longNotes(30),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := decode(t, rec)["error"].(string); !strings.Contains(msg, "too short") {
		t.Errorf("expected a too-short error, got %q", msg)
	}
}

func TestGenerateEndpointWithoutProviders(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "user-1", http.MethodPost, "/api/generate", map[string]string{
		"title": "Cells",
		"notes": longNotes(52),
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestEndpointsRequireUser(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/generate", "/api/sets", "/api/results"} {
		rec := env.do(t, "", http.MethodGet, path, nil)
		if rec.Code != http.StatusUnauthorized && rec.Code != http.StatusMethodNotAllowed {
			// generate only accepts POST; the rest should 401 outright.
			t.Errorf("%s: expected unauthorized, got %d", path, rec.Code)
		}
	}

	rec := env.do(t, "", http.MethodPost, "/api/generate", map[string]string{"title": "x", "notes": "y"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for anonymous generate, got %d", rec.Code)
	}
}

func createSet(t *testing.T, env *testEnv, userID string, cards int) string {
	t.Helper()
	drafts := make([]generate.Draft, cards)
	for i := range drafts {
		drafts[i] = generate.Draft{
			Question: fmt.Sprintf("What is the meaning of concept number %d?", i),
			Answer:   fmt.Sprintf("Concept number %d means something specific.", i),
		}
	}
	rec := env.do(t, userID, http.MethodPost, "/api/sets", map[string]any{
		"title":      "Cells",
		"sourceText": longNotes(52),
		"flashcards": drafts,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create set: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	return decode(t, rec)["id"].(string)
}

func TestQuizFlow(t *testing.T) {
	env := newTestEnv(t)
	setID := createSet(t, env, "user-1", 3)

	rec := env.do(t, "user-1", http.MethodPost, "/api/sets/"+setID+"/quiz", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start quiz: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	state := decode(t, rec)
	sessionID := state["sessionId"].(string)
	if state["totalCards"].(float64) != 3 {
		t.Fatalf("expected 3 cards, got %v", state["totalCards"])
	}
	if _, ok := state["answer"]; ok {
		t.Error("answer must not be exposed before reveal")
	}

	// Answering before reveal is rejected.
	rec = env.do(t, "user-1", http.MethodPost, "/api/quiz/"+sessionID+"/answer", map[string]bool{"correct": true})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 before reveal, got %d", rec.Code)
	}

	answers := []bool{true, false, true}
	for i, correct := range answers {
		rec = env.do(t, "user-1", http.MethodPost, "/api/quiz/"+sessionID+"/reveal", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("reveal card %d: got %d", i, rec.Code)
		}
		if _, ok := decode(t, rec)["answer"]; !ok {
			t.Fatalf("card %d: expected answer after reveal", i)
		}

		rec = env.do(t, "user-1", http.MethodPost, "/api/quiz/"+sessionID+"/answer", map[string]bool{"correct": correct})
		if rec.Code != http.StatusOK {
			t.Fatalf("answer card %d: got %d: %s", i, rec.Code, rec.Body.String())
		}
	}

	state = decode(t, rec)
	if state["complete"] != true {
		t.Fatalf("expected complete session, got %v", state)
	}
	if state["correctCount"].(float64) != 2 {
		t.Errorf("expected correctCount 2, got %v", state["correctCount"])
	}
	if state["scorePercent"].(float64) != 67 {
		t.Errorf("expected scorePercent 67, got %v", state["scorePercent"])
	}

	waitForResults(t, env, "user-1", setID, 1)

	// Retry resets the pass and does not write another result.
	rec = env.do(t, "user-1", http.MethodPost, "/api/quiz/"+sessionID+"/retry", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("retry: got %d", rec.Code)
	}
	state = decode(t, rec)
	if state["complete"] != false || state["correctCount"].(float64) != 0 || state["cardNumber"].(float64) != 1 {
		t.Errorf("retry did not reset state: %v", state)
	}

	time.Sleep(50 * time.Millisecond)
	results, err := env.results.ListResults(context.Background(), "user-1", setID)
	if err != nil {
		t.Fatalf("ListResults failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected exactly 1 result after retry, got %d", len(results))
	}
}

func waitForResults(t *testing.T, env *testEnv, userID, setID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		results, err := env.results.ListResults(context.Background(), userID, setID)
		if err != nil {
			t.Fatalf("ListResults failed: %v", err)
		}
		if len(results) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d quiz results", want)
}

func TestStartQuizUnknownSet(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "user-1", http.MethodPost, "/api/sets/does-not-exist/quiz", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestQuizSessionScopedToUser(t *testing.T) {
	env := newTestEnv(t)
	setID := createSet(t, env, "user-1", 2)

	rec := env.do(t, "user-1", http.MethodPost, "/api/sets/"+setID+"/quiz", nil)
	sessionID := decode(t, rec)["sessionId"].(string)

	rec = env.do(t, "user-2", http.MethodGet, "/api/quiz/"+sessionID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user's session, got %d", rec.Code)
	}
}
