package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"re2q/internal/domain"
	"re2q/internal/infra/memory"
	"re2q/internal/quiz"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	catalog := memory.NewCatalog(memory.NewStaticCatalogLoader([]domain.Question{
		{ID: 1, Content: "Q1", CorrectAnswer: true, DurationSeconds: 60, Position: 1},
		{ID: 2, Content: "Q2", CorrectAnswer: false, DurationSeconds: 60, Position: 2},
	}), time.Minute)
	service := quiz.NewService(
		catalog,
		memory.NewAnswerBuffer(time.Hour),
		memory.NewLedger(catalog),
		memory.NewSnapshotStore(),
		memory.NewParticipantRegistry(),
		quiz.WithDrainInterval(10*time.Millisecond),
	)
	handler := NewHandler(service, NewAdminSessions("admin", "secret"))

	mux := http.NewServeMux()
	handler.Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, client *http.Client, url string, payload any, cookies []*http.Cookie) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func adminLogin(t *testing.T, server *httptest.Server) *http.Cookie {
	t.Helper()
	resp := postJSON(t, server.Client(), server.URL+"/api/admin/login",
		map[string]string{"username": "admin", "password": "secret"}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", resp.StatusCode)
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == adminCookieName {
			return cookie
		}
	}
	t.Fatalf("expected admin session cookie")
	return nil
}

func TestStateIssuesParticipantCookie(t *testing.T) {
	server := newTestServer(t)

	resp, err := server.Client().Get(server.URL + "/api/state")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var issued *http.Cookie
	for _, cookie := range resp.Cookies() {
		if cookie.Name == participantCookieName {
			issued = cookie
		}
	}
	if issued == nil {
		t.Fatalf("expected participant cookie to be issued")
	}
	if _, err := uuid.Parse(issued.Value); err != nil {
		t.Fatalf("expected UUID cookie value, got %q", issued.Value)
	}

	var envelope struct {
		State  domain.StateSnapshot `json:"state"`
		Errors []string             `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Errors == nil || len(envelope.Errors) != 0 {
		t.Fatalf("expected empty errors array, got %v", envelope.Errors)
	}
	if envelope.State.QuizActive {
		t.Fatalf("expected idle quiz, got %+v", envelope.State)
	}
}

func TestAdminMutationRejectsAnonymous(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.Client(), server.URL+"/api/admin/quiz/start", map[string]any{}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var envelope struct {
		State  domain.StateSnapshot `json:"state"`
		Errors []string             `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(envelope.Errors) != 1 || envelope.Errors[0] != domain.ErrUnauthorized.Error() {
		t.Fatalf("expected unauthorized error in envelope, got %v", envelope.Errors)
	}
	if envelope.State.QuizActive {
		t.Fatalf("state must still render, got %+v", envelope.State)
	}
}

func TestAdminLoginRejectsBadCredentials(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.Client(), server.URL+"/api/admin/login",
		map[string]string{"username": "admin", "password": "wrong"}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

func TestAdminQuizLifecycleOverHTTP(t *testing.T) {
	server := newTestServer(t)
	session := adminLogin(t, server)

	resp := postJSON(t, server.Client(), server.URL+"/api/admin/quiz/start", map[string]any{}, []*http.Cookie{session})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("quiz start status %d", resp.StatusCode)
	}
	var startEnvelope struct {
		State  domain.StateSnapshot `json:"state"`
		Errors []string             `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&startEnvelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !startEnvelope.State.QuizActive {
		t.Fatalf("expected active quiz, got %+v", startEnvelope.State)
	}

	resp = postJSON(t, server.Client(), server.URL+"/api/admin/question/next", map[string]any{}, []*http.Cookie{session})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("next question status %d", resp.StatusCode)
	}
	var nextEnvelope struct {
		State          domain.StateSnapshot `json:"state"`
		IsLastQuestion bool                 `json:"isLastQuestion"`
		Errors         []string             `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&nextEnvelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if nextEnvelope.State.ActiveQuestionID == nil || *nextEnvelope.State.ActiveQuestionID != 1 {
		t.Fatalf("expected question 1 open, got %+v", nextEnvelope.State)
	}
	if nextEnvelope.IsLastQuestion {
		t.Fatalf("question 1 of 2 flagged as last")
	}
}

func TestSubmitWithoutActiveQuestion(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.Client(), server.URL+"/api/answers", map[string]bool{"answer": true}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var body struct {
		Errors []string `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Errors) != 1 || body.Errors[0] != domain.ErrNoActiveQuestion.Error() {
		t.Fatalf("expected gating error, got %v", body.Errors)
	}
}

func TestSubmitDuringOpenWindow(t *testing.T) {
	server := newTestServer(t)
	session := adminLogin(t, server)

	resp := postJSON(t, server.Client(), server.URL+"/api/admin/quiz/start", map[string]any{}, []*http.Cookie{session})
	resp.Body.Close()
	resp = postJSON(t, server.Client(), server.URL+"/api/admin/question/start",
		map[string]int64{"questionId": 1}, []*http.Cookie{session})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("question start status %d", resp.StatusCode)
	}

	resp = postJSON(t, server.Client(), server.URL+"/api/answers", map[string]bool{"answer": true}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit status %d", resp.StatusCode)
	}
}

func TestMyAnswersEmptyForNewParticipant(t *testing.T) {
	server := newTestServer(t)

	resp, err := server.Client().Get(server.URL + "/api/answers")
	if err != nil {
		t.Fatalf("get answers: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var body struct {
		Answers []domain.AnswerRecord `json:"answers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Answers == nil || len(body.Answers) != 0 {
		t.Fatalf("expected empty answers array, got %v", body.Answers)
	}
}

func TestStateFeedStreamsSnapshots(t *testing.T) {
	server := newTestServer(t)

	u := "ws" + server.URL[len("http"):] + "/ws/state"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var msg struct {
		Type    string               `json:"type"`
		Payload domain.StateSnapshot `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "state" {
		t.Fatalf("expected state message, got %q", msg.Type)
	}
	if msg.Payload.QuizActive {
		t.Fatalf("expected idle snapshot, got %+v", msg.Payload)
	}
}
