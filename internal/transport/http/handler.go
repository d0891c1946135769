package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"re2q/internal/domain"
	"re2q/internal/quiz"
)

const participantCookieName = "player_uuid"

// Handler exposes the quiz use cases over a JSON API. Administrative
// mutations answer with the current state snapshot plus a list of
// human-readable errors, never a bare failure, so clients can always
// re-render state.
type Handler struct {
	service *quiz.Service
	admins  *AdminSessions
}

func NewHandler(service *quiz.Service, admins *AdminSessions) *Handler {
	return &Handler{service: service, admins: admins}
}

// Register wires all routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/state", h.handleState)
	mux.HandleFunc("/api/ranking", h.handleRanking)
	mux.HandleFunc("/api/answers", h.handleAnswers)
	mux.HandleFunc("/api/admin/login", h.handleAdminLogin)
	mux.HandleFunc("/api/admin/logout", h.handleAdminLogout)
	mux.HandleFunc("/api/admin/quiz/start", h.adminMutation(h.startQuiz))
	mux.HandleFunc("/api/admin/quiz/stop", h.adminMutation(h.stopQuiz))
	mux.HandleFunc("/api/admin/question/start", h.adminMutation(h.startQuestion))
	mux.HandleFunc("/api/admin/question/next", h.handleStartNextQuestion)
	mux.HandleFunc("/api/admin/quiz/reset", h.handleResetQuiz)
	mux.HandleFunc("/api/admin/lottery", h.handleLottery)
	mux.HandleFunc("/ws/state", h.handleStateFeed)
}

type stateEnvelope struct {
	State  domain.StateSnapshot `json:"state"`
	Errors []string             `json:"errors"`
}

// ensureParticipant resolves the participant identity cookie, issuing a new
// UUID cookie on first contact.
func (h *Handler) ensureParticipant(w http.ResponseWriter, r *http.Request) (domain.Participant, error) {
	id := ""
	if cookie, err := r.Cookie(participantCookieName); err == nil && cookie.Value != "" {
		if _, err := uuid.Parse(cookie.Value); err == nil {
			id = cookie.Value
		}
	}
	if id == "" {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     participantCookieName,
			Value:    id,
			Path:     "/",
			MaxAge:   24 * 60 * 60,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return h.service.Participants().GetOrCreate(r.Context(), id)
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// Touch the identity so first-time visitors get their cookie here.
	if _, err := h.ensureParticipant(w, r); err != nil {
		log.Printf("ensure participant: %v", err)
	}
	writeJSON(w, http.StatusOK, stateEnvelope{State: h.service.State(), Errors: []string{}})
}

func (h *Handler) handleRanking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ranking, err := h.service.Ranking(r.Context())
	if err != nil {
		log.Printf("ranking: %v", err)
		http.Error(w, "ranking unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ranking": ranking})
}

type submitRequest struct {
	Answer bool `json:"answer"`
}

type submitResponse struct {
	Errors []string `json:"errors"`
}

func (h *Handler) handleAnswers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.submitAnswer(w, r)
	case http.MethodGet:
		h.myAnswers(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	participant, err := h.ensureParticipant(w, r)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, submitResponse{Errors: []string{"identity unavailable"}})
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, submitResponse{Errors: []string{"invalid payload"}})
		return
	}

	if err := h.service.SubmitAnswer(r.Context(), participant.ID, req.Answer); err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, domain.ErrBufferUnavailable) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, submitResponse{Errors: []string{err.Error()}})
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{Errors: []string{}})
}

func (h *Handler) myAnswers(w http.ResponseWriter, r *http.Request) {
	participant, err := h.ensureParticipant(w, r)
	if err != nil {
		http.Error(w, "identity unavailable", http.StatusInternalServerError)
		return
	}
	records, err := h.service.AnswersFor(r.Context(), participant.ID)
	if err != nil {
		log.Printf("answer history: %v", err)
		http.Error(w, "answers unavailable", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []domain.AnswerRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"answers": records})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []string{"invalid payload"}})
		return
	}
	token, ok := h.admins.Login(req.Username, req.Password)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"errors": []string{"invalid credentials"}})
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"errors": []string{}})
}

func (h *Handler) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.admins.Logout(r)
	http.SetCookie(w, &http.Cookie{Name: adminCookieName, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]any{"errors": []string{}})
}

// adminMutation wraps a state-changing operation with the admin gate and the
// state-plus-errors envelope.
func (h *Handler) adminMutation(op func(r *http.Request) (domain.StateSnapshot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !h.admins.Authorized(r) {
			writeJSON(w, http.StatusUnauthorized, stateEnvelope{
				State:  h.service.State(),
				Errors: []string{domain.ErrUnauthorized.Error()},
			})
			return
		}
		snap, err := op(r)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, stateEnvelope{State: snap, Errors: []string{err.Error()}})
			return
		}
		writeJSON(w, http.StatusOK, stateEnvelope{State: snap, Errors: []string{}})
	}
}

func (h *Handler) startQuiz(r *http.Request) (domain.StateSnapshot, error) {
	return h.service.StartQuiz(r.Context())
}

func (h *Handler) stopQuiz(r *http.Request) (domain.StateSnapshot, error) {
	return h.service.StopQuiz(r.Context())
}

type startQuestionRequest struct {
	QuestionID int64 `json:"questionId"`
}

func (h *Handler) startQuestion(r *http.Request) (domain.StateSnapshot, error) {
	var req startQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return h.service.State(), domain.ErrQuestionNotFound
	}
	return h.service.StartQuestion(r.Context(), req.QuestionID)
}

type nextQuestionEnvelope struct {
	State          domain.StateSnapshot `json:"state"`
	IsLastQuestion bool                 `json:"isLastQuestion"`
	Errors         []string             `json:"errors"`
}

func (h *Handler) handleStartNextQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.admins.Authorized(r) {
		writeJSON(w, http.StatusUnauthorized, nextQuestionEnvelope{
			State:  h.service.State(),
			Errors: []string{domain.ErrUnauthorized.Error()},
		})
		return
	}
	snap, isLast, err := h.service.StartNextQuestion(r.Context())
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, nextQuestionEnvelope{State: snap, Errors: []string{err.Error()}})
		return
	}
	writeJSON(w, http.StatusOK, nextQuestionEnvelope{State: snap, IsLastQuestion: isLast, Errors: []string{}})
}

type resetEnvelope struct {
	Success             bool     `json:"success"`
	DeletedAnswers      int      `json:"deletedAnswersCount"`
	DeletedParticipants int      `json:"deletedPlayersCount"`
	Errors              []string `json:"errors"`
}

func (h *Handler) handleResetQuiz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.admins.Authorized(r) {
		writeJSON(w, http.StatusUnauthorized, resetEnvelope{Errors: []string{domain.ErrUnauthorized.Error()}})
		return
	}
	result, err := h.service.ResetQuiz(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, resetEnvelope{Errors: []string{err.Error()}})
		return
	}
	writeJSON(w, http.StatusOK, resetEnvelope{
		Success:             true,
		DeletedAnswers:      result.DeletedAnswers,
		DeletedParticipants: result.DeletedParticipants,
		Errors:              []string{},
	})
}

func (h *Handler) handleLottery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.admins.Authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"errors": []string{domain.ErrUnauthorized.Error()}})
		return
	}
	ranking, err := h.service.ExecuteLottery(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"errors": []string{err.Error()}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ranking": ranking, "errors": []string{}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}
