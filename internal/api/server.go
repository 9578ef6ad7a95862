package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"notedeck/internal/auth"
	"notedeck/internal/generate"
	"notedeck/internal/models"
	"notedeck/internal/quiz"
	"notedeck/internal/services"
)

const maxMultipartMemory = 8 << 20 // 8 MB

type Server struct {
	mux      *http.ServeMux
	pipeline *generate.Pipeline
	sets     *services.SetService
	results  *services.ResultService
	schedule *services.ScheduleService
	notes    *services.NotesService
	sessions *SessionManager
}

func NewServer(
	pipeline *generate.Pipeline,
	sets *services.SetService,
	results *services.ResultService,
	schedule *services.ScheduleService,
	notes *services.NotesService,
) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		pipeline: pipeline,
		sets:     sets,
		results:  results,
		schedule: schedule,
		notes:    notes,
		sessions: NewSessionManager(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/generate", s.handleGenerate)
	s.mux.HandleFunc("/api/notes/extract", s.handleExtractNotes)
	s.mux.HandleFunc("/api/sets", s.handleSets)
	s.mux.HandleFunc("/api/sets/", s.handleSetActions)
	s.mux.HandleFunc("/api/quiz/", s.handleQuizActions)
	s.mux.HandleFunc("/api/results", s.handleListResults)
	s.mux.HandleFunc("/api/review/due", s.handleDueSets)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if _, ok := auth.UserID(r.Context()); !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body struct {
		Title string `json:"title"`
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	req := generate.Request{Title: body.Title, Notes: body.Notes}
	if err := generate.ValidateRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.pipeline.Generate(r.Context(), req)
	if err != nil {
		if errors.Is(err, generate.ErrNoProviders) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"flashcards": result.Flashcards,
		"count":      result.Count,
	})
}

func (s *Server) handleExtractNotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if _, ok := auth.UserID(r.Context()); !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	text, err := s.notes.ExtractText(file, header.Size)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleSets(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	switch r.Method {
	case http.MethodGet:
		sets, err := s.sets.ListSets(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]map[string]any, 0, len(sets))
		for _, set := range sets {
			out = append(out, setJSON(&set))
		}
		writeJSON(w, http.StatusOK, map[string]any{"sets": out})

	case http.MethodPost:
		var body struct {
			Title      string           `json:"title"`
			SourceText string           `json:"sourceText"`
			Flashcards []generate.Draft `json:"flashcards"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if strings.TrimSpace(body.Title) == "" {
			writeError(w, http.StatusBadRequest, "title must not be empty")
			return
		}
		if len(body.Flashcards) == 0 {
			writeError(w, http.StatusBadRequest, "generate flashcards first")
			return
		}

		set, err := s.sets.CreateSet(r.Context(), userID, body.Title, body.SourceText, body.Flashcards)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, setJSON(set))

	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// handleSetActions dispatches /api/sets/{id} and /api/sets/{id}/quiz.
func (s *Server) handleSetActions(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/sets/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		s.handleGetSet(w, r, userID, parts[0])
	case len(parts) == 2 && parts[1] == "quiz":
		s.handleStartQuiz(w, r, userID, parts[0])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleGetSet(w http.ResponseWriter, r *http.Request, userID, setID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	set, err := s.sets.GetSet(r.Context(), userID, setID)
	if err != nil {
		if errors.Is(err, services.ErrSetNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	cards, err := s.sets.ListCards(r.Context(), setID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]map[string]any, 0, len(cards))
	for _, card := range cards {
		out = append(out, map[string]any{
			"id":       card.ID,
			"question": card.Question,
			"answer":   card.Answer,
		})
	}
	payload := setJSON(set)
	payload["flashcards"] = out
	writeJSON(w, http.StatusOK, payload)
}

// handleStartQuiz loads the set's cards and opens a session over them. A set
// with zero cards never enters the state machine.
func (s *Server) handleStartQuiz(w http.ResponseWriter, r *http.Request, userID, setID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	set, err := s.sets.GetSet(r.Context(), userID, setID)
	if err != nil {
		if errors.Is(err, services.ErrSetNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	cards, err := s.sets.ListCards(r.Context(), setID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	quizCards := make([]quiz.Card, 0, len(cards))
	for _, card := range cards {
		quizCards = append(quizCards, quiz.Card{ID: card.ID, Question: card.Question, Answer: card.Answer})
	}

	session, err := quiz.NewSession(userID, setID, quizCards, s.results)
	if err != nil {
		if errors.Is(err, quiz.ErrNoCards) {
			writeError(w, http.StatusConflict, "no flashcards in this set")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sessionID := s.sessions.Create(session)
	state := snapshot(sessionID, set.Title, session)
	writeJSON(w, http.StatusCreated, state)
}

// handleQuizActions dispatches /api/quiz/{id} and its reveal/answer/retry
// sub-resources.
func (s *Server) handleQuizActions(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/quiz/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	sessionID := parts[0]

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	} else if len(parts) > 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	var state map[string]any
	err := s.sessions.With(sessionID, func(session *quiz.Session) error {
		if session.UserID() != userID {
			return ErrSessionNotFound
		}

		var actionErr error
		switch action {
		case "":
			if r.Method != http.MethodGet {
				actionErr = errMethod{http.MethodGet}
			}
		case "reveal":
			if r.Method != http.MethodPost {
				actionErr = errMethod{http.MethodPost}
			} else {
				actionErr = session.Reveal()
			}
		case "answer":
			if r.Method != http.MethodPost {
				actionErr = errMethod{http.MethodPost}
			} else {
				var body struct {
					Correct bool `json:"correct"`
				}
				if decodeErr := json.NewDecoder(r.Body).Decode(&body); decodeErr != nil {
					actionErr = errBadRequest{"invalid json body"}
				} else {
					actionErr = session.Answer(body.Correct)
				}
			}
		case "retry":
			if r.Method != http.MethodPost {
				actionErr = errMethod{http.MethodPost}
			} else {
				session.Retry()
			}
		default:
			return ErrSessionNotFound
		}

		if actionErr != nil {
			return actionErr
		}
		state = snapshot(sessionID, "", session)
		return nil
	})

	if err != nil {
		s.writeQuizError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type errMethod struct{ allowed string }

func (e errMethod) Error() string { return "method not allowed" }

type errBadRequest struct{ msg string }

func (e errBadRequest) Error() string { return e.msg }

func (s *Server) writeQuizError(w http.ResponseWriter, err error) {
	var methodErr errMethod
	var badReqErr errBadRequest
	switch {
	case errors.Is(err, ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &methodErr):
		methodNotAllowed(w, methodErr.allowed)
	case errors.As(err, &badReqErr):
		writeError(w, http.StatusBadRequest, badReqErr.msg)
	case errors.Is(err, quiz.ErrNotRevealed), errors.Is(err, quiz.ErrSessionComplete):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	results, err := s.results.ListResults(r.Context(), userID, r.URL.Query().Get("set"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]map[string]any, 0, len(results))
	for _, result := range results {
		out = append(out, map[string]any{
			"id":           result.ID,
			"setId":        result.SetID,
			"correctCount": result.CorrectCount,
			"totalCount":   result.TotalCount,
			"createdAt":    result.CreatedAt.Format(timeLayout),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

func (s *Server) handleDueSets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	schedules, err := s.schedule.DueSets(r.Context(), userID, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]map[string]any, 0, len(schedules))
	for _, schedule := range schedules {
		out = append(out, map[string]any{
			"setId": schedule.SetID,
			"title": schedule.SetTitle,
			"due":   nullTimeToString(schedule.Due),
			"reps":  schedule.Reps,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"due": out})
}

// snapshot serializes the session for the frontend. The answer is included
// only once revealed; the score only once complete.
func snapshot(sessionID, title string, session *quiz.Session) map[string]any {
	state := map[string]any{
		"sessionId":       sessionID,
		"setId":           session.SetID(),
		"cardNumber":      session.Index() + 1,
		"totalCards":      session.TotalCount(),
		"revealed":        session.Revealed(),
		"correctCount":    session.CorrectCount(),
		"complete":        session.Complete(),
		"progressPercent": session.ProgressPercent(),
	}
	if title != "" {
		state["title"] = title
	}
	if session.Complete() {
		state["scorePercent"] = session.ScorePercent()
		return state
	}
	state["question"] = session.Current().Question
	if session.Revealed() {
		state["answer"] = session.Current().Answer
	}
	return state
}

func setJSON(set *models.FlashcardSet) map[string]any {
	return map[string]any{
		"id":         set.ID,
		"title":      set.Title,
		"sourceText": set.SourceText,
		"cardCount":  set.CardCount,
		"createdAt":  set.CreatedAt.Format(timeLayout),
	}
}
