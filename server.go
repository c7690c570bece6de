package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the thin HTTP glue over the core pipeline. All real policy lives
// in the classifier, review generator, and scheduler; handlers only decode,
// validate presence of required fields, and encode.
type Server struct {
	cfg        Config
	db         *sql.DB
	llm        Completer
	tracker    *SessionTracker
	classifier *Classifier
	reviews    *ReviewGenerator
}

func NewServer(cfg Config, db *sql.DB, llm Completer, tracker *SessionTracker, classifier *Classifier, reviews *ReviewGenerator) *Server {
	return &Server{
		cfg:        cfg,
		db:         db,
		llm:        llm,
		tracker:    tracker,
		classifier: classifier,
		reviews:    reviews,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/courses", s.handleUploadSyllabus)
		r.Get("/courses", s.handleListCourses)
		r.Post("/review", s.handleReviewRequest)
		r.Post("/review/criteria", s.handleReviewByCriteria)
		r.Get("/review/topics/{courseID}", s.handleAvailableTopics)
		r.Get("/review/summary/{courseID}", s.handleConfusionSummary)
		r.Post("/grade", s.handleGrade)
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/sessions/recent", s.handleRecentSessions)
		r.Get("/sessions/{sessionID}/status", s.handleSessionStatus)
		r.Get("/stats", s.handleStats)
	})

	return r
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	reply := ChatReply(s.db, s.llm, req.SessionID, req.Message, s.cfg.ChatHistoryLimit)

	conversationID, err := InsertConversation(s.db, req.SessionID, req.Message, reply)
	if err != nil {
		log.Printf("chat session=%s save error: %v", req.SessionID, err)
		writeError(w, http.StatusInternalServerError, "failed to save conversation")
		return
	}
	s.tracker.Touch(req.SessionID)

	writeJSON(w, http.StatusOK, map[string]any{
		"response":        reply,
		"conversation_id": conversationID,
	})
}

func (s *Server) handleUploadSyllabus(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.cfg.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form or file too large")
		return
	}

	courseName := strings.TrimSpace(r.FormValue("name"))
	if courseName == "" {
		writeError(w, http.StatusBadRequest, "course name is required")
		return
	}
	file, header, err := r.FormFile("syllabus")
	if err != nil {
		writeError(w, http.StatusBadRequest, "syllabus file is required")
		return
	}
	defer file.Close()

	result := ProcessSyllabus(s.db, s.llm, courseName, file, header.Size)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

func (s *Server) handleListCourses(w http.ResponseWriter, _ *http.Request) {
	courses, err := GetCourses(s.db)
	if err != nil {
		log.Printf("list courses error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list courses")
		return
	}

	type courseView struct {
		ID    int64        `json:"id"`
		Name  string       `json:"name"`
		Units []CourseUnit `json:"units"`
	}
	views := make([]courseView, 0, len(courses))
	for _, c := range courses {
		views = append(views, courseView{ID: c.ID, Name: c.Name, Units: c.Units})
	}
	writeJSON(w, http.StatusOK, map[string]any{"courses": views})
}

func (s *Server) handleReviewRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Request string `json:"request"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Request) == "" {
		writeError(w, http.StatusBadRequest, "request text is required")
		return
	}

	writeJSON(w, http.StatusOK, s.reviews.GenerateReviewFromRequest(req.Request))
}

func (s *Server) handleReviewByCriteria(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CourseID int64    `json:"course_id"`
		Unit     *string  `json:"unit"`
		Topics   []string `json:"topics"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CourseID == 0 {
		writeError(w, http.StatusBadRequest, "course_id is required")
		return
	}

	writeJSON(w, http.StatusOK, s.reviews.GenerateReviewByCriteria(req.CourseID, req.Unit, req.Topics))
}

func (s *Server) handleAvailableTopics(w http.ResponseWriter, r *http.Request) {
	courseID, ok := courseIDParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.reviews.AvailableTopics(courseID))
}

func (s *Server) handleConfusionSummary(w http.ResponseWriter, r *http.Request) {
	courseID, ok := courseIDParam(w, r)
	if !ok {
		return
	}

	var unit *string
	if u := strings.TrimSpace(r.URL.Query().Get("unit")); u != "" {
		unit = &u
	}
	var topics []string
	if t := strings.TrimSpace(r.URL.Query().Get("topics")); t != "" {
		for _, topic := range strings.Split(t, ",") {
			if topic = strings.TrimSpace(topic); topic != "" {
				topics = append(topics, topic)
			}
		}
	}

	writeJSON(w, http.StatusOK, s.reviews.ConfusionSummary(courseID, unit, topics))
}

func (s *Server) handleGrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question      string `json:"question"`
		QuestionType  string `json:"question_type"`
		StudentAnswer string `json:"student_answer"`
		Hint          string `json:"hint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if strings.TrimSpace(req.StudentAnswer) == "" {
		writeError(w, http.StatusBadRequest, "student_answer is required")
		return
	}

	writeJSON(w, http.StatusOK, s.reviews.GradeAnswer(req.Question, req.QuestionType, req.StudentAnswer, req.Hint))
}

func (s *Server) handleAnalyze(w http.ResponseWriter, _ *http.Request) {
	result := RunAnalysisSweep(s.db, s.classifier)
	writeJSON(w, http.StatusOK, map[string]int{
		"analyzed": result.Analyzed,
		"failed":   result.Failed,
	})
}

func (s *Server) handleRecentSessions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	sessions, err := GetRecentSessionIDs(s.db, limit)
	if err != nil {
		log.Printf("recent sessions error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list recent sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}
	status, err := s.classifier.SessionStatus(sessionID)
	if err != nil {
		log.Printf("session status session=%s error: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, "failed to load session status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := GetDatabaseStats(s.db)
	if err != nil {
		log.Printf("stats error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func courseIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	courseID, err := strconv.ParseInt(chi.URLParam(r, "courseID"), 10, 64)
	if err != nil || courseID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid course id")
		return 0, false
	}
	return courseID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
