package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"citadelcbt"
)

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// quizSummary is the answer-free view of a quiz served to API clients
type quizSummary struct {
	ID            string                `json:"id"`
	Title         string                `json:"title"`
	Subject       string                `json:"subject"`
	Level         citadelcbt.Level      `json:"level"`
	Department    citadelcbt.Department `json:"department,omitempty"`
	Topic         string                `json:"topic"`
	QuestionCount int                   `json:"questionCount"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeAPIError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleAPI routes /api/token and /api/quizzes
func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	switch strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/"), "/") {
	case "token":
		s.handleAPIToken(w, r)
	case "quizzes":
		s.handleAPIQuizzes(w, r)
	default:
		writeAPIError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleAPIToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		writeAPIError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identity, err := s.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, citadelcbt.ErrInvalidCredentials) {
			log.Printf("API sign in failed: %v", err)
		}
		writeAPIError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	token, err := s.tokens.Issue(*identity)
	if err != nil {
		log.Printf("Failed to issue token for %s: %v", identity.Email, err)
		writeAPIError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// bearer returns the identity behind the Authorization header
func (s *Server) bearer(r *http.Request) (*citadelcbt.Identity, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, citadelcbt.ErrInvalidToken
	}
	return s.tokens.Parse(raw)
}

func (s *Server) handleAPIQuizzes(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		writeAPIError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if _, err := s.bearer(r); err != nil {
		writeAPIError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	level := citadelcbt.Level(strings.ToUpper(r.URL.Query().Get("level")))
	if level != "" && !level.Valid() {
		writeAPIError(w, http.StatusBadRequest, "unknown level")
		return
	}

	quizzes, err := s.store.ListQuizzes(r.Context())
	if err != nil {
		log.Printf("Failed to get quizzes: %v", err)
		writeAPIError(w, http.StatusBadGateway, syncBanner(err))
		return
	}

	summaries := make([]quizSummary, 0, len(quizzes))
	for _, quiz := range citadelcbt.FilterQuizzes(quizzes, level) {
		summaries = append(summaries, quizSummary{
			ID:            quiz.ID,
			Title:         quiz.Title,
			Subject:       quiz.Subject,
			Level:         quiz.Level,
			Department:    quiz.Department,
			Topic:         quiz.Topic,
			QuestionCount: len(quiz.Questions),
		})
	}
	writeJSON(w, http.StatusOK, summaries)
}
