package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"citadelcbt"
)

// handleQuiz serves /quiz/{id}: the question-count choice and attempt start
func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	v := s.viewer(r)
	if !v.IsStudent() {
		http.Redirect(w, r, "/student/login", http.StatusSeeOther)
		return
	}

	quizID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/quiz/"), "/")
	if quizID == "" || strings.Contains(quizID, "/") {
		http.NotFound(w, r)
		return
	}

	quiz, err := s.store.GetQuiz(r.Context(), quizID)
	if err != nil {
		if errors.Is(err, citadelcbt.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		log.Printf("Failed to get quiz %s: %v", quizID, err)
		s.render(w, "home", map[string]interface{}{"Viewer": v, "Banner": syncBanner(err)})
		return
	}

	if r.Method == "GET" {
		s.render(w, "quiz_setup", map[string]interface{}{
			"Viewer":    v,
			"Quiz":      quiz,
			"Available": len(quiz.Questions),
			"Choices":   citadelcbt.QuestionCountChoices,
		})
		return
	}
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	count, err := strconv.Atoi(r.FormValue("count"))
	if err != nil || count <= 0 {
		count = citadelcbt.QuestionCountChoices[0]
	}

	// One live attempt per browser
	session := s.session(r)
	if previous, ok := session.Values["attempt"].(string); ok {
		s.attempts.Cancel(previous)
	}

	attempt := s.attempts.Begin(s.ctx, *quiz, count, citadelcbt.WithOnFinish(func(record citadelcbt.ReviewRecord) {
		log.Printf("Attempt on %s finished by %s: %d/%d", record.Quiz.ID, v.Email, record.Score, len(record.Quiz.Questions))
	}))

	session.Values["attempt"] = attempt.ID
	if err := session.Save(r, w); err != nil {
		log.Printf("Session save error: %v", err)
	}
	http.Redirect(w, r, "/attempt/"+attempt.ID, http.StatusSeeOther)
}

// handleAttempt routes /attempt/{id}, /attempt/{id}/clock, /attempt/{id}/review and /attempt/{id}/done
func (s *Server) handleAttempt(w http.ResponseWriter, r *http.Request) {
	v := s.viewer(r)
	if !v.IsStudent() {
		http.Redirect(w, r, "/student/login", http.StatusSeeOther)
		return
	}

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/attempt/"), "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	attemptID := parts[0]

	owned, _ := s.session(r).Values["attempt"].(string)
	if owned != attemptID {
		http.NotFound(w, r)
		return
	}

	attempt, ok := s.attempts.Get(attemptID)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if len(parts) == 1 {
		s.handleAttemptQuestion(w, r, attempt)
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "clock":
			s.handleAttemptClock(w, attempt)
			return
		case "review":
			s.handleAttemptReview(w, r, v, attempt)
			return
		case "done":
			s.handleAttemptDone(w, r, attempt)
			return
		}
	}
	http.NotFound(w, r)
}

func (s *Server) handleAttemptQuestion(w http.ResponseWriter, r *http.Request, attempt *citadelcbt.Session) {
	reviewURL := fmt.Sprintf("/attempt/%s/review", attempt.ID)

	if r.Method == "GET" {
		snap := attempt.Snapshot()
		if snap.State == citadelcbt.SessionSubmitted {
			http.Redirect(w, r, reviewURL, http.StatusSeeOther)
			return
		}
		if snap.Total == 0 {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		s.render(w, "question", map[string]interface{}{
			"AttemptID": attempt.ID,
			"Snap":      snap,
			"Number":    snap.Current + 1,
			"Chosen":    snap.Answers[snap.Current],
			"IsLast":    snap.Current == snap.Total-1,
		})
		return
	}
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	if optionStr := r.FormValue("option"); optionStr != "" {
		option, err := strconv.Atoi(optionStr)
		if err != nil {
			http.Error(w, "Invalid answer", http.StatusBadRequest)
			return
		}
		if err := attempt.Select(attempt.Current(), option); err != nil {
			http.Error(w, "Invalid answer", http.StatusBadRequest)
			return
		}
	}

	switch r.FormValue("action") {
	case "next":
		attempt.Advance()
	case "prev":
		attempt.Retreat()
	case "jump":
		index, err := strconv.Atoi(r.FormValue("index"))
		if err != nil || attempt.JumpTo(index) != nil {
			http.Error(w, "Invalid question", http.StatusBadRequest)
			return
		}
	case "submit":
		if _, err := attempt.Submit(); err != nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, reviewURL, http.StatusSeeOther)
		return
	case "cancel":
		s.attempts.Cancel(attempt.ID)
		session := s.session(r)
		delete(session.Values, "attempt")
		if err := session.Save(r, w); err != nil {
			log.Printf("Session save error: %v", err)
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/attempt/"+attempt.ID, http.StatusSeeOther)
}

func (s *Server) handleAttemptClock(w http.ResponseWriter, attempt *citadelcbt.Session) {
	snap := attempt.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"remaining": snap.Remaining,
		"clock":     citadelcbt.FormatClock(snap.Remaining),
		"answered":  snap.Answered,
		"total":     snap.Total,
		"state":     snap.State,
	})
}

func (s *Server) handleAttemptReview(w http.ResponseWriter, r *http.Request, v viewer, attempt *citadelcbt.Session) {
	record, ok := attempt.Record()
	if !ok {
		http.Redirect(w, r, "/attempt/"+attempt.ID, http.StatusSeeOther)
		return
	}
	s.render(w, "review", map[string]interface{}{
		"Viewer":    v,
		"AttemptID": attempt.ID,
		"Report":    citadelcbt.BuildReport(record),
		"TimedOut":  attempt.Snapshot().TimedOut,
	})
}

func (s *Server) handleAttemptDone(w http.ResponseWriter, r *http.Request, attempt *citadelcbt.Session) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.attempts.Collect(attempt.ID)

	session := s.session(r)
	delete(session.Values, "attempt")
	if err := session.Save(r, w); err != nil {
		log.Printf("Session save error: %v", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
