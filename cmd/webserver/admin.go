package main

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"citadelcbt"
)

const (
	msgTopicsFailed   = "Failed to fetch curriculum topics."
	msgGenerateFailed = "Failed to generate questions for the selected topic."
	msgSaveFailed     = "Failed to save quiz to cloud database."
)

// adminForm is the generation selection carried between dashboard requests
type adminForm struct {
	Level   citadelcbt.Level
	Subject string
	Topic   string
	Count   int
	Topics  []string
	DraftID string
}

func formFromRequest(r *http.Request) adminForm {
	form := adminForm{
		Level:   citadelcbt.Level(r.FormValue("level")),
		Subject: r.FormValue("subject"),
		Topic:   strings.TrimSpace(r.FormValue("topic")),
		DraftID: r.FormValue("draft"),
	}
	if !form.Level.Valid() {
		form.Level = citadelcbt.LevelJSS
	}
	if count, err := strconv.Atoi(r.FormValue("count")); err == nil && count > 0 {
		form.Count = count
	} else {
		form.Count = citadelcbt.DefaultQuestionCount
	}
	for _, topic := range r.Form["topics"] {
		if topic = strings.TrimSpace(topic); topic != "" {
			form.Topics = append(form.Topics, topic)
		}
	}
	return form
}

// handleAdminDashboard serves /admin: quiz list plus the generation panel
func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	v, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	s.renderDashboard(w, r, v, formFromRequest(r), "", "")
}

func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, v viewer, form adminForm, errMsg, notice string) {
	data := map[string]interface{}{
		"Viewer":   v,
		"Form":     form,
		"Levels":   []citadelcbt.Level{citadelcbt.LevelJSS, citadelcbt.LevelSSS},
		"Subjects": citadelcbt.SubjectsFor(form.Level),
		"Counts":   citadelcbt.QuestionCountChoices,
		"Error":    errMsg,
		"Notice":   notice,
	}
	if form.DraftID != "" {
		draft, err := s.generator.GetDraft(r.Context(), form.DraftID)
		if err == nil {
			data["Draft"] = draft
		} else if !errors.Is(err, citadelcbt.ErrNotFound) {
			log.Printf("Failed to load draft %s: %v", form.DraftID, err)
		}
	}

	quizzes, err := s.generator.List(r.Context())
	if err != nil {
		log.Printf("Failed to get quizzes: %v", err)
		data["Banner"] = syncBanner(err)
	}
	data["Quizzes"] = quizzes
	s.render(w, "admin", data)
}

// requireAdmin redirects to the login page unless an administrator is signed in
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) (viewer, bool) {
	v := s.viewer(r)
	if !v.IsAdmin() {
		http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
		return v, false
	}
	return v, true
}

// handleAdmin routes everything under /admin/
func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/admin/"), "/")
	if path == "login" {
		s.handleAdminLogin(w, r)
		return
	}
	if path == "" {
		s.handleAdminDashboard(w, r)
		return
	}

	v, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}

	parts := strings.Split(path, "/")
	switch {
	case path == "registry":
		s.handleRegistry(w, r, v)
	case path == "registry/add":
		s.handleRegistryAdd(w, r, v)
	case len(parts) == 3 && parts[0] == "registry" && parts[2] == "delete":
		s.handleRegistryDelete(w, r, v, parts[1])
	case len(parts) == 3 && parts[0] == "quiz" && parts[2] == "delete":
		s.handleQuizDelete(w, r, v, parts[1])
	case r.Method != "POST":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Failed to parse form", http.StatusBadRequest)
			return
		}
		form := formFromRequest(r)
		switch path {
		case "topics":
			s.handleTopics(w, r, v, form)
		case "generate":
			s.handleGenerate(w, r, v, form)
		case "publish":
			s.handlePublish(w, r, v, form)
		case "discard":
			if err := s.generator.Discard(r.Context(), form.DraftID); err != nil {
				log.Printf("Failed to discard draft %s: %v", form.DraftID, err)
			}
			form.DraftID = ""
			s.renderDashboard(w, r, v, form, "", "Draft discarded")
		default:
			http.NotFound(w, r)
		}
	}
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == "GET" {
		s.render(w, "admin_login", map[string]interface{}{"Username": "", "Error": ""})
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

	admin, err := s.admins.Login(r.Context(), r.FormValue("username"), r.FormValue("password"))
	if err != nil {
		if !errors.Is(err, citadelcbt.ErrInvalidCredentials) {
			log.Printf("Administrator login failed: %v", err)
		}
		s.render(w, "admin_login", map[string]interface{}{
			"Error":    "Invalid administrator credentials",
			"Username": r.FormValue("username"),
		})
		return
	}

	err = s.signIn(w, r, viewer{
		Role:     "admin",
		Name:     admin.Name,
		Username: admin.Username,
	})
	if err != nil {
		log.Printf("Session save error: %v", err)
		http.Error(w, "Failed to start session", http.StatusInternalServerError)
		return
	}
	log.Printf("Administrator %s signed in", admin.Username)
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request, v viewer, form adminForm) {
	topics, err := s.generator.Topics(r.Context(), form.Level, form.Subject)
	if err != nil {
		if errors.Is(err, citadelcbt.ErrValidation) {
			s.renderDashboard(w, r, v, form, err.Error(), "")
			return
		}
		log.Printf("Topic fetch failed for %s %s: %v", form.Level, form.Subject, err)
		s.renderDashboard(w, r, v, form, msgTopicsFailed, "")
		return
	}
	form.Topics = topics
	form.Topic = ""
	s.renderDashboard(w, r, v, form, "", "")
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, v viewer, form adminForm) {
	draft, err := s.generator.Draft(r.Context(), form.Level, form.Subject, form.Topic, form.Count)
	if err != nil {
		if errors.Is(err, citadelcbt.ErrValidation) {
			s.renderDashboard(w, r, v, form, err.Error(), "")
			return
		}
		log.Printf("Generation failed for %s %s %s: %v", form.Level, form.Subject, form.Topic, err)
		s.renderDashboard(w, r, v, form, msgGenerateFailed, "")
		return
	}
	form.DraftID = draft.ID
	s.renderDashboard(w, r, v, form, "", "")
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request, v viewer, form adminForm) {
	quiz, err := s.generator.Publish(r.Context(), form.DraftID)
	if err != nil {
		switch {
		case errors.Is(err, citadelcbt.ErrNotFound):
			form.DraftID = ""
			s.renderDashboard(w, r, v, form, "The draft has expired, please generate it again.", "")
		case citadelcbt.IsPermissionError(err):
			s.renderDashboard(w, r, v, form, citadelcbt.PermissionRemediation, "")
		default:
			log.Printf("Publish failed: %v", err)
			s.renderDashboard(w, r, v, form, msgSaveFailed, "")
		}
		return
	}
	form.DraftID = ""
	form.Topic = ""
	s.renderDashboard(w, r, v, form, "", "Published "+quiz.Title)
}

func (s *Server) handleQuizDelete(w http.ResponseWriter, r *http.Request, v viewer, quizID string) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	form := adminForm{Level: citadelcbt.LevelJSS, Count: citadelcbt.DefaultQuestionCount}
	if err := s.generator.Delete(r.Context(), quizID); err != nil {
		if errors.Is(err, citadelcbt.ErrNotFound) {
			s.renderDashboard(w, r, v, form, "Quiz not found", "")
			return
		}
		log.Printf("Failed to delete quiz %s: %v", quizID, err)
		s.renderDashboard(w, r, v, form, syncBanner(err), "")
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *Server) renderRegistry(w http.ResponseWriter, r *http.Request, v viewer, errMsg string) {
	data := map[string]interface{}{
		"Viewer": v,
		"Master": s.admins.Master(),
		"Error":  errMsg,
	}
	admins, err := s.admins.List(r.Context())
	if err != nil {
		log.Printf("Failed to list administrators: %v", err)
		data["Banner"] = syncBanner(err)
	}
	data["Admins"] = admins
	s.render(w, "admin_registry", data)
}

func (s *Server) handleRegistry(w http.ResponseWriter, r *http.Request, v viewer) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.renderRegistry(w, r, v, "")
}

func (s *Server) handleRegistryAdd(w http.ResponseWriter, r *http.Request, v viewer) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	_, err := s.admins.Add(r.Context(), r.FormValue("username"), r.FormValue("name"), v.Username)
	if err != nil {
		if errors.Is(err, citadelcbt.ErrValidation) {
			s.renderRegistry(w, r, v, err.Error())
			return
		}
		log.Printf("Failed to add administrator: %v", err)
		s.renderRegistry(w, r, v, syncBanner(err))
		return
	}
	http.Redirect(w, r, "/admin/registry", http.StatusSeeOther)
}

func (s *Server) handleRegistryDelete(w http.ResponseWriter, r *http.Request, v viewer, adminID string) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.admins.Remove(r.Context(), adminID); err != nil {
		switch {
		case errors.Is(err, citadelcbt.ErrMasterAdmin):
			s.renderRegistry(w, r, v, "The master administrator cannot be removed")
		case errors.Is(err, citadelcbt.ErrNotFound):
			s.renderRegistry(w, r, v, "Administrator not found")
		default:
			log.Printf("Failed to remove administrator %s: %v", adminID, err)
			s.renderRegistry(w, r, v, syncBanner(err))
		}
		return
	}
	http.Redirect(w, r, "/admin/registry", http.StatusSeeOther)
}
