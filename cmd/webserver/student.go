package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"strings"

	"citadelcbt"
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	v := s.viewer(r)
	data := map[string]interface{}{
		"Viewer": v,
		"Levels": []citadelcbt.Level{citadelcbt.LevelJSS, citadelcbt.LevelSSS},
	}
	if !v.IsStudent() && !v.IsAdmin() {
		s.render(w, "home", data)
		return
	}

	level := citadelcbt.Level(r.URL.Query().Get("level"))
	if level != "" && !level.Valid() {
		level = ""
	}
	data["Level"] = level

	quizzes, err := s.store.ListQuizzes(r.Context())
	if err != nil {
		log.Printf("Failed to get quizzes: %v", err)
		data["Banner"] = syncBanner(err)
		s.render(w, "home", data)
		return
	}
	data["Quizzes"] = citadelcbt.FilterQuizzes(quizzes, level)
	s.render(w, "home", data)
}

// handleStudent routes /student/{login|signup|password|google|google/callback}
func (s *Server) handleStudent(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/student/"), "/")

	switch path {
	case "login":
		s.handleStudentLogin(w, r)
	case "signup":
		s.handleStudentSignup(w, r)
	case "password":
		s.handleStudentPassword(w, r)
	case "google":
		s.handleGoogleStart(w, r)
	case "google/callback":
		s.handleGoogleCallback(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) renderStudentAuth(w http.ResponseWriter, mode, errMsg string) {
	s.render(w, "student_auth", map[string]interface{}{
		"Mode":          mode,
		"Error":         errMsg,
		"GoogleEnabled": s.google != nil,
	})
}

func (s *Server) handleStudentLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == "GET" {
		s.renderStudentAuth(w, "login", "")
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

	identity, err := s.auth.SignIn(r.Context(), r.FormValue("email"), r.FormValue("password"))
	if err != nil {
		if !errors.Is(err, citadelcbt.ErrInvalidCredentials) {
			log.Printf("Sign in failed: %v", err)
		}
		s.renderStudentAuth(w, "login", "Authentication failed")
		return
	}
	s.completeStudentSignIn(w, r, identity)
}

func (s *Server) handleStudentSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method == "GET" {
		s.renderStudentAuth(w, "signup", "")
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

	identity, err := s.auth.SignUp(r.Context(), r.FormValue("name"), r.FormValue("email"), r.FormValue("password"))
	if err != nil {
		switch {
		case errors.Is(err, citadelcbt.ErrValidation), errors.Is(err, citadelcbt.ErrEmailTaken):
			s.renderStudentAuth(w, "signup", err.Error())
		default:
			log.Printf("Sign up failed: %v", err)
			s.renderStudentAuth(w, "signup", "Authentication failed")
		}
		return
	}
	s.completeStudentSignIn(w, r, identity)
}

func (s *Server) completeStudentSignIn(w http.ResponseWriter, r *http.Request, identity *citadelcbt.Identity) {
	err := s.signIn(w, r, viewer{
		Role:  "student",
		Name:  identity.DisplayName,
		Email: identity.Email,
	})
	if err != nil {
		log.Printf("Session save error: %v", err)
		http.Error(w, "Failed to start session", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleStudentPassword lets a Google account add an optional password
func (s *Server) handleStudentPassword(w http.ResponseWriter, r *http.Request) {
	v := s.viewer(r)
	if !v.IsStudent() {
		http.Redirect(w, r, "/student/login", http.StatusSeeOther)
		return
	}
	if r.Method == "GET" {
		s.renderStudentAuth(w, "password", "")
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

	password := r.FormValue("password")
	if password == "" {
		// Skipping is allowed
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err := s.auth.SetPassword(r.Context(), v.Email, password); err != nil {
		if errors.Is(err, citadelcbt.ErrValidation) {
			s.renderStudentAuth(w, "password", err.Error())
			return
		}
		log.Printf("Set password failed for %s: %v", v.Email, err)
		s.renderStudentAuth(w, "password", "Failed to set password")
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleGoogleStart(w http.ResponseWriter, r *http.Request) {
	if s.google == nil {
		http.NotFound(w, r)
		return
	}

	state, err := randomState()
	if err != nil {
		http.Error(w, "Failed to start sign in", http.StatusInternalServerError)
		return
	}
	session := s.session(r)
	session.Values["oauth_state"] = state
	if err := session.Save(r, w); err != nil {
		log.Printf("Session save error: %v", err)
	}
	http.Redirect(w, r, s.google.AuthURL(state), http.StatusFound)
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if s.google == nil {
		http.NotFound(w, r)
		return
	}

	expected := s.takeOAuthState(w, r)
	if expected == "" || r.URL.Query().Get("state") != expected {
		s.renderStudentAuth(w, "login", "Google authentication failed")
		return
	}

	remote, err := s.google.Identity(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		log.Printf("Google sign in failed: %v", err)
		s.renderStudentAuth(w, "login", "Google authentication failed")
		return
	}
	identity, err := s.auth.SignInFederated(r.Context(), *remote)
	if err != nil {
		log.Printf("Federated sign in failed: %v", err)
		s.renderStudentAuth(w, "login", "Google authentication failed")
		return
	}

	err = s.signIn(w, r, viewer{
		Role:  "student",
		Name:  identity.DisplayName,
		Email: identity.Email,
	})
	if err != nil {
		log.Printf("Session save error: %v", err)
		http.Error(w, "Failed to start session", http.StatusInternalServerError)
		return
	}
	// Offer the optional direct-login password
	http.Redirect(w, r, "/student/password", http.StatusSeeOther)
}

// takeOAuthState returns the pending OAuth state and clears it from the cookie
// so a callback state can only be used once
func (s *Server) takeOAuthState(w http.ResponseWriter, r *http.Request) string {
	session := s.session(r)
	state, _ := session.Values["oauth_state"].(string)
	if state == "" {
		return ""
	}
	delete(session.Values, "oauth_state")
	if err := session.Save(r, w); err != nil {
		log.Printf("Session save error: %v", err)
	}
	return state
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
