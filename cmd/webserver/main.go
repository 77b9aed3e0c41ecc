package main

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"citadelcbt"

	"github.com/gorilla/sessions"
)

//go:embed templates/*.html
var templateFS embed.FS

const cookieName = "citadel-session"

type Server struct {
	ctx       context.Context
	store     citadelcbt.Store
	auth      *citadelcbt.LocalAuth
	google    *citadelcbt.GoogleOAuth
	admins    *citadelcbt.AdminGate
	generator *citadelcbt.QuizGenerator
	attempts  *citadelcbt.SessionRegistry
	tokens    *citadelcbt.TokenIssuer
	cookies   *sessions.CookieStore
	templates map[string]*template.Template
}

func main() {
	cfg, err := citadelcbt.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	citadelcbt.SetVerbose(cfg.Verbose)

	if cfg.OpenAIKey == "" {
		log.Fatal("OPENAI_API_KEY environment variable is required")
	}
	if cfg.SessionSecret == "" {
		log.Fatal("SESSION_SECRET environment variable is required")
	}
	if cfg.Admin.Password == "" {
		log.Printf("ADMIN_PASSWORD is not set, master administrator login is disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := citadelcbt.OpenDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.CreateTables(); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	store, err := citadelcbt.OpenStore(ctx, cfg, db)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StorageDriver, err)
	}
	if store != citadelcbt.Store(db) {
		defer store.Close()
	}

	drafts, err := citadelcbt.OpenDraftStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s draft store: %v", cfg.DraftStore, err)
	}
	if closer, ok := drafts.(io.Closer); ok {
		defer closer.Close()
	}

	maker := citadelcbt.NewQuestionMaker(citadelcbt.NewOpenAIModel(cfg.OpenAIKey, cfg.OpenAIModel))
	maker.SetLogDir(cfg.LLMLogDir)

	server := &Server{
		ctx:       ctx,
		store:     store,
		auth:      citadelcbt.NewLocalAuth(db),
		admins:    citadelcbt.NewAdminGate(cfg.Admin, store),
		generator: citadelcbt.NewQuizGenerator(maker, store, drafts),
		attempts:  citadelcbt.NewSessionRegistry(),
		tokens:    citadelcbt.NewTokenIssuer(cfg.SessionSecret, 0),
		cookies:   newCookieStore(cfg.SessionSecret),
		templates: loadTemplates(),
	}
	if cfg.GoogleEnabled() {
		server.google = citadelcbt.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleSecret, cfg.GoogleRedirect)
	}

	unsubscribe := server.auth.Subscribe(func(identity *citadelcbt.Identity) {
		if identity != nil {
			citadelcbt.VerboseLog("Auth state changed: %s signed in", identity.Email)
		}
	})
	defer unsubscribe()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		server.attempts.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("Starting server on port %s", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func newCookieStore(secret string) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

func loadTemplates() map[string]*template.Template {
	funcMap := template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"letter": func(i int) string {
			if i < 0 || i > 25 {
				return "-"
			}
			return string(rune('A' + i))
		},
		"clock": citadelcbt.FormatClock,
	}

	templates := make(map[string]*template.Template)
	for _, name := range []string{
		"home",
		"student_auth",
		"quiz_setup",
		"question",
		"review",
		"admin_login",
		"admin",
		"admin_registry",
	} {
		templates[name] = template.Must(template.New(name).Funcs(funcMap).ParseFS(templateFS, "templates/base.html", "templates/"+name+".html"))
	}
	return templates
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome)
	mux.HandleFunc("/logout", s.handleLogout)
	mux.HandleFunc("/student/", s.handleStudent)
	mux.HandleFunc("/quiz/", s.handleQuiz)
	mux.HandleFunc("/attempt/", s.handleAttempt)
	mux.HandleFunc("/admin", s.handleAdminDashboard)
	mux.HandleFunc("/admin/", s.handleAdmin)
	mux.HandleFunc("/api/", s.handleAPI)
	return mux
}

func (s *Server) render(w http.ResponseWriter, name string, data map[string]interface{}) {
	tmpl, ok := s.templates[name]
	if !ok {
		log.Printf("Unknown template: %s", name)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Template error in %s: %v", name, err)
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}

// viewer is whoever the cookie says is signed in
type viewer struct {
	Role     string
	Name     string
	Email    string
	Username string
}

func (v viewer) IsStudent() bool { return v.Role == "student" }
func (v viewer) IsAdmin() bool   { return v.Role == "admin" }

func (s *Server) session(r *http.Request) *sessions.Session {
	// A cookie signed with an old secret yields a fresh session plus an error
	session, err := s.cookies.Get(r, cookieName)
	if err != nil {
		citadelcbt.VerboseLog("Discarding unreadable session cookie: %v", err)
	}
	return session
}

func (s *Server) viewer(r *http.Request) viewer {
	session := s.session(r)
	str := func(key string) string {
		v, _ := session.Values[key].(string)
		return v
	}
	return viewer{
		Role:     str("role"),
		Name:     str("name"),
		Email:    str("email"),
		Username: str("username"),
	}
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request, v viewer) error {
	session := s.session(r)
	session.Values = map[interface{}]interface{}{
		"role":     v.Role,
		"name":     v.Name,
		"email":    v.Email,
		"username": v.Username,
	}
	return session.Save(r, w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	v := s.viewer(r)
	if v.IsStudent() {
		if err := s.auth.SignOut(r.Context(), v.Email); err != nil {
			log.Printf("Sign out failed for %s: %v", v.Email, err)
		}
	}

	session := s.session(r)
	if attemptID, ok := session.Values["attempt"].(string); ok {
		s.attempts.Cancel(attemptID)
	}
	session.Values = map[interface{}]interface{}{}
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		log.Printf("Session save error: %v", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// syncBanner turns a storage failure into the message shown above the page
func syncBanner(err error) string {
	if citadelcbt.IsPermissionError(err) {
		return citadelcbt.PermissionRemediation
	}
	return "Failed to sync data: " + err.Error()
}
