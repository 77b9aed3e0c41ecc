package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"citadelcbt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct{}

func (stubGenerator) RequestTopics(_ context.Context, _ citadelcbt.Level, subject string) ([]string, error) {
	return []string{subject + " Basics", "Advanced " + subject}, nil
}

func (stubGenerator) RequestQuestions(_ context.Context, _ citadelcbt.Level, _, topic string, count int) ([]citadelcbt.Question, error) {
	questions := make([]citadelcbt.Question, count)
	for i := range questions {
		questions[i] = citadelcbt.Question{
			ID:            fmt.Sprintf("q-%d", i),
			Text:          fmt.Sprintf("%s question %d", topic, i),
			Options:       []string{"w", "x", "y", "z"},
			CorrectAnswer: 1,
			Explanation:   "x is right",
		}
	}
	return questions, nil
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	db, err := citadelcbt.OpenDB(filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.CreateTables())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s := &Server{
		ctx:   ctx,
		store: db,
		auth:  citadelcbt.NewLocalAuth(db),
		admins: citadelcbt.NewAdminGate(citadelcbt.AdminCredentials{
			Username: "director",
			Password: "master-pass",
		}, db),
		generator: citadelcbt.NewQuizGenerator(stubGenerator{}, db, nil),
		attempts:  citadelcbt.NewSessionRegistry(),
		tokens:    citadelcbt.NewTokenIssuer("test-secret-test-secret-test-sec", 0),
		cookies:   newCookieStore("test-secret-test-secret-test-sec"),
		templates: loadTemplates(),
	}
	t.Cleanup(s.attempts.Shutdown)

	httpServer := httptest.NewServer(s.routes())
	t.Cleanup(httpServer.Close)
	return s, httpServer
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestLandingPage(t *testing.T) {
	_, server := newTestServer(t)

	resp, err := http.Get(server.URL + "/")
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Student sign in")
}

func TestProtectedPagesRedirect(t *testing.T) {
	_, server := newTestServer(t)
	client := newClient(t)

	resp, err := client.Get(server.URL + "/admin")
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, "/admin/login", resp.Request.URL.Path)
	assert.Contains(t, body, "Administrator sign in")

	resp, err = client.Get(server.URL + "/quiz/anything")
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, "/student/login", resp.Request.URL.Path)
}

func TestAdminPublishThenStudentAttempt(t *testing.T) {
	_, server := newTestServer(t)

	admin := newClient(t)
	resp, err := admin.PostForm(server.URL+"/admin/login", url.Values{"username": {"director"}, "password": {"wrong"}})
	require.NoError(t, err)
	assert.Contains(t, readBody(t, resp), "Invalid administrator credentials")

	resp, err = admin.PostForm(server.URL+"/admin/login", url.Values{"username": {"director"}, "password": {"master-pass"}})
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, "/admin", resp.Request.URL.Path)
	assert.Contains(t, body, "Question bank")

	resp, err = admin.PostForm(server.URL+"/admin/topics", url.Values{"level": {"SSS"}, "subject": {"Physics"}})
	require.NoError(t, err)
	assert.Contains(t, readBody(t, resp), "Physics Basics")

	resp, err = admin.PostForm(server.URL+"/admin/generate", url.Values{"level": {"SSS"}, "subject": {"Physics"}, "topic": {""}, "count": {"20"}})
	require.NoError(t, err)
	assert.Contains(t, readBody(t, resp), "please select both a subject and a specific curriculum topic")

	resp, err = admin.PostForm(server.URL+"/admin/generate", url.Values{"level": {"SSS"}, "subject": {"Physics"}, "topic": {"Motion"}, "count": {"20"}})
	require.NoError(t, err)
	body = readBody(t, resp)
	assert.Contains(t, body, "Draft: Physics")
	draftID := extractValue(t, body, `name="draft" value="`)

	resp, err = admin.PostForm(server.URL+"/admin/publish", url.Values{"draft": {draftID}, "level": {"SSS"}, "subject": {"Physics"}})
	require.NoError(t, err)
	assert.Contains(t, readBody(t, resp), "Published Physics: Motion")

	student := newClient(t)
	resp, err = student.PostForm(server.URL+"/student/signup", url.Values{"name": {"Ada"}, "email": {"ada@example.com"}, "password": {"secret1"}})
	require.NoError(t, err)
	body = readBody(t, resp)
	assert.Contains(t, body, "Physics: Motion")
	quizPath := "/quiz/" + extractValue(t, body, `href="/quiz/`)

	resp, err = student.PostForm(server.URL+quizPath, url.Values{"count": {"20"}})
	require.NoError(t, err)
	body = readBody(t, resp)
	attemptPath := resp.Request.URL.Path
	require.True(t, strings.HasPrefix(attemptPath, "/attempt/"))
	assert.Contains(t, body, "Question 1 of 20")
	assert.Contains(t, body, "20:00")

	// Answer the first question correctly, then submit from the last one
	resp, err = student.PostForm(server.URL+attemptPath, url.Values{"option": {"1"}, "action": {"next"}})
	require.NoError(t, err)
	assert.Contains(t, readBody(t, resp), "Question 2 of 20")

	resp, err = student.Get(server.URL + attemptPath + "/clock")
	require.NoError(t, err)
	var clock struct {
		Remaining int    `json:"remaining"`
		Answered  int    `json:"answered"`
		State     string `json:"state"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&clock))
	resp.Body.Close()
	assert.Equal(t, 1, clock.Answered)
	assert.Equal(t, "active", clock.State)

	resp, err = student.PostForm(server.URL+attemptPath, url.Values{"action": {"submit"}})
	require.NoError(t, err)
	body = readBody(t, resp)
	assert.Equal(t, attemptPath+"/review", resp.Request.URL.Path)
	assert.Contains(t, body, "Score 1 / 20")
	assert.Contains(t, body, "5%")
	assert.Contains(t, body, "Unsuccessful")

	// Another browser cannot read the attempt
	other := newClient(t)
	resp, err = other.PostForm(server.URL+"/student/signup", url.Values{"name": {"Bayo"}, "email": {"bayo@example.com"}, "password": {"secret1"}})
	require.NoError(t, err)
	readBody(t, resp)
	resp, err = other.Get(server.URL + attemptPath + "/review")
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = student.PostForm(server.URL+attemptPath+"/done", url.Values{})
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, "/", resp.Request.URL.Path)
}

func TestAdminRegistry(t *testing.T) {
	_, server := newTestServer(t)
	admin := newClient(t)

	resp, err := admin.PostForm(server.URL+"/admin/login", url.Values{"username": {"director"}, "password": {"master-pass"}})
	require.NoError(t, err)
	readBody(t, resp)

	resp, err = admin.PostForm(server.URL+"/admin/registry/add", url.Values{"username": {"teacher1"}, "name": {"Mr Bello"}})
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Contains(t, body, "Mr Bello")

	resp, err = admin.PostForm(server.URL+"/admin/registry/master/delete", url.Values{})
	require.NoError(t, err)
	assert.Contains(t, readBody(t, resp), "The master administrator cannot be removed")
}

func TestAPITokenAndQuizList(t *testing.T) {
	s, server := newTestServer(t)
	ctx := context.Background()

	_, err := s.auth.SignUp(ctx, "Chidi", "chidi@example.com", "secret1")
	require.NoError(t, err)
	sample := citadelcbt.Quiz{Title: "Biology: Cells", Subject: "Biology", Level: citadelcbt.LevelSSS, Topic: "Cells"}
	sample.Questions, _ = stubGenerator{}.RequestQuestions(ctx, citadelcbt.LevelSSS, "Biology", "Cells", 3)
	_, err = s.store.SaveQuiz(ctx, &sample)
	require.NoError(t, err)

	resp, err := http.Get(server.URL + "/api/quizzes")
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Post(server.URL+"/api/token", "application/json", strings.NewReader(`{"email":"chidi@example.com","password":"nope"}`))
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Post(server.URL+"/api/token", "application/json", strings.NewReader(`{"email":"chidi@example.com","password":"secret1"}`))
	require.NoError(t, err)
	var issued struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&issued))
	resp.Body.Close()
	require.NotEmpty(t, issued.Token)

	req, err := http.NewRequest("GET", server.URL+"/api/quizzes?level=sss", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+issued.Token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, body, "correctAnswerIndex")

	var summaries []quizSummary
	require.NoError(t, json.Unmarshal([]byte(body), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "Biology: Cells", summaries[0].Title)
	assert.Equal(t, 3, summaries[0].QuestionCount)
}

func TestOAuthStateIsSingleUse(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/student/google", nil)
	rec := httptest.NewRecorder()
	session := s.session(req)
	session.Values["oauth_state"] = "state-123"
	require.NoError(t, session.Save(req, rec))

	withCookies := func(cookies []*http.Cookie) *http.Request {
		r := httptest.NewRequest("GET", "/student/google/callback?state=state-123", nil)
		for _, c := range cookies {
			r.AddCookie(c)
		}
		return r
	}

	first := httptest.NewRecorder()
	assert.Equal(t, "state-123", s.takeOAuthState(first, withCookies(rec.Result().Cookies())))

	second := httptest.NewRecorder()
	assert.Empty(t, s.takeOAuthState(second, withCookies(first.Result().Cookies())))
}

// extractValue returns the text between prefix and the next quote
func extractValue(t *testing.T, body, prefix string) string {
	t.Helper()
	start := strings.Index(body, prefix)
	require.GreaterOrEqual(t, start, 0, "missing %q", prefix)
	rest := body[start+len(prefix):]
	end := strings.IndexByte(rest, '"')
	require.Greater(t, end, 0)
	return rest[:end]
}
