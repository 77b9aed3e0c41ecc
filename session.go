package citadelcbt

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// SecondsPerQuestion is the time allowance added for each question in an attempt
const SecondsPerQuestion = 60

// SessionState tracks where an attempt is in its lifecycle
type SessionState string

const (
	SessionActive    SessionState = "active"
	SessionSubmitted SessionState = "submitted"
	SessionCancelled SessionState = "cancelled"
)

// Session is one timed attempt at a subset of a quiz's questions
type Session struct {
	ID string

	mu        sync.Mutex
	quiz      Quiz
	answers   []int
	current   int
	remaining int
	state     SessionState
	record    *ReviewRecord
	timedOut  bool

	tickInterval time.Duration
	onFinish     func(ReviewRecord)
	stop         chan struct{}
	stopOnce     sync.Once
	startOnce    sync.Once
}

// SessionOption customises a new session
type SessionOption func(*Session)

// WithTickInterval overrides the one second countdown cadence
func WithTickInterval(d time.Duration) SessionOption {
	return func(s *Session) {
		s.tickInterval = d
	}
}

// WithOnFinish registers a callback that receives the review record when the
// session is submitted, either by the student or by the timer running out
func WithOnFinish(fn func(ReviewRecord)) SessionOption {
	return func(s *Session) {
		s.onFinish = fn
	}
}

// WithSessionID sets the identifier used by the session registry
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		s.ID = id
	}
}

// NewSession starts an attempt on up to n questions of quiz, chosen uniformly
// at random. Asking for more questions than the quiz holds is clamped, and
// n <= 0 means every question.
func NewSession(quiz Quiz, n int, rng *rand.Rand, opts ...SessionOption) *Session {
	questions := ShuffleQuestions(quiz.Questions, rng)
	if n > 0 && n < len(questions) {
		questions = questions[:n]
	}
	quiz.Questions = questions

	answers := make([]int, len(questions))
	for i := range answers {
		answers[i] = Unanswered
	}

	s := &Session{
		quiz:         quiz,
		answers:      answers,
		remaining:    SecondsPerQuestion * len(questions),
		state:        SessionActive,
		tickInterval: time.Second,
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ShuffleQuestions returns a Fisher-Yates shuffled copy of questions
func ShuffleQuestions(questions []Question, rng *rand.Rand) []Question {
	shuffled := make([]Question, len(questions))
	copy(shuffled, questions)

	intn := rand.Intn
	if rng != nil {
		intn = rng.Intn
	}
	for i := len(shuffled) - 1; i > 0; i-- {
		j := intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled
}

// Start runs the countdown until the session ends or ctx is done
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.run(ctx)
	})
}

func (s *Session) run(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Done is closed once the session reaches a terminal state
func (s *Session) Done() <-chan struct{} {
	return s.stop
}

func (s *Session) halt() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// Select records optionIndex as the answer to questionIndex, replacing any
// earlier choice. Calls after the session has ended are ignored.
func (s *Session) Select(questionIndex, optionIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SessionActive {
		return nil
	}
	if questionIndex < 0 || questionIndex >= len(s.quiz.Questions) {
		return fmt.Errorf("%w: question %d out of range", ErrValidation, questionIndex)
	}
	if optionIndex < 0 || optionIndex >= len(s.quiz.Questions[questionIndex].Options) {
		return fmt.Errorf("%w: option %d out of range", ErrValidation, optionIndex)
	}
	s.answers[questionIndex] = optionIndex
	return nil
}

// Advance moves to the next question, stopping at the last one
func (s *Session) Advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current < len(s.quiz.Questions)-1 {
		s.current++
	}
}

// Retreat moves to the previous question, stopping at the first one
func (s *Session) Retreat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current > 0 {
		s.current--
	}
}

// JumpTo moves the pointer straight to index
func (s *Session) JumpTo(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.quiz.Questions) {
		return fmt.Errorf("%w: question %d out of range", ErrValidation, index)
	}
	s.current = index
	return nil
}

// Tick takes one second off the clock and submits when it reaches zero
func (s *Session) Tick() {
	s.mu.Lock()
	if s.state != SessionActive {
		s.mu.Unlock()
		return
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining > 0 {
		s.mu.Unlock()
		return
	}
	s.timedOut = true
	record, finished := s.finishLocked()
	s.mu.Unlock()

	if finished {
		s.notify(record)
	}
}

// Submit ends the attempt and scores it. Submitting twice returns the
// original record.
func (s *Session) Submit() (ReviewRecord, error) {
	s.mu.Lock()
	switch s.state {
	case SessionSubmitted:
		record := *s.record
		s.mu.Unlock()
		return record, nil
	case SessionCancelled:
		s.mu.Unlock()
		return ReviewRecord{}, ErrSessionClosed
	}
	record, finished := s.finishLocked()
	s.mu.Unlock()

	if finished {
		s.notify(record)
	}
	return record, nil
}

func (s *Session) finishLocked() (ReviewRecord, bool) {
	if s.state != SessionActive {
		return ReviewRecord{}, false
	}
	s.state = SessionSubmitted
	s.halt()

	answers := make([]int, len(s.answers))
	copy(answers, s.answers)
	record := ReviewRecord{
		Quiz:    s.quiz,
		Answers: answers,
		Score:   Score(s.quiz.Questions, answers),
	}
	s.record = &record
	return record, true
}

func (s *Session) notify(record ReviewRecord) {
	if s.onFinish != nil {
		s.onFinish(record)
	}
}

// Cancel abandons the attempt without scoring it
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionActive {
		return
	}
	s.state = SessionCancelled
	s.halt()
}

// Record returns the review record once the session has been submitted
func (s *Session) Record() (ReviewRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return ReviewRecord{}, false
	}
	return *s.record, true
}

// Snapshot is a consistent read of the session for rendering
type Snapshot struct {
	QuizID    string
	Title     string
	Subject   string
	Level     Level
	Current   int
	Question  Question
	Total     int
	Answers   []int
	Answered  int
	Remaining int
	State     SessionState
	TimedOut  bool
}

// Snapshot copies the current session state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	answers := make([]int, len(s.answers))
	copy(answers, s.answers)

	snap := Snapshot{
		QuizID:    s.quiz.ID,
		Title:     s.quiz.Title,
		Subject:   s.quiz.Subject,
		Level:     s.quiz.Level,
		Current:   s.current,
		Total:     len(s.quiz.Questions),
		Answers:   answers,
		Answered:  s.answeredLocked(),
		Remaining: s.remaining,
		State:     s.state,
		TimedOut:  s.timedOut,
	}
	if s.current < len(s.quiz.Questions) {
		snap.Question = s.quiz.Questions[s.current]
	}
	return snap
}

func (s *Session) answeredLocked() int {
	n := 0
	for _, a := range s.answers {
		if a != Unanswered {
			n++
		}
	}
	return n
}

// Answered is the number of questions with a selected option
func (s *Session) Answered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answeredLocked()
}

// Remaining is the number of seconds left on the clock
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Current is the index of the question being shown
func (s *Session) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// State reports the lifecycle state
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Answers returns a copy of the answer slots
func (s *Session) Answers() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	answers := make([]int, len(s.answers))
	copy(answers, s.answers)
	return answers
}

// Questions returns a copy of the active question list
func (s *Session) Questions() []Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	questions := make([]Question, len(s.quiz.Questions))
	copy(questions, s.quiz.Questions)
	return questions
}

// FormatClock renders seconds as m:ss
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
