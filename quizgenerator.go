package citadelcbt

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// DefaultQuestionCount is how many questions a draft asks for when unset
const DefaultQuestionCount = 100

// QuestionGenerator is the content side of the generation workflow
type QuestionGenerator interface {
	RequestTopics(ctx context.Context, level Level, subject string) ([]string, error)
	RequestQuestions(ctx context.Context, level Level, subject, topic string, count int) ([]Question, error)
}

// QuizGenerator runs the administrator workflow: pick level, subject and
// topic, generate a draft, then publish it to storage
type QuizGenerator struct {
	generator QuestionGenerator
	repo      QuizRepository
	drafts    DraftStore
	now       func() time.Time
}

// NewQuizGenerator creates a new quiz generator
func NewQuizGenerator(generator QuestionGenerator, repo QuizRepository, drafts DraftStore) *QuizGenerator {
	if drafts == nil {
		drafts = NewDraftPool(0)
	}
	return &QuizGenerator{
		generator: generator,
		repo:      repo,
		drafts:    drafts,
		now:       time.Now,
	}
}

func validateSelection(level Level, subject string) error {
	if !level.Valid() {
		return fmt.Errorf("%w: unknown level %q", ErrValidation, level)
	}
	if strings.TrimSpace(subject) == "" {
		return fmt.Errorf("%w: please select a subject", ErrValidation)
	}
	if !HasSubject(level, subject) {
		return fmt.Errorf("%w: %s is not offered at %s level", ErrValidation, subject, level)
	}
	return nil
}

// Topics lists curriculum topics for a subject
func (qg *QuizGenerator) Topics(ctx context.Context, level Level, subject string) ([]string, error) {
	if err := validateSelection(level, subject); err != nil {
		return nil, err
	}
	return qg.generator.RequestTopics(ctx, level, subject)
}

// Draft generates questions and parks them in the draft pool until published
func (qg *QuizGenerator) Draft(ctx context.Context, level Level, subject, topic string, count int) (*Draft, error) {
	if err := validateSelection(level, subject); err != nil {
		return nil, err
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: please select both a subject and a specific curriculum topic", ErrValidation)
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: question count must be positive", ErrValidation)
	}
	if count == 0 {
		count = DefaultQuestionCount
	}

	log.Printf("Starting draft generation for %s %s: %s, target questions: %d", level, subject, topic, count)

	questions, err := qg.generator.RequestQuestions(ctx, level, subject, topic, count)
	if err != nil {
		return nil, err
	}

	draft := &Draft{
		Level:     level,
		Subject:   subject,
		Topic:     topic,
		Questions: questions,
	}
	if _, err := qg.drafts.Add(ctx, draft); err != nil {
		return nil, fmt.Errorf("failed to park draft: %w", err)
	}

	log.Printf("Draft %s ready with %d questions", draft.ID, len(questions))
	return draft, nil
}

// GetDraft returns a draft that has not been published
func (qg *QuizGenerator) GetDraft(ctx context.Context, id string) (*Draft, error) {
	return qg.drafts.Get(ctx, id)
}

// Discard drops an unpublished draft
func (qg *QuizGenerator) Discard(ctx context.Context, id string) error {
	return qg.drafts.Remove(ctx, id)
}

// Publish saves a draft as a quiz and returns it with its storage ID.
// A failed save leaves the draft in the pool so it can be retried.
func (qg *QuizGenerator) Publish(ctx context.Context, draftID string) (*Quiz, error) {
	draft, err := qg.drafts.Get(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if len(draft.Questions) == 0 {
		return nil, fmt.Errorf("%w: draft has no questions", ErrValidation)
	}

	quiz := &Quiz{
		Title:      QuizTitle(draft.Subject, draft.Topic),
		Subject:    draft.Subject,
		Level:      draft.Level,
		Department: QuizDepartment(draft.Level, draft.Subject),
		Topic:      draft.Topic,
		Questions:  draft.Questions,
		CreatedAt:  qg.now(),
	}

	if _, err := qg.repo.SaveQuiz(ctx, quiz); err != nil {
		return nil, fmt.Errorf("failed to save quiz: %w", err)
	}
	if err := qg.drafts.Remove(ctx, draftID); err != nil {
		log.Printf("Failed to remove published draft %s: %v", draftID, err)
	}

	log.Printf("Quiz %s published: %s (%d questions)", quiz.ID, quiz.Title, len(quiz.Questions))
	return quiz, nil
}

// List returns published quizzes, newest first
func (qg *QuizGenerator) List(ctx context.Context) ([]Quiz, error) {
	return qg.repo.ListQuizzes(ctx)
}

// Delete removes a published quiz as a whole
func (qg *QuizGenerator) Delete(ctx context.Context, id string) error {
	if err := qg.repo.DeleteQuiz(ctx, id); err != nil {
		return err
	}
	log.Printf("Quiz %s deleted", id)
	return nil
}

// FilterQuizzes keeps quizzes at level, or all of them when level is empty
func FilterQuizzes(quizzes []Quiz, level Level) []Quiz {
	if level == "" {
		return quizzes
	}
	filtered := make([]Quiz, 0, len(quizzes))
	for _, quiz := range quizzes {
		if quiz.Level == level {
			filtered = append(filtered, quiz)
		}
	}
	return filtered
}
