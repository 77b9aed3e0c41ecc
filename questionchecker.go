package citadelcbt

import (
	"fmt"
	"strings"
)

// CheckQuestion validates the shape of a single generated question
func CheckQuestion(q Question) error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: question %s has no text", ErrMalformedQuestion, q.ID)
	}
	if len(q.Options) != OptionsPerQuestion {
		return fmt.Errorf("%w: question %s has %d options, want %d", ErrMalformedQuestion, q.ID, len(q.Options), OptionsPerQuestion)
	}
	if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
		return fmt.Errorf("%w: question %s has correct answer index %d", ErrMalformedQuestion, q.ID, q.CorrectAnswer)
	}
	return nil
}

// CheckQuestions rejects the whole batch on the first malformed question
func CheckQuestions(questions []Question, logger *LLMLogger) error {
	for _, q := range questions {
		if err := CheckQuestion(q); err != nil {
			if logger != nil {
				logger.LogQuestionResult(q.ID, "reject", err.Error())
			}
			VerboseLog("Question %s: reject - %v", q.ID, err)
			return err
		}
		if logger != nil {
			logger.LogQuestionResult(q.ID, "accept", "well formed")
		}
	}
	return nil
}
