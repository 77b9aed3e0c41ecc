package citadelcbt

import (
	"fmt"
	"os"
	"testing"
)

// chdir changes the working directory for the duration of the test,
// equivalent to testing.T.Chdir (Go 1.24+)
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}

// sampleQuiz builds a quiz whose question i has correct option i%4
func sampleQuiz(n int) Quiz {
	questions := make([]Question, n)
	for i := range questions {
		questions[i] = Question{
			ID:            fmt.Sprintf("q-%d", i),
			Text:          fmt.Sprintf("Question %d?", i),
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: i % OptionsPerQuestion,
			Explanation:   fmt.Sprintf("Because %d", i),
		}
	}
	return Quiz{
		ID:        "quiz-1",
		Title:     "Mathematics: Fractions",
		Subject:   "Mathematics",
		Level:     LevelJSS,
		Topic:     "Fractions",
		Questions: questions,
	}
}
