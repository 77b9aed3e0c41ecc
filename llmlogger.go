package citadelcbt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// LLMLogger writes a transcript of every model interaction for one
// generation request
type LLMLogger struct {
	file *os.File
	mu   sync.Mutex
	path string
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// NewLLMLogger creates a transcript file under dir for a generation run
func NewLLMLogger(dir string, level Level, subject, topic string) (*LLMLogger, error) {
	if dir == "" {
		dir = "log"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	label := strings.Trim(unsafeFileChars.ReplaceAllString(string(level)+"-"+subject, "_"), "_")
	name := fmt.Sprintf("%s-%d", label, time.Now().UnixNano())
	path := filepath.Join(dir, name+".log")
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	logger := &LLMLogger{
		file: file,
		path: path,
	}

	logger.Logf("=== Generation Log ===\n")
	logger.Logf("Level: %s\n", level)
	logger.Logf("Subject: %s\n", subject)
	if topic != "" {
		logger.Logf("Topic: %s\n", topic)
	}
	logger.Logf("Started: %s\n", time.Now().Format(time.RFC3339))
	logger.Logf("======================\n\n")

	return logger, nil
}

// Path is the transcript file location
func (ll *LLMLogger) Path() string {
	return ll.path
}

// Logf writes a formatted log entry with timestamp
func (ll *LLMLogger) Logf(format string, args ...interface{}) {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	ll.writeLocked(format, args...)
}

func (ll *LLMLogger) writeLocked(format string, args ...interface{}) {
	if ll.file == nil {
		return
	}
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(ll.file, "[%s] %s", timestamp, fmt.Sprintf(format, args...))
	ll.file.Sync()
}

// LogLLMRequest logs an LLM request
func (ll *LLMLogger) LogLLMRequest(module, prompt string) {
	ll.Logf("=== LLM REQUEST (%s) ===\n", module)
	ll.Logf("Prompt:\n%s\n", prompt)
	ll.Logf("=====================\n\n")
}

// LogLLMResponse logs an LLM response
func (ll *LLMLogger) LogLLMResponse(module, response string) {
	ll.Logf("=== LLM RESPONSE (%s) ===\n", module)
	ll.Logf("Response:\n%s\n", response)
	ll.Logf("======================\n\n")
}

// LogLLMError logs a failed request
func (ll *LLMLogger) LogLLMError(module string, err error) {
	ll.Logf("=== LLM ERROR (%s) ===\n%v\n\n", module, err)
}

// LogQuestionResult logs what happened to one parsed question
func (ll *LLMLogger) LogQuestionResult(questionID, action, reason string) {
	ll.Logf("Question %s: %s - %s\n", questionID, action, reason)
}

// Close closes the log file
func (ll *LLMLogger) Close() error {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	if ll.file == nil {
		return nil
	}
	ll.writeLocked("=== Generation Complete ===\n")
	ll.writeLocked("Completed: %s\n", time.Now().Format(time.RFC3339))
	err := ll.file.Close()
	ll.file = nil
	return err
}
