package citadelcbt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// TopicsPerSubject is how many curriculum topics are requested per subject
const TopicsPerSubject = 20

// ModelRequest is a single prompt with the shape the reply must follow
type ModelRequest struct {
	Name   string
	System string
	Prompt string
	Schema jsonschema.Definition
}

// Model is the generative collaborator. It returns text that should parse as
// JSON matching the request schema.
type Model interface {
	Generate(ctx context.Context, req ModelRequest) (string, error)
}

// QuestionMaker turns curriculum selections into model prompts and maps the
// replies back into questions
type QuestionMaker struct {
	model  Model
	logDir string
	now    func() time.Time
}

// NewQuestionMaker creates a new question maker on top of model
func NewQuestionMaker(model Model) *QuestionMaker {
	return &QuestionMaker{
		model: model,
		now:   time.Now,
	}
}

// SetLogDir enables per-request transcripts under dir
func (qm *QuestionMaker) SetLogDir(dir string) {
	qm.logDir = dir
}

var topicSchema = jsonschema.Definition{
	Type:  jsonschema.Array,
	Items: &jsonschema.Definition{Type: jsonschema.String},
}

var questionSchema = jsonschema.Definition{
	Type: jsonschema.Array,
	Items: &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"text": {
				Type:        jsonschema.String,
				Description: "The question text",
			},
			"options": {
				Type:        jsonschema.Array,
				Items:       &jsonschema.Definition{Type: jsonschema.String},
				Description: "Exactly 4 multiple choice options",
			},
			"correctAnswerIndex": {
				Type:        jsonschema.Integer,
				Description: "0-based index of the correct option",
			},
			"explanation": {
				Type:        jsonschema.String,
				Description: "Step-by-step workings or analytical reasoning for the answer",
			},
		},
		Required: []string{"text", "options", "correctAnswerIndex", "explanation"},
	},
}

// FallbackTopics is served when the topic reply cannot be parsed
func FallbackTopics(subject string) []string {
	return []string{"General Review", "Introduction to " + subject, "Advanced Concepts"}
}

// RequestTopics asks the model for the curriculum topics of a subject. An
// unparseable reply degrades to FallbackTopics instead of failing.
func (qm *QuestionMaker) RequestTopics(ctx context.Context, level Level, subject string) ([]string, error) {
	log.Printf("Fetching %s topics for %s", level, subject)

	logger := qm.openLogger(level, subject, "")
	if logger != nil {
		defer logger.Close()
	}

	prompt := qm.buildTopicPrompt(level, subject)
	text, err := qm.generate(ctx, logger, "TopicLister", ModelRequest{
		Name:   "submit_topics",
		System: "You are a curriculum expert for West African secondary education.",
		Prompt: prompt,
		Schema: topicSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch topics: %w", err)
	}

	var topics []string
	if err := json.Unmarshal([]byte(cleanJSONContent(text)), &topics); err != nil {
		log.Printf("Failed to parse topics for %s, using fallback: %v", subject, err)
		return FallbackTopics(subject), nil
	}
	return topics, nil
}

// RequestQuestions asks the model for count questions on a topic. Parse
// failures are returned to the caller.
func (qm *QuestionMaker) RequestQuestions(ctx context.Context, level Level, subject, topic string, count int) ([]Question, error) {
	log.Printf("Generating %d questions for %s %s: %s", count, level, subject, topic)

	logger := qm.openLogger(level, subject, topic)
	if logger != nil {
		defer logger.Close()
	}

	prompt := qm.buildQuestionPrompt(level, subject, topic, count)
	text, err := qm.generate(ctx, logger, "QuestionMaker", ModelRequest{
		Name:   "submit_questions",
		System: "You are an expert examiner. Generate rigorous multiple choice questions with exactly 4 options each.",
		Prompt: prompt,
		Schema: questionSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate questions: %w", err)
	}

	var items []struct {
		Text               string   `json:"text"`
		Options            []string `json:"options"`
		CorrectAnswerIndex int      `json:"correctAnswerIndex"`
		Explanation        string   `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(cleanJSONContent(text)), &items); err != nil {
		return nil, fmt.Errorf("failed to parse generated questions: %w", err)
	}

	stamp := qm.now().UnixMilli()
	questions := make([]Question, 0, len(items))
	for i, item := range items {
		questions = append(questions, Question{
			ID:            fmt.Sprintf("q-%d-%d", stamp, i),
			Text:          item.Text,
			Options:       item.Options,
			CorrectAnswer: item.CorrectAnswerIndex,
			Explanation:   item.Explanation,
		})
	}

	if err := CheckQuestions(questions, logger); err != nil {
		return nil, err
	}
	questions = DedupQuestions(questions, logger)

	log.Printf("Generated %d questions", len(questions))
	return questions, nil
}

func (qm *QuestionMaker) generate(ctx context.Context, logger *LLMLogger, module string, req ModelRequest) (string, error) {
	if logger != nil {
		logger.LogLLMRequest(module, req.Prompt)
	}
	text, err := qm.model.Generate(ctx, req)
	if err != nil {
		if logger != nil {
			logger.LogLLMError(module, err)
		}
		return "", err
	}
	if logger != nil {
		logger.LogLLMResponse(module, text)
	}
	return text, nil
}

func (qm *QuestionMaker) openLogger(level Level, subject, topic string) *LLMLogger {
	if qm.logDir == "" {
		return nil
	}
	logger, err := NewLLMLogger(qm.logDir, level, subject, topic)
	if err != nil {
		// Continue without a transcript rather than failing
		log.Printf("Failed to create LLM logger: %v", err)
		return nil
	}
	return logger
}

func (qm *QuestionMaker) buildTopicPrompt(level Level, subject string) string {
	var sb strings.Builder

	sb.WriteString("Act as a curriculum expert for West African secondary education.\n")
	sb.WriteString(fmt.Sprintf("List exactly %d major, technical topics for the %s level subject \"%s\" under the %s curriculum.\n",
		TopicsPerSubject, level, subject, CurriculumLabel(level)))
	sb.WriteString("Return the response as a JSON array of strings.\n")
	sb.WriteString("Example: [\"Calculus\", \"Organic Chemistry\", \"Wole Soyinka's Prose\"]\n")

	return sb.String()
}

func (qm *QuestionMaker) buildQuestionPrompt(level Level, subject, topic string, count int) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Generate exactly %d technical multiple-choice questions for %s level students on the subject \"%s\", focusing on the topic \"%s\".\n\n",
		count, level, subject, topic))
	sb.WriteString(fmt.Sprintf("Curriculum source: use the official %s curriculum requirements for this topic.\n\n", CurriculumLabel(level)))
	sb.WriteString("Difficulty: advanced. Questions must test deep application and critical thinking.\n\n")

	sb.WriteString("Requirements:\n")
	sb.WriteString("- Each question must have exactly 4 options (A, B, C, D)\n")
	sb.WriteString("- correctAnswerIndex is the 0-based index of the correct option\n")
	if IsComputational(subject) {
		sb.WriteString("- The explanation must show the full step-by-step derivation of the answer\n")
	} else {
		sb.WriteString("- The explanation must give deep analytical reasoning for the answer\n")
	}
	sb.WriteString("- Return a JSON array of objects with the fields text, options, correctAnswerIndex and explanation\n")

	return sb.String()
}

// cleanJSONContent strips markdown code fences some models wrap around JSON
func cleanJSONContent(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
	}
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
	}
	if strings.HasSuffix(content, "```") {
		content = strings.TrimSuffix(content, "```")
	}
	return strings.TrimSpace(content)
}
