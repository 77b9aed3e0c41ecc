package citadelcbt

import "time"

// Level is the school tier a quiz targets
type Level string

const (
	LevelJSS Level = "JSS"
	LevelSSS Level = "SSS"
)

// Valid reports whether the level is one of the known tiers
func (l Level) Valid() bool {
	return l == LevelJSS || l == LevelSSS
}

// Department groups senior subjects
type Department string

const (
	DepartmentGeneral Department = "General"
	DepartmentScience Department = "Science"
	DepartmentArts    Department = "Arts"
)

// Unanswered marks an answer slot the student never filled
const Unanswered = -1

// OptionsPerQuestion is the fixed number of choices on every question
const OptionsPerQuestion = 4

// Question represents a single multiple choice question
type Question struct {
	ID            string   `json:"id" bson:"id"`
	Text          string   `json:"text" bson:"text"`
	Options       []string `json:"options" bson:"options"`
	CorrectAnswer int      `json:"correctAnswerIndex" bson:"correctAnswerIndex"` // 0-based index
	Explanation   string   `json:"explanation" bson:"explanation"`
}

// Quiz is a generated question set for one subject topic.
// ID stays empty until the repository assigns one on save.
type Quiz struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Subject    string     `json:"subject"`
	Level      Level      `json:"level"`
	Department Department `json:"department,omitempty"`
	Topic      string     `json:"topic"`
	Questions  []Question `json:"questions"`
	CreatedAt  time.Time  `json:"created_at"`
}

// AdminUser is an entry in the administrator registry
type AdminUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	AddedBy   string    `json:"added_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity is what the identity provider tells us about a signed-in student
type Identity struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// ReviewRecord is the frozen outcome of a finished session
type ReviewRecord struct {
	Quiz    Quiz  `json:"quiz"`
	Answers []int `json:"answers"`
	Score   int   `json:"score"`
}
