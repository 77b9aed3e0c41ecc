package citadelcbt

import (
	"fmt"
	"slices"
)

var (
	JSSSubjects = []string{
		"Mathematics",
		"English",
		"Civic Education",
		"Basic Science",
		"Basic Tech",
		"Business Studies",
	}

	SSSCompulsory = []string{"Mathematics", "English"}
	SSSScience    = []string{"Physics", "Chemistry", "Biology"}
	SSSArts       = []string{"Government", "CRK", "Literature in English"}
)

// QuestionCountChoices are the attempt sizes a student can pick from
var QuestionCountChoices = []int{20, 50, 70, 100}

// SubjectsFor returns the subject catalogue for a level
func SubjectsFor(level Level) []string {
	if level == LevelJSS {
		return slices.Clone(JSSSubjects)
	}
	subjects := make([]string, 0, len(SSSCompulsory)+len(SSSScience)+len(SSSArts))
	subjects = append(subjects, SSSCompulsory...)
	subjects = append(subjects, SSSScience...)
	subjects = append(subjects, SSSArts...)
	return subjects
}

// HasSubject reports whether subject is taught at level
func HasSubject(level Level, subject string) bool {
	return slices.Contains(SubjectsFor(level), subject)
}

// DepartmentFor derives the senior department a subject belongs to
func DepartmentFor(subject string) Department {
	if slices.Contains(SSSScience, subject) {
		return DepartmentScience
	}
	if slices.Contains(SSSArts, subject) {
		return DepartmentArts
	}
	return DepartmentGeneral
}

// QuizDepartment is only set for senior quizzes
func QuizDepartment(level Level, subject string) Department {
	if level != LevelSSS {
		return ""
	}
	return DepartmentFor(subject)
}

// CurriculumLabel names the exam body a level prepares for
func CurriculumLabel(level Level) string {
	if level == LevelSSS {
		return "WAEC/JAMB"
	}
	return "BECE"
}

// QuizTitle is the display title of a published quiz
func QuizTitle(subject, topic string) string {
	return fmt.Sprintf("%s: %s", subject, topic)
}

// computationalSubjects get worked derivations in their explanations
var computationalSubjects = []string{
	"Mathematics",
	"Physics",
	"Chemistry",
	"Basic Science",
	"Basic Tech",
}

// IsComputational reports whether explanations for subject should show full workings
func IsComputational(subject string) bool {
	return slices.Contains(computationalSubjects, subject)
}
