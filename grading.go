package citadelcbt

// Grade bands, highest first. Thresholds are inclusive lower bounds.
const (
	BandDistinction  = "Distinction"
	BandMerit        = "Merit"
	BandPass         = "Pass"
	BandUnsuccessful = "Unsuccessful"
)

var gradeBands = []struct {
	min   int
	label string
}{
	{90, BandDistinction},
	{70, BandMerit},
	{50, BandPass},
	{0, BandUnsuccessful},
}

// Score counts the answers that match the question's correct option.
// Unanswered slots never match.
func Score(questions []Question, answers []int) int {
	score := 0
	for i, q := range questions {
		if i < len(answers) && answers[i] == q.CorrectAnswer {
			score++
		}
	}
	return score
}

// Percentage rounds 100*score/total half-up using integer arithmetic
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*score + total) / (2 * total)
}

// GradeBand maps a percentage onto its band label
func GradeBand(percentage int) string {
	for _, band := range gradeBands {
		if percentage >= band.min {
			return band.label
		}
	}
	return BandUnsuccessful
}

// ReportItem is one reviewed question
type ReportItem struct {
	Number      int
	Text        string
	Options     []string
	Chosen      int
	ChosenText  string
	Correct     int
	CorrectText string
	IsCorrect   bool
	Unanswered  bool
	Explanation string
}

// Report is the read-only review shown after a session ends
type Report struct {
	Title      string
	Subject    string
	Level      Level
	Score      int
	Total      int
	Answered   int
	Percentage int
	Band       string
	Items      []ReportItem
}

// Passed reports whether the attempt reached the pass band
func (r Report) Passed() bool {
	return r.Band != BandUnsuccessful
}

// BuildReport assembles the review data for a finished attempt
func BuildReport(record ReviewRecord) Report {
	questions := record.Quiz.Questions
	report := Report{
		Title:      record.Quiz.Title,
		Subject:    record.Quiz.Subject,
		Level:      record.Quiz.Level,
		Score:      record.Score,
		Total:      len(questions),
		Percentage: Percentage(record.Score, len(questions)),
		Items:      make([]ReportItem, 0, len(questions)),
	}
	report.Band = GradeBand(report.Percentage)

	for i, q := range questions {
		chosen := Unanswered
		if i < len(record.Answers) {
			chosen = record.Answers[i]
		}

		item := ReportItem{
			Number:      i + 1,
			Text:        q.Text,
			Options:     q.Options,
			Chosen:      chosen,
			Correct:     q.CorrectAnswer,
			CorrectText: optionText(q, q.CorrectAnswer),
			IsCorrect:   chosen == q.CorrectAnswer,
			Unanswered:  chosen == Unanswered,
			Explanation: q.Explanation,
		}
		if item.Unanswered {
			item.ChosenText = "unanswered"
		} else {
			item.ChosenText = optionText(q, chosen)
			report.Answered++
		}
		report.Items = append(report.Items, item)
	}

	return report
}

func optionText(q Question, idx int) string {
	if idx < 0 || idx >= len(q.Options) {
		return ""
	}
	return q.Options[idx]
}
