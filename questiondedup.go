package citadelcbt

import "strings"

// DedupQuestions drops questions whose text repeats an earlier one in the
// same batch, ignoring case and spacing
func DedupQuestions(questions []Question, logger *LLMLogger) []Question {
	seen := make(map[string]string, len(questions))
	unique := make([]Question, 0, len(questions))

	for _, q := range questions {
		key := normalizeQuestionText(q.Text)
		if firstID, ok := seen[key]; ok {
			if logger != nil {
				logger.Logf("Question %s: DUPLICATE of %s\n", q.ID, firstID)
			}
			VerboseLog("Dropping duplicate question %s (same as %s)", q.ID, firstID)
			continue
		}
		seen[key] = q.ID
		unique = append(unique, q)
	}
	return unique
}

func normalizeQuestionText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
