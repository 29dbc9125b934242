package flashcard

import "strings"

// Raw key conventions accepted from the model. Some responses use
// question/answer/topic, others front/back/subject.
var (
	frontKeys   = []string{"front", "question"}
	backKeys    = []string{"back", "answer"}
	subjectKeys = []string{"subject", "topic"}
)

// Normalize converts raw card maps into Flashcards. Cards where either
// required field is empty after trimming are discarded. A missing subject
// falls back to the requested subject, a missing or unknown difficulty to
// intermediate.
func Normalize(raw []map[string]any, subject string, difficulty Difficulty) []Flashcard {
	if !difficulty.IsValid() {
		difficulty = DifficultyIntermediate
	}

	cards := make([]Flashcard, 0, len(raw))
	for _, item := range raw {
		front := strings.TrimSpace(stringField(item, frontKeys))
		back := strings.TrimSpace(stringField(item, backKeys))
		if front == "" || back == "" {
			continue
		}

		cardSubject := strings.TrimSpace(stringField(item, subjectKeys))
		if cardSubject == "" {
			cardSubject = subject
		}

		cardDifficulty := Difficulty(strings.ToLower(strings.TrimSpace(stringField(item, []string{"difficulty"}))))
		if !cardDifficulty.IsValid() {
			cardDifficulty = difficulty
		}

		cards = append(cards, Flashcard{
			Front:      front,
			Back:       back,
			Subject:    cardSubject,
			Difficulty: cardDifficulty,
			Tags:       stringSliceField(item, "tags"),
		})
	}
	return cards
}

func stringField(m map[string]any, keys []string) string {
	for _, key := range keys {
		if value, ok := m[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

func stringSliceField(m map[string]any, key string) []string {
	values, ok := m[key].([]any)
	if !ok {
		return nil
	}
	var tags []string
	for _, v := range values {
		if tag, ok := v.(string); ok && strings.TrimSpace(tag) != "" {
			tags = append(tags, strings.TrimSpace(tag))
		}
	}
	return tags
}
