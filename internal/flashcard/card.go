// Package flashcard provides the flashcard domain model and normalization
// of loosely-typed AI-generated card payloads.
package flashcard

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// IsValid reports whether the difficulty is one of the allowed values.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// Flashcard is a single front/back study record. Front and Back are always
// non-empty after normalization.
type Flashcard struct {
	Front      string     `json:"front" yaml:"front"`
	Back       string     `json:"back" yaml:"back"`
	Subject    string     `json:"subject" yaml:"subject"`
	Difficulty Difficulty `json:"difficulty" yaml:"difficulty"`
	Tags       []string   `json:"tags,omitempty" yaml:"tags,omitempty"`
}
