package openai

import (
	"fmt"
	"strings"

	"github.com/khusa71/kardu/internal/inference"
)

const systemPrompt = `You are an expert educator that converts study material into flashcards.

GOAL
Return ONLY a JSON array. Each element is one flashcard:
- "question": a clear, self-contained question testing one fact or concept
- "answer": a concise, complete answer
- "topic": the specific topic the card covers
- "difficulty": "beginner", "intermediate" or "advanced"

STRICT OUTPUT: No text outside the JSON array. No markdown fences.

CARD QUALITY RULES
- One concept per card. Never combine unrelated facts.
- Questions must be answerable without seeing the source text.
- Answers state the fact directly; no "as mentioned in the text".
- Prefer why/how questions over pure recall when the material allows it.
- Skip boilerplate: page numbers, headers, tables of contents, references.`

// buildUserMessage renders the per-chunk generation request.
func buildUserMessage(req inference.GenerateRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create exactly %d flashcards from the study material below.\n", req.CardCount)
	fmt.Fprintf(&b, "Subject: %s\n", req.Subject)
	fmt.Fprintf(&b, "Difficulty: %s\n", req.Difficulty)
	if len(req.FocusAreas) > 0 {
		fmt.Fprintf(&b, "Focus on: %s\n", strings.Join(req.FocusAreas, ", "))
	}
	if req.CustomContext != "" {
		fmt.Fprintf(&b, "Additional instructions: %s\n", req.CustomContext)
	}
	b.WriteString("\nStudy material:\n")
	b.WriteString(req.Text)
	return b.String()
}
