package openai

import (
	"encoding/json"
	"strings"

	"github.com/khusa71/kardu/internal/inference"
)

// parseCards extracts the array-of-objects payload from a raw model response
// that may carry formatting noise, and decodes it into raw card maps.
// The payload must be a JSON array, or an object exposing a "flashcards"
// array; anything else is an invalid_response error.
func parseCards(content string) ([]map[string]any, error) {
	payload, ok := extractPayload(content)
	if !ok {
		return nil, inference.NewGenerationError(
			inference.ErrorClassInvalidResponse, "no JSON payload found in response", nil)
	}

	var raw []map[string]any
	if strings.HasPrefix(payload, "[") {
		if err := json.Unmarshal([]byte(payload), &raw); err != nil {
			return nil, inference.NewGenerationError(
				inference.ErrorClassInvalidResponse, "json.Unmarshal(array)", err)
		}
	} else {
		var wrapper struct {
			Flashcards []map[string]any `json:"flashcards"`
		}
		if err := json.Unmarshal([]byte(payload), &wrapper); err != nil {
			return nil, inference.NewGenerationError(
				inference.ErrorClassInvalidResponse, "json.Unmarshal(object)", err)
		}
		raw = wrapper.Flashcards
	}

	if len(raw) == 0 {
		return nil, inference.NewGenerationError(
			inference.ErrorClassInvalidResponse, "empty flashcard array in response", nil)
	}
	return raw, nil
}

// extractPayload isolates the JSON literal: content inside a fenced code
// block if present, residual fence markers stripped, then the first
// bracket-delimited literal when the text does not already start with one.
func extractPayload(content string) (string, bool) {
	if idx := strings.Index(content, "```"); idx >= 0 {
		rest := content[idx+3:]
		// Drop the optional language tag on the fence line.
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		content = rest
	}
	content = strings.TrimSpace(strings.ReplaceAll(content, "```", ""))

	if strings.HasPrefix(content, "[") || strings.HasPrefix(content, "{") {
		return content, true
	}

	extracted := firstBracketLiteral(content)
	if extracted == "" {
		return "", false
	}
	return extracted, true
}

// firstBracketLiteral returns the first balanced []- or {}-delimited literal
// found anywhere in the text, skipping brackets inside JSON strings.
func firstBracketLiteral(content string) string {
	var open, close byte
	start := -1
	for i := 0; i < len(content); i++ {
		if content[i] == '[' || content[i] == '{' {
			start = i
			open = content[i]
			if open == '[' {
				close = ']'
			} else {
				close = '}'
			}
			break
		}
	}
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escapeNext := false
	for i := start; i < len(content); i++ {
		ch := content[i]
		if escapeNext {
			escapeNext = false
			continue
		}
		if ch == '\\' && inString {
			escapeNext = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}
