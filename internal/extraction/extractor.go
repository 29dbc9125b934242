// Package extraction turns uploaded documents into plain text for the
// generation pipeline.
package extraction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds one extraction run. A run that exceeds it is
// killed and its scratch files removed by the caller's cleanup.
const DefaultTimeout = 3 * time.Minute

// scannedCharsPerPage is the average text density below which a document
// is assumed to be a scan rather than digital text.
const scannedCharsPerPage = 50

// Result is the outcome of extracting one document.
type Result struct {
	Text      string
	PageCount int
	IsScanned bool
	// Confidence is 1.0 for digital text and degrades toward 0 as pages
	// turn out to be empty or image-only.
	Confidence float64
}

// Extractor extracts text from a document on disk, reading at most
// maxPages pages.
type Extractor interface {
	Extract(ctx context.Context, documentPath string, maxPages int) (Result, error)
}

// Error reports an unreadable, corrupt, or timed-out document.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CommandExtractor shells out to a pdftotext-compatible tool that writes
// the document text to stdout with form feeds between pages.
type CommandExtractor struct {
	command string
	timeout time.Duration
}

func NewCommandExtractor(command string) *CommandExtractor {
	if command == "" {
		command = "pdftotext"
	}
	return &CommandExtractor{command: command, timeout: DefaultTimeout}
}

// Extract runs the extraction tool under a hard timeout and normalizes its
// output.
func (e *CommandExtractor) Extract(ctx context.Context, documentPath string, maxPages int) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := []string{"-enc", "UTF-8"}
	if maxPages > 0 {
		args = append(args, "-l", strconv.Itoa(maxPages))
	}
	args = append(args, documentPath, "-")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.command, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, &Error{Path: documentPath, Err: fmt.Errorf("timed out after %s", e.timeout)}
		}
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = err.Error()
		}
		return Result{}, &Error{Path: documentPath, Err: errors.New(message)}
	}

	return buildResult(stdout.String()), nil
}

// buildResult normalizes raw tool output and derives page metadata from
// the form feeds the tool places between pages.
func buildResult(raw string) Result {
	pages := strings.Split(raw, "\f")
	pageCount := len(pages)
	if strings.TrimSpace(pages[pageCount-1]) == "" && pageCount > 1 {
		// A trailing form feed produces one empty pseudo-page.
		pages = pages[:pageCount-1]
		pageCount--
	}

	text := NormalizeWhitespace(strings.Join(pages, "\n\n"))

	result := Result{Text: text, PageCount: pageCount, Confidence: 1.0}
	if pageCount > 0 {
		density := float64(len(text)) / float64(pageCount)
		if density < scannedCharsPerPage {
			result.IsScanned = true
			result.Confidence = density / scannedCharsPerPage
		}
	}
	return result
}

// NormalizeWhitespace collapses runs of spaces within each line and drops
// lines that are empty after collapsing.
func NormalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
