// Package export renders generated decks into downloadable artifacts.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mandolyte/mdtopdf"
	"gopkg.in/yaml.v3"

	"github.com/khusa71/kardu/internal/flashcard"
)

// Format is a supported artifact format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// IsValid reports whether the format is one the exporter can produce.
func (f Format) IsValid() bool {
	switch f {
	case FormatPDF, FormatCSV, FormatJSON, FormatYAML:
		return true
	}
	return false
}

// Exporter writes deck artifacts into an output directory.
type Exporter struct {
	outputDir string
}

func NewExporter(outputDir string) *Exporter {
	return &Exporter{outputDir: outputDir}
}

// Produce renders the deck in the given format and returns the artifact
// path.
func (e *Exporter) Produce(deckName string, cards []flashcard.Flashcard, format Format) (string, error) {
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("os.MkdirAll(%s) > %w", e.outputDir, err)
	}

	base := filepath.Join(e.outputDir, sanitizeName(deckName))
	switch format {
	case FormatPDF:
		return e.producePDF(base, deckName, cards)
	case FormatCSV:
		return base + ".csv", e.produceCSV(base+".csv", cards)
	case FormatJSON:
		return base + ".json", e.produceJSON(base+".json", deckName, cards)
	case FormatYAML:
		return base + ".yaml", e.produceYAML(base+".yaml", deckName, cards)
	default:
		return "", fmt.Errorf("unsupported export format: %s", format)
	}
}

// producePDF renders the deck as markdown and converts it in place.
func (e *Exporter) producePDF(base, deckName string, cards []flashcard.Flashcard) (string, error) {
	markdown := renderMarkdown(deckName, cards)
	pdfPath := base + ".pdf"

	renderer := mdtopdf.NewPdfRenderer("P", "A4", pdfPath, "", nil, mdtopdf.LIGHT)
	if err := renderer.Process([]byte(markdown)); err != nil {
		return "", fmt.Errorf("renderer.Process() > %w", err)
	}
	return pdfPath, nil
}

func (e *Exporter) produceCSV(path string, cards []flashcard.Flashcard) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("os.Create(%s) > %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"question", "answer", "topic", "difficulty"}); err != nil {
		return fmt.Errorf("writer.Write(header) > %w", err)
	}
	for _, card := range cards {
		row := []string{card.Front, card.Back, card.Subject, string(card.Difficulty)}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writer.Write(card) > %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("writer.Flush() > %w", err)
	}
	return nil
}

// deckDocument is the JSON/YAML artifact shape; cards keep the
// question/answer/topic field names study tools import.
type deckDocument struct {
	Name  string     `json:"name" yaml:"name"`
	Cards []deckCard `json:"cards" yaml:"cards"`
}

type deckCard struct {
	Question   string `json:"question" yaml:"question"`
	Answer     string `json:"answer" yaml:"answer"`
	Topic      string `json:"topic" yaml:"topic"`
	Difficulty string `json:"difficulty" yaml:"difficulty"`
}

func buildDeckDocument(deckName string, cards []flashcard.Flashcard) deckDocument {
	document := deckDocument{Name: deckName, Cards: make([]deckCard, 0, len(cards))}
	for _, card := range cards {
		document.Cards = append(document.Cards, deckCard{
			Question:   card.Front,
			Answer:     card.Back,
			Topic:      card.Subject,
			Difficulty: string(card.Difficulty),
		})
	}
	return document
}

func (e *Exporter) produceJSON(path, deckName string, cards []flashcard.Flashcard) error {
	data, err := json.MarshalIndent(buildDeckDocument(deckName, cards), "", "  ")
	if err != nil {
		return fmt.Errorf("json.MarshalIndent(deck) > %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("os.WriteFile(%s) > %w", path, err)
	}
	return nil
}

func (e *Exporter) produceYAML(path, deckName string, cards []flashcard.Flashcard) error {
	data, err := yaml.Marshal(buildDeckDocument(deckName, cards))
	if err != nil {
		return fmt.Errorf("yaml.Marshal(deck) > %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("os.WriteFile(%s) > %w", path, err)
	}
	return nil
}

// renderMarkdown lays the deck out one card per section.
func renderMarkdown(deckName string, cards []flashcard.Flashcard) string {
	var sb strings.Builder
	sb.WriteString("# " + deckName + "\n\n")
	for i, card := range cards {
		sb.WriteString(fmt.Sprintf("## Card %d\n\n", i+1))
		sb.WriteString("**Q:** " + card.Front + "\n\n")
		sb.WriteString("**A:** " + card.Back + "\n\n")
		if card.Subject != "" {
			sb.WriteString("_Topic: " + card.Subject + "_\n\n")
		}
	}
	return sb.String()
}

// sanitizeName makes a deck name safe to use as a file name.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "deck"
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", " ", "_", ":", "-")
	return replacer.Replace(name)
}
