package knowledge

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ImportFAQ reads a PDF FAQ document and upserts each question/answer pair
// into the base. The document is expected to alternate "Q:" and "A:" lines;
// anything before the first "Q:" is ignored. Returns the number of pairs
// imported.
func (b *Base) ImportFAQ(path string) (int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	text, err := r.GetPlainText()
	if err != nil {
		return 0, fmt.Errorf("extract pdf text: %w", err)
	}

	pairs, err := parseQA(text)
	if err != nil {
		return 0, fmt.Errorf("parse faq: %w", err)
	}

	context := fmt.Sprintf("Imported from FAQ document %s", filepath.Base(path))
	for _, p := range pairs {
		if _, err := b.Upsert(p.question, p.answer, context, ""); err != nil {
			return 0, err
		}
	}
	return len(pairs), nil
}

type qaPair struct {
	question string
	answer   string
}

// parseQA extracts Q:/A: pairs from plain text. Continuation lines are
// appended to whichever side was last opened. A question with no following
// answer is dropped.
func parseQA(r io.Reader) ([]qaPair, error) {
	var (
		pairs    []qaPair
		question strings.Builder
		answer   strings.Builder
		inAnswer bool
	)

	flush := func() {
		q := strings.TrimSpace(question.String())
		a := strings.TrimSpace(answer.String())
		if q != "" && a != "" {
			pairs = append(pairs, qaPair{question: q, answer: a})
		}
		question.Reset()
		answer.Reset()
		inAnswer = false
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "Q:"):
			flush()
			question.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "Q:")))
		case strings.HasPrefix(line, "A:"):
			inAnswer = true
			answer.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "A:")))
		case line == "" || question.Len() == 0:
			// skip blank lines and preamble before the first question
		case inAnswer:
			answer.WriteString(" ")
			answer.WriteString(line)
		default:
			question.WriteString(" ")
			question.WriteString(line)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return pairs, nil
}
