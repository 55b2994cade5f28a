// Package ingest loads a JSONL corpus, embeds it in batches, and upserts
// the documents into the store with retry and pacing.
package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// RawDoc is one corpus entry as it appears in the JSONL file.
type RawDoc struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// maxLineBytes bounds a single corpus line. Documents are short passages,
// not whole files, so 1MB is generous.
const maxLineBytes = 1 << 20

// LoadCorpus reads a JSONL corpus from r: one JSON object per line with
// "title" and "content" fields. Blank lines are skipped. A malformed or
// incomplete line fails the whole load with its line number.
func LoadCorpus(r io.Reader) ([]RawDoc, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var docs []RawDoc
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var doc RawDoc
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			return nil, fmt.Errorf("corpus line %d: invalid JSON: %w", lineNo, err)
		}
		if strings.TrimSpace(doc.Title) == "" {
			return nil, fmt.Errorf("corpus line %d: missing title", lineNo)
		}
		if strings.TrimSpace(doc.Content) == "" {
			return nil, fmt.Errorf("corpus line %d: missing content", lineNo)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	return docs, nil
}

// LoadCorpusFile reads a JSONL corpus from path.
func LoadCorpusFile(path string) ([]RawDoc, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from the operator's --file flag
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return LoadCorpus(f)
}
