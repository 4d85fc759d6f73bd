// Package cvdoc loads résumé documents from JSONL files for the analytics
// tooling. One JSON object per line, carrying either pre-split lines or a
// raw text blob.
package cvdoc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cognicore/cvsift/pkg/cvsift/internalerr"
)

// Document is one résumé to run through the pipeline.
type Document struct {
	ID    string   `json:"id"`
	Lang  string   `json:"lang,omitempty"`
	Lines []string `json:"lines,omitempty"`
	Text  string   `json:"text,omitempty"`
}

// InputLines returns the document's lines, splitting Text when Lines is
// absent.
func (d *Document) InputLines() []string {
	if len(d.Lines) > 0 {
		return d.Lines
	}
	if d.Text == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(d.Text, "\r\n", "\n"), "\n")
}

// LoadFromJSONL reads documents from a JSONL file. Blank lines are skipped;
// a malformed line is an error naming its line number.
func LoadFromJSONL(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var docs []Document
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var doc Document
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", internalerr.ErrInvalidInput, lineNo, err)
		}
		if doc.ID == "" {
			doc.ID = fmt.Sprintf("doc-%d", lineNo)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return docs, nil
}
