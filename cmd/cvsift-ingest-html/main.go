// cvsift-ingest-html converts exported HTML résumés into the JSONL format
// consumed by cvsift-analytics. Block-level elements become lines, so the
// segmenter sees the same line structure a text export would have.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/cognicore/cvsift/internal/cvdoc"
)

func main() {
	var (
		input  = flag.String("input", "", "HTML file or directory of HTML files (required)")
		output = flag.String("output", "", "Output JSONL path (default stdout)")
		lang   = flag.String("lang", "fr", "Language tag recorded on each document")
	)
	flag.Parse()

	if *input == "" {
		log.Fatal("--input required")
	}

	paths, err := collectHTMLFiles(*input)
	if err != nil {
		log.Fatalf("collect inputs: %v", err)
	}
	if len(paths) == 0 {
		log.Fatalf("no HTML files under %s", *input)
	}

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("create output: %v", err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	for _, path := range paths {
		lines, err := extractLines(path)
		if err != nil {
			log.Fatalf("parse %s: %v", path, err)
		}

		doc := cvdoc.Document{
			ID:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Lang:  *lang,
			Lines: lines,
		}
		if err := enc.Encode(doc); err != nil {
			log.Fatalf("write %s: %v", doc.ID, err)
		}
	}
}

func collectHTMLFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".html" || ext == ".htm" {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

// extractLines walks the HTML and emits one line per block-level element,
// skipping script/style/nav chrome.
func extractLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return nil, err
	}

	var lines []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "nav", "footer", "head":
				return
			case "p", "li", "td", "h1", "h2", "h3", "h4", "div", "br":
				t := strings.TrimSpace(textContent(n))
				if t != "" && !hasBlockChild(n) {
					lines = append(lines, t)
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return lines, nil
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func hasBlockChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			switch c.Data {
			case "p", "li", "td", "h1", "h2", "h3", "h4", "div", "ul", "ol", "table":
				return true
			}
		}
	}
	return false
}
