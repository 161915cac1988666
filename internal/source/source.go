// Package source loads raw text for analysis from files.
package source

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/cognicore/textscope/pkg/textscope/internalerr"
)

// Item is one line of a JSONL export. Only Text is analyzed; Title is
// prepended when present.
type Item struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// LoadText reads path and returns its text. HTML files are reduced to
// their text content and JSONL files to the text of their items; anything
// else must be valid UTF-8.
func LoadText(path string, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", internalerr.ErrInvalidInput, path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return StripHTML(string(data)), nil
	case ".jsonl":
		return textFromJSONL(path, string(data), logger)
	default:
		return string(data), nil
	}
}

func textFromJSONL(path, data string, logger *slog.Logger) (string, error) {
	var parts []string
	for i, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var item Item
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			logger.Warn("skipping malformed JSON line", "path", path, "line", i+1, "error", err)
			continue
		}
		text := strings.TrimSpace(item.Text)
		if item.Title != "" {
			text = strings.TrimSpace(item.Title + "\n" + text)
		}
		if text != "" {
			parts = append(parts, text)
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("%w: no valid items found in %s", internalerr.ErrInvalidInput, path)
	}
	return strings.Join(parts, "\n\n"), nil
}

// StripHTML returns the text content of an HTML document. Script and style
// bodies are dropped and block elements end with a newline.
func StripHTML(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}

	var buf strings.Builder
	var extractText func(*html.Node)
	extractText = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extractText(c)
		}
		if n.Type == html.ElementNode && isBlock(n.DataAtom) {
			buf.WriteByte('\n')
		}
	}
	extractText(doc)

	return strings.TrimSpace(buf.String())
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Br, atom.Li, atom.Tr, atom.H1, atom.H2, atom.H3,
		atom.H4, atom.H5, atom.H6, atom.Pre, atom.Blockquote, atom.Title:
		return true
	}
	return false
}
