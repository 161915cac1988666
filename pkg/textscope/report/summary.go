package report

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/cognicore/textscope/pkg/textscope/internalerr"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// writeSummary renders report_<id>.html from the stats, the top tokens and
// the artifacts written so far.
func (g *Generator) writeSummary(ctx context.Context, textID int64, dir string, artifacts []Artifact) (string, error) {
	freqs, err := g.store.TokenFrequencies(ctx, textID, g.topTokens)
	if err != nil {
		return "", err
	}
	if len(freqs) == 0 {
		return "", internalerr.ErrNoData
	}
	stats, hasStats, err := g.store.TextStats(ctx, textID)
	if err != nil {
		return "", err
	}

	var md strings.Builder
	fmt.Fprintf(&md, "# Text %d\n\n", textID)

	if hasStats {
		md.WriteString("## Statistics\n\n")
		md.WriteString("| Tokens | Average length | Shortest | Longest |\n")
		md.WriteString("|---:|---:|---:|---:|\n")
		fmt.Fprintf(&md, "| %d | %d | %d | %d |\n\n", stats.TokenCount, stats.AvgLen, stats.MinLen, stats.MaxLen)
	}

	md.WriteString("## Top tokens\n\n")
	md.WriteString("| # | Token | Count |\n")
	md.WriteString("|---:|---|---:|\n")
	for i, tc := range freqs {
		fmt.Fprintf(&md, "| %d | %s | %d |\n", i+1, escapeMarkdown(tc.Token), tc.Count)
	}

	if len(artifacts) > 0 {
		md.WriteString("\n## Charts\n\n")
		for _, a := range artifacts {
			base := filepath.Base(a.Path)
			fmt.Fprintf(&md, "![%s](%s)\n\n", a.Kind, base)
		}
	}

	var body bytes.Buffer
	if err := markdown.Convert([]byte(md.String()), &body); err != nil {
		return "", fmt.Errorf("convert summary: %w", err)
	}

	name := ArtifactName(KindSummary, textID, "html")
	return writeArtifact(dir, name, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n%s</body>\n</html>\n",
			html.EscapeString(fmt.Sprintf("Text %d report", textID)), body.String())
		return err
	})
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// escapeMarkdown backslash-escapes ASCII punctuation so tokens render
// literally. Line breaks become spaces to keep table rows intact.
func escapeMarkdown(s string) string {
	s = lineBreaks.Replace(s)
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune("\\`*_{}[]()#+-.!|<>&~\"'", r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
