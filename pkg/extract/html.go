// Package extract turns live page content into plain text suitable for
// LLM summarization: HTML documents are flattened to readable text, PDF
// responses are parsed for their text streams, and the result is trimmed to
// a token budget.
package extract

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// elements whose subtrees carry no readable content.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"iframe":   true,
	"svg":      true,
}

// blockElements get a line break around their text so the flattened output
// keeps some document structure.
var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "tr": true, "br": true, "table": true, "ul": true, "ol": true,
	"header": true, "footer": true, "main": true, "nav": true,
	"blockquote": true, "pre": true,
}

// PageText flattens an HTML document to plain text. It returns the document
// title and the collapsed body text.
func PageText(rawHTML string) (title, text string, err error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	f := &textFlattener{}
	f.walk(doc)

	return f.title, collapseBlankLines(f.sb.String()), nil
}

type textFlattener struct {
	sb    strings.Builder
	title string
	last  byte
}

func (f *textFlattener) write(b byte) {
	f.sb.WriteByte(b)
	f.last = b
}

func (f *textFlattener) walk(n *html.Node) {
	switch n.Type {
	case html.CommentNode:
		return
	case html.ElementNode:
		name := strings.ToLower(n.Data)
		if skippedElements[name] {
			return
		}
		if name == "title" && f.title == "" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				f.title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		}
		if blockElements[name] {
			f.write('\n')
		}
	case html.TextNode:
		trimmed := strings.Join(strings.Fields(n.Data), " ")
		if trimmed != "" {
			if f.sb.Len() > 0 && f.last != '\n' {
				f.write(' ')
			}
			f.sb.WriteString(trimmed)
			f.last = trimmed[len(trimmed)-1]
		}
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		f.walk(child)
	}

	if n.Type == html.ElementNode && blockElements[strings.ToLower(n.Data)] {
		f.write('\n')
	}
}

// collapseBlankLines trims trailing spaces and squeezes runs of blank lines.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))

	blank := true // leading blanks dropped
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}

	// Drop a trailing blank line.
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
