// Package parser turns Markdown notes into goldmark node trees and extracts
// the references and referenceables they contain.
package parser

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/wikilink"
	"gopkg.in/yaml.v3"
)

// Document is a parsed note. Node segments in Root are relative to Body;
// Offset maps them back onto Source.
type Document struct {
	Source      []byte
	Body        []byte
	Offset      int
	Frontmatter map[string]any
	Title       string
	Tags        []string
	Root        ast.Node
}

// newMarkdown builds a fresh goldmark engine so concurrent parses never
// share parser state.
func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(
			extension.Table,
			&wikilink.Extender{},
		),
	)
}

// Parse splits off YAML frontmatter and parses the remaining Markdown body.
func Parse(data []byte) (*Document, error) {
	fm, offset := splitFrontmatter(data)
	body := data[offset:]

	root := newMarkdown().Parser().Parse(text.NewReader(body))

	return &Document{
		Source:      data,
		Body:        body,
		Offset:      offset,
		Frontmatter: fm,
		Title:       deriveTitle(fm, body),
		Tags:        frontmatterTags(fm),
		Root:        root,
	}, nil
}

// splitFrontmatter decodes a leading "---" delimited YAML block and returns
// it together with the byte offset at which the Markdown body starts. If no
// valid frontmatter is found the whole input is body.
func splitFrontmatter(data []byte) (map[string]any, int) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")
	lead := len(data) - len(trimmed)

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, 0
	}
	rest := trimmed[len(delim):]
	if !bytes.HasPrefix(rest, []byte("\n")) && !bytes.HasPrefix(rest, []byte("\r\n")) {
		return nil, 0
	}

	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, 0
	}

	var fm map[string]any
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return nil, 0
	}

	offset := lead + len(delim) + idx + 1 + len(delim)
	if offset < len(data) && data[offset] == '\r' {
		offset++
	}
	if offset < len(data) && data[offset] == '\n' {
		offset++
	}
	return fm, offset
}

// frontmatterTags returns the string items of the frontmatter "tags" list.
func frontmatterTags(fm map[string]any) []string {
	raw, ok := fm["tags"].([]any)
	if !ok {
		return nil
	}
	seen := make(map[string]struct{}, len(raw))
	var out []string
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body []byte) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}
	for _, line := range strings.Split(string(body), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
