// ABOUTME: Variable substitution for contract and email templates
// ABOUTME: Replaces {{ key }} placeholders in plain text and block-structured rich text
package render

import (
	"regexp"
	"sort"
	"strings"
)

var placeholderRE = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Block styles understood by the PDF renderer.
const (
	StyleNormal = "normal"
	StyleH1     = "h1"
	StyleH2     = "h2"
	StyleH3     = "h3"
)

// Span is a run of text inside a block, with optional marks such as "strong".
type Span struct {
	Text  string   `json:"text"`
	Marks []string `json:"marks,omitempty"`
}

// Block is one paragraph or heading of rich text.
type Block struct {
	Style    string `json:"style,omitempty"`
	ListItem string `json:"list_item,omitempty"`
	Children []Span `json:"children"`
}

// Text joins the block's spans.
func (b Block) Text() string {
	var sb strings.Builder
	for _, s := range b.Children {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// Substitute replaces every known placeholder in text. Unknown placeholders
// are left untouched and reported, sorted and de-duplicated.
func Substitute(text string, vars map[string]string) (string, []string) {
	missing := map[string]struct{}{}
	out := placeholderRE.ReplaceAllStringFunc(text, func(m string) string {
		match := placeholderRE.FindStringSubmatch(m)
		if len(match) != 2 {
			return m
		}
		if v, ok := vars[match[1]]; ok {
			return v
		}
		missing[match[1]] = struct{}{}
		return m
	})
	return out, sortedKeys(missing)
}

// SubstituteBlocks applies Substitute to every span without mutating the input.
func SubstituteBlocks(blocks []Block, vars map[string]string) ([]Block, []string) {
	missing := map[string]struct{}{}
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		nb := Block{Style: b.Style, ListItem: b.ListItem, Children: make([]Span, len(b.Children))}
		for j, s := range b.Children {
			text, miss := Substitute(s.Text, vars)
			for _, k := range miss {
				missing[k] = struct{}{}
			}
			nb.Children[j] = Span{Text: text, Marks: append([]string(nil), s.Marks...)}
		}
		out[i] = nb
	}
	return out, sortedKeys(missing)
}

// PlainText flattens blocks into paragraphs separated by blank lines.
func PlainText(blocks []Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		text := b.Text()
		if b.ListItem != "" {
			text = "- " + text
		}
		parts = append(parts, text)
	}
	return NormalizeText(strings.Join(parts, "\n\n"))
}

// BlocksFromText splits plain text into normal paragraphs. Lines starting
// with "# " become h1 and "## " become h2.
func BlocksFromText(text string) []Block {
	var blocks []Block
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		style := StyleNormal
		switch {
		case strings.HasPrefix(para, "## "):
			style = StyleH2
			para = strings.TrimPrefix(para, "## ")
		case strings.HasPrefix(para, "# "):
			style = StyleH1
			para = strings.TrimPrefix(para, "# ")
		}
		blocks = append(blocks, Block{Style: style, Children: []Span{{Text: para}}})
	}
	return blocks
}

func NormalizeText(in string) string {
	s := strings.ReplaceAll(in, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n") + "\n"
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
