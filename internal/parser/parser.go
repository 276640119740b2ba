// Package parser decodes storage files: YAML documents, Markdown frontmatter,
// and [[Class/id]] wiki links in Markdown bodies.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var wikilinkRe = regexp.MustCompile(`(!?)\[\[(.*?)\]\]`)

// Doc is one decoded YAML document. Node keeps key order for callers that
// care about it (component property order).
type Doc struct {
	Raw  map[string]any
	Node *yaml.Node
}

// WikiLink is a cross-reference to another instance found in prose.
type WikiLink struct {
	Class string
	ID    string
}

// Markdown is a parsed Markdown storage file.
type Markdown struct {
	Frontmatter *Doc
	Body        string
	Links       []WikiLink
}

// ParseYAML decodes every document of a YAML stream. Empty documents are skipped.
func ParseYAML(data []byte) ([]Doc, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var docs []Doc
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return docs, fmt.Errorf("parser: decode yaml: %w", err)
		}
		doc, err := decodeNode(&node)
		if err != nil {
			return docs, err
		}
		if doc != nil {
			docs = append(docs, *doc)
		}
	}
	return docs, nil
}

func decodeNode(node *yaml.Node) (*Doc, error) {
	root := node
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, nil
		}
		root = root.Content[0]
	}
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return nil, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parser: document root must be a mapping (line %d)", root.Line)
	}
	var raw map[string]any
	if err := root.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parser: decode document: %w", err)
	}
	return &Doc{Raw: raw, Node: root}, nil
}

// ParseMarkdown splits frontmatter from the body and extracts wiki links.
// Unlike free-form notes, invalid frontmatter is an error: the frontmatter
// carries the instance definition.
func ParseMarkdown(data []byte) (*Markdown, error) {
	fmBlock, body, ok := splitFrontmatter(data)
	md := &Markdown{Body: body, Links: ExtractLinks(body)}
	if !ok {
		return md, nil
	}
	docs, err := ParseYAML(fmBlock)
	if err != nil {
		return md, fmt.Errorf("parser: frontmatter: %w", err)
	}
	if len(docs) > 0 {
		md.Frontmatter = &docs[0]
	}
	return md, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. ok is false when there is no frontmatter block.
func splitFrontmatter(data []byte) ([]byte, string, bool) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), false
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), false
	}

	block := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")
	return block, body, true
}

// ExtractLinks returns deduplicated [[Class/id]] targets. Aliases (|) and
// anchors (#) are stripped, embeds (![[...]]) are skipped, and links without
// a Class/ prefix are ignored.
func ExtractLinks(body string) []WikiLink {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[WikiLink]struct{}, len(matches))
	var out []WikiLink
	for _, m := range matches {
		if m[1] == "!" {
			continue
		}
		target := m[2]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		if i := strings.Index(target, "#"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		class, id, found := strings.Cut(target, "/")
		class, id = strings.TrimSpace(class), strings.TrimSpace(id)
		if !found || class == "" || id == "" {
			continue
		}
		link := WikiLink{Class: class, ID: id}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		out = append(out, link)
	}
	return out
}

// MappingKeys returns the keys of the mapping reached from node by following
// path, in document order. It returns nil when the path does not lead to a mapping.
func MappingKeys(node *yaml.Node, path ...string) []string {
	cur := node
	for _, key := range path {
		cur = mappingValue(cur, key)
		if cur == nil {
			return nil
		}
	}
	if cur == nil || cur.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(cur.Content)/2)
	for i := 0; i+1 < len(cur.Content); i += 2 {
		keys = append(keys, cur.Content[i].Value)
	}
	return keys
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
