package html

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	tshtml "github.com/smacker/go-tree-sitter/html"

	"github.com/Polymer/polymer-build/internal/core/domain"
)

// Node types of the tree-sitter HTML grammar.
const (
	nodeElement              = "element"
	nodeScriptElement        = "script_element"
	nodeStartTag             = "start_tag"
	nodeSelfClosingTag       = "self_closing_tag"
	nodeTagName              = "tag_name"
	nodeAttribute            = "attribute"
	nodeAttributeName        = "attribute_name"
	nodeAttributeValue       = "attribute_value"
	nodeQuotedAttributeValue = "quoted_attribute_value"
)

// rawRef is a reference exactly as written in the document.
type rawRef struct {
	kind domain.FeatureKind
	href string
	line int
}

// parsedHTML is the content-addressed result of parsing one document.
// It holds unresolved hrefs so it can be shared by every URL with the
// same bytes.
type parsedHTML struct {
	refs       []rawRef
	emptyRefs  []int
	syntaxErrs bool
}

// parseHTML extracts import, script and stylesheet references in document
// order.
func parseHTML(ctx context.Context, content []byte) (*parsedHTML, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(tshtml.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	out := &parsedHTML{syntaxErrs: root.HasError()}
	walk(root, content, out)
	return out, nil
}

func walk(node *sitter.Node, content []byte, out *parsedHTML) {
	if node == nil {
		return
	}

	switch node.Type() {
	case nodeElement, nodeScriptElement:
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if t := child.Type(); t == nodeStartTag || t == nodeSelfClosingTag {
				extractTag(child, content, out)
				break
			}
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		walk(node.Child(i), content, out)
	}
}

// extractTag records the reference a start tag carries, if any.
func extractTag(tag *sitter.Node, content []byte, out *parsedHTML) {
	var (
		name  string
		attrs = make(map[string]string)
	)
	for i := 0; i < int(tag.ChildCount()); i++ {
		child := tag.Child(i)
		switch child.Type() {
		case nodeTagName:
			name = strings.ToLower(child.Content(content))
		case nodeAttribute:
			k, v := extractAttribute(child, content)
			if _, seen := attrs[k]; !seen {
				attrs[k] = v
			}
		}
	}

	line := int(tag.StartPoint().Row) + 1
	switch name {
	case "link":
		href, ok := attrs["href"]
		if !ok {
			return
		}
		var kind domain.FeatureKind
		switch {
		case hasToken(attrs["rel"], "import"):
			kind = domain.FeatureHTMLImport
		case hasToken(attrs["rel"], "stylesheet"):
			kind = domain.FeatureHTMLStyle
		default:
			return
		}
		out.add(kind, href, line)
	case "script":
		src, ok := attrs["src"]
		if !ok {
			return
		}
		out.add(domain.FeatureHTMLScript, src, line)
	}
}

func (p *parsedHTML) add(kind domain.FeatureKind, href string, line int) {
	href = strings.TrimSpace(href)
	if href == "" {
		p.emptyRefs = append(p.emptyRefs, line)
		return
	}
	p.refs = append(p.refs, rawRef{kind: kind, href: href, line: line})
}

// extractAttribute returns a lowercased attribute name and its unquoted value.
func extractAttribute(node *sitter.Node, content []byte) (name, value string) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case nodeAttributeName:
			name = strings.ToLower(child.Content(content))
		case nodeQuotedAttributeValue:
			for j := 0; j < int(child.ChildCount()); j++ {
				if gc := child.Child(j); gc.Type() == nodeAttributeValue {
					value = gc.Content(content)
				}
			}
		case nodeAttributeValue:
			value = child.Content(content)
		}
	}
	return name, value
}

func hasToken(list, token string) bool {
	for _, f := range strings.Fields(list) {
		if strings.EqualFold(f, token) {
			return true
		}
	}
	return false
}
