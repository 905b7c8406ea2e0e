package html

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	tshtml "github.com/smacker/go-tree-sitter/html"

	"github.com/Polymer/polymer-build/internal/core/domain"
)

// ImportLink is an html import tag and its byte span in the document.
type ImportLink struct {
	// URL is the import target resolved against the document.
	URL string

	// Start and End delimit the tag in the document's bytes.
	Start, End int
}

// ImportLinks returns the local html imports of content, which is served
// at the document key base, in document order.
func ImportLinks(ctx context.Context, base string, content []byte) ([]ImportLink, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(tshtml.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	var links []ImportLink
	var visit func(node *sitter.Node)
	visit = func(node *sitter.Node) {
		if node.Type() == nodeElement {
			for i := 0; i < int(node.ChildCount()); i++ {
				child := node.Child(i)
				if t := child.Type(); t != nodeStartTag && t != nodeSelfClosingTag {
					continue
				}
				var tag parsedHTML
				extractTag(child, content, &tag)
				if len(tag.refs) == 1 && tag.refs[0].kind == domain.FeatureHTMLImport {
					if resolved, local := resolve(base, tag.refs[0].href); local {
						links = append(links, ImportLink{
							URL:   resolved,
							Start: int(child.StartByte()),
							End:   int(child.EndByte()),
						})
						return
					}
				}
				break
			}
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			visit(node.Child(i))
		}
	}
	visit(tree.RootNode())
	return links, nil
}
