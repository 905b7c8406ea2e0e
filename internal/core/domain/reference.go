package domain

// FeatureKind identifies how a document references another file.
type FeatureKind string

const (
	// FeatureHTMLImport is a <link rel="import" href="..."> reference.
	FeatureHTMLImport FeatureKind = "html-import"

	// FeatureHTMLScript is a <script src="..."> reference.
	FeatureHTMLScript FeatureKind = "html-script"

	// FeatureHTMLStyle is a <link rel="stylesheet" href="..."> reference.
	FeatureHTMLStyle FeatureKind = "html-style"
)

// Feature is one reference reported by a document analyzer.
type Feature struct {
	// URL is the reference target resolved against the containing document.
	// It may be absolute (external) or root-relative.
	URL string

	// Kind is the reference type.
	Kind FeatureKind

	// Document is the URL of the document that contains the reference.
	Document string
}

// FeatureQuery selects which features a document reports.
type FeatureQuery struct {
	// Kind filters features by category. Only "import" is defined.
	Kind string

	// ExternalPackages includes references into external package directories.
	ExternalPackages bool

	// Imported includes features of transitively imported documents.
	Imported bool
}

// ReferenceSet holds one fragment's direct references, split by kind.
// Each list is in document order and contains no duplicates.
type ReferenceSet struct {
	Imports []CanonicalID
	Scripts []CanonicalID
	Styles  []CanonicalID
}

// Add appends id to the list for kind unless it is already present.
// Unknown kinds are ignored and reported as false.
func (r *ReferenceSet) Add(kind FeatureKind, id CanonicalID) bool {
	var list *[]CanonicalID
	switch kind {
	case FeatureHTMLImport:
		list = &r.Imports
	case FeatureHTMLScript:
		list = &r.Scripts
	case FeatureHTMLStyle:
		list = &r.Styles
	default:
		return false
	}
	for _, existing := range *list {
		if existing == id {
			return false
		}
	}
	*list = append(*list, id)
	return true
}

// All returns imports, scripts and styles in that order.
func (r ReferenceSet) All() []CanonicalID {
	all := make([]CanonicalID, 0, len(r.Imports)+len(r.Scripts)+len(r.Styles))
	all = append(all, r.Imports...)
	all = append(all, r.Scripts...)
	all = append(all, r.Styles...)
	return all
}
