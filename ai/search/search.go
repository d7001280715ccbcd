// Package search defines the retrieval collaborator: document search
// by query and bulk fetch by document id.
package search

import "context"

// Document is one search hit, a string-keyed record. Recognized keys
// include doc_id, title, url, content and content_description; anything
// else the index returns is carried through untouched.
type Document map[string]any

// String returns the document attribute as a string, or "" when absent.
func (d Document) String(key string) string {
	if v, ok := d[key]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// DocID returns the document's doc_id attribute.
func (d Document) DocID() string { return d.String("doc_id") }

// Searcher retrieves documents from the index.
type Searcher interface {
	// Search runs a Lucene query and returns up to maxDocs hits with
	// summary fields (title, url, content_description).
	Search(ctx context.Context, query string, maxDocs int) ([]Document, error)

	// FetchByIDs returns the documents for the given doc ids with the
	// requested fields populated. Missing ids are skipped.
	FetchByIDs(ctx context.Context, docIDs []string, fields []string) ([]Document, error)
}
