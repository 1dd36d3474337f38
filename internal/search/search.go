package search

import "context"

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultDocument ResultType = "document"
	ResultSection  ResultType = "section"
)

// Result is a single search hit. Anchor is set for sections and names the
// heading identifier to link to.
type Result struct {
	Type       ResultType `json:"type"`
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Snippet    string     `json:"snippet"`
	DocumentID string     `json:"documentId"`
	Anchor     string     `json:"anchor,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	DocumentID string
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// DocumentRecord is the data we index for a document.
type DocumentRecord struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// SectionRecord is one heading of a document with the text up to the next
// heading.
type SectionRecord struct {
	ID         string `json:"id"`
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
	Anchor     string `json:"anchor"`
	Heading    string `json:"heading"`
	Level      int    `json:"level"`
	Body       string `json:"body"`
}
