package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultSection  ResultType = "section"
	ResultDocument ResultType = "document"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type        ResultType `json:"type"`
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Snippet     string     `json:"snippet"`
	SectionCode string     `json:"section_code"`
}

// Query describes a search request. UserID scopes every search to the
// caller's own sections and documents.
type Query struct {
	Text       string
	UserID     string
	FilterType ResultType // empty = all types
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
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// SectionRecord is the data we index for a section.
type SectionRecord struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	SectionCode string `json:"sectionCode"`
	SectionName string `json:"sectionName"`
	Content     string `json:"content"`
}

// DocumentRecord is the data we index for an uploaded document.
type DocumentRecord struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	SectionCode string `json:"sectionCode"`
	Name        string `json:"name"`
	Detail      string `json:"detail"`
}
