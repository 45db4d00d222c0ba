package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Snippet  string   `json:"snippet"`
	OwnerID  string   `json:"ownerId"`
	Author   string   `json:"author,omitempty"`
	IsPinned bool     `json:"isPinned"`
	IsPublic bool     `json:"isPublic"`
	Images   []string `json:"images,omitempty"`
}

// Query describes a search request. CallerID scopes visibility: the
// caller sees their own notes plus any approved public note.
type Query struct {
	Text     string
	CallerID string
	Limit    int
	Offset   int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over notes.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push notes into a search index.
type Indexer interface {
	IndexNote(n NoteRecord) error
	DeleteNote(id string) error
}

// NoteRecord is the data we index for a note.
type NoteRecord struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	OwnerID  string `json:"ownerId"`
	Pinned   bool   `json:"pinned"`
	Public   bool   `json:"public"`
	Approved bool   `json:"approved"`
}
