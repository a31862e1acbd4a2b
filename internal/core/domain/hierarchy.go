package domain

import "time"

// Notebook is a top-level container in the remote store.
type Notebook struct {
	// ID is the stable remote identifier.
	ID string

	// Name is the display name.
	Name string
}

// Branch is one section of a notebook, the unit of independent sync.
type Branch struct {
	// ID is the stable remote identifier of the section.
	ID string

	// NotebookID references the owning notebook by id only.
	NotebookID string

	// Name is the display name.
	Name string
}

// Hierarchy is the remote notebook/section tree, stored arena-style:
// nodes are keyed by id and relations are id references, never pointers.
type Hierarchy struct {
	// Notebooks maps notebook id to notebook.
	Notebooks map[string]Notebook

	// Branches maps section id to branch.
	Branches map[string]Branch
}

// NewHierarchy creates an empty hierarchy.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{
		Notebooks: make(map[string]Notebook),
		Branches:  make(map[string]Branch),
	}
}

// BranchIDs returns all branch ids in no particular order.
func (h *Hierarchy) BranchIDs() []string {
	ids := make([]string, 0, len(h.Branches))
	for id := range h.Branches {
		ids = append(ids, id)
	}
	return ids
}

// Resolve returns the path prefix "notebook/section" for a branch,
// or false if the branch or its notebook is unknown.
func (h *Hierarchy) Resolve(branchID string) (string, bool) {
	branch, ok := h.Branches[branchID]
	if !ok {
		return "", false
	}
	notebook, ok := h.Notebooks[branch.NotebookID]
	if !ok {
		return "", false
	}
	return notebook.Name + "/" + branch.Name, true
}

// ContentType identifies the payload shape of a raw page.
type ContentType string

const (
	// ContentTypeHTML is rich HTML page markup.
	ContentTypeHTML ContentType = "text/html"

	// ContentTypeMarkdown is markdown page markup.
	ContentTypeMarkdown ContentType = "text/markdown"
)

// RawPage is an unparsed page payload as fetched from the remote store.
// Payload shapes are a tagged variant on ContentType; anything the
// normaliser registry does not recognise fails with ErrMalformedContent.
type RawPage struct {
	// ID is the stable remote page identifier.
	ID string

	// NotebookID and SectionID place the page in the hierarchy.
	NotebookID string
	SectionID  string

	// Title is the page title as reported remotely.
	Title string

	// ContentType tags the payload shape.
	ContentType ContentType

	// Content is the raw payload bytes.
	Content []byte

	// RemoteModified is the last-modified timestamp reported remotely.
	RemoteModified time.Time
}

// PageStub is a page listing entry: enough to diff without fetching content.
type PageStub struct {
	// ID is the stable remote page identifier.
	ID string

	// SectionID places the page in its branch.
	SectionID string

	// Title is the page title.
	Title string

	// RemoteModified is the last-modified timestamp reported remotely.
	RemoteModified time.Time

	// ContentHash is the remote content fingerprint, when the remote
	// store reports one. Empty means diff on timestamp alone.
	ContentHash string
}
