package domain

// WorkItem is one card fetched from the board. It is never mutated after fetch.
type WorkItem struct {
	ID    string
	Title string
}

// BoardCredential authenticates against the board service.
type BoardCredential struct {
	Key   string
	Token string
}

// Valid reports whether both halves of the credential are present.
func (c BoardCredential) Valid() bool {
	return c.Key != "" && c.Token != ""
}

// AccountIdentity describes the member the credential belongs to.
type AccountIdentity struct {
	ID       string
	Username string
	FullName string
}

// BoardSummary is a board visible to the authenticated member.
type BoardSummary struct {
	ID   string
	Name string
}

// ListDetails describes a single board column.
type ListDetails struct {
	ID      string
	Name    string
	Closed  bool
	BoardID string
}

// BoardDetails carries board metadata and its open lists.
type BoardDetails struct {
	ID    string
	Name  string
	URL   string
	Lists []ListDetails
}

// HasList reports whether listID is one of the board's lists.
func (b BoardDetails) HasList(listID string) bool {
	for _, l := range b.Lists {
		if l.ID == listID {
			return true
		}
	}
	return false
}
