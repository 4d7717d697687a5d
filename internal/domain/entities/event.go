package entities

// Tag is a single signed-event tag: a name followed by positional values,
// e.g. ["i", "<event-id>", "job"] or ["bid", "21000"].
type Tag []string

// Name is the tag's first element, or "" for a malformed empty tag.
func (t Tag) Name() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// Value returns t[1], or "" if absent.
func (t Tag) Value() string {
	if len(t) < 2 {
		return ""
	}
	return t[1]
}

// At returns t[i], or "" if out of range.
func (t Tag) At(i int) string {
	if i < 0 || i >= len(t) {
		return ""
	}
	return t[i]
}

// Event is a signed event on the network, already verified by the
// underlying event client (signing/verification/transport are external
// collaborators; see repositories.NetworkClient).
type Event struct {
	ID        string
	PubKey    string
	Kind      int
	CreatedAt int64
	Tags      []Tag
	Content   string
}

// FindTags returns every tag with the given name, in order.
func (e Event) FindTags(name string) []Tag {
	var out []Tag
	for _, t := range e.Tags {
		if t.Name() == name {
			out = append(out, t)
		}
	}
	return out
}

// FirstTag returns the first tag with the given name, or nil.
func (e Event) FirstTag(name string) Tag {
	for _, t := range e.Tags {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

// InputKind enumerates the recognized `i`-tag kind marker.
type InputKind string

const (
	InputKindURL   InputKind = "url"
	InputKindText  InputKind = "text"
	InputKindEvent InputKind = "event"
	InputKindJob   InputKind = "job"
)

// Input is one parsed `i` tag: a value (a URL, literal text, or another
// event id) annotated with how the worker should interpret it.
type Input struct {
	Value    string
	Kind     InputKind
	Relay    string
	Marker   string
}

// JobRequest is a decoded inbound request event, per spec.md §3.
type JobRequest struct {
	Event       Event
	Task        string // resolved from Kind + tags by the dispatcher's catalogue
	Inputs      []Input
	PTag        string // explicit addressee pubkey, "" if absent
	BidMillisat int64  // 0 if absent
	HasBid      bool
	CashuToken  string
	Encrypted   bool
	Outputs     []string // requested `output` MIME types
	Params      map[string][]string
}

// RequesterPubKey is the signer of the original request.
func (r JobRequest) RequesterPubKey() string { return r.Event.PubKey }

// ID is the originating request event id — the ledger's primary key.
func (r JobRequest) ID() string { return r.Event.ID }
