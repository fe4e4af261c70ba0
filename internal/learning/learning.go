// Package learning defines the learning-hub records that are staged locally
// and later moved to the durable store.
package learning

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind tags the payload carried by a Record.
type Kind string

const (
	KindTerm     Kind = "term"
	KindBookmark Kind = "bookmark"
	KindPath     Kind = "path"
)

// Kinds lists every record kind in transfer order.
var Kinds = []Kind{KindTerm, KindBookmark, KindPath}

// ParseKind validates s as a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindTerm, KindBookmark, KindPath:
		return k, nil
	default:
		return "", fmt.Errorf("unknown record kind %q", s)
	}
}

// TermProgress tracks a glossary term the user has studied.
type TermProgress struct {
	TermID       string    `yaml:"term_id" json:"term_id"`
	Mastered     bool      `yaml:"mastered" json:"mastered"`
	ReviewCount  int       `yaml:"review_count" json:"review_count"`
	LastReviewed time.Time `yaml:"last_reviewed" json:"last_reviewed"`
}

// Bookmark marks a piece of learning content for later.
type Bookmark struct {
	ContentID   string `yaml:"content_id" json:"content_id"`
	ContentType string `yaml:"content_type" json:"content_type"`
	Note        string `yaml:"note,omitempty" json:"note,omitempty"`
}

// PathCompletion records a finished learning path.
type PathCompletion struct {
	PathID           string    `yaml:"path_id" json:"path_id"`
	CompletedModules []string  `yaml:"completed_modules,omitempty" json:"completed_modules,omitempty"`
	CompletedAt      time.Time `yaml:"completed_at" json:"completed_at"`
}

// Record is one staged item. Exactly one payload field is set, matching Kind.
type Record struct {
	ID       string          `yaml:"id" json:"id"`
	Kind     Kind            `yaml:"kind" json:"kind"`
	Term     *TermProgress   `yaml:"term,omitempty" json:"term,omitempty"`
	Bookmark *Bookmark       `yaml:"bookmark,omitempty" json:"bookmark,omitempty"`
	Path     *PathCompletion `yaml:"path,omitempty" json:"path,omitempty"`
	StagedAt time.Time       `yaml:"staged_at" json:"staged_at"`
}

// NewTerm stages term progress.
func NewTerm(t TermProgress) Record {
	return Record{ID: uuid.NewString(), Kind: KindTerm, Term: &t, StagedAt: time.Now().UTC()}
}

// NewBookmark stages a bookmark.
func NewBookmark(b Bookmark) Record {
	return Record{ID: uuid.NewString(), Kind: KindBookmark, Bookmark: &b, StagedAt: time.Now().UTC()}
}

// NewPath stages a path completion.
func NewPath(p PathCompletion) Record {
	return Record{ID: uuid.NewString(), Kind: KindPath, Path: &p, StagedAt: time.Now().UTC()}
}

// Clone returns a copy that shares no payload memory with r.
func (r Record) Clone() Record {
	if r.Term != nil {
		t := *r.Term
		r.Term = &t
	}
	if r.Bookmark != nil {
		b := *r.Bookmark
		r.Bookmark = &b
	}
	if r.Path != nil {
		p := *r.Path
		p.CompletedModules = append([]string(nil), p.CompletedModules...)
		r.Path = &p
	}
	return r
}

// Key returns the natural key of the payload, used for upserts.
func (r Record) Key() string {
	switch r.Kind {
	case KindTerm:
		if r.Term != nil {
			return r.Term.TermID
		}
	case KindBookmark:
		if r.Bookmark != nil {
			return r.Bookmark.ContentType + ":" + r.Bookmark.ContentID
		}
	case KindPath:
		if r.Path != nil {
			return r.Path.PathID
		}
	}
	return ""
}

// Validate checks that the payload matches the kind.
func (r Record) Validate() error {
	if r.ID == "" {
		return errors.New("record id is required")
	}
	set := 0
	for _, p := range []bool{r.Term != nil, r.Bookmark != nil, r.Path != nil} {
		if p {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("record %s: expected exactly one payload, got %d", r.ID, set)
	}

	switch r.Kind {
	case KindTerm:
		if r.Term == nil || r.Term.TermID == "" {
			return fmt.Errorf("record %s: term payload requires term_id", r.ID)
		}
	case KindBookmark:
		if r.Bookmark == nil || r.Bookmark.ContentID == "" {
			return fmt.Errorf("record %s: bookmark payload requires content_id", r.ID)
		}
	case KindPath:
		if r.Path == nil || r.Path.PathID == "" {
			return fmt.Errorf("record %s: path payload requires path_id", r.ID)
		}
	default:
		return fmt.Errorf("record %s: unknown kind %q", r.ID, r.Kind)
	}
	return nil
}

// Batch is the staged data grouped by kind.
type Batch struct {
	Terms     []TermProgress   `json:"terms"`
	Bookmarks []Bookmark       `json:"bookmarks"`
	Paths     []PathCompletion `json:"paths"`
}

// Counts returns the number of items per kind.
func (b Batch) Counts() Counts {
	return Counts{Terms: len(b.Terms), Bookmarks: len(b.Bookmarks), Paths: len(b.Paths)}
}

// Empty reports whether the batch carries no items.
func (b Batch) Empty() bool {
	return b.Counts().Total() == 0
}

// Group validates records and splits them by kind, preserving order.
func Group(records []Record) (Batch, error) {
	var b Batch
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return Batch{}, err
		}
		switch r.Kind {
		case KindTerm:
			b.Terms = append(b.Terms, *r.Term)
		case KindBookmark:
			b.Bookmarks = append(b.Bookmarks, *r.Bookmark)
		case KindPath:
			b.Paths = append(b.Paths, *r.Path)
		}
	}
	return b, nil
}

// Counts holds per-kind totals.
type Counts struct {
	Terms     int `yaml:"terms" json:"terms"`
	Bookmarks int `yaml:"bookmarks" json:"bookmarks"`
	Paths     int `yaml:"paths" json:"paths"`
}

// Total sums all kinds.
func (c Counts) Total() int {
	return c.Terms + c.Bookmarks + c.Paths
}

// ByKind returns the counts keyed by kind name.
func (c Counts) ByKind() map[string]int {
	return map[string]int{
		string(KindTerm):     c.Terms,
		string(KindBookmark): c.Bookmarks,
		string(KindPath):     c.Paths,
	}
}

// Add increments the count for kind.
func (c *Counts) Add(kind Kind, n int) {
	switch kind {
	case KindTerm:
		c.Terms += n
	case KindBookmark:
		c.Bookmarks += n
	case KindPath:
		c.Paths += n
	}
}

// Result is the outcome of one transfer to the durable store.
type Result struct {
	Success  bool     `yaml:"success" json:"success"`
	Migrated Counts   `yaml:"migrated" json:"migrated"`
	Errors   []string `yaml:"errors,omitempty" json:"errors,omitempty"`
}
