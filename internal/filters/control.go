package filters

import (
	"context"
	"errors"
	"sort"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"exboard/internal/constants"
)

var ErrAlreadyPopulated = errors.New("filter control already populated")

type Role string

const (
	RoleRule  Role = "rule"
	RoleAsset Role = "asset"
)

// Option is one selectable entry. The default option has an empty Value.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Item is a named entity offered as an option.
type Item struct {
	ID   string
	Name string
}

// ChangeFunc is notified after the selection changes.
type ChangeFunc func(ctx context.Context) error

// Control is a single-choice filter with a default "all" option.
type Control struct {
	role Role
	tag  language.Tag

	mu          sync.RWMutex
	options     []Option
	populated   bool
	selected    string
	subscribers []ChangeFunc
}

func NewControl(role Role, tag language.Tag) *Control {
	label := constants.AllRulesLabel
	if role == RoleAsset {
		label = constants.AllAssetsLabel
	}
	return &Control{
		role:    role,
		tag:     tag,
		options: []Option{{Value: "", Label: label}},
	}
}

func (c *Control) Role() Role {
	return c.role
}

// Populate appends items sorted by name using the control's collation. It may
// only be called once; duplicates are kept.
func (c *Control) Populate(items []Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.populated {
		return ErrAlreadyPopulated
	}

	sorted := append([]Item(nil), items...)
	col := collate.New(c.tag)
	sort.SliceStable(sorted, func(i, j int) bool {
		return col.CompareString(sorted[i].Name, sorted[j].Name) < 0
	})

	for _, it := range sorted {
		c.options = append(c.options, Option{Value: it.ID, Label: it.Name})
	}
	c.populated = true
	return nil
}

// Options returns the default option followed by the populated ones.
func (c *Control) Options() []Option {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Option(nil), c.options...)
}

func (c *Control) HasOption(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, o := range c.options {
		if o.Value == id {
			return true
		}
	}
	return false
}

func (c *Control) OnChange(fn ChangeFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Select sets the selection. When it differs from the current one every
// subscriber runs to completion in registration order; their errors are joined.
func (c *Control) Select(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	if c.selected == id {
		c.mu.Unlock()
		return false, nil
	}
	c.selected = id
	subscribers := append([]ChangeFunc(nil), c.subscribers...)
	c.mu.Unlock()

	var errs []error
	for _, fn := range subscribers {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return true, errors.Join(errs...)
}

// Restore sets the selection without notifying subscribers.
func (c *Control) Restore(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = id
}

// Selected returns the current value; false means the default option.
func (c *Control) Selected() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selected, c.selected != ""
}

// ParseTag resolves a BCP 47 tag, falling back to English.
func ParseTag(s string) language.Tag {
	if s == "" {
		s = constants.DefaultCollationTag
	}
	tag, err := language.Parse(s)
	if err != nil {
		return language.English
	}
	return tag
}
