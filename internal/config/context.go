package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Party is one side of the saved conversation.
type Party struct {
	ID     string `yaml:"id" json:"id"`
	Handle string `yaml:"handle,omitempty" json:"handle,omitempty"`
}

func (p Party) label() string {
	switch {
	case p.Handle != "":
		return "@" + p.Handle
	case len(p.ID) > 8:
		return p.ID[:8]
	default:
		return p.ID
	}
}

// Context remembers which user the CLI acts as and the conversation it
// last opened, so commands can omit --user and the contact argument.
type Context struct {
	User      Party     `yaml:"user,omitempty" json:"user"`
	Contact   Party     `yaml:"contact,omitempty" json:"contact"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty" json:"updated_at"`
}

// IsEmpty reports whether nothing has been saved.
func (c *Context) IsEmpty() bool { return c.User.ID == "" && c.Contact.ID == "" }

// SetUser switches the acting user. A different user drops the contact,
// since it belonged to the previous user's conversations.
func (c *Context) SetUser(id, handle string) {
	if c.User.ID != id {
		c.Contact = Party{}
	}
	c.User = Party{ID: id, Handle: handle}
	c.UpdatedAt = time.Now()
}

// SetContact records the conversation partner.
func (c *Context) SetContact(id, handle string) {
	c.Contact = Party{ID: id, Handle: handle}
	c.UpdatedAt = time.Now()
}

func (c *Context) String() string {
	switch {
	case c.IsEmpty():
		return "(none)"
	case c.Contact.ID == "":
		return c.User.label()
	default:
		return c.User.label() + " -> " + c.Contact.label()
	}
}

// ContextStore persists a Context as YAML.
type ContextStore struct {
	path string
}

// NewContextStore stores the context at path, or under ~/.config/dmfeed
// when path is empty.
func NewContextStore(path string) *ContextStore {
	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, ".config", "dmfeed", "context.yaml")
	}
	return &ContextStore{path: path}
}

// Path returns the backing file.
func (s *ContextStore) Path() string { return s.path }

// Load returns the saved context. A missing file yields an empty context.
func (s *ContextStore) Load() (*Context, error) {
	var c Context
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read context: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return &c, nil
}

// Save replaces the file through a rename so concurrent readers never see
// a partial write.
func (s *ContextStore) Save(c *Context) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode context: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".context-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to write context: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write context: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write context: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// Clear deletes the saved context.
func (s *ContextStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear context: %w", err)
	}
	return nil
}
