// Package document defines the versioned configuration document shared by
// the launcher and the admin tools, together with its validation, ordering,
// and mutation rules.
package document

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultVersion is used when a document carries no version.
	DefaultVersion = "1.0.0"

	// PlaceholderAdmin is promoted when a document has no users at all.
	PlaceholderAdmin = "admin"

	// EncryptionVersion is stamped on documents whose dashboards are ciphertext.
	EncryptionVersion = "1.0"

	// TimestampLayout is the format of LastUpdated.
	TimestampLayout = "2006-01-02 15:04:05"

	// DateLayout is the format of changelog dates.
	DateLayout = "2006-01-02"
)

// ChangelogEntry records one published version.
type ChangelogEntry struct {
	Version string   `json:"version" yaml:"version"`
	Date    string   `json:"date" yaml:"date"`
	Author  string   `json:"author" yaml:"author"`
	Changes []string `json:"changes" yaml:"changes"`
}

// Document is the configuration document.
type Document struct {
	Version                 string            `json:"version" yaml:"version"`
	LastUpdated             string            `json:"last_updated" yaml:"last_updated"`
	Dashboards              map[string]string `json:"dashboards" yaml:"dashboards"`
	AuthorizedUsers         []string          `json:"authorized_users" yaml:"authorized_users"`
	AdminUsers              []string          `json:"admin_users" yaml:"admin_users"`
	RequireCorporateNetwork bool              `json:"require_corporate_network" yaml:"require_corporate_network"`
	Changelog               []ChangelogEntry  `json:"changelog" yaml:"changelog"`
	Encrypted               bool              `json:"encrypted" yaml:"encrypted"`
	EncryptionVersion       string            `json:"encryption_version,omitempty" yaml:"encryption_version,omitempty"`

	// UsingLocalConfig is set at load time when the remote copy was
	// unreachable. It is never serialized.
	UsingLocalConfig bool `json:"-" yaml:"-"`
}

// New returns the empty skeleton that remote and cached bodies are decoded onto.
func New() *Document {
	return &Document{
		Version:         DefaultVersion,
		Dashboards:      map[string]string{},
		AuthorizedUsers: []string{},
		AdminUsers:      []string{},
		Changelog:       []ChangelogEntry{},
	}
}

// Parse validates data against the document schema and decodes it onto a
// fresh skeleton. Fields missing from data keep their skeleton values.
func Parse(data []byte) (*Document, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}
	doc := New()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to decode config document: %w", err)
	}
	return doc, nil
}

// Marshal encodes doc with four-space indentation, matching the files
// already published.
func Marshal(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "    ")
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	if d.Dashboards != nil {
		c.Dashboards = make(map[string]string, len(d.Dashboards))
		for k, v := range d.Dashboards {
			c.Dashboards[k] = v
		}
	}
	c.AuthorizedUsers = cloneStrings(d.AuthorizedUsers)
	c.AdminUsers = cloneStrings(d.AdminUsers)
	if d.Changelog != nil {
		c.Changelog = make([]ChangelogEntry, len(d.Changelog))
		for i, e := range d.Changelog {
			e.Changes = cloneStrings(e.Changes)
			c.Changelog[i] = e
		}
	}
	return &c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Validate fills missing collections and the version in place, and makes
// sure at least one admin exists. It returns doc for chaining.
func Validate(doc *Document) *Document {
	if doc.Dashboards == nil {
		doc.Dashboards = map[string]string{}
	}
	if doc.AuthorizedUsers == nil {
		doc.AuthorizedUsers = []string{}
	}
	if doc.AdminUsers == nil {
		doc.AdminUsers = []string{}
	}
	if doc.Changelog == nil {
		doc.Changelog = []ChangelogEntry{}
	}
	if strings.TrimSpace(doc.Version) == "" {
		doc.Version = DefaultVersion
	}
	if len(doc.AdminUsers) == 0 {
		if len(doc.AuthorizedUsers) > 0 {
			doc.AdminUsers = []string{doc.AuthorizedUsers[0]}
		} else {
			doc.AdminUsers = []string{PlaceholderAdmin}
		}
	}
	return doc
}

// Contains reports whether set holds name, ignoring case and surrounding
// whitespace. An empty name never matches.
func Contains(set []string, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	for _, s := range set {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return true
		}
	}
	return false
}

// Touch stamps LastUpdated with now.
func (d *Document) Touch(now time.Time) {
	d.LastUpdated = now.Format(TimestampLayout)
}
