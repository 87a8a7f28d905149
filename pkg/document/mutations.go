package document

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrDuplicate            = errors.New("already exists")
	ErrNotFound             = errors.New("not found")
	ErrLastAdmin            = errors.New("cannot remove the last administrator")
	ErrInvalidVersion       = errors.New("version must have the form X.Y.Z")
	ErrVersionNotIncreasing = errors.New("version must be greater than the current version")
	ErrEmptyChanges         = errors.New("changelog entry needs at least one change")
	ErrEmptyName            = errors.New("name must not be empty")
)

// SetDashboard adds a dashboard. It fails with ErrDuplicate when name is
// taken, unless replace is set.
func (d *Document) SetDashboard(name, url string, replace bool, now time.Time) error {
	name = strings.TrimSpace(name)
	url = strings.TrimSpace(url)
	if name == "" || url == "" {
		return fmt.Errorf("dashboard: %w", ErrEmptyName)
	}
	if d.Dashboards == nil {
		d.Dashboards = map[string]string{}
	}
	if _, ok := d.Dashboards[name]; ok && !replace {
		return fmt.Errorf("dashboard %q: %w", name, ErrDuplicate)
	}
	d.Dashboards[name] = url
	d.Touch(now)
	return nil
}

// RenameDashboard moves a dashboard to a new name, keeping its URL.
func (d *Document) RenameDashboard(oldName, newName string, now time.Time) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return fmt.Errorf("dashboard: %w", ErrEmptyName)
	}
	url, ok := d.Dashboards[oldName]
	if !ok {
		return fmt.Errorf("dashboard %q: %w", oldName, ErrNotFound)
	}
	if newName == oldName {
		return nil
	}
	if _, taken := d.Dashboards[newName]; taken {
		return fmt.Errorf("dashboard %q: %w", newName, ErrDuplicate)
	}
	delete(d.Dashboards, oldName)
	d.Dashboards[newName] = url
	d.Touch(now)
	return nil
}

// RemoveDashboard deletes a dashboard.
func (d *Document) RemoveDashboard(name string, now time.Time) error {
	if _, ok := d.Dashboards[name]; !ok {
		return fmt.Errorf("dashboard %q: %w", name, ErrNotFound)
	}
	delete(d.Dashboards, name)
	d.Touch(now)
	return nil
}

// DashboardNames returns the dashboard names sorted case-insensitively.
func (d *Document) DashboardNames() []string {
	names := make([]string, 0, len(d.Dashboards))
	for k := range d.Dashboards {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names
}

// AddUser authorizes a principal.
func (d *Document) AddUser(name string, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("user: %w", ErrEmptyName)
	}
	if Contains(d.AuthorizedUsers, name) {
		return fmt.Errorf("user %q: %w", name, ErrDuplicate)
	}
	d.AuthorizedUsers = append(d.AuthorizedUsers, name)
	d.Touch(now)
	return nil
}

// RemoveUser revokes a principal. With cascadeAdmin the principal also loses
// admin rights; that is refused with ErrLastAdmin when it is the only admin,
// and nothing is changed.
func (d *Document) RemoveUser(name string, cascadeAdmin bool, now time.Time) error {
	if !Contains(d.AuthorizedUsers, name) {
		return fmt.Errorf("user %q: %w", name, ErrNotFound)
	}
	if cascadeAdmin && Contains(d.AdminUsers, name) && len(removeFold(d.AdminUsers, name)) == 0 {
		return ErrLastAdmin
	}
	d.AuthorizedUsers = removeFold(d.AuthorizedUsers, name)
	if cascadeAdmin {
		d.AdminUsers = removeFold(d.AdminUsers, name)
	}
	d.Touch(now)
	return nil
}

// AddAdmin grants admin rights. With ensureAuthorized the principal is also
// added to the authorized users when missing.
func (d *Document) AddAdmin(name string, ensureAuthorized bool, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("admin: %w", ErrEmptyName)
	}
	if Contains(d.AdminUsers, name) {
		return fmt.Errorf("admin %q: %w", name, ErrDuplicate)
	}
	d.AdminUsers = append(d.AdminUsers, name)
	if ensureAuthorized && !Contains(d.AuthorizedUsers, name) {
		d.AuthorizedUsers = append(d.AuthorizedUsers, name)
	}
	d.Touch(now)
	return nil
}

// RemoveAdmin revokes admin rights. The last admin cannot be removed.
func (d *Document) RemoveAdmin(name string, now time.Time) error {
	if !Contains(d.AdminUsers, name) {
		return fmt.Errorf("admin %q: %w", name, ErrNotFound)
	}
	rest := removeFold(d.AdminUsers, name)
	if len(rest) == 0 {
		return ErrLastAdmin
	}
	d.AdminUsers = rest
	d.Touch(now)
	return nil
}

func removeFold(set []string, name string) []string {
	name = strings.TrimSpace(name)
	out := make([]string, 0, len(set))
	for _, s := range set {
		if !strings.EqualFold(strings.TrimSpace(s), name) {
			out = append(out, s)
		}
	}
	return out
}

// AddChangelogEntry appends a release to the changelog and makes it the
// document's version. Blank change lines are dropped.
func (d *Document) AddChangelogEntry(version, author string, changes []string, now time.Time) error {
	version = strings.TrimSpace(version)
	if !ValidVersion(version) {
		return fmt.Errorf("%q: %w", version, ErrInvalidVersion)
	}
	// A current version that does not parse places no lower bound.
	if cmp, ok := CompareVersions(version, d.Version); ok && cmp <= 0 {
		return fmt.Errorf("%s <= %s: %w", version, d.Version, ErrVersionNotIncreasing)
	}
	author = strings.TrimSpace(author)
	if author == "" {
		return fmt.Errorf("author: %w", ErrEmptyName)
	}
	lines := SplitChanges(strings.Join(changes, "\n"))
	if len(lines) == 0 {
		return ErrEmptyChanges
	}

	d.Changelog = append(d.Changelog, ChangelogEntry{
		Version: version,
		Date:    now.Format(DateLayout),
		Author:  author,
		Changes: lines,
	})
	d.Version = version
	d.Touch(now)
	return nil
}

// SplitChanges turns free text into one change per non-blank line.
func SplitChanges(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// SortedChangelog returns the changelog ordered by version, newest first.
func (d *Document) SortedChangelog() []ChangelogEntry {
	out := make([]ChangelogEntry, len(d.Changelog))
	copy(out, d.Changelog)
	sort.SliceStable(out, func(i, j int) bool {
		return IsNewer(out[i].Version, out[j].Version)
	})
	return out
}

// HasRelease reports whether the changelog has an entry for version.
func (d *Document) HasRelease(version string) bool {
	for _, e := range d.Changelog {
		if e.Version == version {
			return true
		}
	}
	return false
}

// MergeChanges appends the lines of changes missing from the entry at i.
func (d *Document) MergeChanges(i int, changes []string, now time.Time) {
	entry := &d.Changelog[i]
	for _, line := range SplitChanges(strings.Join(changes, "\n")) {
		if !Contains(entry.Changes, line) {
			entry.Changes = append(entry.Changes, line)
		}
	}
	d.Touch(now)
}
