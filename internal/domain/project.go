package domain

import "time"

// Project is one row from the authoritative project list.
type Project struct {
	ID         string    `json:"id,omitempty"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	Path       string    `json:"path,omitempty"`
	PHPVersion string    `json:"php_version,omitempty"`
	Status     string    `json:"status,omitempty"`
	URL        string    `json:"url,omitempty"`
	Repo       string    `json:"repo,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// ProjectList bundles the authoritative rows with host-level metadata used by
// the creation flow.
type ProjectList struct {
	Projects          []Project `json:"projects"`
	TLD               string    `json:"tld"`
	DefaultPHPVersion string    `json:"default_php_version"`
}

// Workspace groups project slugs on the console side for display filtering.
// Workspaces never leave the console; the gateway knows nothing about them.
type Workspace struct {
	Name  string   `json:"name"`
	Slugs []string `json:"slugs"`
}

// Contains reports whether the workspace includes the slug.
func (w Workspace) Contains(slug string) bool {
	for _, s := range w.Slugs {
		if s == slug {
			return true
		}
	}
	return false
}
