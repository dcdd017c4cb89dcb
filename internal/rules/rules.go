// Package rules holds the ordered extension-to-category rule set and the
// loader for rules documents.
//
// Rules are an ordered list of categories: when two categories list the same
// extension, the one defined first wins. Documents are decoded with an
// order-preserving map so the file's key order is the rule order.
package rules

import (
	"fmt"
	"strings"
)

// DefaultFallback is the category for files matching no rule when the
// document does not name one.
const DefaultFallback = "Other"

// Category is one named destination folder and the extensions routed to it.
type Category struct {
	Name       string   `json:"name"`
	Extensions []string `json:"extensions"`
}

// RuleSet is an ordered list of categories plus the fallback category.
type RuleSet struct {
	Categories []Category `json:"categories"`
	Fallback   string     `json:"fallback"`
}

// FallbackName returns the fallback category, defaulting to DefaultFallback.
func (r *RuleSet) FallbackName() string {
	if r == nil || strings.TrimSpace(r.Fallback) == "" {
		return DefaultFallback
	}
	return r.Fallback
}

// BucketFor maps an extension (with leading dot, or "" for none) to a
// category name. Comparison is case-insensitive; the first category in
// rule order containing the extension wins.
func (r *RuleSet) BucketFor(ext string) string {
	ext = strings.ToLower(ext)
	if r != nil {
		for _, c := range r.Categories {
			for _, e := range c.Extensions {
				if strings.ToLower(e) == ext {
					return c.Name
				}
			}
		}
	}
	return r.FallbackName()
}

// OrganizedFolders returns the set of category names plus the fallback.
// Files directly under a top-level folder with one of these names are
// considered already organized.
func (r *RuleSet) OrganizedFolders() map[string]struct{} {
	folders := make(map[string]struct{}, len(r.Categories)+1)
	for _, c := range r.Categories {
		folders[c.Name] = struct{}{}
	}
	folders[r.FallbackName()] = struct{}{}
	return folders
}

// Validate checks the shape of the rule set. Category names must be unique
// and usable as a single directory name.
func (r *RuleSet) Validate() error {
	seen := make(map[string]bool, len(r.Categories))
	for i, c := range r.Categories {
		if err := validateFolderName(c.Name); err != nil {
			return fmt.Errorf("category %d: %w", i, err)
		}
		if seen[c.Name] {
			return fmt.Errorf("category %q defined more than once", c.Name)
		}
		seen[c.Name] = true
	}
	if strings.TrimSpace(r.Fallback) != "" {
		if err := validateFolderName(r.Fallback); err != nil {
			return fmt.Errorf("unknown_folder: %w", err)
		}
	}
	return nil
}

func validateFolderName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("folder name must not be empty")
	case name == "." || name == "..":
		return fmt.Errorf("folder name %q is not allowed", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("folder name %q must not contain path separators", name)
	}
	return nil
}
