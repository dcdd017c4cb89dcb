package rules

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"

	"github.com/hpungsan/tidy/internal/errors"
)

// document is the on-disk shape of a rules file.
//
//	{"folders": {"Images": [".jpg", ".png"], "Docs": [".txt"]}, "unknown_folder": "Other"}
type document struct {
	Folders       *orderedmap.OrderedMap[string, []string] `json:"folders" yaml:"folders"`
	UnknownFolder string                                   `json:"unknown_folder" yaml:"unknown_folder"`
}

// Load reads and validates a rules document. Files ending in .yaml or .yml
// are decoded as YAML, everything else as JSON.
//
// A missing file or a malformed document is a precondition failure.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.NewPreconditionPath("rules file not found", path)
		}
		return nil, errors.NewPreconditionPath(fmt.Sprintf("cannot read rules file (%v)", err), path)
	}

	var rs *RuleSet
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		rs, err = ParseYAML(data)
	default:
		rs, err = ParseJSON(data)
	}
	if err != nil {
		return nil, errors.NewPreconditionPath(fmt.Sprintf("invalid rules file (%v)", err), path)
	}
	return rs, nil
}

// ParseJSON decodes a JSON rules document, preserving folder order.
func ParseJSON(data []byte) (*RuleSet, error) {
	doc := document{Folders: orderedmap.New[string, []string]()}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.ruleSet()
}

// ParseYAML decodes a YAML rules document, preserving folder order.
func ParseYAML(data []byte) (*RuleSet, error) {
	doc := document{Folders: orderedmap.New[string, []string]()}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.ruleSet()
}

func (d document) ruleSet() (*RuleSet, error) {
	rs := &RuleSet{Fallback: strings.TrimSpace(d.UnknownFolder)}
	if d.Folders != nil {
		rs.Categories = make([]Category, 0, d.Folders.Len())
		for pair := d.Folders.Oldest(); pair != nil; pair = pair.Next() {
			rs.Categories = append(rs.Categories, Category{
				Name:       pair.Key,
				Extensions: pair.Value,
			})
		}
	}
	if rs.Fallback == "" {
		rs.Fallback = DefaultFallback
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return rs, nil
}
