package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Directory maps catalog contact ids to human-readable contacts.
type Directory map[string]string

// DefaultContacts returns the built-in contact directory.
func DefaultContacts() Directory {
	return Directory{
		"c53c736b-8469-409c-9dcc-b3a61953d4dd": "Aymen Furter (aymen.furter@microsoft.com)",
	}
}

// Resolve returns the display string for id, or nil if id is unknown.
func (d Directory) Resolve(id string) *string {
	display, ok := d[id]
	if !ok {
		return nil
	}
	return &display
}

type contactsFile struct {
	Contacts map[string]string `yaml:"contacts"`
}

// LoadContacts reads a directory from a YAML file of the form
//
//	contacts:
//	  <contact-id>: "Name (email)"
//
// An empty path returns DefaultContacts.
func LoadContacts(path string) (Directory, error) {
	if path == "" {
		return DefaultContacts(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contacts file: %w", err)
	}
	var f contactsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse contacts file %s: %w", path, err)
	}
	dir := make(Directory, len(f.Contacts))
	for id, display := range f.Contacts {
		dir[id] = display
	}
	return dir, nil
}
