package library

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// document is the YAML form of a library.
type document struct {
	Name             string          `yaml:"name"`
	FileDirs         []string        `yaml:"file_dirs"`
	KeywordSeparator string          `yaml:"keyword_separator"`
	Entries          []entryDocument `yaml:"entries"`
}

type entryDocument struct {
	ID     string            `yaml:"id"`
	Type   string            `yaml:"type"`
	Key    string            `yaml:"key"`
	Fields map[string]string `yaml:"fields"`
	Files  []fileDocument    `yaml:"files"`
}

type fileDocument struct {
	Description string `yaml:"description"`
	Link        string `yaml:"link"`
	Type        string `yaml:"type"`
}

// Load reads a library from a YAML file. Relative file directories are
// resolved against the file's directory.
func Load(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read library: %w", err)
	}
	lib, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	base := filepath.Dir(path)
	for i, dir := range lib.FileDirs {
		if !filepath.IsAbs(dir) {
			lib.FileDirs[i] = filepath.Join(base, dir)
		}
	}
	return lib, nil
}

// Decode parses a library YAML document. Entry ids must be present and
// unique.
func Decode(data []byte) (*Library, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode library: %w", err)
	}

	lib := &Library{
		Name:             doc.Name,
		FileDirs:         doc.FileDirs,
		KeywordSeparator: doc.KeywordSeparator,
	}
	if lib.KeywordSeparator == "" {
		lib.KeywordSeparator = DefaultKeywordSeparator
	}

	seen := make(map[string]bool, len(doc.Entries))
	for i, ed := range doc.Entries {
		if ed.ID == "" {
			return nil, fmt.Errorf("entry %d: missing id", i)
		}
		if seen[ed.ID] {
			return nil, fmt.Errorf("entry %d: duplicate id %q", i, ed.ID)
		}
		seen[ed.ID] = true

		e := NewEntry(ed.ID, ed.Type).WithKey(ed.Key)
		for name, value := range ed.Fields {
			e.Set(name, value)
		}
		for _, fd := range ed.Files {
			e.Link(LinkedFile{Description: fd.Description, Link: fd.Link, FileType: fd.Type})
		}
		lib.Entries = append(lib.Entries, e)
	}
	return lib, nil
}
