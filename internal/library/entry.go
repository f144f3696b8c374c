package library

import (
	"sort"
	"strings"
)

// Pseudo field names derived from entry metadata rather than stored fields.
const (
	FieldCitationKey = "citationkey"
	FieldEntryType   = "entrytype"
	FieldKeywords    = "keywords"
	FieldFile        = "file"
)

// DefaultKeywordSeparator separates keywords in the keywords field.
const DefaultKeywordSeparator = ","

// Entry is a bibliographic entry as seen by the search subsystem.
//
// Field names in Fields are case-insensitive; NewEntry and Set store them
// lower-cased. The citation key and entry type live outside Fields and are
// exposed through the citationkey and entrytype pseudo fields.
type Entry struct {
	ID          string
	Type        string
	CitationKey string
	Fields      map[string]string
	Files       []LinkedFile
}

// NewEntry creates an entry with the given id and type.
func NewEntry(id, entryType string) *Entry {
	return &Entry{
		ID:     id,
		Type:   entryType,
		Fields: make(map[string]string),
	}
}

// Set stores a field value. The name is lower-cased.
func (e *Entry) Set(name, value string) *Entry {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[strings.ToLower(name)] = value
	return e
}

// WithKey sets the citation key.
func (e *Entry) WithKey(key string) *Entry {
	e.CitationKey = key
	return e
}

// Link attaches a linked file.
func (e *Entry) Link(f LinkedFile) *Entry {
	e.Files = append(e.Files, f)
	return e
}

// Field returns the value of a field or pseudo field.
// The second result is false when the entry has no non-blank value.
func (e *Entry) Field(name string) (string, bool) {
	name = strings.ToLower(name)
	var v string
	switch name {
	case FieldCitationKey:
		v = e.CitationKey
	case FieldEntryType:
		v = strings.ToLower(e.Type)
	case FieldKeywords:
		v = strings.Join(e.Keywords(DefaultKeywordSeparator), DefaultKeywordSeparator+" ")
	case FieldFile:
		if len(e.Files) > 0 {
			v = SerializeFiles(e.Files)
		}
	default:
		v = e.Fields[name]
		if v == "" {
			for k, fv := range e.Fields {
				if strings.ToLower(k) == name {
					v = fv
					break
				}
			}
		}
	}
	if strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// AllFields returns every searchable field of the entry, pseudo fields
// included. Blank values are omitted and keywords are normalized with the
// default separator.
func (e *Entry) AllFields() map[string]string {
	return e.AllFieldsSep(DefaultKeywordSeparator)
}

// AllFieldsSep is AllFields with an explicit keyword separator.
func (e *Entry) AllFieldsSep(sep string) map[string]string {
	out := make(map[string]string, len(e.Fields)+3)
	for name, value := range e.Fields {
		if strings.TrimSpace(value) == "" {
			continue
		}
		out[strings.ToLower(name)] = value
	}
	if e.CitationKey != "" {
		out[FieldCitationKey] = e.CitationKey
	}
	if e.Type != "" {
		out[FieldEntryType] = strings.ToLower(e.Type)
	}
	if kw := e.Keywords(sep); len(kw) > 0 {
		out[FieldKeywords] = strings.Join(kw, sep+" ")
	}
	if len(e.Files) > 0 {
		out[FieldFile] = SerializeFiles(e.Files)
	}
	return out
}

// FieldNames returns the sorted names of AllFields.
func (e *Entry) FieldNames() []string {
	fields := e.AllFields()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Keywords splits the keywords field on sep, trimming and dropping blanks
// and duplicates while preserving order.
func (e *Entry) Keywords(sep string) []string {
	raw := e.Fields[FieldKeywords]
	if raw == "" {
		return nil
	}
	if sep == "" {
		sep = DefaultKeywordSeparator
	}
	seen := make(map[string]bool)
	var out []string
	for _, kw := range strings.Split(raw, sep) {
		kw = strings.TrimSpace(kw)
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}
