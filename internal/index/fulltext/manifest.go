package fulltext

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// manifestKey is the internal key the manifest is stored under.
var manifestKey = []byte("bibsearch.manifest")

const docIDSep = "\x1f"

// fileRecord describes one indexed file of one entry.
type fileRecord struct {
	ModTime int64 `json:"mtime"` // unix nanoseconds
	Pages   int   `json:"pages"`
}

// manifest maps entry id -> resolved path -> record.
type manifest map[string]map[string]fileRecord

func decodeManifest(data []byte) (manifest, error) {
	m := manifest{}
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m manifest) encode() ([]byte, error) {
	return json.Marshal(m)
}

func (m manifest) get(entryID, path string) (fileRecord, bool) {
	rec, ok := m[entryID][path]
	return rec, ok
}

func (m manifest) set(entryID, path string, rec fileRecord) {
	files, ok := m[entryID]
	if !ok {
		files = make(map[string]fileRecord)
		m[entryID] = files
	}
	files[path] = rec
}

func (m manifest) remove(entryID, path string) {
	files := m[entryID]
	delete(files, path)
	if len(files) == 0 {
		delete(m, entryID)
	}
}

// paths returns the recorded paths of an entry in sorted order.
func (m manifest) paths(entryID string) []string {
	out := make([]string, 0, len(m[entryID]))
	for p := range m[entryID] {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// entries returns the recorded entry ids in sorted order.
func (m manifest) entries() []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func docID(entryID string, page int, path string) string {
	return entryID + docIDSep + strconv.Itoa(page) + docIDSep + path
}

func parseDocID(id string) (Hit, bool) {
	parts := strings.SplitN(id, docIDSep, 3)
	if len(parts) != 3 {
		return Hit{}, false
	}
	page, err := strconv.Atoi(parts[1])
	if err != nil {
		return Hit{}, false
	}
	return Hit{EntryID: parts[0], Page: page, Path: parts[2]}, true
}
