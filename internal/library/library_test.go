package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLibrary(ids ...string) *Library {
	lib := &Library{Name: "test"}
	for _, id := range ids {
		lib.Entries = append(lib.Entries, NewEntry(id, "misc"))
	}
	return lib
}

func TestLibrary_Upsert(t *testing.T) {
	lib := newLibrary("e1", "e2")

	lib.Upsert(NewEntry("e2", "book").Set("title", "Replaced"))
	lib.Upsert(NewEntry("e3", "misc"))

	assert.Equal(t, []string{"e1", "e2", "e3"}, lib.IDs())
	title, _ := lib.Entry("e2").Field("title")
	assert.Equal(t, "Replaced", title)
}

func TestLibrary_Remove(t *testing.T) {
	lib := newLibrary("e1", "e2", "e3")

	assert.Equal(t, 2, lib.Remove("e1", "e3", "e9"))
	assert.Equal(t, []string{"e2"}, lib.IDs())
	assert.Nil(t, lib.Entry("e1"))
	assert.Zero(t, lib.Remove("e1"))
}

func TestLibrary_Linking(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shared.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))
	lib := newLibrary("e1", "e2", "e3")
	lib.FileDirs = []string{dir}
	lib.Entries[0].Link(LinkedFile{Link: "shared.pdf", FileType: "PDF"})
	lib.Entries[2].Link(LinkedFile{Link: path, FileType: "PDF"})
	lib.Entries[1].Link(LinkedFile{Link: "missing.pdf", FileType: "PDF"})

	got := lib.Linking(path)
	require.Len(t, got, 2)
	assert.Equal(t, "e1", got[0].ID)
	assert.Equal(t, "e3", got[1].ID)

	assert.Empty(t, lib.Linking(filepath.Join(dir, "missing.pdf")))
}
