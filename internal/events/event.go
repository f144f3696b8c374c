// Package events applies library change events from a Kafka topic to an
// index manager.
//
// Payloads are JSON objects with a type and a library name:
//
//	{"type": "entry.upserted", "library": "main", "entries": [{"id": "e1", "type": "article", "key": "Doe2020",
//	  "fields": {"title": "..."}, "files": [{"description": "", "link": "doe.pdf", "type": "PDF"}]}]}
//	{"type": "entry.removed", "library": "main", "ids": ["e1"]}
//	{"type": "library.rebuild", "library": "main"}
//
// An empty library name addresses every consumer.
package events

import (
	"errors"
	"fmt"

	"github.com/valyala/fastjson"

	"github.com/roach88/bibsearch/internal/library"
)

// Event types.
const (
	TypeEntryUpserted  = "entry.upserted"
	TypeEntryRemoved   = "entry.removed"
	TypeLibraryRebuild = "library.rebuild"
)

// ErrInvalidEvent marks a payload that cannot be applied.
var ErrInvalidEvent = errors.New("invalid event")

// Event is a decoded change event.
type Event struct {
	Type    string
	Library string
	Entries []*library.Entry
	IDs     []string
}

// Decode parses a payload with p.
func Decode(p *fastjson.Parser, data []byte) (Event, error) {
	v, err := p.ParseBytes(data)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if v.Type() != fastjson.TypeObject {
		return Event{}, fmt.Errorf("%w: payload is not an object", ErrInvalidEvent)
	}

	ev := Event{
		Type:    string(v.GetStringBytes("type")),
		Library: string(v.GetStringBytes("library")),
	}
	switch ev.Type {
	case TypeEntryUpserted:
		for i, item := range v.GetArray("entries") {
			e, err := decodeEntry(item)
			if err != nil {
				return Event{}, fmt.Errorf("%w: entry %d: %v", ErrInvalidEvent, i, err)
			}
			ev.Entries = append(ev.Entries, e)
		}
		if len(ev.Entries) == 0 {
			return Event{}, fmt.Errorf("%w: %s without entries", ErrInvalidEvent, ev.Type)
		}
	case TypeEntryRemoved:
		for _, id := range v.GetArray("ids") {
			s := string(id.GetStringBytes())
			if s == "" {
				return Event{}, fmt.Errorf("%w: blank entry id", ErrInvalidEvent)
			}
			ev.IDs = append(ev.IDs, s)
		}
		if len(ev.IDs) == 0 {
			return Event{}, fmt.Errorf("%w: %s without ids", ErrInvalidEvent, ev.Type)
		}
	case TypeLibraryRebuild:
	case "":
		return Event{}, fmt.Errorf("%w: missing type", ErrInvalidEvent)
	default:
		return Event{}, fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, ev.Type)
	}
	return ev, nil
}

func decodeEntry(v *fastjson.Value) (*library.Entry, error) {
	id := string(v.GetStringBytes("id"))
	if id == "" {
		return nil, errors.New("missing id")
	}
	e := library.NewEntry(id, string(v.GetStringBytes("type"))).
		WithKey(string(v.GetStringBytes("key")))

	if fields := v.GetObject("fields"); fields != nil {
		var ferr error
		fields.Visit(func(key []byte, fv *fastjson.Value) {
			s, err := fv.StringBytes()
			if err != nil && ferr == nil {
				ferr = fmt.Errorf("field %s: %w", key, err)
				return
			}
			e.Set(string(key), string(s))
		})
		if ferr != nil {
			return nil, ferr
		}
	}

	for _, f := range v.GetArray("files") {
		e.Link(library.LinkedFile{
			Description: string(f.GetStringBytes("description")),
			Link:        string(f.GetStringBytes("link")),
			FileType:    string(f.GetStringBytes("type")),
		})
	}
	return e, nil
}
