// Package meta defines collection metadata: the {name, indexes, createdAt,
// schemaVersion, documentCount} record spec §3 says exists iff any
// document or index row for the collection exists.
package meta

import (
	"encoding/json"
	"fmt"
	"time"
)

// SchemaVersion is written into every metadata row created by this build.
const SchemaVersion = 1

// IDIndexName is the name of the implicit, unique, undroppable index on
// _id every collection owns.
const IDIndexName = "_id_"

// IndexDef describes one secondary index.
type IndexDef struct {
	Name   string `json:"name"`
	Field  string `json:"field"`
	Unique bool   `json:"unique"`
}

// IndexName computes the conventional "<field>_1" name for a user-created
// index (spec §3).
func IndexName(field string) string {
	return fmt.Sprintf("%s_1", field)
}

// Collection is the persisted collection metadata row.
type Collection struct {
	Name           string     `json:"name"`
	Indexes        []IndexDef `json:"indexes"`
	CreatedAt      time.Time  `json:"createdAt"`
	SchemaVersion  int        `json:"schemaVersion"`
	DocumentCount  int64      `json:"documentCount"`
}

// NewCollection builds fresh metadata for a just-created collection,
// seeded with the mandatory _id_ index (spec §3).
func NewCollection(name string, now time.Time) *Collection {
	return &Collection{
		Name:          name,
		Indexes:       []IndexDef{{Name: IDIndexName, Field: "_id", Unique: true}},
		CreatedAt:     now,
		SchemaVersion: SchemaVersion,
	}
}

// FindIndexByField returns the index defined on field, if any.
func (c *Collection) FindIndexByField(field string) (IndexDef, bool) {
	for _, ix := range c.Indexes {
		if ix.Field == field {
			return ix, true
		}
	}
	return IndexDef{}, false
}

// FindIndexByName returns the index with the given name, if any.
func (c *Collection) FindIndexByName(name string) (IndexDef, bool) {
	for _, ix := range c.Indexes {
		if ix.Name == name {
			return ix, true
		}
	}
	return IndexDef{}, false
}

// AddIndex appends a new index definition.
func (c *Collection) AddIndex(ix IndexDef) {
	c.Indexes = append(c.Indexes, ix)
}

// RemoveIndex deletes the index with the given name, reporting whether it
// was present.
func (c *Collection) RemoveIndex(name string) bool {
	for i, ix := range c.Indexes {
		if ix.Name == name {
			c.Indexes = append(c.Indexes[:i], c.Indexes[i+1:]...)
			return true
		}
	}
	return false
}

// Clone deep-copies the metadata, used so callers under a collection lock
// can hand out a snapshot without aliasing the copy they may still mutate.
func (c *Collection) Clone() *Collection {
	out := *c
	out.Indexes = append([]IndexDef{}, c.Indexes...)
	return &out
}

// Marshal/Unmarshal implement the metadata row's on-disk representation.
func Marshal(c *Collection) ([]byte, error) { return json.Marshal(c) }

func Unmarshal(b []byte) (*Collection, error) {
	var c Collection
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal collection metadata: %w", err)
	}
	return &c, nil
}
