package jsondb

import (
	"bytes"
	"encoding/json"
	"github.com/myrjola/sagaboard/internal/errors"
	"log/slog"
	"slices"
)

// SchemaVersion is the version written to every document. Version 1 documents are bare id to entity mappings.
const SchemaVersion = 2

var (
	ErrUnsupportedSchema = errors.NewSentinel("unsupported schema version")
	ErrReadOnly          = errors.NewSentinel("document opened read-only")
)

// Document is a whole collection keyed by entity identifier.
//
// Items are kept as raw JSON so that the database stays agnostic of the entity types. Use [Get], [Put], [Remove],
// and [All] to work with typed values.
type Document struct {
	SchemaVersion int                        `json:"schema_version"`
	Items         map[string]json.RawMessage `json:"items"`

	readOnly bool
	dirty    bool
}

func newDocument() *Document {
	return &Document{
		SchemaVersion: SchemaVersion,
		Items:         map[string]json.RawMessage{},
	}
}

// Len returns the number of entities in the document.
func (d *Document) Len() int {
	return len(d.Items)
}

// IDs returns the identifiers in lexical order.
func (d *Document) IDs() []string {
	ids := make([]string, 0, len(d.Items))
	for id := range d.Items {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Has reports whether id exists in the document.
func (d *Document) Has(id string) bool {
	_, ok := d.Items[id]
	return ok
}

// Get decodes the entity with id. Returns nil without error when the id is unknown.
func Get[T any](d *Document, id string) (*T, error) {
	raw, ok := d.Items[id]
	if !ok {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.Wrap(err, "decode item", slog.String("id", id))
	}
	return &v, nil
}

// Put stores v under id, replacing any previous value.
func Put[T any](d *Document, id string, v T) error {
	if d.readOnly {
		return ErrReadOnly
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode item", slog.String("id", id))
	}
	d.Items[id] = raw
	d.dirty = true
	return nil
}

// Remove deletes id and reports whether it existed.
func Remove(d *Document, id string) (bool, error) {
	if d.readOnly {
		return false, ErrReadOnly
	}
	if _, ok := d.Items[id]; !ok {
		return false, nil
	}
	delete(d.Items, id)
	d.dirty = true
	return true, nil
}

// All decodes every entity in identifier order.
func All[T any](d *Document) ([]T, error) {
	out := make([]T, 0, len(d.Items))
	for _, id := range d.IDs() {
		v, err := Get[T](d, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

// decodeDocument parses both the current format and the legacy bare mapping.
func decodeDocument(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return newDocument(), nil
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, errors.Wrap(err, "decode document")
	}
	if top == nil {
		// A literal null.
		return newDocument(), nil
	}

	rawVersion, versioned := top["schema_version"]
	if !versioned {
		return decodeLegacy(top)
	}

	var version int
	if err := json.Unmarshal(rawVersion, &version); err != nil {
		return nil, errors.Wrap(err, "decode schema version")
	}
	if version > SchemaVersion || version < 1 {
		return nil, errors.Wrap(ErrUnsupportedSchema, "check schema version", slog.Int("version", version))
	}

	doc := newDocument()
	if rawItems, ok := top["items"]; ok && !bytes.Equal(bytes.TrimSpace(rawItems), []byte("null")) {
		if err := json.Unmarshal(rawItems, &doc.Items); err != nil {
			return nil, errors.Wrap(err, "decode items")
		}
	}
	if err := requireObjects(doc.Items); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeLegacy(top map[string]json.RawMessage) (*Document, error) {
	if err := requireObjects(top); err != nil {
		return nil, err
	}
	doc := newDocument()
	doc.Items = top
	return doc, nil
}

func requireObjects(items map[string]json.RawMessage) error {
	for id, raw := range items {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return errors.New("item is not an object", slog.String("id", id))
		}
	}
	return nil
}

func encodeDocument(d *Document) ([]byte, error) {
	out := struct {
		SchemaVersion int                        `json:"schema_version"`
		Items         map[string]json.RawMessage `json:"items"`
	}{
		SchemaVersion: SchemaVersion,
		Items:         d.Items,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode document")
	}
	return append(data, '\n'), nil
}
