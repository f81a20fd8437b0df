package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/arcanaland/arenaswap/internal/apperr"
)

// CropsKey is the reserved top-level changeset key holding crop rows.
const CropsKey = "crops"

// Crop is one row of the art crop database.
type Crop struct {
	Path      string  `json:"path"`
	Format    string  `json:"format"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	W         float64 `json:"w"`
	Generated int     `json:"generated"`
}

// Entry is the last known good state of one card: Cards columns plus an
// optional nested localization map under the Localizations_<lang> key.
type Entry map[string]any

// Localizations returns the nested localization map stored under key.
func (e Entry) Localizations(key string) map[string]string {
	raw, ok := e[key].(map[string]any)
	if !ok {
		if typed, ok := e[key].(map[string]string); ok {
			return typed
		}
		return nil
	}
	out := make(map[string]string, len(raw))
	for id, v := range raw {
		if s, ok := v.(string); ok {
			out[id] = s
		} else {
			out[id] = fmt.Sprint(v)
		}
	}
	return out
}

// Columns returns the entry without the localization map under key.
func (e Entry) Columns(key string) map[string]any {
	out := make(map[string]any, len(e))
	for k, v := range e {
		if k != key {
			out[k] = v
		}
	}
	return out
}

// Changeset is the contents of changes.json.
type Changeset struct {
	Entries map[int64]Entry
	Crops   map[string][]Crop
}

// NewChangeset returns an empty changeset.
func NewChangeset() *Changeset {
	return &Changeset{Entries: map[int64]Entry{}}
}

// IDs returns the entry ids in ascending order.
func (c *Changeset) IDs() []int64 {
	ids := make([]int64, 0, len(c.Entries))
	for id := range c.Entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// MarshalJSON writes the flat {"<GrpId>": {...}, "crops": {...}} shape.
func (c *Changeset) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(c.Entries)+1)
	for id, e := range c.Entries {
		flat[strconv.FormatInt(id, 10)] = e
	}
	if len(c.Crops) > 0 {
		flat[CropsKey] = c.Crops
	}
	return json.Marshal(flat)
}

// UnmarshalJSON reads the flat shape. Numbers are kept as json.Number so
// integers survive unchanged.
func (c *Changeset) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	c.Entries = make(map[int64]Entry, len(flat))
	c.Crops = nil
	for key, raw := range flat {
		if key == CropsKey {
			if err := json.Unmarshal(raw, &c.Crops); err != nil {
				return fmt.Errorf("crops: %w", err)
			}
			continue
		}
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return fmt.Errorf("key %q is not a GrpId", key)
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return fmt.Errorf("entry %s: %w", key, err)
		}
		c.Entries[id] = e
	}
	return nil
}

// ReadChangeset loads path. A missing file is NotFound and malformed JSON
// is a Validation error.
func ReadChangeset(path string) (*Changeset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.NotFound("changeset %s does not exist", path)
		}
		return nil, apperr.IO(err, "read changeset %s", path)
	}
	cs := NewChangeset()
	if len(bytes.TrimSpace(data)) == 0 {
		return cs, nil
	}
	if err := json.Unmarshal(data, cs); err != nil {
		return nil, apperr.Validation(err, "malformed changeset %s", path)
	}
	return cs, nil
}

// WriteChangeset replaces path with cs through a temp file and rename.
func WriteChangeset(path string, cs *Changeset) error {
	data, err := json.MarshalIndent(cs, "", "    ")
	if err != nil {
		return fmt.Errorf("encode changeset: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperr.IO(err, "create changeset directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".changes-*.json")
	if err != nil {
		return apperr.IO(err, "write changeset %s", path)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return apperr.IO(err, "write changeset %s", path)
	}
	if err := tmp.Close(); err != nil {
		return apperr.IO(err, "write changeset %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return apperr.IO(err, "write changeset %s", path)
	}
	return nil
}
