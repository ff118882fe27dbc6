/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

// Package sid holds the static bidirectional map between YANG instance paths
// and numeric Structure IDentifiers (RFC 9254). The table is loaded once from
// embedded data and read-only thereafter.
package sid

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"sync"

	"github.com/pelletier/go-toml"
)

//go:embed sids.toml
var sidData []byte

// Kind classifies a schema node.
type Kind string

// Schema node kinds.
const (
	KindContainer Kind = "container"
	KindList      Kind = "list"
	KindLeaf      Kind = "leaf"
	KindLeafList  Kind = "leaf-list"
	KindRPC       Kind = "rpc"
	KindAction    Kind = "action"
)

// Entry is one row of the SID table.
type Entry struct {
	Sid      uint32 `toml:"sid"`
	Path     string `toml:"path"`
	Kind     Kind   `toml:"kind"`
	Datatype string `toml:"datatype"`
	Key      string `toml:"key"`
}

// ModuleRange records the SID range allocated to one YANG module.
type ModuleRange struct {
	Name     string `toml:"name"`
	SidStart uint32 `toml:"sid_start"`
	SidEnd   uint32 `toml:"sid_end"`
}

type tableFile struct {
	Module []ModuleRange `toml:"module"`
	Entry  []Entry       `toml:"entry"`
}

// Table is the loaded SID table.
type Table struct {
	byPath  map[string]*Entry
	bySid   map[uint32]*Entry
	entries []*Entry
	modules []ModuleRange
}

var defaultTable *Table
var defaultTableOnce sync.Once

// DefaultTable returns the table built from the embedded allocation data.
func DefaultTable() *Table {
	defaultTableOnce.Do(func() {
		var err error
		defaultTable, err = LoadTable(sidData)
		if err != nil {
			// The embedded table is compiled in; a parse failure is a build defect.
			panic("sid: embedded table invalid: " + err.Error())
		}
	})
	return defaultTable
}

// LoadTable parses a TOML SID allocation document.
func LoadTable(data []byte) (*Table, error) {
	var file tableFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unable to parse SID table: %w", err)
	}

	t := new(Table)
	t.byPath = make(map[string]*Entry, len(file.Entry))
	t.bySid = make(map[uint32]*Entry, len(file.Entry))
	t.modules = file.Module

	for i := range file.Entry {
		entry := &file.Entry[i]
		if entry.Path == "" || entry.Sid == 0 {
			return nil, errors.New("SID table entry missing path or sid")
		}
		if _, dup := t.bySid[entry.Sid]; dup {
			return nil, fmt.Errorf("duplicate SID %d", entry.Sid)
		}
		if _, dup := t.byPath[entry.Path]; dup {
			return nil, fmt.Errorf("duplicate path %s", entry.Path)
		}
		t.bySid[entry.Sid] = entry
		t.byPath[entry.Path] = entry
		t.entries = append(t.entries, entry)
	}

	sort.Slice(t.entries, func(i, j int) bool {
		return t.entries[i].Sid < t.entries[j].Sid
	})
	return t, nil
}

// SidForPath returns the SID allocated to the specified instance path.
// A missing leading slash is tolerated.
func (t *Table) SidForPath(path string) (uint32, bool) {
	if entry, ok := t.byPath[path]; ok {
		return entry.Sid, true
	}
	if len(path) > 0 && path[0] != '/' {
		if entry, ok := t.byPath["/"+path]; ok {
			return entry.Sid, true
		}
	}
	return 0, false
}

// PathForSid returns the instance path allocated to the specified SID.
func (t *Table) PathForSid(sid uint32) (string, bool) {
	entry, ok := t.bySid[sid]
	if !ok {
		return "", false
	}
	return entry.Path, true
}

// Lookup returns the full entry for the specified path.
func (t *Table) Lookup(path string) (*Entry, bool) {
	entry, ok := t.byPath[path]
	if !ok && len(path) > 0 && path[0] != '/' {
		entry, ok = t.byPath["/"+path]
	}
	return entry, ok
}

// Search returns all entries whose path matches the regular expression,
// ordered by SID.
func (t *Table) Search(pattern string) ([]*Entry, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	var matches []*Entry
	for _, entry := range t.entries {
		if re.MatchString(entry.Path) {
			matches = append(matches, entry)
		}
	}
	return matches, nil
}

// Entries returns all rows ordered by SID.
func (t *Table) Entries() []*Entry {
	return t.entries
}

// ModuleForSid returns the name of the module owning the specified SID.
func (t *Table) ModuleForSid(sid uint32) (string, bool) {
	for _, m := range t.modules {
		if sid >= m.SidStart && sid <= m.SidEnd {
			return m.Name, true
		}
	}
	return "", false
}

// Error definitions
var (
	ErrUnknownPath = errors.New("path not present in SID table")
	ErrNotLeaf     = errors.New("path is not a leaf")
	ErrValueType   = errors.New("value does not match leaf datatype")
	ErrValueRange  = errors.New("value outside leaf datatype range")
)

// Validate performs a client-side type and range check of an outgoing leaf
// value against the table metadata. Paths without metadata pass unchecked.
func (t *Table) Validate(path string, value interface{}) error {
	entry, ok := t.Lookup(path)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPath, path)
	}
	if entry.Kind != KindLeaf && entry.Kind != KindLeafList {
		return fmt.Errorf("%w: %s is a %s", ErrNotLeaf, path, entry.Kind)
	}
	if entry.Datatype == "" {
		return nil
	}
	return checkDatatype(entry.Datatype, value)
}

func checkDatatype(datatype string, value interface{}) error {
	switch datatype {
	case "string", "identityref":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%w: want %s", ErrValueType, datatype)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%w: want boolean", ErrValueType)
		}
	case "binary":
		if _, ok := value.([]byte); !ok {
			return fmt.Errorf("%w: want binary", ErrValueType)
		}
	case "enumeration":
		switch value.(type) {
		case string, uint64, int64, int, uint32:
		default:
			return fmt.Errorf("%w: want enumeration", ErrValueType)
		}
	case "uint8":
		return checkUnsigned(value, math.MaxUint8)
	case "uint16":
		return checkUnsigned(value, math.MaxUint16)
	case "uint32":
		return checkUnsigned(value, math.MaxUint32)
	case "uint64":
		return checkUnsigned(value, math.MaxUint64)
	case "int8":
		return checkSigned(value, math.MinInt8, math.MaxInt8)
	case "int16":
		return checkSigned(value, math.MinInt16, math.MaxInt16)
	case "int32":
		return checkSigned(value, math.MinInt32, math.MaxInt32)
	case "int64":
		return checkSigned(value, math.MinInt64, math.MaxInt64)
	}
	return nil
}

func asUnsigned(value interface{}) (uint64, bool) {
	switch v := value.(type) {
	case uint64:
		return v, true
	case uint32:
		return uint64(v), true
	case uint16:
		return uint64(v), true
	case uint8:
		return uint64(v), true
	case uint:
		return uint64(v), true
	case int:
		if v >= 0 {
			return uint64(v), true
		}
	case int64:
		if v >= 0 {
			return uint64(v), true
		}
	}
	return 0, false
}

func asSigned(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int16:
		return int64(v), true
	case int8:
		return int64(v), true
	case int:
		return int64(v), true
	case uint64:
		if v <= math.MaxInt64 {
			return int64(v), true
		}
	case uint32:
		return int64(v), true
	}
	return 0, false
}

func checkUnsigned(value interface{}, max uint64) error {
	v, ok := asUnsigned(value)
	if !ok {
		return fmt.Errorf("%w: want unsigned integer", ErrValueType)
	}
	if v > max {
		return fmt.Errorf("%w: %d > %d", ErrValueRange, v, max)
	}
	return nil
}

func checkSigned(value interface{}, min int64, max int64) error {
	v, ok := asSigned(value)
	if !ok {
		return fmt.Errorf("%w: want integer", ErrValueType)
	}
	if v < min || v > max {
		return fmt.Errorf("%w: %d outside [%d, %d]", ErrValueRange, v, min, max)
	}
	return nil
}
