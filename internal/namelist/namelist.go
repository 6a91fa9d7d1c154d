// Package namelist reads Fortran namelist files such as the params.nml of a
// MUSIC run.
//
// Group and key names are case-insensitive and stored lower-cased. Values
// are kept as typed scalars; arrays, repeat counts (3*0.0) and indexed
// assignments (bc1(2) = 'periodic') are supported.
package namelist

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrMissing is returned when a group or key does not exist.
	ErrMissing = errors.New("namelist: missing entry")
	// ErrType is returned when a value exists but has the wrong kind.
	ErrType = errors.New("namelist: wrong value type")
)

// Kind identifies the type of a Scalar.
type Kind int

const (
	Null Kind = iota
	String
	Int
	Float
	Bool
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Int:
		return "integer"
	case Float:
		return "real"
	case Bool:
		return "logical"
	}
	return "null"
}

// Scalar is a single namelist value.
type Scalar struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
	Bool  bool
}

// Value is the list of scalars assigned to a key. Scalar assignments are
// one-element values.
type Value []Scalar

// Group is one &name ... / block.
type Group struct {
	Name   string
	keys   []string
	values map[string]Value
}

// Keys returns the keys of the group in file order.
func (g *Group) Keys() []string {
	out := make([]string, len(g.keys))
	copy(out, g.keys)
	return out
}

// Get returns the value of key, or false when absent.
func (g *Group) Get(key string) (Value, bool) {
	v, ok := g.values[strings.ToLower(key)]
	return v, ok
}

func (g *Group) set(key string, index int, vals Value) {
	cur, ok := g.values[key]
	if !ok {
		g.keys = append(g.keys, key)
	}
	if index <= 0 {
		g.values[key] = vals
		return
	}
	need := index - 1 + len(vals)
	for len(cur) < need {
		cur = append(cur, Scalar{})
	}
	copy(cur[index-1:], vals)
	g.values[key] = cur
}

// Namelist is a parsed namelist file.
type Namelist struct {
	order  []string
	groups map[string]*Group
}

// Groups returns the group names in file order.
func (n *Namelist) Groups() []string {
	out := make([]string, len(n.order))
	copy(out, n.order)
	return out
}

// Group returns the named group.
func (n *Namelist) Group(name string) (*Group, error) {
	g, ok := n.groups[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: group %q", ErrMissing, name)
	}
	return g, nil
}

// Get returns the value of group/key.
func (n *Namelist) Get(group, key string) (Value, error) {
	g, err := n.Group(group)
	if err != nil {
		return nil, err
	}
	v, ok := g.Get(key)
	if !ok || len(v) == 0 {
		return nil, fmt.Errorf("%w: %s%%%s", ErrMissing, group, key)
	}
	return v, nil
}

// Has reports whether group/key is set.
func (n *Namelist) Has(group, key string) bool {
	_, err := n.Get(group, key)
	return err == nil
}

func (n *Namelist) first(group, key string) (Scalar, error) {
	v, err := n.Get(group, key)
	if err != nil {
		return Scalar{}, err
	}
	return v[0], nil
}

// String returns the first element of group/key as a string.
func (n *Namelist) String(group, key string) (string, error) {
	s, err := n.first(group, key)
	if err != nil {
		return "", err
	}
	if s.Kind != String {
		return "", fmt.Errorf("%w: %s%%%s is %s", ErrType, group, key, s.Kind)
	}
	return s.Str, nil
}

// Int returns the first element of group/key as an integer.
func (n *Namelist) Int(group, key string) (int, error) {
	s, err := n.first(group, key)
	if err != nil {
		return 0, err
	}
	if s.Kind != Int {
		return 0, fmt.Errorf("%w: %s%%%s is %s", ErrType, group, key, s.Kind)
	}
	return int(s.Int), nil
}

// Float returns the first element of group/key as a real. Integers are
// promoted.
func (n *Namelist) Float(group, key string) (float64, error) {
	s, err := n.first(group, key)
	if err != nil {
		return 0, err
	}
	switch s.Kind {
	case Float:
		return s.Float, nil
	case Int:
		return float64(s.Int), nil
	}
	return 0, fmt.Errorf("%w: %s%%%s is %s", ErrType, group, key, s.Kind)
}

// Bool returns the first element of group/key as a logical.
func (n *Namelist) Bool(group, key string) (bool, error) {
	s, err := n.first(group, key)
	if err != nil {
		return false, err
	}
	if s.Kind != Bool {
		return false, fmt.Errorf("%w: %s%%%s is %s", ErrType, group, key, s.Kind)
	}
	return s.Bool, nil
}

// Strings returns all elements of group/key as strings. Null elements are
// returned as empty strings.
func (n *Namelist) Strings(group, key string) ([]string, error) {
	v, err := n.Get(group, key)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(v))
	for i, s := range v {
		switch s.Kind {
		case String:
			out[i] = s.Str
		case Null:
		default:
			return nil, fmt.Errorf("%w: %s%%%s(%d) is %s", ErrType, group, key, i+1, s.Kind)
		}
	}
	return out, nil
}

// StringOr is String with a fallback for missing entries. Type errors still
// yield the fallback.
func (n *Namelist) StringOr(group, key, def string) string {
	if v, err := n.String(group, key); err == nil {
		return v
	}
	return def
}

// IntOr is Int with a fallback.
func (n *Namelist) IntOr(group, key string, def int) int {
	if v, err := n.Int(group, key); err == nil {
		return v
	}
	return def
}

// FloatOr is Float with a fallback.
func (n *Namelist) FloatOr(group, key string, def float64) float64 {
	if v, err := n.Float(group, key); err == nil {
		return v
	}
	return def
}

// BoolOr is Bool with a fallback.
func (n *Namelist) BoolOr(group, key string, def bool) bool {
	if v, err := n.Bool(group, key); err == nil {
		return v
	}
	return def
}

// ParseFile parses the namelist file at path.
func ParseFile(path string) (*Namelist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	nml, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return nml, nil
}

// Render writes n in canonical namelist syntax. Groups are written in file
// order, keys in file order.
func (n *Namelist) Render(w io.Writer) error {
	for _, name := range n.order {
		g := n.groups[name]
		if _, err := fmt.Fprintf(w, "&%s\n", name); err != nil {
			return err
		}
		for _, key := range g.keys {
			if _, err := fmt.Fprintf(w, "    %s = %s\n", key, renderValue(g.values[key])); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, "/"); err != nil {
			return err
		}
	}
	return nil
}

// renderValue joins the literals of v, writing runs of nulls as "n*".
func renderValue(v Value) string {
	var parts []string
	for i := 0; i < len(v); {
		if v[i].Kind != Null {
			parts = append(parts, v[i].literal())
			i++
			continue
		}
		j := i
		for j < len(v) && v[j].Kind == Null {
			j++
		}
		parts = append(parts, fmt.Sprintf("%d*", j-i))
		i = j
	}
	return strings.Join(parts, ", ")
}

func (s Scalar) literal() string {
	switch s.Kind {
	case String:
		return "'" + strings.ReplaceAll(s.Str, "'", "''") + "'"
	case Int:
		return strconv.FormatInt(s.Int, 10)
	case Float:
		out := strconv.FormatFloat(s.Float, 'g', -1, 64)
		if !strings.ContainsAny(out, ".eEnN") {
			out += ".0"
		}
		return out
	case Bool:
		if s.Bool {
			return ".true."
		}
		return ".false."
	}
	return ""
}

// Flatten returns a sorted "group%key" to display-string map, used for
// human-readable summaries.
func (n *Namelist) Flatten() map[string]string {
	out := make(map[string]string)
	for _, name := range n.order {
		g := n.groups[name]
		for _, key := range g.keys {
			v := g.values[key]
			parts := make([]string, len(v))
			for i, s := range v {
				if s.Kind == String {
					parts[i] = s.Str
				} else {
					parts[i] = s.literal()
				}
			}
			out[name+"%"+key] = strings.Join(parts, ", ")
		}
	}
	return out
}

// SortedKeys returns the keys of a Flatten map in order.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
