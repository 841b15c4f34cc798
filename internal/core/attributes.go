package core

import (
	"regexp"
	"sort"
)

// Default attribute keys present on every entry.
const (
	TitleKey    = "Title"
	UserNameKey = "UserName"
	PasswordKey = "Password"
	URLKey      = "URL"
	NotesKey    = "Notes"
)

// DefaultAttributes lists the keys every entry carries, in display order.
var DefaultAttributes = []string{TitleKey, UserNameKey, PasswordKey, URLKey, NotesKey}

// referenceRegexp matches {REF:<WantedField>@<SearchIn>:<SearchText>}
// field-reference placeholders.
var referenceRegexp = regexp.MustCompile(`(?i)\{REF:(?P<WantedField>[TUPANI])@(?P<SearchIn>[TUPANIO]):(?P<SearchText>[^}]+)\}`)

// ReferenceMatch holds the parsed parts of a reference placeholder.
type ReferenceMatch struct {
	WantedField string
	SearchIn    string
	SearchText  string
}

// MatchReference parses a reference placeholder. Returns nil if str does
// not contain one.
func MatchReference(str string) *ReferenceMatch {
	m := referenceRegexp.FindStringSubmatch(str)
	if m == nil {
		return nil
	}
	return &ReferenceMatch{WantedField: m[1], SearchIn: m[2], SearchText: m[3]}
}

// IsDefaultAttribute reports whether key is one of the five default keys.
func IsDefaultAttribute(key string) bool {
	for _, k := range DefaultAttributes {
		if k == key {
			return true
		}
	}
	return false
}

// Attributes is the key/value map of an entry. Values may be marked
// protected, meaning they are memory-sensitive and should be masked in
// output.
type Attributes struct {
	values    map[string]string
	protected map[string]bool
}

// NewAttributes creates an attribute map with empty default attributes.
// Password is protected by default.
func NewAttributes() *Attributes {
	a := &Attributes{
		values:    make(map[string]string),
		protected: make(map[string]bool),
	}
	for _, key := range DefaultAttributes {
		a.values[key] = ""
	}
	a.protected[PasswordKey] = true
	return a
}

// Value returns the value for key, or "" if absent.
func (a *Attributes) Value(key string) string {
	return a.values[key]
}

// HasKey reports whether key exists.
func (a *Attributes) HasKey(key string) bool {
	_, ok := a.values[key]
	return ok
}

// IsProtected reports whether the value for key is memory-sensitive.
func (a *Attributes) IsProtected(key string) bool {
	return a.protected[key]
}

// Set stores a value and protection flag for key. Returns true if
// anything changed.
func (a *Attributes) Set(key, value string, protect bool) bool {
	oldValue, exists := a.values[key]
	if exists && oldValue == value && a.protected[key] == protect {
		return false
	}
	a.values[key] = value
	if protect {
		a.protected[key] = true
	} else {
		delete(a.protected, key)
	}
	return true
}

// Remove deletes a custom attribute. Default attributes cannot be
// removed. Returns true if the key existed.
func (a *Attributes) Remove(key string) bool {
	if IsDefaultAttribute(key) {
		return false
	}
	if _, ok := a.values[key]; !ok {
		return false
	}
	delete(a.values, key)
	delete(a.protected, key)
	return true
}

// Keys returns all keys: default keys first in canonical order, then
// custom keys sorted.
func (a *Attributes) Keys() []string {
	keys := make([]string, 0, len(a.values))
	keys = append(keys, DefaultAttributes...)
	custom := make([]string, 0, len(a.values))
	for key := range a.values {
		if !IsDefaultAttribute(key) {
			custom = append(custom, key)
		}
	}
	sort.Strings(custom)
	return append(keys, custom...)
}

// CustomKeys returns only the non-default keys, sorted.
func (a *Attributes) CustomKeys() []string {
	custom := make([]string, 0, len(a.values))
	for key := range a.values {
		if !IsDefaultAttribute(key) {
			custom = append(custom, key)
		}
	}
	sort.Strings(custom)
	return custom
}

// IsReference reports whether the value for key contains a reference
// placeholder.
func (a *Attributes) IsReference(key string) bool {
	value, ok := a.values[key]
	if !ok {
		return false
	}
	return referenceRegexp.MatchString(value)
}

// CopyDataFrom replaces this attribute map with a copy of other.
func (a *Attributes) CopyDataFrom(other *Attributes) {
	a.values = make(map[string]string, len(other.values))
	a.protected = make(map[string]bool, len(other.protected))
	for key, value := range other.values {
		a.values[key] = value
	}
	for key, protect := range other.protected {
		a.protected[key] = protect
	}
}

// Clone returns an independent copy.
func (a *Attributes) Clone() *Attributes {
	clone := &Attributes{}
	clone.CopyDataFrom(a)
	return clone
}

// Equals compares values and protection flags.
func (a *Attributes) Equals(other *Attributes) bool {
	if len(a.values) != len(other.values) {
		return false
	}
	for key, value := range a.values {
		otherValue, ok := other.values[key]
		if !ok || otherValue != value {
			return false
		}
		if a.protected[key] != other.protected[key] {
			return false
		}
	}
	return true
}

// Size returns the byte-size estimate used for history trimming.
func (a *Attributes) Size() int {
	size := 0
	for key, value := range a.values {
		size += len(key) + len(value)
	}
	return size
}
