package core

import (
	"bytes"
	"sort"
	"strings"
)

// Attachments holds named binary attachments of an entry.
type Attachments struct {
	data map[string][]byte
}

// NewAttachments creates an empty attachment set.
func NewAttachments() *Attachments {
	return &Attachments{data: make(map[string][]byte)}
}

// Set stores an attachment. The data is copied.
func (a *Attachments) Set(name string, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	a.data[name] = cp
}

// Value returns the attachment contents, or nil if absent.
func (a *Attachments) Value(name string) []byte {
	return a.data[name]
}

// Remove deletes an attachment. Returns true if it existed.
func (a *Attachments) Remove(name string) bool {
	if _, ok := a.data[name]; !ok {
		return false
	}
	delete(a.data, name)
	return true
}

// Names returns the attachment names, sorted.
func (a *Attachments) Names() []string {
	names := make([]string, 0, len(a.data))
	for name := range a.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CopyDataFrom replaces this set with a deep copy of other.
func (a *Attachments) CopyDataFrom(other *Attachments) {
	a.data = make(map[string][]byte, len(other.data))
	for name, data := range other.data {
		cp := make([]byte, len(data))
		copy(cp, data)
		a.data[name] = cp
	}
}

// Clone returns an independent copy.
func (a *Attachments) Clone() *Attachments {
	clone := &Attachments{}
	clone.CopyDataFrom(a)
	return clone
}

// Equals compares names and contents.
func (a *Attachments) Equals(other *Attachments) bool {
	if len(a.data) != len(other.data) {
		return false
	}
	for name, data := range a.data {
		otherData, ok := other.data[name]
		if !ok || !bytes.Equal(data, otherData) {
			return false
		}
	}
	return true
}

// Size returns the byte-size estimate used for history trimming.
func (a *Attachments) Size() int {
	size := 0
	for name, data := range a.data {
		size += len(name) + len(data)
	}
	return size
}

// AutoTypeAssociation maps a window title pattern to a keystroke sequence.
type AutoTypeAssociation struct {
	Window   string `json:"window"`
	Sequence string `json:"sequence"`
}

// AutoTypeAssociations is the ordered association list of an entry.
type AutoTypeAssociations []AutoTypeAssociation

// Size returns the byte-size estimate used for history trimming.
func (a AutoTypeAssociations) Size() int {
	size := 0
	for _, assoc := range a {
		size += len(assoc.Window) + len(assoc.Sequence)
	}
	return size
}

// Clone returns an independent copy.
func (a AutoTypeAssociations) Clone() AutoTypeAssociations {
	if a == nil {
		return nil
	}
	clone := make(AutoTypeAssociations, len(a))
	copy(clone, a)
	return clone
}

// Equals compares the lists element-wise.
func (a AutoTypeAssociations) Equals(other AutoTypeAssociations) bool {
	if len(a) != len(other) {
		return false
	}
	for i := range a {
		if a[i] != other[i] {
			return false
		}
	}
	return true
}

// CustomData is the free-form string map attached to an entry.
type CustomData map[string]string

// Size returns the byte-size estimate used for history trimming.
func (c CustomData) Size() int {
	size := 0
	for key, value := range c {
		size += len(key) + len(value)
	}
	return size
}

// Clone returns an independent copy.
func (c CustomData) Clone() CustomData {
	if c == nil {
		return nil
	}
	clone := make(CustomData, len(c))
	for key, value := range c {
		clone[key] = value
	}
	return clone
}

// Equals compares keys and values.
func (c CustomData) Equals(other CustomData) bool {
	if len(c) != len(other) {
		return false
	}
	for key, value := range c {
		otherValue, ok := other[key]
		if !ok || otherValue != value {
			return false
		}
	}
	return true
}

// tagsSize sums the byte size of the individual tags in a tag string,
// split on the common delimiters.
func tagsSize(tags string) int {
	size := 0
	for _, tag := range strings.FieldsFunc(tags, func(r rune) bool {
		return r == ',' || r == ';' || r == ':'
	}) {
		size += len(tag)
	}
	return size
}
