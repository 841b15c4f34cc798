package core

import (
	"fmt"
	"sort"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// FieldChange describes how one field differs between two entry
// versions.
type FieldChange struct {
	Key  string
	Diff string
}

const protectedMask = "********"

// DiffEntries compares two entry versions attribute by attribute and
// returns a change list in key order. Protected values are masked
// instead of diffed so secrets never reach a terminal.
func DiffEntries(older, newer *Entry) []FieldChange {
	dmp := diffmatchpatch.New()

	keys := make(map[string]struct{})
	for _, key := range older.attributes.Keys() {
		keys[key] = struct{}{}
	}
	for _, key := range newer.attributes.Keys() {
		keys[key] = struct{}{}
	}

	sorted := make([]string, 0, len(keys))
	for key := range keys {
		sorted = append(sorted, key)
	}
	sort.Strings(sorted)

	var changes []FieldChange
	for _, key := range sorted {
		oldValue := older.attributes.Value(key)
		newValue := newer.attributes.Value(key)
		if oldValue == newValue {
			continue
		}

		if older.attributes.IsProtected(key) || newer.attributes.IsProtected(key) {
			changes = append(changes, FieldChange{Key: key, Diff: protectedMask + " -> " + protectedMask + " (changed)"})
			continue
		}

		diffs := dmp.DiffMain(oldValue, newValue, false)
		dmp.DiffCleanupSemantic(diffs)
		changes = append(changes, FieldChange{Key: key, Diff: dmp.DiffPrettyText(diffs)})
	}

	if older.Tags() != newer.Tags() {
		diffs := dmp.DiffMain(older.Tags(), newer.Tags(), false)
		dmp.DiffCleanupSemantic(diffs)
		changes = append(changes, FieldChange{Key: "Tags", Diff: dmp.DiffPrettyText(diffs)})
	}

	oldNames := older.attachments.Names()
	newNames := newer.attachments.Names()
	if !older.attachments.Equals(newer.attachments) {
		changes = append(changes, FieldChange{
			Key:  "Attachments",
			Diff: fmt.Sprintf("%d -> %d attachments", len(oldNames), len(newNames)),
		})
	}
	return changes
}
