package core

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// TriState is the inheritable on/off setting used for the per-group
// searching and auto-type toggles.
type TriState int

const (
	Inherit TriState = iota
	Enable
	Disable
)

const RecycleBinIconNumber = 43

// Group is a node in the vault tree. It owns its entries and child
// groups.
type Group struct {
	uuid       uuid.UUID
	db         *Database
	parent     *Group
	children   []*Group
	entries    []*Entry
	customData CustomData

	name             string
	notes            string
	iconNumber       int
	customIcon       uuid.UUID
	timeInfo         TimeInfo
	isExpanded       bool
	searchingEnabled TriState
	autoTypeEnabled  TriState

	updateTimeInfo bool
}

// NewGroup creates a detached group with a fresh uuid.
func NewGroup() *Group {
	return &Group{
		uuid:             uuid.New(),
		customData:       make(CustomData),
		iconNumber:       DefaultIconNumber,
		timeInfo:         NewTimeInfo(),
		isExpanded:       true,
		searchingEnabled: Inherit,
		autoTypeEnabled:  Inherit,
		updateTimeInfo:   true,
	}
}

func (g *Group) UUID() uuid.UUID { return g.uuid }

// SetUUID replaces the group uuid. Used by codecs during decode.
func (g *Group) SetUUID(id uuid.UUID) {
	assertf(id != uuid.Nil, "group uuid must not be nil")
	g.uuid = id
}

func (g *Group) Name() string  { return g.name }
func (g *Group) Notes() string { return g.notes }

func (g *Group) SetName(name string) {
	if g.name != name {
		g.name = name
		g.markModified()
	}
}

func (g *Group) SetNotes(notes string) {
	if g.notes != notes {
		g.notes = notes
		g.markModified()
	}
}

func (g *Group) IconNumber() int { return g.iconNumber }

func (g *Group) SetIconNumber(iconNumber int) {
	assertf(iconNumber >= 0, "icon number must not be negative")
	if g.iconNumber != iconNumber || g.customIcon != uuid.Nil {
		g.iconNumber = iconNumber
		g.customIcon = uuid.Nil
		g.markModified()
	}
}

func (g *Group) CustomIcon() uuid.UUID { return g.customIcon }

func (g *Group) SetCustomIcon(id uuid.UUID) {
	if g.customIcon != id {
		g.customIcon = id
		g.iconNumber = 0
		g.markModified()
	}
}

func (g *Group) TimeInfo() TimeInfo { return g.timeInfo }

// SetTimeInfo replaces the lifecycle times without touching the
// modification state.
func (g *Group) SetTimeInfo(timeInfo TimeInfo) {
	g.timeInfo = timeInfo
}

func (g *Group) IsExpanded() bool { return g.isExpanded }

func (g *Group) SetExpanded(expanded bool) {
	// expansion is view state, not content: no modification mark
	g.isExpanded = expanded
}

func (g *Group) CustomData() CustomData { return g.customData }

// SetUpdateTimeInfo toggles modification-time tracking. Codecs disable
// it while restoring persisted state.
func (g *Group) SetUpdateTimeInfo(value bool) { g.updateTimeInfo = value }

func (g *Group) markModified() {
	if g.updateTimeInfo {
		t := now()
		g.timeInfo.LastModificationTime = t
		g.timeInfo.LastAccessTime = t
	}
	if g.db != nil {
		g.db.MarkModified()
	}
}

// SearchingEnabled returns the raw tri-state flag.
func (g *Group) SearchingEnabled() TriState { return g.searchingEnabled }

func (g *Group) SetSearchingEnabled(state TriState) {
	if g.searchingEnabled != state {
		g.searchingEnabled = state
		g.markModified()
	}
}

// AutoTypeEnabled returns the raw tri-state flag.
func (g *Group) AutoTypeEnabled() TriState { return g.autoTypeEnabled }

func (g *Group) SetAutoTypeEnabled(state TriState) {
	if g.autoTypeEnabled != state {
		g.autoTypeEnabled = state
		g.markModified()
	}
}

// ResolveSearchingEnabled walks up the tree until a group answers the
// question. The root defaults to enabled.
func (g *Group) ResolveSearchingEnabled() bool {
	switch g.searchingEnabled {
	case Enable:
		return true
	case Disable:
		return false
	}
	if g.parent == nil {
		return true
	}
	return g.parent.ResolveSearchingEnabled()
}

// ResolveAutoTypeEnabled walks up the tree until a group answers the
// question. The root defaults to enabled.
func (g *Group) ResolveAutoTypeEnabled() bool {
	switch g.autoTypeEnabled {
	case Enable:
		return true
	case Disable:
		return false
	}
	if g.parent == nil {
		return true
	}
	return g.parent.ResolveAutoTypeEnabled()
}

func (g *Group) Database() *Database { return g.db }
func (g *Group) Parent() *Group      { return g.parent }

// setDatabase attaches the whole subtree to db.
func (g *Group) setDatabase(db *Database) {
	g.db = db
	for _, child := range g.children {
		child.setDatabase(db)
	}
}

// Children returns the direct child groups.
func (g *Group) Children() []*Group { return g.children }

// Entries returns the entries owned directly by this group.
func (g *Group) Entries() []*Entry { return g.entries }

// SetParent moves the group under parent. Moving between databases
// records a tombstone in the source database for the whole subtree.
func (g *Group) SetParent(parent *Group) {
	assertf(parent != nil, "group parent must not be nil")
	if parent == nil || g.parent == parent {
		return
	}
	if parent == g || parent.IsDescendantOf(g) {
		// refusing the move keeps the tree a tree
		return
	}

	if g.parent != nil {
		g.parent.removeChild(g)
		if oldDB := g.db; oldDB != nil && oldDB != parent.db {
			g.addSubtreeTombstones(oldDB)
		}
	}

	g.parent = parent
	g.setDatabase(parent.db)
	parent.children = append(parent.children, g)

	if g.updateTimeInfo {
		g.timeInfo.LocationChanged = now()
	}
	parent.markModified()
}

func (g *Group) addSubtreeTombstones(db *Database) {
	for _, entry := range g.entries {
		db.AddDeletedObject(entry.uuid)
	}
	for _, child := range g.children {
		child.addSubtreeTombstones(db)
	}
	db.AddDeletedObject(g.uuid)
}

func (g *Group) removeChild(child *Group) {
	for i, c := range g.children {
		if c == child {
			g.children = append(g.children[:i], g.children[i+1:]...)
			return
		}
	}
}

// IsDescendantOf reports whether ancestor lies on the path to the root.
func (g *Group) IsDescendantOf(ancestor *Group) bool {
	for p := g.parent; p != nil; p = p.parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// IsRecycled reports whether the group is the recycle bin or sits below
// it.
func (g *Group) IsRecycled() bool {
	if g.db == nil {
		return false
	}
	bin := g.db.Metadata().RecycleBin()
	if bin == nil {
		return false
	}
	return g == bin || g.IsDescendantOf(bin)
}

// addEntry attaches an entry to this group's list.
func (g *Group) addEntry(entry *Entry) {
	g.entries = append(g.entries, entry)
	g.markModified()
}

// removeEntry detaches an entry from this group's list.
func (g *Group) removeEntry(entry *Entry) {
	for i, e := range g.entries {
		if e == entry {
			g.entries = append(g.entries[:i], g.entries[i+1:]...)
			g.markModified()
			return
		}
	}
}

// Delete destroys the group and everything below it. Every removed
// group and entry uuid is tombstoned.
func (g *Group) Delete() {
	db := g.db
	if g.parent != nil {
		g.parent.removeChild(g)
		g.parent = nil
	}
	g.deleteSubtree(db)
	if db != nil {
		db.MarkModified()
	}
}

func (g *Group) deleteSubtree(db *Database) {
	for _, entry := range g.entries {
		entry.group = nil
		entry.history = nil
		if db != nil {
			db.AddDeletedObject(entry.uuid)
		}
	}
	g.entries = nil
	for _, child := range g.children {
		child.parent = nil
		child.deleteSubtree(db)
	}
	g.children = nil
	if db != nil {
		db.AddDeletedObject(g.uuid)
	}
	g.db = nil
}

// EntriesRecursive collects the entries of the whole subtree,
// depth-first.
func (g *Group) EntriesRecursive() []*Entry {
	entries := make([]*Entry, 0, len(g.entries))
	entries = append(entries, g.entries...)
	for _, child := range g.children {
		entries = append(entries, child.EntriesRecursive()...)
	}
	return entries
}

// GroupsRecursive collects the subtree including the receiver,
// depth-first.
func (g *Group) GroupsRecursive() []*Group {
	groups := []*Group{g}
	for _, child := range g.children {
		groups = append(groups, child.GroupsRecursive()...)
	}
	return groups
}

// FindEntryByUUID searches the subtree for an entry, depth-first.
func (g *Group) FindEntryByUUID(id uuid.UUID) *Entry {
	for _, entry := range g.entries {
		if entry.uuid == id {
			return entry
		}
	}
	for _, child := range g.children {
		if entry := child.FindEntryByUUID(id); entry != nil {
			return entry
		}
	}
	return nil
}

// FindEntryByPath resolves a slash-separated path of group names ending
// in an entry title, relative to the receiver.
func (g *Group) FindEntryByPath(path string) *Entry {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return nil
	}
	group := g
	for _, part := range parts[:len(parts)-1] {
		group = group.FindChildByName(part)
		if group == nil {
			return nil
		}
	}
	title := parts[len(parts)-1]
	for _, entry := range group.entries {
		if entry.Title() == title {
			return entry
		}
	}
	return nil
}

// FindGroupByUUID searches the subtree including the receiver.
func (g *Group) FindGroupByUUID(id uuid.UUID) *Group {
	if g.uuid == id {
		return g
	}
	for _, child := range g.children {
		if found := child.FindGroupByUUID(id); found != nil {
			return found
		}
	}
	return nil
}

// FindGroupByPath resolves a slash-separated path of group names
// relative to the receiver. The empty path resolves to the receiver.
func (g *Group) FindGroupByPath(path string) *Group {
	group := g
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			continue
		}
		group = group.FindChildByName(part)
		if group == nil {
			return nil
		}
	}
	return group
}

// FindChildByName returns the first direct child with the given name.
func (g *Group) FindChildByName(name string) *Group {
	for _, child := range g.children {
		if child.name == name {
			return child
		}
	}
	return nil
}

// UsernamesRecursive returns the distinct usernames used in the subtree,
// sorted, capped at max (-1 for no cap).
func (g *Group) UsernamesRecursive(max int) []string {
	seen := make(map[string]struct{})
	for _, entry := range g.EntriesRecursive() {
		if username := entry.Username(); username != "" {
			seen[username] = struct{}{}
		}
	}
	usernames := make([]string, 0, len(seen))
	for username := range seen {
		usernames = append(usernames, username)
	}
	sort.Strings(usernames)
	if max > -1 && len(usernames) > max {
		usernames = usernames[:max]
	}
	return usernames
}

// Path returns the slash-separated path from the root to this group,
// excluding the root name.
func (g *Group) Path() string {
	if g.parent == nil {
		return "/"
	}
	parts := []string{}
	for p := g; p.parent != nil; p = p.parent {
		parts = append([]string{p.name}, parts...)
	}
	return "/" + strings.Join(parts, "/")
}

// Clone returns a deep copy of the group subtree. Entry clone flags
// apply to every cloned entry; cloned groups always get fresh uuids
// when entryFlags includes CloneNewUUID.
func (g *Group) Clone(entryFlags CloneFlags) *Group {
	clone := NewGroup()
	clone.updateTimeInfo = false
	if entryFlags&CloneNewUUID == 0 {
		clone.uuid = g.uuid
	}
	clone.name = g.name
	clone.notes = g.notes
	clone.iconNumber = g.iconNumber
	clone.customIcon = g.customIcon
	clone.isExpanded = g.isExpanded
	clone.searchingEnabled = g.searchingEnabled
	clone.autoTypeEnabled = g.autoTypeEnabled
	clone.customData = g.customData.Clone()
	if clone.customData == nil {
		clone.customData = make(CustomData)
	}
	if entryFlags&CloneResetTimeInfo != 0 {
		clone.timeInfo = NewTimeInfo()
	} else {
		clone.timeInfo = g.timeInfo
	}

	for _, entry := range g.entries {
		entryClone := entry.Clone(entryFlags)
		entryClone.group = clone
		clone.entries = append(clone.entries, entryClone)
	}
	for _, child := range g.children {
		childClone := child.Clone(entryFlags)
		childClone.parent = clone
		clone.children = append(clone.children, childClone)
	}

	clone.updateTimeInfo = true
	return clone
}
