package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTree(t *testing.T) (*Database, *Group, *Group) {
	t.Helper()
	db := testDatabase(t)

	email := NewGroup()
	email.SetName("email")
	email.SetParent(db.RootGroup())

	work := NewGroup()
	work.SetName("work")
	work.SetParent(email)

	return db, email, work
}

func TestTriStateInheritance(t *testing.T) {
	_, email, work := buildTree(t)

	// root defaults answer the question
	assert.True(t, work.ResolveSearchingEnabled())
	assert.True(t, work.ResolveAutoTypeEnabled())

	email.SetSearchingEnabled(Disable)
	assert.False(t, work.ResolveSearchingEnabled())

	work.SetSearchingEnabled(Enable)
	assert.True(t, work.ResolveSearchingEnabled())
	assert.False(t, email.ResolveSearchingEnabled())
}

func TestGroupPath(t *testing.T) {
	db, email, work := buildTree(t)

	assert.Equal(t, "/", db.RootGroup().Path())
	assert.Equal(t, "/email", email.Path())
	assert.Equal(t, "/email/work", work.Path())
}

func TestFindGroupByPath(t *testing.T) {
	db, email, work := buildTree(t)

	assert.Equal(t, email, db.RootGroup().FindGroupByPath("email"))
	assert.Equal(t, work, db.RootGroup().FindGroupByPath("/email/work/"))
	assert.Equal(t, db.RootGroup(), db.RootGroup().FindGroupByPath("/"))
	assert.Nil(t, db.RootGroup().FindGroupByPath("email/missing"))
}

func TestFindEntryByPath(t *testing.T) {
	db, _, work := buildTree(t)

	entry := NewEntry()
	entry.SetGroup(work)
	entry.SetTitle("github")

	assert.Equal(t, entry, db.RootGroup().FindEntryByPath("email/work/github"))
	assert.Nil(t, db.RootGroup().FindEntryByPath("email/work/missing"))
}

func TestSetParentRejectsCycle(t *testing.T) {
	_, email, work := buildTree(t)

	// moving a group under its own descendant must not happen
	email.SetParent(work)
	assert.NotEqual(t, work, email.Parent())
}

func TestUsernamesRecursive(t *testing.T) {
	db, email, work := buildTree(t)

	for _, username := range []string{"alice", "bob", "alice", ""} {
		entry := NewEntry()
		entry.SetGroup(work)
		entry.SetUsername(username)
	}
	other := NewEntry()
	other.SetGroup(email)
	other.SetUsername("carol")

	usernames := db.RootGroup().UsernamesRecursive(-1)
	assert.Equal(t, []string{"alice", "bob", "carol"}, usernames)

	assert.Len(t, db.RootGroup().UsernamesRecursive(2), 2)
}

func TestGroupCloneSubtree(t *testing.T) {
	_, email, work := buildTree(t)

	entry := NewEntry()
	entry.SetGroup(work)
	entry.SetTitle("github")

	clone := email.Clone(CloneNewUUID)

	require.Len(t, clone.Children(), 1)
	require.Len(t, clone.Children()[0].Entries(), 1)
	assert.NotEqual(t, email.UUID(), clone.UUID())
	assert.NotEqual(t, entry.UUID(), clone.Children()[0].Entries()[0].UUID())
	assert.Equal(t, "github", clone.Children()[0].Entries()[0].Title())
	assert.Nil(t, clone.Parent())
}

func TestEntriesRecursive(t *testing.T) {
	db, email, work := buildTree(t)

	a := NewEntry()
	a.SetGroup(email)
	b := NewEntry()
	b.SetGroup(work)

	assert.Len(t, db.RootGroup().EntriesRecursive(), 2)
	assert.Len(t, work.EntriesRecursive(), 1)
}
