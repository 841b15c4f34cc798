package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBasicPlaceholders(t *testing.T) {
	entry := NewEntry()
	entry.SetTitle("example")
	entry.SetUsername("alice")
	entry.SetPassword("hunter2")
	entry.SetURL("https://example.com/login")
	entry.SetNotes("see {URL}")

	assert.Equal(t, "alice", entry.ResolveMultiplePlaceholders("{USERNAME}"))
	assert.Equal(t, "hunter2", entry.ResolveMultiplePlaceholders("{PASSWORD}"))
	assert.Equal(t, "example @ https://example.com/login",
		entry.ResolveMultiplePlaceholders("{TITLE} @ {URL}"))
	assert.Equal(t, "see https://example.com/login", entry.ResolvedNotes())
}

func TestResolvePlaceholderIndirection(t *testing.T) {
	entry := NewEntry()
	entry.SetTitle("{USERNAME}")
	entry.SetUsername("bob")

	assert.Equal(t, "bob", entry.ResolvedTitle())
}

func TestResolveSelfReferenceTerminates(t *testing.T) {
	entry := NewEntry()
	entry.SetTitle("{TITLE}")
	assert.Equal(t, "{TITLE}", entry.ResolvedTitle())
}

func TestResolveCycleTerminates(t *testing.T) {
	entry := NewEntry()
	entry.SetTitle("{USERNAME}")
	entry.SetUsername("{TITLE}")

	// mutual recursion must stop at the depth ceiling, not hang
	result := entry.ResolvedTitle()
	assert.Contains(t, []string{"{TITLE}", "{USERNAME}"}, result)
}

func TestResolveUnknownPlaceholderUntouched(t *testing.T) {
	entry := NewEntry()
	assert.Equal(t, "{WHATEVER}", entry.ResolveMultiplePlaceholders("{WHATEVER}"))
	assert.Equal(t, "no placeholders", entry.ResolveMultiplePlaceholders("no placeholders"))
}

func TestResolveCustomAttributePlaceholder(t *testing.T) {
	entry := NewEntry()
	entry.SetAttribute("Server", "db01.internal", false)

	assert.Equal(t, "db01.internal", entry.ResolveMultiplePlaceholders("{S:Server}"))
	assert.Equal(t, "{S:Missing}", entry.ResolveMultiplePlaceholders("{S:Missing}"))
}

func TestResolveReferenceByUsername(t *testing.T) {
	db := testDatabase(t)

	a := NewEntry()
	a.SetGroup(db.RootGroup())
	a.SetTitle("{REF:T@U:bob}")

	b := NewEntry()
	b.SetGroup(db.RootGroup())
	b.SetTitle("Hello")
	b.SetUsername("bob")

	assert.Equal(t, "Hello", a.ResolvedTitle())
}

func TestResolveReferenceCaseInsensitiveFirstMatch(t *testing.T) {
	db := testDatabase(t)

	sub := NewGroup()
	sub.SetName("sub")
	sub.SetParent(db.RootGroup())

	first := NewEntry()
	first.SetGroup(db.RootGroup())
	first.SetTitle("First")
	first.SetUsername("Bob")

	second := NewEntry()
	second.SetGroup(sub)
	second.SetTitle("Second")
	second.SetUsername("BOB")

	consumer := NewEntry()
	consumer.SetGroup(sub)
	consumer.SetTitle("{ref:t@u:bob}")

	// depth-first, the root-level entry wins
	assert.Equal(t, "First", consumer.ResolvedTitle())
}

func TestBuildReferenceRoundtrip(t *testing.T) {
	db := testDatabase(t)

	target := NewEntry()
	target.SetGroup(db.RootGroup())
	target.SetPassword("s3cret")

	consumer := NewEntry()
	consumer.SetGroup(db.RootGroup())
	consumer.SetPassword(BuildReference(target.UUID(), PasswordKey))

	require.True(t, consumer.Attributes().IsReference(PasswordKey))
	assert.Equal(t, "s3cret", consumer.ResolvedPassword())
}

func TestResolveReferenceTransitive(t *testing.T) {
	db := testDatabase(t)

	base := NewEntry()
	base.SetGroup(db.RootGroup())
	base.SetUsername("carol")
	base.SetPassword("base-pass")

	middle := NewEntry()
	middle.SetGroup(db.RootGroup())
	middle.SetUsername("middle")
	middle.SetPassword(BuildReference(base.UUID(), PasswordKey))

	top := NewEntry()
	top.SetGroup(db.RootGroup())
	top.SetPassword(BuildReference(middle.UUID(), PasswordKey))

	assert.Equal(t, "base-pass", top.ResolvedPassword())
}

func TestResolveDanglingReferenceResolvesEmpty(t *testing.T) {
	db := testDatabase(t)
	entry := NewEntry()
	entry.SetGroup(db.RootGroup())
	entry.SetTitle("{REF:T@U:nobody}")

	assert.Equal(t, "", entry.ResolvedTitle())
	// malformed references are not references and stay verbatim
	assert.Equal(t, "{REF:nonsense}", entry.ResolveMultiplePlaceholders("{REF:nonsense}"))
}

func TestResolveReferenceCycleTerminates(t *testing.T) {
	db := testDatabase(t)

	a := NewEntry()
	a.SetGroup(db.RootGroup())
	a.SetUsername("alice")
	a.SetTitle("{REF:T@U:bob}")

	b := NewEntry()
	b.SetGroup(db.RootGroup())
	b.SetUsername("bob")
	b.SetTitle("{REF:T@U:alice}")

	// mutual references must stop at the depth ceiling, not hang
	assert.Contains(t, a.ResolvedTitle(), "{REF:")
}

func TestResolveURLParts(t *testing.T) {
	entry := NewEntry()
	entry.SetURL("https://user:pw@example.com:8443/path?q=1#frag")

	assert.Equal(t, "https", entry.ResolveMultiplePlaceholders("{URL:SCM}"))
	assert.Equal(t, "https", entry.ResolveMultiplePlaceholders("{URL:SCHEME}"))
	assert.Equal(t, "user:pw@example.com:8443/path?q=1#frag",
		entry.ResolveMultiplePlaceholders("{URL:RMVSCM}"))
	assert.Equal(t, "user:pw@example.com:8443/path?q=1#frag",
		entry.ResolveMultiplePlaceholders("{URL:WITHOUTSCHEME}"))
	assert.Equal(t, "example.com", entry.ResolveMultiplePlaceholders("{URL:HOST}"))
	assert.Equal(t, "8443", entry.ResolveMultiplePlaceholders("{URL:PORT}"))
	assert.Equal(t, "/path", entry.ResolveMultiplePlaceholders("{URL:PATH}"))
	assert.Equal(t, "?q=1", entry.ResolveMultiplePlaceholders("{URL:QUERY}"))
	assert.Equal(t, "#frag", entry.ResolveMultiplePlaceholders("{URL:FRAGMENT}"))
	assert.Equal(t, "user:pw", entry.ResolveMultiplePlaceholders("{URL:USERINFO}"))
	assert.Equal(t, "user", entry.ResolveMultiplePlaceholders("{URL:USERNAME}"))
	assert.Equal(t, "pw", entry.ResolveMultiplePlaceholders("{URL:PASSWORD}"))
}
