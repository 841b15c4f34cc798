package format

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keywarden/keywarden/internal/core"
	"github.com/keywarden/keywarden/internal/crypto"
	"github.com/keywarden/keywarden/internal/kdf"
	"github.com/keywarden/keywarden/internal/keys"
	"github.com/keywarden/keywarden/internal/totp"
)

func fastKdf(t *testing.T) *kdf.Argon2 {
	t.Helper()
	k, err := kdf.NewArgon2()
	require.NoError(t, err)
	k.Iterations = 1
	k.Memory = 64
	k.Parallelism = 1
	return k
}

func passwordKey(password string) *keys.CompositeKey {
	key := keys.NewCompositeKey()
	key.AddKey(keys.NewPasswordKey([]byte(password)))
	return key
}

func lockedDatabase(t *testing.T, password string) *core.Database {
	t.Helper()
	db, err := core.NewDatabase()
	require.NoError(t, err)
	db.SetKdf(fastKdf(t))
	require.NoError(t, db.SetKey(passwordKey(password)))
	db.Initialize()
	return db
}

// candidate prepares a database holding an underived key, the state the
// open path hands to Decode.
func candidate(t *testing.T, password string) *core.Database {
	t.Helper()
	db, err := core.NewDatabase()
	require.NoError(t, err)
	require.NoError(t, db.SetKeyWithOptions(passwordKey(password), false, false, false))
	return db
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	db := lockedDatabase(t, "master")
	db.Metadata().SetName("personal")
	db.Metadata().SetDescription("private vault")
	db.Metadata().SetHistoryMaxItems(5)

	group := core.NewGroup()
	group.SetName("email")
	group.SetNotes("providers")
	group.SetSearchingEnabled(core.Disable)
	group.SetParent(db.RootGroup())

	entry := core.NewEntry()
	entry.SetGroup(group)
	entry.SetTitle("mail")
	entry.SetUsername("alice")
	entry.SetPassword("hunter2")
	entry.SetURL("https://mail.example.com")
	entry.SetTags("work,personal")
	entry.SetAttribute("PIN", "1234", true)
	entry.SetAttachment("note.txt", []byte("attached"))
	entry.SetTotp(&totp.Settings{Key: "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ", Digits: 6, Period: 30})

	entry.BeginUpdate()
	entry.SetPassword("hunter3")
	require.True(t, entry.EndUpdate())

	recycled := core.NewEntry()
	recycled.SetGroup(db.RootGroup())
	db.RecycleEntry(recycled)

	gone := core.NewEntry()
	gone.SetGroup(db.RootGroup())
	goneID := gone.UUID()
	gone.Delete()

	var buf bytes.Buffer
	require.NoError(t, New().Encode(&buf, db))

	loaded := candidate(t, "master")
	require.NoError(t, New().Decode(bytes.NewReader(buf.Bytes()), loaded))

	assert.Equal(t, "personal", loaded.Metadata().Name())
	assert.Equal(t, "private vault", loaded.Metadata().Description())
	assert.Equal(t, 5, loaded.Metadata().HistoryMaxItems())

	loadedGroup := loaded.RootGroup().FindGroupByUUID(group.UUID())
	require.NotNil(t, loadedGroup)
	assert.Equal(t, "email", loadedGroup.Name())
	assert.Equal(t, core.Disable, loadedGroup.SearchingEnabled())

	loadedEntry := loaded.FindEntryByUUID(entry.UUID())
	require.NotNil(t, loadedEntry)
	assert.Equal(t, "mail", loadedEntry.Title())
	assert.Equal(t, "alice", loadedEntry.Username())
	assert.Equal(t, "hunter3", loadedEntry.Password())
	assert.True(t, loadedEntry.Attributes().IsProtected("PIN"))
	assert.Equal(t, "1234", loadedEntry.Attribute("PIN"))
	assert.Equal(t, []byte("attached"), loadedEntry.Attachments().Value("note.txt"))
	assert.Equal(t, "work,personal", loadedEntry.Tags())
	assert.True(t, loadedEntry.HasTotp())
	assert.True(t, loadedEntry.TimeInfo().Equals(entry.TimeInfo()))

	require.Len(t, loadedEntry.History(), 1)
	assert.Equal(t, "hunter2", loadedEntry.History()[0].Password())

	bin := loaded.RecycleBin()
	require.NotNil(t, bin)
	assert.Equal(t, core.RecycleBinName, bin.Name())
	loadedRecycled := loaded.FindEntryByUUID(recycled.UUID())
	require.NotNil(t, loadedRecycled)
	assert.True(t, loadedRecycled.IsRecycled())

	assert.True(t, loaded.ContainsDeletedObject(goneID))

	// decoding leaves a usable transformed key for the next save
	assert.NotNil(t, loaded.TransformedDatabaseKey())
	var out bytes.Buffer
	assert.NoError(t, New().Encode(&out, loaded))
}

func TestDecodeWrongPassword(t *testing.T) {
	db := lockedDatabase(t, "master")

	var buf bytes.Buffer
	require.NoError(t, New().Encode(&buf, db))

	loaded := candidate(t, "not the password")
	err := New().Decode(bytes.NewReader(buf.Bytes()), loaded)

	var formatErr *core.FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.ErrorIs(t, err, crypto.ErrAuthFailed)
}

func TestDecodeTamperedPayload(t *testing.T) {
	db := lockedDatabase(t, "master")

	var buf bytes.Buffer
	require.NoError(t, New().Encode(&buf, db))

	raw := buf.Bytes()
	// flip a bit inside the sealed payload (past the clear header)
	raw[len(raw)-20] ^= 0x01

	loaded := candidate(t, "master")
	err := New().Decode(bytes.NewReader(raw), loaded)
	assert.Error(t, err)
}

func TestDecodeGarbage(t *testing.T) {
	loaded := candidate(t, "master")
	err := New().Decode(bytes.NewReader([]byte("not json at all")), loaded)

	var formatErr *core.FormatError
	assert.ErrorAs(t, err, &formatErr)
}

func TestDecodeWithoutKey(t *testing.T) {
	db := lockedDatabase(t, "master")
	var buf bytes.Buffer
	require.NoError(t, New().Encode(&buf, db))

	bare, err := core.NewDatabase()
	require.NoError(t, err)
	assert.ErrorIs(t, New().Decode(bytes.NewReader(buf.Bytes()), bare), core.ErrNoKey)
}

func TestEncodeRequiresTransformedKey(t *testing.T) {
	db := candidate(t, "master")
	var buf bytes.Buffer
	assert.ErrorIs(t, New().Encode(&buf, db), core.ErrKeyNotTransformed)
}

// sealPayload wraps a hand-built payload in a valid container so decode
// failures past decryption can be exercised.
func sealPayload(t *testing.T, body payload, k *kdf.Argon2, password string) []byte {
	t.Helper()
	transformed, err := passwordKey(password).Transform(k)
	require.NoError(t, err)

	plaintext, err := json.Marshal(body)
	require.NoError(t, err)
	sealed, err := crypto.NewEncryptor(transformed).Encrypt(plaintext)
	require.NoError(t, err)

	seed, err := crypto.GenerateRandom(core.MasterSeedSize)
	require.NoError(t, err)
	raw, err := json.Marshal(&envelope{
		Magic:      Magic,
		Version:    Version,
		Kdf:        k,
		MasterSeed: seed,
		Payload:    sealed,
	})
	require.NoError(t, err)
	return raw
}

func TestDecodeBadTombstoneLeavesDatabaseUntouched(t *testing.T) {
	root := core.NewGroup()
	root.SetName("Imported")
	body := payload{
		Meta:           metaRecord{Name: "imported vault"},
		Root:           encodeGroup(root),
		DeletedObjects: []deletedRecord{{UUID: "not-a-uuid"}},
	}
	raw := sealPayload(t, body, fastKdf(t), "master")

	loaded := candidate(t, "master")
	err := New().Decode(bytes.NewReader(raw), loaded)

	var formatErr *core.FormatError
	require.ErrorAs(t, err, &formatErr)
	// a failed open must not leave a half-populated database behind
	assert.Equal(t, "", loaded.Metadata().Name())
	assert.Equal(t, "Root", loaded.RootGroup().Name())
	assert.Empty(t, loaded.DeletedObjects())
	assert.Nil(t, loaded.TransformedDatabaseKey())
}

func TestDecodeBadIconLeavesDatabaseUntouched(t *testing.T) {
	root := core.NewGroup()
	root.SetName("Imported")
	body := payload{
		Meta: metaRecord{
			Name:        "imported vault",
			CustomIcons: []iconRecord{{UUID: "garbage", Data: []byte{1}}},
		},
		Root: encodeGroup(root),
	}
	raw := sealPayload(t, body, fastKdf(t), "master")

	loaded := candidate(t, "master")
	err := New().Decode(bytes.NewReader(raw), loaded)

	var formatErr *core.FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, "", loaded.Metadata().Name())
	assert.Equal(t, "Root", loaded.RootGroup().Name())
	assert.Nil(t, loaded.TransformedDatabaseKey())
}
