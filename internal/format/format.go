// Package format implements the on-disk container: a clear JSON header
// carrying the format version, KDF parameters, and master seed, plus an
// AES-256-GCM sealed JSON payload holding the actual vault content.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/keywarden/keywarden/internal/core"
	"github.com/keywarden/keywarden/internal/crypto"
	"github.com/keywarden/keywarden/internal/kdf"
	"github.com/keywarden/keywarden/internal/totp"
)

const (
	Magic   = "KWDB"
	Version = 1
)

// Codec reads and writes the container. It implements core.Codec.
type Codec struct{}

func New() *Codec { return &Codec{} }

type envelope struct {
	Magic      string      `json:"magic"`
	Version    int         `json:"version"`
	Kdf        *kdf.Argon2 `json:"kdf"`
	MasterSeed []byte      `json:"masterSeed"`
	Payload    []byte      `json:"payload"`
}

type payload struct {
	Meta           metaRecord       `json:"meta"`
	Root           groupRecord      `json:"root"`
	DeletedObjects []deletedRecord  `json:"deletedObjects,omitempty"`
}

type metaRecord struct {
	Name              string       `json:"name"`
	Description       string       `json:"description,omitempty"`
	DefaultUserName   string       `json:"defaultUserName,omitempty"`
	RecycleBinEnabled bool         `json:"recycleBinEnabled"`
	RecycleBinUUID    string       `json:"recycleBinUuid,omitempty"`
	HistoryMaxItems   int          `json:"historyMaxItems"`
	HistoryMaxSize    int          `json:"historyMaxSize"`
	MasterKeyChanged  time.Time    `json:"masterKeyChanged"`
	CustomIcons       []iconRecord `json:"customIcons,omitempty"`
	CustomData        core.CustomData `json:"customData,omitempty"`
}

type iconRecord struct {
	UUID string `json:"uuid"`
	Data []byte `json:"data"`
}

type deletedRecord struct {
	UUID         string    `json:"uuid"`
	DeletionTime time.Time `json:"deletionTime"`
}

type groupRecord struct {
	UUID             string          `json:"uuid"`
	Name             string          `json:"name"`
	Notes            string          `json:"notes,omitempty"`
	IconNumber       int             `json:"iconNumber"`
	CustomIcon       string          `json:"customIcon,omitempty"`
	TimeInfo         core.TimeInfo   `json:"times"`
	IsExpanded       bool            `json:"isExpanded"`
	SearchingEnabled int             `json:"searchingEnabled"`
	AutoTypeEnabled  int             `json:"autoTypeEnabled"`
	CustomData       core.CustomData `json:"customData,omitempty"`
	Entries          []entryRecord   `json:"entries,omitempty"`
	Children         []groupRecord   `json:"children,omitempty"`
}

type entryRecord struct {
	UUID            string                    `json:"uuid"`
	Attributes      []attributeRecord         `json:"attributes"`
	Attachments     map[string][]byte         `json:"attachments,omitempty"`
	AutoType        core.AutoTypeAssociations `json:"autoType,omitempty"`
	CustomData      core.CustomData           `json:"customData,omitempty"`
	IconNumber      int                       `json:"iconNumber"`
	CustomIcon      string                    `json:"customIcon,omitempty"`
	Tags            string                    `json:"tags,omitempty"`
	AutoTypeEnabled bool                      `json:"autoTypeEnabled"`
	TimeInfo        core.TimeInfo             `json:"times"`
	Totp            *totp.Settings            `json:"totp,omitempty"`
	History         []entryRecord             `json:"history,omitempty"`
}

type attributeRecord struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Protected bool   `json:"protected,omitempty"`
}

// Encode seals the database into the container and writes it to w. The
// transformed key must already be derived.
func (c *Codec) Encode(w io.Writer, db *core.Database) error {
	transformed := db.TransformedDatabaseKey()
	if transformed == nil {
		return core.ErrKeyNotTransformed
	}
	argon, ok := db.Kdf().(*kdf.Argon2)
	if !ok {
		return &core.FormatError{Reason: fmt.Sprintf("unsupported kdf %T", db.Kdf())}
	}

	body := payload{
		Meta:           encodeMeta(db.Metadata()),
		Root:           encodeGroup(db.RootGroup()),
		DeletedObjects: encodeDeleted(db.DeletedObjects()),
	}

	plaintext, err := json.Marshal(body)
	if err != nil {
		return &core.FormatError{Reason: "payload marshal failed", Err: err}
	}
	defer crypto.ClearBytes(plaintext)

	enc := crypto.NewEncryptor(transformed)
	sealed, err := enc.Encrypt(plaintext)
	if err != nil {
		return &core.FormatError{Reason: "encryption failed", Err: err}
	}

	env := envelope{
		Magic:      Magic,
		Version:    Version,
		Kdf:        argon,
		MasterSeed: db.MasterSeed(),
		Payload:    sealed,
	}
	if err := json.NewEncoder(w).Encode(&env); err != nil {
		return &core.WriteError{Err: err}
	}
	return nil
}

// Decode reads the container from r, derives the transformed key from
// the candidate composite key already set on db, and restores the vault.
func (c *Codec) Decode(r io.Reader, db *core.Database) error {
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return &core.FormatError{Reason: "not a database file", Err: err}
	}
	if env.Magic != Magic {
		return &core.FormatError{Reason: "bad magic"}
	}
	if env.Version != Version {
		return &core.FormatError{Reason: fmt.Sprintf("unsupported version %d", env.Version)}
	}
	if env.Kdf == nil || len(env.Kdf.Salt) == 0 {
		return &core.FormatError{Reason: "missing kdf parameters"}
	}

	key := db.Key()
	if key == nil {
		return core.ErrNoKey
	}
	if err := db.ChallengeMasterSeed(env.MasterSeed); err != nil {
		return err
	}

	transformed, err := key.Transform(env.Kdf)
	if err != nil {
		return &core.KdfError{Err: err}
	}

	enc := crypto.NewEncryptor(transformed)
	plaintext, err := enc.Decrypt(env.Payload)
	if err != nil {
		crypto.ClearBytes(transformed)
		return &core.FormatError{Reason: "wrong key or corrupted file", Err: err}
	}
	defer crypto.ClearBytes(plaintext)

	var body payload
	if err := json.Unmarshal(plaintext, &body); err != nil {
		crypto.ClearBytes(transformed)
		return &core.FormatError{Reason: "payload unmarshal failed", Err: err}
	}

	root, err := decodeGroup(&body.Root)
	if err != nil {
		crypto.ClearBytes(transformed)
		return err
	}
	meta, err := parseMeta(&body.Meta)
	if err != nil {
		crypto.ClearBytes(transformed)
		return err
	}
	deleted := make([]core.DeletedObject, 0, len(body.DeletedObjects))
	for _, rec := range body.DeletedObjects {
		id, err := uuid.Parse(rec.UUID)
		if err != nil {
			crypto.ClearBytes(transformed)
			return &core.FormatError{Reason: "bad tombstone uuid", Err: err}
		}
		deleted = append(deleted, core.DeletedObject{UUID: id, DeletionTime: rec.DeletionTime})
	}

	// every record parsed; only now touch the database
	db.SetKdf(env.Kdf)
	db.SetMasterSeed(env.MasterSeed)
	db.SetTransformedDatabaseKey(transformed)
	db.SetRootGroup(root)
	applyMeta(meta, db)
	db.ClearDeletedObjects()
	for _, obj := range deleted {
		db.AddDeletedObjectAt(obj.UUID, obj.DeletionTime)
	}
	return nil
}

func encodeDeleted(objs []core.DeletedObject) []deletedRecord {
	if len(objs) == 0 {
		return nil
	}
	recs := make([]deletedRecord, 0, len(objs))
	for _, obj := range objs {
		recs = append(recs, deletedRecord{UUID: obj.UUID.String(), DeletionTime: obj.DeletionTime})
	}
	return recs
}

func encodeMeta(m *core.Metadata) metaRecord {
	rec := metaRecord{
		Name:              m.Name(),
		Description:       m.Description(),
		DefaultUserName:   m.DefaultUserName(),
		RecycleBinEnabled: m.RecycleBinEnabled(),
		HistoryMaxItems:   m.HistoryMaxItems(),
		HistoryMaxSize:    m.HistoryMaxSize(),
		MasterKeyChanged:  m.MasterKeyChanged(),
		CustomData:        m.CustomData(),
	}
	if bin := m.RecycleBin(); bin != nil {
		rec.RecycleBinUUID = bin.UUID().String()
	}
	for _, id := range m.CustomIconOrder() {
		rec.CustomIcons = append(rec.CustomIcons, iconRecord{
			UUID: id.String(),
			Data: m.CustomIcon(id),
		})
	}
	return rec
}

// parsedMeta is a metaRecord with all uuid fields parsed, so metadata
// can be applied to a database without a parse failure halfway through.
type parsedMeta struct {
	rec   *metaRecord
	icons []parsedIcon
	bin   uuid.UUID
}

type parsedIcon struct {
	id   uuid.UUID
	data []byte
}

func parseMeta(rec *metaRecord) (*parsedMeta, error) {
	meta := &parsedMeta{rec: rec}
	for _, icon := range rec.CustomIcons {
		id, err := uuid.Parse(icon.UUID)
		if err != nil {
			return nil, &core.FormatError{Reason: "bad icon uuid", Err: err}
		}
		meta.icons = append(meta.icons, parsedIcon{id: id, data: icon.Data})
	}
	if rec.RecycleBinUUID != "" {
		id, err := uuid.Parse(rec.RecycleBinUUID)
		if err != nil {
			return nil, &core.FormatError{Reason: "bad recycle bin uuid", Err: err}
		}
		meta.bin = id
	}
	return meta, nil
}

// applyMeta installs parsed metadata. The root group must already be
// set so the recycle bin reference resolves.
func applyMeta(meta *parsedMeta, db *core.Database) {
	m := db.Metadata()
	rec := meta.rec
	m.SetName(rec.Name)
	m.SetDescription(rec.Description)
	m.SetDefaultUserName(rec.DefaultUserName)
	m.SetRecycleBinEnabled(rec.RecycleBinEnabled)
	m.SetHistoryMaxItems(rec.HistoryMaxItems)
	m.SetHistoryMaxSize(rec.HistoryMaxSize)
	m.SetMasterKeyChanged(rec.MasterKeyChanged)

	for _, icon := range meta.icons {
		m.AddCustomIcon(icon.id, icon.data)
	}
	for key, value := range rec.CustomData {
		m.CustomData()[key] = value
	}
	if meta.bin != uuid.Nil {
		m.SetRecycleBin(db.FindGroupByUUID(meta.bin))
	}
}

func encodeGroup(g *core.Group) groupRecord {
	rec := groupRecord{
		UUID:             g.UUID().String(),
		Name:             g.Name(),
		Notes:            g.Notes(),
		IconNumber:       g.IconNumber(),
		TimeInfo:         g.TimeInfo(),
		IsExpanded:       g.IsExpanded(),
		SearchingEnabled: int(g.SearchingEnabled()),
		AutoTypeEnabled:  int(g.AutoTypeEnabled()),
		CustomData:       g.CustomData(),
	}
	if g.CustomIcon() != uuid.Nil {
		rec.CustomIcon = g.CustomIcon().String()
	}
	for _, entry := range g.Entries() {
		rec.Entries = append(rec.Entries, encodeEntry(entry, true))
	}
	for _, child := range g.Children() {
		rec.Children = append(rec.Children, encodeGroup(child))
	}
	return rec
}

func decodeGroup(rec *groupRecord) (*core.Group, error) {
	g := core.NewGroup()
	g.SetUpdateTimeInfo(false)

	id, err := uuid.Parse(rec.UUID)
	if err != nil {
		return nil, &core.FormatError{Reason: "bad group uuid", Err: err}
	}
	g.SetUUID(id)
	g.SetName(rec.Name)
	g.SetNotes(rec.Notes)
	g.SetIconNumber(rec.IconNumber)
	if rec.CustomIcon != "" {
		iconID, err := uuid.Parse(rec.CustomIcon)
		if err != nil {
			return nil, &core.FormatError{Reason: "bad group icon uuid", Err: err}
		}
		g.SetCustomIcon(iconID)
	}
	g.SetExpanded(rec.IsExpanded)
	g.SetSearchingEnabled(core.TriState(rec.SearchingEnabled))
	g.SetAutoTypeEnabled(core.TriState(rec.AutoTypeEnabled))
	for key, value := range rec.CustomData {
		g.CustomData()[key] = value
	}
	g.SetTimeInfo(rec.TimeInfo)

	for i := range rec.Entries {
		entry, err := decodeEntry(&rec.Entries[i])
		if err != nil {
			return nil, err
		}
		entry.SetGroup(g)
		entry.SetTimeInfo(rec.Entries[i].TimeInfo)
		entry.SetUpdateTimeInfo(true)
	}
	for i := range rec.Children {
		child, err := decodeGroup(&rec.Children[i])
		if err != nil {
			return nil, err
		}
		child.SetParent(g)
		child.SetTimeInfo(rec.Children[i].TimeInfo)
		child.SetUpdateTimeInfo(true)
	}

	g.SetTimeInfo(rec.TimeInfo)
	g.SetUpdateTimeInfo(true)
	return g, nil
}

func encodeEntry(e *core.Entry, includeHistory bool) entryRecord {
	rec := entryRecord{
		UUID:            e.UUID().String(),
		AutoType:        e.AutoTypeAssociations(),
		CustomData:      e.CustomData(),
		IconNumber:      e.IconNumber(),
		Tags:            e.Tags(),
		AutoTypeEnabled: e.AutoTypeEnabled(),
		TimeInfo:        e.TimeInfo(),
		Totp:            e.TotpSettings(),
	}
	if e.CustomIcon() != uuid.Nil {
		rec.CustomIcon = e.CustomIcon().String()
	}
	for _, key := range e.Attributes().Keys() {
		rec.Attributes = append(rec.Attributes, attributeRecord{
			Key:       key,
			Value:     e.Attributes().Value(key),
			Protected: e.Attributes().IsProtected(key),
		})
	}
	if names := e.Attachments().Names(); len(names) > 0 {
		rec.Attachments = make(map[string][]byte, len(names))
		for _, name := range names {
			rec.Attachments[name] = e.Attachments().Value(name)
		}
	}
	if includeHistory {
		for _, item := range e.History() {
			rec.History = append(rec.History, encodeEntry(item, false))
		}
	}
	return rec
}

func decodeEntry(rec *entryRecord) (*core.Entry, error) {
	e := core.NewEntry()
	e.SetUpdateTimeInfo(false)

	id, err := uuid.Parse(rec.UUID)
	if err != nil {
		return nil, &core.FormatError{Reason: "bad entry uuid", Err: err}
	}
	e.SetUUID(id)

	for _, attr := range rec.Attributes {
		e.Attributes().Set(attr.Key, attr.Value, attr.Protected)
	}
	for name, data := range rec.Attachments {
		e.Attachments().Set(name, data)
	}
	e.SetAutoTypeAssociations(rec.AutoType)
	for key, value := range rec.CustomData {
		e.CustomData()[key] = value
	}
	e.SetIconNumber(rec.IconNumber)
	if rec.CustomIcon != "" {
		iconID, err := uuid.Parse(rec.CustomIcon)
		if err != nil {
			return nil, &core.FormatError{Reason: "bad entry icon uuid", Err: err}
		}
		e.SetCustomIcon(iconID)
	}
	e.SetTags(rec.Tags)
	e.SetAutoTypeEnabled(rec.AutoTypeEnabled)
	e.SetTotp(rec.Totp)

	for i := range rec.History {
		item, err := decodeEntry(&rec.History[i])
		if err != nil {
			return nil, err
		}
		item.SetTimeInfo(rec.History[i].TimeInfo)
		item.SetUpdateTimeInfo(true)
		e.AddHistoryItem(item)
	}

	e.SetTimeInfo(rec.TimeInfo)
	return e, nil
}
