package core

import (
	"github.com/google/uuid"

	"github.com/keywarden/keywarden/internal/totp"
)

const DefaultIconNumber = 0

// CloneFlags control what Entry.Clone copies or resets.
type CloneFlags int

const (
	CloneNoFlags        CloneFlags = 0
	CloneNewUUID        CloneFlags = 1 << iota // assign a fresh uuid
	CloneResetTimeInfo                         // reset lifecycle times to now
	CloneIncludeHistory                        // deep-copy the history list
	CloneRenameTitle                           // append a clone marker to the title
	CloneUserAsRef                             // replace username with a reference to the source
	ClonePassAsRef                             // replace password with a reference to the source
)

// entryData holds the value-copied portion of an entry outside the
// attribute map.
type entryData struct {
	iconNumber      int
	customIcon      uuid.UUID
	tags            string
	autoTypeEnabled bool
	timeInfo        TimeInfo
	totpSettings    *totp.Settings
}

func (d entryData) clone() entryData {
	cp := d
	cp.totpSettings = d.totpSettings.Clone()
	return cp
}

func (d entryData) equalsIgnoringTimes(other entryData) bool {
	return d.iconNumber == other.iconNumber &&
		d.customIcon == other.customIcon &&
		d.tags == other.tags &&
		d.autoTypeEnabled == other.autoTypeEnabled &&
		d.totpSettings.Equals(other.totpSettings)
}

// Entry is a single credential record. It is owned by exactly one Group
// (or by nothing while detached, e.g. history snapshots).
type Entry struct {
	uuid                 uuid.UUID
	group                *Group
	attributes           *Attributes
	attachments          *Attachments
	autoTypeAssociations AutoTypeAssociations
	customData           CustomData
	data                 entryData

	history        []*Entry
	pendingHistory *Entry

	updateTimeInfo bool
}

// NewEntry creates a detached entry with a fresh uuid.
func NewEntry() *Entry {
	return &Entry{
		uuid:        uuid.New(),
		attributes:  NewAttributes(),
		attachments: NewAttachments(),
		customData:  make(CustomData),
		data: entryData{
			iconNumber:      DefaultIconNumber,
			autoTypeEnabled: true,
			timeInfo:        NewTimeInfo(),
		},
		updateTimeInfo: true,
	}
}

func (e *Entry) UUID() uuid.UUID { return e.uuid }

// SetUUID replaces the entry uuid. Used by codecs during decode.
func (e *Entry) SetUUID(id uuid.UUID) {
	assertf(id != uuid.Nil, "entry uuid must not be nil")
	e.uuid = id
}

func (e *Entry) Group() *Group { return e.group }

// Database returns the database this entry belongs to via its group, or
// nil while detached.
func (e *Entry) Database() *Database {
	if e.group == nil {
		return nil
	}
	return e.group.Database()
}

// CanUpdateTimeInfo reports whether mutations touch modification times.
func (e *Entry) CanUpdateTimeInfo() bool { return e.updateTimeInfo }

// SetUpdateTimeInfo toggles modification-time tracking. Codecs disable
// it while restoring persisted state.
func (e *Entry) SetUpdateTimeInfo(value bool) { e.updateTimeInfo = value }

// markModified refreshes modification times and propagates the modified
// state to the owning database.
func (e *Entry) markModified() {
	if e.updateTimeInfo {
		t := now()
		e.data.timeInfo.LastModificationTime = t
		e.data.timeInfo.LastAccessTime = t
	}
	if db := e.Database(); db != nil {
		db.MarkModified()
	}
}

func (e *Entry) Title() string    { return e.attributes.Value(TitleKey) }
func (e *Entry) Username() string { return e.attributes.Value(UserNameKey) }
func (e *Entry) Password() string { return e.attributes.Value(PasswordKey) }
func (e *Entry) URL() string      { return e.attributes.Value(URLKey) }
func (e *Entry) Notes() string    { return e.attributes.Value(NotesKey) }

// Attribute returns the stored (unresolved) value for key.
func (e *Entry) Attribute(key string) string {
	return e.attributes.Value(key)
}

func (e *Entry) Attributes() *Attributes   { return e.attributes }
func (e *Entry) Attachments() *Attachments { return e.attachments }
func (e *Entry) CustomData() CustomData    { return e.customData }

func (e *Entry) AutoTypeAssociations() AutoTypeAssociations {
	return e.autoTypeAssociations
}

func (e *Entry) SetAutoTypeAssociations(assocs AutoTypeAssociations) {
	if !e.autoTypeAssociations.Equals(assocs) {
		e.autoTypeAssociations = assocs.Clone()
		e.markModified()
	}
}

func (e *Entry) SetTitle(title string) { e.setDefaultAttribute(TitleKey, title) }
func (e *Entry) SetUsername(username string) {
	e.setDefaultAttribute(UserNameKey, username)
}
func (e *Entry) SetPassword(password string) {
	e.setDefaultAttribute(PasswordKey, password)
}
func (e *Entry) SetURL(url string)     { e.setDefaultAttribute(URLKey, url) }
func (e *Entry) SetNotes(notes string) { e.setDefaultAttribute(NotesKey, notes) }

func (e *Entry) setDefaultAttribute(key, value string) {
	assertf(IsDefaultAttribute(key), "not a default attribute: %s", key)
	if e.attributes.Set(key, value, e.attributes.IsProtected(key)) {
		e.markModified()
	}
}

// SetAttribute stores a custom (or default) attribute value.
func (e *Entry) SetAttribute(key, value string, protect bool) {
	if e.attributes.Set(key, value, protect) {
		e.markModified()
	}
}

// RemoveAttribute deletes a custom attribute.
func (e *Entry) RemoveAttribute(key string) {
	if e.attributes.Remove(key) {
		e.markModified()
	}
}

// SetAttachment stores an attachment.
func (e *Entry) SetAttachment(name string, data []byte) {
	e.attachments.Set(name, data)
	e.markModified()
}

func (e *Entry) IconNumber() int { return e.data.iconNumber }

func (e *Entry) SetIconNumber(iconNumber int) {
	assertf(iconNumber >= 0, "icon number must not be negative")
	if e.data.iconNumber != iconNumber || e.data.customIcon != uuid.Nil {
		e.data.iconNumber = iconNumber
		e.data.customIcon = uuid.Nil
		e.markModified()
	}
}

func (e *Entry) CustomIcon() uuid.UUID { return e.data.customIcon }

func (e *Entry) SetCustomIcon(id uuid.UUID) {
	if e.data.customIcon != id {
		e.data.customIcon = id
		e.data.iconNumber = 0
		e.markModified()
	}
}

func (e *Entry) Tags() string { return e.data.tags }

func (e *Entry) SetTags(tags string) {
	if e.data.tags != tags {
		e.data.tags = tags
		e.markModified()
	}
}

func (e *Entry) AutoTypeEnabled() bool { return e.data.autoTypeEnabled }

func (e *Entry) SetAutoTypeEnabled(enabled bool) {
	if e.data.autoTypeEnabled != enabled {
		e.data.autoTypeEnabled = enabled
		e.markModified()
	}
}

func (e *Entry) TimeInfo() TimeInfo { return e.data.timeInfo }

// SetTimeInfo replaces the lifecycle times without touching the
// modification state.
func (e *Entry) SetTimeInfo(timeInfo TimeInfo) {
	e.data.timeInfo = timeInfo
}

// SetExpires toggles expiry.
func (e *Entry) SetExpires(expires bool) {
	if e.data.timeInfo.Expires != expires {
		e.data.timeInfo.Expires = expires
		e.markModified()
	}
}

// IsExpired reports whether the entry expired before now.
func (e *Entry) IsExpired() bool {
	return e.data.timeInfo.Expires && e.data.timeInfo.ExpiryTime.Before(now())
}

// IsRecycled reports whether the entry lives in (or under) the recycle bin.
func (e *Entry) IsRecycled() bool {
	db := e.Database()
	if db == nil || e.group == nil {
		return false
	}
	bin := db.Metadata().RecycleBin()
	return bin != nil && (e.group == bin || e.group.IsRecycled())
}

func (e *Entry) HasTotp() bool { return e.data.totpSettings != nil }

// Totp computes the current one-time code.
func (e *Entry) Totp() (string, error) {
	if !e.HasTotp() {
		return "", totp.ErrNoSeed
	}
	return totp.Generate(e.data.totpSettings, now())
}

func (e *Entry) TotpSettings() *totp.Settings { return e.data.totpSettings }

// SetTotp replaces the TOTP settings; nil removes them.
func (e *Entry) SetTotp(settings *totp.Settings) {
	if !e.data.totpSettings.Equals(settings) {
		e.data.totpSettings = settings.Clone()
		e.markModified()
	}
}

// SetGroup moves the entry under group, detaching it from its previous
// owner. Moving between databases records a tombstone in the source.
func (e *Entry) SetGroup(group *Group) {
	assertf(group != nil, "entry group must not be nil")
	if group == nil || e.group == group {
		return
	}

	if e.group != nil {
		e.group.removeEntry(e)
		if oldDB := e.group.Database(); oldDB != nil && oldDB != group.Database() {
			oldDB.AddDeletedObject(e.uuid)
		}
	}

	e.group = group
	group.addEntry(e)

	if e.updateTimeInfo {
		e.data.timeInfo.LocationChanged = now()
	}
}

// Delete destroys the entry. If it belongs to a group attached to a
// database, a tombstone is recorded for its uuid — even when the entry
// is a recycle-bin member. History snapshots are destroyed with it but
// are never tombstoned.
func (e *Entry) Delete() {
	e.updateTimeInfo = false
	if e.group != nil {
		e.group.removeEntry(e)
		if db := e.group.Database(); db != nil {
			db.AddDeletedObject(e.uuid)
			db.MarkModified()
		}
		e.group = nil
	}
	e.history = nil
}

// History returns the prior versions of the entry, oldest first.
func (e *Entry) History() []*Entry { return e.history }

// AddHistoryItem appends a detached snapshot to the history list.
func (e *Entry) AddHistoryItem(item *Entry) {
	assertf(item.group == nil, "history items must be detached")
	e.history = append(e.history, item)
	e.markModified()
}

// RemoveHistoryItems deletes the given snapshots from the history list.
func (e *Entry) RemoveHistoryItems(items []*Entry) {
	if len(items) == 0 {
		return
	}
	for _, item := range items {
		for i, h := range e.history {
			if h == item {
				e.history = append(e.history[:i], e.history[i+1:]...)
				break
			}
		}
	}
	e.markModified()
}

// BeginUpdate opens an update session by snapshotting the current state
// into a detached pending history entry.
func (e *Entry) BeginUpdate() {
	assertf(e.pendingHistory == nil, "beginUpdate called twice without endUpdate")

	snapshot := NewEntry()
	snapshot.updateTimeInfo = false
	snapshot.uuid = e.uuid
	snapshot.data = e.data.clone()
	snapshot.attributes.CopyDataFrom(e.attributes)
	snapshot.attachments.CopyDataFrom(e.attachments)
	snapshot.autoTypeAssociations = e.autoTypeAssociations.Clone()
	snapshot.customData = e.customData.Clone()

	e.pendingHistory = snapshot
}

// EndUpdate closes an update session. If any field changed since
// BeginUpdate the snapshot is appended to history and retention trimming
// runs; otherwise the snapshot is discarded. Returns whether a history
// item was added. Calling EndUpdate without BeginUpdate is a
// precondition violation and a no-op in release builds.
func (e *Entry) EndUpdate() bool {
	assertf(e.pendingHistory != nil, "endUpdate called without beginUpdate")
	if e.pendingHistory == nil {
		return false
	}

	snapshot := e.pendingHistory
	e.pendingHistory = nil

	if !e.fieldsChanged(snapshot) {
		return false
	}

	snapshot.updateTimeInfo = true
	e.AddHistoryItem(snapshot)
	e.TruncateHistory()
	return true
}

// fieldsChanged compares the current state against a snapshot, ignoring
// lifecycle times.
func (e *Entry) fieldsChanged(snapshot *Entry) bool {
	return !e.attributes.Equals(snapshot.attributes) ||
		!e.attachments.Equals(snapshot.attachments) ||
		!e.autoTypeAssociations.Equals(snapshot.autoTypeAssociations) ||
		!e.customData.Equals(snapshot.customData) ||
		!e.data.equalsIgnoringTimes(snapshot.data)
}

// historyItemSize estimates the stored size of one history snapshot.
func (e *Entry) historyItemSize() int {
	return e.attributes.Size() +
		e.autoTypeAssociations.Size() +
		e.attachments.Size() +
		e.customData.Size() +
		tagsSize(e.data.tags)
}

// TruncateHistory enforces the metadata retention limits: first the item
// count, then the accumulated byte size walking newest to oldest. A
// limit of -1 disables that dimension.
func (e *Entry) TruncateHistory() {
	db := e.Database()
	if db == nil {
		return
	}

	maxItems := db.Metadata().HistoryMaxItems()
	if maxItems > -1 {
		if excess := len(e.history) - maxItems; excess > 0 {
			e.history = append([]*Entry(nil), e.history[excess:]...)
		}
	}

	maxSize := db.Metadata().HistoryMaxSize()
	if maxSize > -1 {
		size := 0
		cut := -1
		for i := len(e.history) - 1; i >= 0; i-- {
			// don't calculate size if it's already above the maximum
			if size <= maxSize {
				size += e.history[i].historyItemSize()
			}
			if size > maxSize {
				cut = i
			}
		}
		if cut >= 0 {
			// every item at or older than the overflow point goes
			e.history = append([]*Entry(nil), e.history[cut+1:]...)
		}
	}
}

// Clone returns a copy of the entry according to flags. The clone is
// always detached.
func (e *Entry) Clone(flags CloneFlags) *Entry {
	clone := NewEntry()
	clone.updateTimeInfo = false

	if flags&CloneNewUUID == 0 {
		clone.uuid = e.uuid
	}
	clone.data = e.data.clone()
	clone.attributes.CopyDataFrom(e.attributes)
	clone.attachments.CopyDataFrom(e.attachments)
	clone.autoTypeAssociations = e.autoTypeAssociations.Clone()
	clone.customData = e.customData.Clone()

	if flags&CloneUserAsRef != 0 {
		clone.attributes.Set(UserNameKey,
			BuildReference(e.uuid, UserNameKey),
			e.attributes.IsProtected(UserNameKey))
	}
	if flags&ClonePassAsRef != 0 {
		clone.attributes.Set(PasswordKey,
			BuildReference(e.uuid, PasswordKey),
			e.attributes.IsProtected(PasswordKey))
	}

	if flags&CloneIncludeHistory != 0 {
		for _, item := range e.history {
			itemClone := item.Clone(flags &^ (CloneIncludeHistory | CloneNewUUID | CloneResetTimeInfo))
			itemClone.uuid = clone.uuid
			clone.history = append(clone.history, itemClone)
		}
	}

	if flags&CloneResetTimeInfo != 0 {
		clone.data.timeInfo = NewTimeInfo()
	}

	if flags&CloneRenameTitle != 0 {
		clone.attributes.Set(TitleKey, clone.Title()+" - Clone",
			e.attributes.IsProtected(TitleKey))
	}

	clone.updateTimeInfo = true
	return clone
}

// CopyDataFrom replaces this entry's state with a value copy of other,
// keeping uuid, group, and history.
func (e *Entry) CopyDataFrom(other *Entry) {
	e.updateTimeInfo = false
	e.data = other.data.clone()
	e.attributes.CopyDataFrom(other.attributes)
	e.attachments.CopyDataFrom(other.attachments)
	e.autoTypeAssociations = other.autoTypeAssociations.Clone()
	e.customData = other.customData.Clone()
	e.updateTimeInfo = true
}

// Equals performs a deep comparison including history.
func (e *Entry) Equals(other *Entry) bool {
	if other == nil || e.uuid != other.uuid {
		return false
	}
	if !e.fieldsEqual(other) {
		return false
	}
	if len(e.history) != len(other.history) {
		return false
	}
	for i := range e.history {
		if !e.history[i].Equals(other.history[i]) {
			return false
		}
	}
	return true
}

func (e *Entry) fieldsEqual(other *Entry) bool {
	return e.attributes.Equals(other.attributes) &&
		e.attachments.Equals(other.attachments) &&
		e.autoTypeAssociations.Equals(other.autoTypeAssociations) &&
		e.customData.Equals(other.customData) &&
		e.data.equalsIgnoringTimes(other.data) &&
		e.data.timeInfo.Equals(other.data.timeInfo)
}
