package core

import (
	"time"

	"github.com/google/uuid"
)

// History retention defaults, applied to fresh databases.
const (
	DefaultHistoryMaxItems = 10
	DefaultHistoryMaxSize  = 6 * 1024 * 1024
)

// Metadata holds the database-wide settings and bookkeeping.
type Metadata struct {
	db *Database

	name        string
	nameChanged time.Time
	description string

	defaultUserName string

	recycleBinEnabled bool
	recycleBin        *Group
	recycleBinChanged time.Time

	historyMaxItems int
	historyMaxSize  int

	masterKeyChanged time.Time
	settingsChanged  time.Time

	customIcons     map[uuid.UUID][]byte
	customIconOrder []uuid.UUID

	customData CustomData
}

func newMetadata(db *Database) *Metadata {
	return &Metadata{
		db:                db,
		recycleBinEnabled: true,
		historyMaxItems:   DefaultHistoryMaxItems,
		historyMaxSize:    DefaultHistoryMaxSize,
		customIcons:       make(map[uuid.UUID][]byte),
		customData:        make(CustomData),
	}
}

func (m *Metadata) markModified() {
	m.settingsChanged = now()
	if m.db != nil {
		m.db.MarkModified()
	}
}

func (m *Metadata) Name() string { return m.name }

func (m *Metadata) SetName(name string) {
	if m.name != name {
		m.name = name
		m.nameChanged = now()
		m.markModified()
	}
}

func (m *Metadata) NameChanged() time.Time { return m.nameChanged }

func (m *Metadata) Description() string { return m.description }

func (m *Metadata) SetDescription(description string) {
	if m.description != description {
		m.description = description
		m.markModified()
	}
}

func (m *Metadata) DefaultUserName() string { return m.defaultUserName }

func (m *Metadata) SetDefaultUserName(username string) {
	if m.defaultUserName != username {
		m.defaultUserName = username
		m.markModified()
	}
}

func (m *Metadata) RecycleBinEnabled() bool { return m.recycleBinEnabled }

func (m *Metadata) SetRecycleBinEnabled(enabled bool) {
	if m.recycleBinEnabled != enabled {
		m.recycleBinEnabled = enabled
		m.markModified()
	}
}

// RecycleBin returns the bin group, or nil if none has been created yet.
func (m *Metadata) RecycleBin() *Group { return m.recycleBin }

// SetRecycleBin records which group acts as the bin; nil clears it.
func (m *Metadata) SetRecycleBin(group *Group) {
	if m.recycleBin != group {
		m.recycleBin = group
		m.recycleBinChanged = now()
		m.markModified()
	}
}

func (m *Metadata) RecycleBinChanged() time.Time { return m.recycleBinChanged }

func (m *Metadata) HistoryMaxItems() int { return m.historyMaxItems }

// SetHistoryMaxItems sets the per-entry history count cap. -1 disables
// the cap.
func (m *Metadata) SetHistoryMaxItems(value int) {
	assertf(value >= -1, "history max items must be >= -1")
	if m.historyMaxItems != value {
		m.historyMaxItems = value
		m.markModified()
	}
}

func (m *Metadata) HistoryMaxSize() int { return m.historyMaxSize }

// SetHistoryMaxSize sets the per-entry history byte cap. -1 disables
// the cap.
func (m *Metadata) SetHistoryMaxSize(value int) {
	assertf(value >= -1, "history max size must be >= -1")
	if m.historyMaxSize != value {
		m.historyMaxSize = value
		m.markModified()
	}
}

func (m *Metadata) MasterKeyChanged() time.Time { return m.masterKeyChanged }

// SetMasterKeyChanged records when the master key was last replaced.
func (m *Metadata) SetMasterKeyChanged(t time.Time) {
	m.masterKeyChanged = t
}

func (m *Metadata) SettingsChanged() time.Time { return m.settingsChanged }

// CustomIcon returns the raw image data for id, or nil.
func (m *Metadata) CustomIcon(id uuid.UUID) []byte {
	return m.customIcons[id]
}

func (m *Metadata) HasCustomIcon(id uuid.UUID) bool {
	_, ok := m.customIcons[id]
	return ok
}

// AddCustomIcon stores an icon. Existing data for the same id is kept.
func (m *Metadata) AddCustomIcon(id uuid.UUID, data []byte) {
	assertf(id != uuid.Nil, "custom icon uuid must not be nil")
	if _, ok := m.customIcons[id]; ok {
		return
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.customIcons[id] = cp
	m.customIconOrder = append(m.customIconOrder, id)
	m.markModified()
}

// RemoveCustomIcon deletes an icon and clears it from every group and
// entry that references it.
func (m *Metadata) RemoveCustomIcon(id uuid.UUID) {
	if _, ok := m.customIcons[id]; !ok {
		return
	}
	delete(m.customIcons, id)
	for i, other := range m.customIconOrder {
		if other == id {
			m.customIconOrder = append(m.customIconOrder[:i], m.customIconOrder[i+1:]...)
			break
		}
	}
	if m.db != nil && m.db.RootGroup() != nil {
		for _, group := range m.db.RootGroup().GroupsRecursive() {
			if group.CustomIcon() == id {
				group.SetIconNumber(DefaultIconNumber)
			}
		}
		for _, entry := range m.db.RootGroup().EntriesRecursive() {
			if entry.CustomIcon() == id {
				entry.SetIconNumber(DefaultIconNumber)
			}
		}
	}
	m.markModified()
}

// CustomIconOrder returns the icon uuids in insertion order.
func (m *Metadata) CustomIconOrder() []uuid.UUID {
	order := make([]uuid.UUID, len(m.customIconOrder))
	copy(order, m.customIconOrder)
	return order
}

func (m *Metadata) CustomData() CustomData { return m.customData }
