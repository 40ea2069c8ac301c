package model

// ModId is an opaque Steam Workshop mod identifier. The engine never
// inspects the value beyond validating it is a non-empty string of decimal
// digits; resolution and download of the mod itself are out of scope.
type ModId string

// ModIdSet is an ordered set of ModId: insertion order is preserved and
// duplicates are dropped. The zero value is ready to use.
type ModIdSet struct {
	ids  []ModId
	seen map[ModId]struct{}
}

// NewModIdSet creates a ModIdSet pre-populated with the given ids, in order,
// deduplicated.
func NewModIdSet(ids ...ModId) *ModIdSet {
	s := &ModIdSet{seen: make(map[ModId]struct{}, len(ids))}
	s.AppendAll(ids)
	return s
}

// Append adds id to the set if it is not already present.
func (s *ModIdSet) Append(id ModId) {
	if s.seen == nil {
		s.seen = make(map[ModId]struct{})
	}
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.ids = append(s.ids, id)
}

// AppendAll adds each id in order, skipping duplicates already present.
func (s *ModIdSet) AppendAll(ids []ModId) {
	for _, id := range ids {
		s.Append(id)
	}
}

// Slice returns the ordered, deduplicated contents of the set.
func (s *ModIdSet) Slice() []ModId {
	if s == nil {
		return nil
	}
	out := make([]ModId, len(s.ids))
	copy(out, s.ids)
	return out
}

// Len reports the number of distinct mods in the set.
func (s *ModIdSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// SharedMod is a mod available to every server unless a server explicitly
// excludes shared mods.
type SharedMod struct {
	ModId   ModId  `json:"modId" gorm:"primaryKey" validate:"required,modid"`
	ModName string `json:"modName"`
	Enabled bool   `json:"enabled"`
}

// ServerMod is a mod scoped to a single server.
type ServerMod struct {
	ServerName string `json:"serverName" gorm:"primaryKey" validate:"required,resourcename"`
	ModId      ModId  `json:"modId" gorm:"primaryKey" validate:"required,modid"`
	ModName    string `json:"modName"`
	Enabled    bool   `json:"enabled"`
}
