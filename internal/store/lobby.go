// Package store holds the runtime's three in-memory tables (lobbies, games,
// sessions). Every read returns a deep clone, so callers can never mutate
// stored state through an aliased reference; secondary indexes are updated
// atomically with the primary on upsert.
package store

import (
	"sync"

	"fun-euchre/euchre"
	"fun-euchre/internal/ident"
)

// LobbyPhase is the lobby lifecycle stage.
type LobbyPhase string

const (
	LobbyWaiting   LobbyPhase = "waiting"
	LobbyInGame    LobbyPhase = "in_game"
	LobbyCompleted LobbyPhase = "completed"
)

// SeatAssignment is one table position in a lobby. An empty PlayerID means
// the seat is open.
type SeatAssignment struct {
	Seat        euchre.Seat    `json:"seat"`
	Team        euchre.Team    `json:"team"`
	PlayerID    ident.PlayerID `json:"playerId,omitempty"`
	DisplayName string         `json:"displayName,omitempty"`
	Connected   bool           `json:"connected"`
}

// joinOrder fills a lobby clockwise from the host's left.
var joinOrder = [3]euchre.Seat{euchre.East, euchre.South, euchre.West}

// LobbyRecord is a lobby and its four seats. Seats are indexed by seat
// position (north first).
type LobbyRecord struct {
	LobbyID      ident.LobbyID     `json:"lobbyId"`
	HostPlayerID ident.PlayerID    `json:"hostPlayerId"`
	Phase        LobbyPhase        `json:"phase"`
	Seats        [4]SeatAssignment `json:"seats"`
	CreatedAtMs  int64             `json:"createdAtMs"`
	UpdatedAtMs  int64             `json:"updatedAtMs"`
}

// NewLobbyRecord creates a waiting lobby with the host seated at north.
func NewLobbyRecord(lobbyID ident.LobbyID, host ident.PlayerID, hostName string) LobbyRecord {
	rec := LobbyRecord{
		LobbyID:      lobbyID,
		HostPlayerID: host,
		Phase:        LobbyWaiting,
	}
	for _, seat := range euchre.Seats() {
		rec.Seats[seat] = SeatAssignment{Seat: seat, Team: seat.Team()}
	}
	rec.Seats[euchre.North].PlayerID = host
	rec.Seats[euchre.North].DisplayName = hostName
	rec.Seats[euchre.North].Connected = true
	return rec
}

// Clone returns a deep copy. Seats is an array of values, so the struct
// copy already carries no shared memory.
func (r LobbyRecord) Clone() LobbyRecord { return r }

// SeatOf returns the seat holding playerID.
func (r LobbyRecord) SeatOf(playerID ident.PlayerID) (euchre.Seat, bool) {
	for _, sa := range r.Seats {
		if sa.PlayerID != "" && sa.PlayerID == playerID {
			return sa.Seat, true
		}
	}
	return 0, false
}

// IsFull reports whether all four seats are occupied.
func (r LobbyRecord) IsFull() bool {
	for _, sa := range r.Seats {
		if sa.PlayerID == "" {
			return false
		}
	}
	return true
}

// SeatedPlayers returns the occupied seats in table order.
func (r LobbyRecord) SeatedPlayers() []SeatAssignment {
	out := make([]SeatAssignment, 0, 4)
	for _, sa := range r.Seats {
		if sa.PlayerID != "" {
			out = append(out, sa)
		}
	}
	return out
}

// Join seats a new player in the first open seat east → south → west.
func (r *LobbyRecord) Join(playerID ident.PlayerID, displayName string) (euchre.Seat, *euchre.Reject) {
	if r.Phase != LobbyWaiting {
		return 0, euchre.NewReject(euchre.CodeInvalidState, "lobby is %s and cannot be joined", r.Phase)
	}
	if _, seated := r.SeatOf(playerID); seated {
		return 0, euchre.NewReject(euchre.CodeInvalidAction, "player is already seated")
	}
	for _, seat := range joinOrder {
		if r.Seats[seat].PlayerID != "" {
			continue
		}
		r.Seats[seat].PlayerID = playerID
		r.Seats[seat].DisplayName = displayName
		r.Seats[seat].Connected = true
		return seat, nil
	}
	return 0, euchre.NewReject(euchre.CodeInvalidState, "lobby is full")
}

// UpdateDisplayName renames a seated player.
func (r *LobbyRecord) UpdateDisplayName(playerID ident.PlayerID, displayName string) *euchre.Reject {
	seat, seated := r.SeatOf(playerID)
	if !seated {
		return euchre.NewReject(euchre.CodeUnauthorized, "player is not seated in this lobby")
	}
	r.Seats[seat].DisplayName = displayName
	return nil
}

// Start transitions waiting → in_game. Only the host of a full lobby may
// start it.
func (r *LobbyRecord) Start(actor ident.PlayerID) *euchre.Reject {
	if actor != r.HostPlayerID {
		return euchre.NewReject(euchre.CodeUnauthorized, "only the host can start the game")
	}
	if r.Phase != LobbyWaiting {
		return euchre.NewReject(euchre.CodeInvalidState, "lobby is %s and cannot be started", r.Phase)
	}
	if !r.IsFull() {
		return euchre.NewReject(euchre.CodeInvalidState, "lobby needs four seated players to start")
	}
	r.Phase = LobbyInGame
	return nil
}

// SetConnected flips the seat-level connected flag for a seated player.
func (r *LobbyRecord) SetConnected(playerID ident.PlayerID, connected bool) {
	if seat, seated := r.SeatOf(playerID); seated {
		r.Seats[seat].Connected = connected
	}
}

// LobbyStore is the lobby table.
type LobbyStore struct {
	mu       sync.RWMutex
	byID     map[ident.LobbyID]LobbyRecord
	byPlayer map[ident.PlayerID]ident.LobbyID
	nowMs    func() int64
	ttlMs    *int64
}

// NewLobbyStore builds an empty table over the injected clock. A nil ttl
// disables TTL expiry.
func NewLobbyStore(nowMs func() int64, ttlMs *int64) *LobbyStore {
	return &LobbyStore{
		byID:     make(map[ident.LobbyID]LobbyRecord),
		byPlayer: make(map[ident.PlayerID]ident.LobbyID),
		nowMs:    nowMs,
		ttlMs:    ttlMs,
	}
}

// Upsert stores rec, refreshing UpdatedAtMs and reindexing its players. The
// previous record's index entries are dropped before the new ones install.
func (s *LobbyStore) Upsert(rec LobbyRecord) LobbyRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMs()
	if rec.CreatedAtMs == 0 {
		rec.CreatedAtMs = now
	}
	rec.UpdatedAtMs = now

	if prev, ok := s.byID[rec.LobbyID]; ok {
		s.dropPlayerIndex(prev)
	}
	for _, sa := range rec.Seats {
		if sa.PlayerID != "" {
			s.byPlayer[sa.PlayerID] = rec.LobbyID
		}
	}
	s.byID[rec.LobbyID] = rec.Clone()
	return rec.Clone()
}

func (s *LobbyStore) dropPlayerIndex(rec LobbyRecord) {
	for _, sa := range rec.Seats {
		if sa.PlayerID != "" && s.byPlayer[sa.PlayerID] == rec.LobbyID {
			delete(s.byPlayer, sa.PlayerID)
		}
	}
}

// GetByID returns a clone of the lobby, if present.
func (s *LobbyStore) GetByID(id ident.LobbyID) (LobbyRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return LobbyRecord{}, false
	}
	return rec.Clone(), true
}

// GetByPlayer returns the lobby seating playerID, if any.
func (s *LobbyStore) GetByPlayer(playerID ident.PlayerID) (LobbyRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPlayer[playerID]
	if !ok {
		return LobbyRecord{}, false
	}
	rec, ok := s.byID[id]
	if !ok {
		return LobbyRecord{}, false
	}
	return rec.Clone(), true
}

// DeleteByID removes the lobby and its index entries.
func (s *LobbyStore) DeleteByID(id ident.LobbyID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.byID[id]; ok {
		s.dropPlayerIndex(rec)
		delete(s.byID, id)
	}
}

// ListRecords returns clones of every lobby.
func (s *LobbyStore) ListRecords() []LobbyRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LobbyRecord, 0, len(s.byID))
	for _, rec := range s.byID {
		out = append(out, rec.Clone())
	}
	return out
}

// ReplaceAll swaps the whole table, used on snapshot restore.
func (s *LobbyStore) ReplaceAll(recs []LobbyRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[ident.LobbyID]LobbyRecord, len(recs))
	s.byPlayer = make(map[ident.PlayerID]ident.LobbyID, len(recs)*4)
	for _, rec := range recs {
		s.byID[rec.LobbyID] = rec.Clone()
		for _, sa := range rec.Seats {
			if sa.PlayerID != "" {
				s.byPlayer[sa.PlayerID] = rec.LobbyID
			}
		}
	}
}

// IsExpired reports whether the lobby's TTL has elapsed at nowMs.
func (s *LobbyStore) IsExpired(rec LobbyRecord, nowMs int64) bool {
	return s.ttlMs != nil && nowMs > rec.UpdatedAtMs+*s.ttlMs
}

// PruneExpired deletes every expired lobby and returns the removed ids.
func (s *LobbyStore) PruneExpired() []ident.LobbyID {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowMs()
	var removed []ident.LobbyID
	for id, rec := range s.byID {
		if s.ttlMs != nil && now > rec.UpdatedAtMs+*s.ttlMs {
			s.dropPlayerIndex(rec)
			delete(s.byID, id)
			removed = append(removed, id)
		}
	}
	return removed
}
