package store

import (
	"sync"

	"fun-euchre/euchre"
	"fun-euchre/internal/ident"
)

// GameRecord is a stored game: the authoritative rules-engine state plus
// the lobby it was started from.
type GameRecord struct {
	GameID      ident.GameID  `json:"gameId"`
	LobbyID     ident.LobbyID `json:"lobbyId"`
	State       euchre.State  `json:"state"`
	CreatedAtMs int64         `json:"createdAtMs"`
	UpdatedAtMs int64         `json:"updatedAtMs"`
}

// Clone returns a deep copy, including the nested game state.
func (r GameRecord) Clone() GameRecord {
	out := r
	out.State = r.State.Clone()
	return out
}

// GameStore is the game table, indexed by game id and by owning lobby.
type GameStore struct {
	mu          sync.RWMutex
	byID        map[ident.GameID]GameRecord
	byLobby     map[ident.LobbyID]ident.GameID
	nowMs       func() int64
	retentionMs int64
	ttlMs       *int64
}

// NewGameStore builds an empty table. retentionMs bounds how long an
// inactive game is kept; a nil ttl disables additional TTL expiry.
func NewGameStore(nowMs func() int64, retentionMs int64, ttlMs *int64) *GameStore {
	return &GameStore{
		byID:        make(map[ident.GameID]GameRecord),
		byLobby:     make(map[ident.LobbyID]ident.GameID),
		nowMs:       nowMs,
		retentionMs: retentionMs,
		ttlMs:       ttlMs,
	}
}

// Upsert stores rec, refreshing UpdatedAtMs. The lobby index entry of a
// previous record is dropped before the new one installs.
func (s *GameStore) Upsert(rec GameRecord) GameRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMs()
	if rec.CreatedAtMs == 0 {
		rec.CreatedAtMs = now
	}
	rec.UpdatedAtMs = now

	if prev, ok := s.byID[rec.GameID]; ok {
		if s.byLobby[prev.LobbyID] == rec.GameID {
			delete(s.byLobby, prev.LobbyID)
		}
	}
	s.byLobby[rec.LobbyID] = rec.GameID
	s.byID[rec.GameID] = rec.Clone()
	return rec.Clone()
}

// GetByID returns a clone of the game, if present.
func (s *GameStore) GetByID(id ident.GameID) (GameRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return GameRecord{}, false
	}
	return rec.Clone(), true
}

// GetByLobby returns the game started from lobbyID, if any.
func (s *GameStore) GetByLobby(lobbyID ident.LobbyID) (GameRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byLobby[lobbyID]
	if !ok {
		return GameRecord{}, false
	}
	rec, ok := s.byID[id]
	if !ok {
		return GameRecord{}, false
	}
	return rec.Clone(), true
}

// DeleteByID removes the game and its lobby index entry.
func (s *GameStore) DeleteByID(id ident.GameID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.byID[id]; ok {
		if s.byLobby[rec.LobbyID] == id {
			delete(s.byLobby, rec.LobbyID)
		}
		delete(s.byID, id)
	}
}

// ListRecords returns clones of every game.
func (s *GameStore) ListRecords() []GameRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]GameRecord, 0, len(s.byID))
	for _, rec := range s.byID {
		out = append(out, rec.Clone())
	}
	return out
}

// ReplaceAll swaps the whole table, used on snapshot restore.
func (s *GameStore) ReplaceAll(recs []GameRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[ident.GameID]GameRecord, len(recs))
	s.byLobby = make(map[ident.LobbyID]ident.GameID, len(recs))
	for _, rec := range recs {
		s.byID[rec.GameID] = rec.Clone()
		s.byLobby[rec.LobbyID] = rec.GameID
	}
}

// IsExpired reports whether the game's retention or TTL has elapsed.
func (s *GameStore) IsExpired(rec GameRecord, nowMs int64) bool {
	if nowMs > rec.UpdatedAtMs+s.retentionMs {
		return true
	}
	return s.ttlMs != nil && nowMs > rec.UpdatedAtMs+*s.ttlMs
}

// PruneExpired deletes every expired game and returns the removed ids.
// Callers needing reference checks filter with IsExpired and DeleteByID
// instead.
func (s *GameStore) PruneExpired() []ident.GameID {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowMs()
	var removed []ident.GameID
	for id, rec := range s.byID {
		if now > rec.UpdatedAtMs+s.retentionMs || (s.ttlMs != nil && now > rec.UpdatedAtMs+*s.ttlMs) {
			if s.byLobby[rec.LobbyID] == id {
				delete(s.byLobby, rec.LobbyID)
			}
			delete(s.byID, id)
			removed = append(removed, id)
		}
	}
	return removed
}
