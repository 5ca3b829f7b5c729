package store

import (
	"sync"

	"github.com/decred/slog"

	"fun-euchre/internal/ident"
)

// SessionRecord binds a player's transport identity to its lobby and,
// once a game starts, its game. ReconnectByMs is set exactly when the
// session is disconnected: past it the sweeper forfeits the game.
type SessionRecord struct {
	SessionID      ident.SessionID `json:"sessionId"`
	PlayerID       ident.PlayerID  `json:"playerId"`
	LobbyID        ident.LobbyID   `json:"lobbyId"`
	GameID         ident.GameID    `json:"gameId,omitempty"`
	ReconnectToken ident.Token     `json:"reconnectToken"`
	Connected      bool            `json:"connected"`
	ReconnectByMs  *int64          `json:"reconnectByMs,omitempty"`
	CreatedAtMs    int64           `json:"createdAtMs"`
	UpdatedAtMs    int64           `json:"updatedAtMs"`
}

// Clone returns a deep copy.
func (r SessionRecord) Clone() SessionRecord {
	out := r
	if r.ReconnectByMs != nil {
		v := *r.ReconnectByMs
		out.ReconnectByMs = &v
	}
	return out
}

// SessionStore is the session table. Beyond the usual clone-on-read
// contract it enforces two uniqueness rules on upsert: one session per
// player and one owner per reconnect token, newer evicting older.
type SessionStore struct {
	mu          sync.RWMutex
	byID        map[ident.SessionID]SessionRecord
	byPlayer    map[ident.PlayerID]ident.SessionID
	byToken     map[ident.Token]ident.SessionID
	nowMs       func() int64
	graceMs     int64
	retentionMs int64
	ttlMs       *int64
	log         slog.Logger
}

// NewSessionStore builds an empty table. graceMs sizes the reconnect
// window stamped on disconnect; retentionMs bounds how long a disconnected
// session is kept; a nil ttl disables connected-session expiry.
func NewSessionStore(nowMs func() int64, graceMs, retentionMs int64, ttlMs *int64, log slog.Logger) *SessionStore {
	return &SessionStore{
		byID:        make(map[ident.SessionID]SessionRecord),
		byPlayer:    make(map[ident.PlayerID]ident.SessionID),
		byToken:     make(map[ident.Token]ident.SessionID),
		nowMs:       nowMs,
		graceMs:     graceMs,
		retentionMs: retentionMs,
		ttlMs:       ttlMs,
		log:         log,
	}
}

// Upsert stores rec. A disconnected record without a reconnect deadline
// gets one stamped from the clock; connected records carry none. Sessions
// previously owning rec's player or token are evicted, and connected-state
// transitions are logged exactly once per change.
func (s *SessionStore) Upsert(rec SessionRecord) SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMs()
	if rec.CreatedAtMs == 0 {
		rec.CreatedAtMs = now
	}
	rec.UpdatedAtMs = now

	prev, existed := s.byID[rec.SessionID]
	if rec.Connected {
		rec.ReconnectByMs = nil
	} else if rec.ReconnectByMs == nil || (existed && prev.Connected) {
		deadline := now + s.graceMs
		rec.ReconnectByMs = &deadline
	}

	if existed {
		s.dropIndexes(prev)
	}
	if otherID, ok := s.byPlayer[rec.PlayerID]; ok && otherID != rec.SessionID {
		s.evictLocked(otherID, "player reassigned")
	}
	if otherID, ok := s.byToken[rec.ReconnectToken]; ok && otherID != rec.SessionID {
		s.evictLocked(otherID, "reconnect token reassigned")
	}

	s.byPlayer[rec.PlayerID] = rec.SessionID
	s.byToken[rec.ReconnectToken] = rec.SessionID
	s.byID[rec.SessionID] = rec.Clone()

	if !existed || prev.Connected != rec.Connected {
		s.log.Infof("session %s connected=%t player=%s", rec.SessionID, rec.Connected, rec.PlayerID)
	}
	return rec.Clone()
}

func (s *SessionStore) dropIndexes(rec SessionRecord) {
	if s.byPlayer[rec.PlayerID] == rec.SessionID {
		delete(s.byPlayer, rec.PlayerID)
	}
	if s.byToken[rec.ReconnectToken] == rec.SessionID {
		delete(s.byToken, rec.ReconnectToken)
	}
}

func (s *SessionStore) evictLocked(id ident.SessionID, reason string) {
	rec, ok := s.byID[id]
	if !ok {
		return
	}
	s.dropIndexes(rec)
	delete(s.byID, id)
	s.log.Debugf("session %s evicted: %s", id, reason)
}

// GetByID returns a clone of the session, if present.
func (s *SessionStore) GetByID(id ident.SessionID) (SessionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return SessionRecord{}, false
	}
	return rec.Clone(), true
}

// GetByPlayer returns the session owned by playerID, if any.
func (s *SessionStore) GetByPlayer(playerID ident.PlayerID) (SessionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPlayer[playerID]
	if !ok {
		return SessionRecord{}, false
	}
	rec, ok := s.byID[id]
	if !ok {
		return SessionRecord{}, false
	}
	return rec.Clone(), true
}

// GetByToken returns the session holding the reconnect token, if any.
func (s *SessionStore) GetByToken(tok ident.Token) (SessionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byToken[tok]
	if !ok {
		return SessionRecord{}, false
	}
	rec, ok := s.byID[id]
	if !ok {
		return SessionRecord{}, false
	}
	return rec.Clone(), true
}

// DeleteByID removes the session and its index entries.
func (s *SessionStore) DeleteByID(id ident.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.byID[id]; ok {
		s.dropIndexes(rec)
		delete(s.byID, id)
	}
}

// ListRecords returns clones of every session.
func (s *SessionStore) ListRecords() []SessionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SessionRecord, 0, len(s.byID))
	for _, rec := range s.byID {
		out = append(out, rec.Clone())
	}
	return out
}

// ReplaceAll swaps the whole table, used on snapshot restore. Callers
// normalize restored records (disconnected, fresh deadlines) beforehand.
func (s *SessionStore) ReplaceAll(recs []SessionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[ident.SessionID]SessionRecord, len(recs))
	s.byPlayer = make(map[ident.PlayerID]ident.SessionID, len(recs))
	s.byToken = make(map[ident.Token]ident.SessionID, len(recs))
	for _, rec := range recs {
		s.byID[rec.SessionID] = rec.Clone()
		s.byPlayer[rec.PlayerID] = rec.SessionID
		s.byToken[rec.ReconnectToken] = rec.SessionID
	}
}

// IsExpired reports whether the session should be pruned at nowMs:
// disconnected sessions by retention, connected ones by TTL when set.
func (s *SessionStore) IsExpired(rec SessionRecord, nowMs int64) bool {
	if !rec.Connected {
		return nowMs > rec.UpdatedAtMs+s.retentionMs
	}
	return s.ttlMs != nil && nowMs > rec.UpdatedAtMs+*s.ttlMs
}

// PruneExpired deletes every expired session and returns the removed
// records, so callers can drop broker memberships.
func (s *SessionStore) PruneExpired() []SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowMs()
	var removed []SessionRecord
	for id, rec := range s.byID {
		expired := false
		if !rec.Connected {
			expired = now > rec.UpdatedAtMs+s.retentionMs
		} else {
			expired = s.ttlMs != nil && now > rec.UpdatedAtMs+*s.ttlMs
		}
		if expired {
			s.dropIndexes(rec)
			delete(s.byID, id)
			removed = append(removed, rec.Clone())
		}
	}
	return removed
}
