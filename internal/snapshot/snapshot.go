// Package snapshot persists the runtime's stores as a single JSON file,
// written atomically (temp file, fsync, rename) so a crash mid-write can
// never leave a torn snapshot behind.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/decred/slog"

	"fun-euchre/internal/store"
)

// Schema identifies the snapshot file format.
const (
	Schema  = "fun-euchre.runtime.snapshot"
	Version = 1
)

// Snapshot is the on-disk representation of the three tables.
type Snapshot struct {
	Schema         string                `json:"schema"`
	Version        int                   `json:"version"`
	GeneratedAtMs  int64                 `json:"generatedAtMs"`
	LobbyRecords   []store.LobbyRecord   `json:"lobbyRecords"`
	GameRecords    []store.GameRecord    `json:"gameRecords"`
	SessionRecords []store.SessionRecord `json:"sessionRecords"`
}

// Repository reads and writes snapshots at a fixed path.
type Repository struct {
	path  string
	nowMs func() int64
	log   slog.Logger
}

// NewRepository builds a repository. A nil clock uses wall time.
func NewRepository(path string, nowMs func() int64, log slog.Logger) *Repository {
	if nowMs == nil {
		nowMs = func() int64 { return time.Now().UnixMilli() }
	}
	return &Repository{path: path, nowMs: nowMs, log: log}
}

// Save captures the three tables and atomically replaces the snapshot
// file.
func (r *Repository) Save(lobbies *store.LobbyStore, games *store.GameStore, sessions *store.SessionStore) error {
	snap := Snapshot{
		Schema:         Schema,
		Version:        Version,
		GeneratedAtMs:  r.nowMs(),
		LobbyRecords:   lobbies.ListRecords(),
		GameRecords:    games.ListRecords(),
		SessionRecords: sessions.ListRecords(),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("creating snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing snapshot temp file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("installing snapshot: %w", err)
	}
	r.log.Debugf("snapshot saved: %d lobbies, %d games, %d sessions",
		len(snap.LobbyRecords), len(snap.GameRecords), len(snap.SessionRecords))
	return nil
}

// Load reads the snapshot file. A missing file returns ok=false without
// error; a malformed or mismatched file is an error.
func (r *Repository) Load() (Snapshot, bool, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("reading snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("decoding snapshot: %w", err)
	}
	if snap.Schema != Schema {
		return Snapshot{}, false, fmt.Errorf("unexpected snapshot schema %q", snap.Schema)
	}
	if snap.Version != Version {
		return Snapshot{}, false, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	return snap, true, nil
}

// Restore replaces the store contents from a snapshot. Every restored
// session is normalized to disconnected with a fresh reconnect deadline:
// no socket survives a restart, so each client gets the full grace window
// to come back.
func Restore(snap Snapshot, lobbies *store.LobbyStore, games *store.GameStore, sessions *store.SessionStore, nowMs, graceMs int64) {
	lobbies.ReplaceAll(snap.LobbyRecords)
	games.ReplaceAll(snap.GameRecords)

	restored := make([]store.SessionRecord, 0, len(snap.SessionRecords))
	for _, rec := range snap.SessionRecords {
		rec.Connected = false
		deadline := nowMs + graceMs
		rec.ReconnectByMs = &deadline
		restored = append(restored, rec)
	}
	sessions.ReplaceAll(restored)
}
