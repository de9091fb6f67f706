// Package presence keeps the process-wide registry of who is connected, their status and
// the job rooms they have joined.
package presence

import (
	"context"
	"errors"
	"slices"
	"time"
)

// Statuses a user can report.
const (
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusBusy    = "busy"
	StatusOffline = "offline"
)

var (
	// ErrNotFound is returned when no entry exists for the user.
	ErrNotFound = errors.New("presence entry not found")
	// ErrStaleConnection is returned when the entry belongs to a newer connection of the same user.
	ErrStaleConnection = errors.New("presence entry owned by another connection")
)

// ValidStatus reports whether s is one of the known statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusOffline:
		return true
	}
	return false
}

// Entry is the registry record of one user. Only the connection named by ConnID may change it.
//
// Connected stays true from Register until MarkOffline, whatever Status the user picks, so a
// user who appears offline on purpose is never evicted.
type Entry struct {
	UserID     string    `json:"userId"`
	ConnID     string    `json:"connId"`
	Generation uint64    `json:"generation"`
	Status     string    `json:"status"`
	Connected  bool      `json:"connected"`
	LastSeen   time.Time `json:"lastSeen"`
	Rooms      []string  `json:"rooms"`
}

// Evictable reports whether the entry belongs to a closed connection last seen before cutoff.
func (e Entry) Evictable(cutoff time.Time) bool {
	return !e.Connected && e.LastSeen.Before(cutoff)
}

// Store is the presence registry.
//
// Register always overwrites the user's entry and hands ownership to connID. Every other
// mutation returns ErrStaleConnection when connID no longer owns the entry, leaving it untouched.
type Store interface {
	Register(ctx context.Context, userID, connID string, at time.Time) (Entry, error)
	Get(ctx context.Context, userID string) (Entry, error)
	AddRoom(ctx context.Context, userID, connID, room string) error
	RemoveRoom(ctx context.Context, userID, connID, room string) error
	SetStatus(ctx context.Context, userID, connID, status string, at time.Time) error
	MarkOffline(ctx context.Context, userID, connID string, at time.Time) error
	// Evict removes disconnected entries last seen before cutoff and returns how many were removed.
	Evict(ctx context.Context, cutoff time.Time) (int, error)
}

// mutation is applied to an entry owned by the calling connection.
type mutation func(e *Entry)

func addRoom(room string) mutation {
	return func(e *Entry) {
		if !slices.Contains(e.Rooms, room) {
			e.Rooms = append(e.Rooms, room)
		}
	}
}

func removeRoom(room string) mutation {
	return func(e *Entry) {
		e.Rooms = slices.DeleteFunc(e.Rooms, func(r string) bool { return r == room })
	}
}

func setStatus(status string, at time.Time) mutation {
	return func(e *Entry) {
		e.Status = status
		e.LastSeen = at
	}
}

func disconnect(at time.Time) mutation {
	return func(e *Entry) {
		e.Status = StatusOffline
		e.Connected = false
		e.LastSeen = at
	}
}

func (e Entry) clone() Entry {
	e.Rooms = slices.Clone(e.Rooms)
	return e
}
