// Package session holds the per-user browse state. State lives in process
// memory only; it is rebuilt from scratch after a restart.
package session

import (
	"sync"

	"github.com/confhub/confbot/internal/domain"
)

// Session is one user's active browse: the ordered result set most recently
// produced for them, the page they are looking at, and the keyboard context
// (tag filter, list ownership) needed to re-render that page. The id order
// is the producer's order and duplicates are kept as-is.
type Session struct {
	EventIDs []int64
	Page     int
	Tag      string
	MyList   bool
}

// Store maps a chat id to its active session. Every producer (tag filter,
// free-text search, category browse, shared-list lookup, notification
// drill-down) overwrites the previous session; there is no merging and no
// eviction.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[int64]Session)}
}

// Put overwrites the session for chatID. The id slice is copied so callers
// can keep mutating theirs.
func (s *Store) Put(chatID int64, eventIDs []int64, page int, tag string, myList bool) {
	ids := make([]int64, len(eventIDs))
	copy(ids, eventIDs)

	s.mu.Lock()
	s.sessions[chatID] = Session{EventIDs: ids, Page: page, Tag: tag, MyList: myList}
	s.mu.Unlock()
}

// SetPage updates only the page of an existing session. Unknown sessions
// report domain.ErrNotFound.
func (s *Store) SetPage(chatID int64, page int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		return domain.ErrNotFound
	}
	sess.Page = page
	s.sessions[chatID] = sess
	return nil
}

// Get returns the active session for chatID, or domain.ErrNotFound when the
// user has not browsed anything since the process started.
func (s *Store) Get(chatID int64) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		return Session{}, domain.ErrNotFound
	}
	ids := make([]int64, len(sess.EventIDs))
	copy(ids, sess.EventIDs)
	sess.EventIDs = ids
	return sess, nil
}

// Delete removes the session for chatID, if any.
func (s *Store) Delete(chatID int64) {
	s.mu.Lock()
	delete(s.sessions, chatID)
	s.mu.Unlock()
}
