package session

import (
	"errors"
	"sort"
	"sync"
)

// ErrSessionExists is returned by Put when a live session already uses the
// key.
var ErrSessionExists = errors.New("session key already registered")

// Registry tracks the open sessions of every user. Each user has an
// independent bucket created on first use; lookups for unknown users see an
// empty bucket.
type Registry struct {
	mu    sync.Mutex
	users map[string]*bucket
}

type bucket struct {
	mu       sync.RWMutex
	sessions map[string]*Entry // key -> entry
}

func NewRegistry() *Registry {
	return &Registry{
		users: make(map[string]*bucket),
	}
}

func (r *Registry) bucket(userID string) *bucket {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.users[userID]
	if !ok {
		b = &bucket{sessions: make(map[string]*Entry)}
		r.users[userID] = b
	}
	return b
}

// Put registers e under key. A dead session under the same key is replaced
// and returned so the caller can release it.
func (r *Registry) Put(userID, key string, e *Entry) (*Entry, error) {
	b := r.bucket(userID)
	b.mu.Lock()
	defer b.mu.Unlock()

	cur, ok := b.sessions[key]
	if ok && cur.Session.Alive() {
		return nil, ErrSessionExists
	}
	e.Key = key
	b.sessions[key] = e
	return cur, nil
}

func (r *Registry) Get(userID, key string) (*Entry, bool) {
	b := r.bucket(userID)
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.sessions[key]
	return e, ok
}

// Remove drops key and returns the entry that was registered.
func (r *Registry) Remove(userID, key string) (*Entry, bool) {
	b := r.bucket(userID)
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.sessions[key]
	if ok {
		delete(b.sessions, key)
	}
	return e, ok
}

// RemoveAll drops every session of the user and returns them.
func (r *Registry) RemoveAll(userID string) []*Entry {
	b := r.bucket(userID)
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*Entry, 0, len(b.sessions))
	for key, e := range b.sessions {
		out = append(out, e)
		delete(b.sessions, key)
	}
	sortEntries(out)
	return out
}

// List returns the sessions of the user ordered by key.
func (r *Registry) List(userID string) []*Entry {
	b := r.bucket(userID)
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*Entry, 0, len(b.sessions))
	for _, e := range b.sessions {
		out = append(out, e)
	}
	sortEntries(out)
	return out
}

// Users returns the users that have a bucket, sorted.
func (r *Registry) Users() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.users))
	for u := range r.users {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

func sortEntries(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})
}
