// Package actor maintains the relay's registry of locally derived actor
// identities. Actor IDs are deterministic digests of either a Matrix user ID
// or a public key, so the same input always resolves to the same actor.
package actor

import (
	"encoding/hex"
	"sync"

	"github.com/zeebo/blake3"
	"maunium.net/go/mautrix/id"
)

// Derivation domains keep user-derived and pubkey-derived IDs from
// colliding even when the raw inputs happen to match.
const (
	domainUser   = "actor.user"
	domainPubkey = "actor.pubkey"
)

// Actor is a locally derived identity record, distinct from the Matrix
// user ID it was derived from. Immutable once created; re-deriving with
// the same input yields the same ID and refreshes Data.
type Actor struct {
	ID   string
	Data map[string]any
}

// Registry maps Matrix user IDs to actors. It is owned by a single adapter
// instance and safe for concurrent use: command-surface calls run on caller
// goroutines while the dispatch loop resolves inbound senders.
type Registry struct {
	mu     sync.Mutex
	actors map[string]Actor
	users  map[id.UserID]string
}

func NewRegistry() *Registry {
	return &Registry{
		actors: make(map[string]Actor),
		users:  make(map[id.UserID]string),
	}
}

// EnsureUser derives the actor for a Matrix user ID, inserting or
// refreshing the record. Idempotent, never fails.
func (r *Registry) EnsureUser(userID id.UserID) Actor {
	act := Actor{
		ID:   deriveID(domainUser, string(userID)),
		Data: map[string]any{"mxid": string(userID)},
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actors[act.ID] = act
	r.users[userID] = act.ID
	return act
}

// EnsureFromPubkey derives the canonical actor for a public key. The ID
// depends on the pubkey only; no other identity fields participate.
func (r *Registry) EnsureFromPubkey(pubkey string) Actor {
	act := Actor{
		ID:   deriveID(domainPubkey, pubkey),
		Data: map[string]any{"pubkey": pubkey},
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actors[act.ID] = act
	return act
}

// Lookup returns the actor previously derived for a Matrix user ID.
func (r *Registry) Lookup(userID id.UserID) (Actor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	actorID, ok := r.users[userID]
	if !ok {
		return Actor{}, false
	}
	act, ok := r.actors[actorID]
	return act, ok
}

// Get returns the actor record for a derived actor ID.
func (r *Registry) Get(actorID string) (Actor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	act, ok := r.actors[actorID]
	return act, ok
}

// Len reports the number of distinct actors in the registry.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actors)
}

func deriveID(domain, input string) string {
	h := blake3.New()
	h.Write([]byte(domain))
	h.Write([]byte{0})
	h.Write([]byte(input))
	return hex.EncodeToString(h.Sum(nil)[:20])
}
