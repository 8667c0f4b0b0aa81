// Package roomresolve resolves a room alias or room id string to a
// canonical room id (C8), the shared building block behind the sys
// capability's resolve_room and the dispatcher's admin-command room
// targeting.
package roomresolve

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"maunium.net/go/mautrix/id"
)

// AliasLookup queries the transport for the room id behind a room
// alias. Resolved by internal/matrixtransport in production; tests
// supply a canned function instead of standing up a real client.
type AliasLookup func(alias id.RoomAlias) (id.RoomID, error)

// Resolver resolves room aliases to room ids, caching every successful
// lookup forever: once assigned, a room alias does not change which
// room it points to over the process lifetime we care about here.
type Resolver struct {
	lookup AliasLookup

	mu    sync.Mutex
	cache map[id.RoomAlias]id.RoomID
}

// New returns a Resolver that calls lookup for aliases not already cached.
func New(lookup AliasLookup) *Resolver {
	return &Resolver{lookup: lookup, cache: make(map[id.RoomAlias]id.RoomID)}
}

// Resolve turns aliasOrID into a canonical room id. Strings that look
// like neither a room id ("!...") nor a room alias ("#...") are not
// considered room references at all: ok is false and err is nil.
func (r *Resolver) Resolve(aliasOrID string) (string, bool, error) {
	switch {
	case strings.HasPrefix(aliasOrID, "!"):
		return aliasOrID, true, nil

	case strings.HasPrefix(aliasOrID, "#"):
		alias := id.RoomAlias(aliasOrID)

		r.mu.Lock()
		if cached, hit := r.cache[alias]; hit {
			r.mu.Unlock()
			return cached.String(), true, nil
		}
		r.mu.Unlock()

		var roomID id.RoomID
		op := func() error {
			resolved, err := r.lookup(alias)
			if err != nil {
				return err
			}
			roomID = resolved
			return nil
		}

		policy := backoff.WithMaxRetries(newBackoff(), 1)
		if err := backoff.Retry(op, policy); err != nil {
			return "", false, fmt.Errorf("resolve room alias %s: %w", alias, err)
		}

		r.mu.Lock()
		r.cache[alias] = roomID
		r.mu.Unlock()

		return roomID.String(), true, nil

	default:
		return "", false, nil
	}
}

func newBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return b
}
