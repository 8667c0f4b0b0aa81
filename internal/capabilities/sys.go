package capabilities

import "crypto/rand"
import "encoding/binary"

// RoomResolver is the subset of internal/roomresolve.Resolver the sys
// capability needs. Kept as an interface here (rather than importing
// roomresolve directly) so capabilities stays free of a dependency on
// the transport-facing packages that sit above it.
type RoomResolver interface {
	Resolve(aliasOrID string) (roomID string, ok bool, err error)
}

// SysCapability implements sys.rand_u64 and sys.resolve_room.
type SysCapability struct {
	module   string
	resolver RoomResolver
}

// NewSysCapability returns a sys capability scoped to moduleName.
func NewSysCapability(moduleName string, resolver RoomResolver) *SysCapability {
	return &SysCapability{module: moduleName, resolver: resolver}
}

// RandU64 returns a cryptographically random 64-bit value.
//
// No library in the corpus offers a random-number primitive; crypto/rand
// is the standard library's own answer to "guest-visible randomness"
// and every alternative (math/rand, a vendored PRNG) is either weaker
// or unavailable here, so this one capability is built directly on it.
func (c *SysCapability) RandU64() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ResolveRoom resolves a room alias or ID to a canonical room ID,
// delegating to the host's room resolver.
func (c *SysCapability) ResolveRoom(aliasOrID string) (string, bool, error) {
	return c.resolver.Resolve(aliasOrID)
}
