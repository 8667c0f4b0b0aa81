package capabilities

import "github.com/rs/zerolog"

// Set bundles the four capabilities granted to a single module
// instance. pkg/host builds one Set per module and internal/runtime
// wires its methods to the guest's imports.
type Set struct {
	Log          *LogCapability
	Sys          *SysCapability
	SyncRequest  *SyncRequestCapability
	KV           *KVCapability
}

// NewSet constructs the capability set for moduleName.
func NewSet(moduleName string, logger zerolog.Logger, resolver RoomResolver, kv ModuleStore) *Set {
	return &Set{
		Log:         NewLogCapability(moduleName, logger),
		Sys:         NewSysCapability(moduleName, resolver),
		SyncRequest: NewSyncRequestCapability(moduleName),
		KV:          NewKVCapability(moduleName, kv),
	}
}
