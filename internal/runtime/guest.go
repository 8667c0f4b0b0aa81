// Package runtime hosts compiled guest modules: compiling WebAssembly
// bytes into an executable instance, wiring the four host capabilities
// into its imports, and driving its Init/Help/OnMsg/Admin exports.
//
// GuestModule is the seam between this package and internal/registry
// and internal/dispatch: production code runs against a wazero-backed
// instance, while registry and dispatcher tests run against an
// in-process double, since no compiled .wasm fixtures exist here.
package runtime

import "github.com/trinitybot/trinity/pkg/models"

// GuestModule is a single loaded module's callable surface, matching
// the four exports every guest provides.
type GuestModule interface {
	// Init runs once after instantiation, before the module can
	// receive any messages. initConfig is the module's entry (if any)
	// from the host's per-module init configuration (the "modules"
	// table), nil when the module has none.
	Init(initConfig map[string]string) error

	// Help returns the module's help text. topic is nil for the
	// module's top-level summary, or a module-defined topic string.
	Help(topic *string) (string, error)

	// OnMsg is called for every inbound room message, win-takes-all
	// across modules: dispatch stops at the first module returning a
	// non-empty action list.
	OnMsg(event models.InboundEvent) ([]models.Action, error)

	// Admin runs an admin-only command. command is everything left
	// after the module name (and an optional room token) is stripped
	// from "!admin MODULE [ROOM] command...". roomID is the resolved
	// target room: the explicit ROOM token if one was given and
	// resolved, otherwise the room the admin command was sent in.
	Admin(command string, senderID string, roomID string) ([]models.Action, error)

	// Close releases the guest instance's resources (compiled module,
	// linear memory). Called when the module is unloaded by a
	// hot-reload swap or host shutdown.
	Close() error
}
