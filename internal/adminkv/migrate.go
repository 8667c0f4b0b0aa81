package adminkv

import (
	"os"

	"github.com/rs/zerolog/log"
)

// CurrentSchemaVersion is the schema version this build expects.
const CurrentSchemaVersion = 1

// Migrate brings the admin table from whatever version it was last
// written at up to CurrentSchemaVersion. Each migration step is
// idempotent: running Migrate twice against an already-migrated
// database is a no-op.
//
// transportStorePath is the chat transport's own state directory. The
// version 0 -> 1 migration removes it, because the transport's on-disk
// layout and the host's persistent session keys (device_id) were
// co-versioned: bumping one without wiping the other leaves an
// unusable store.
func Migrate(t *Table, transportStorePath string) error {
	version, ok, err := t.ReadU64(KeyVersion)
	if err != nil {
		return err
	}
	if !ok {
		version = 0
	}

	if version == 0 && CurrentSchemaVersion >= 1 {
		log.Warn().Msg("adminkv: migrating schema 0 -> 1: wiping transport store and device_id")

		if transportStorePath != "" {
			if err := os.RemoveAll(transportStorePath); err != nil {
				return err
			}
		}
		if err := t.Remove(KeyDeviceID); err != nil {
			return err
		}
		if err := t.WriteU64(KeyVersion, 1); err != nil {
			return err
		}
		version = 1
	}

	if version > CurrentSchemaVersion {
		log.Warn().
			Uint64("on_disk_version", version).
			Int("build_version", CurrentSchemaVersion).
			Msg("adminkv: database schema is newer than this build expects")
	}

	return nil
}
