package runtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// Every export and import in this file substitutes for the WIT
// Component Model interfaces the original host linked against
// (imports.wit, log.wit, sync-request.wit, exports.wit). wazero does
// not implement the Component Model, so each WIT function becomes a
// pair of core-wasm exports/imports exchanging a JSON envelope over
// linear memory instead of the canonical ABI's typed lifting. The
// function names and payload shapes are otherwise a direct translation
// of the WIT signatures.

// envelope is the wire shape every cross-boundary call uses: a JSON
// object carrying either a value or an error, never both.
type envelope struct {
	OK    bool            `json:"ok"`
	Value json.RawMessage `json:"value,omitempty"`
	Error string          `json:"error,omitempty"`
}

func okEnvelope(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{OK: true, Value: raw})
}

func errEnvelope(msg string) []byte {
	b, _ := json.Marshal(envelope{OK: false, Error: msg})
	return b
}

// readMemory reads a (ptr, len) pair out of a module's linear memory.
func readMemory(mod api.Module, ptr, length uint32) ([]byte, error) {
	data, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("runtime: read out of bounds at %d+%d", ptr, length)
	}
	return append([]byte(nil), data...), nil
}

// writeResult copies data into guest memory by first asking the
// guest's own "alloc" export for a big-enough buffer, then writing
// into it. This is how a host function hands variable-length results
// back to the guest without the guest having to pre-size a buffer.
func writeResult(mod api.Module, data []byte) (ptr uint32, length uint32, err error) {
	alloc := mod.ExportedFunction("alloc")
	if alloc == nil {
		return 0, 0, fmt.Errorf("runtime: guest module does not export alloc")
	}
	res, err := alloc.Call(context.Background(), uint64(len(data)))
	if err != nil {
		return 0, 0, fmt.Errorf("runtime: alloc call failed: %w", err)
	}
	p := uint32(res[0])
	if !mod.Memory().Write(p, data) {
		return 0, 0, fmt.Errorf("runtime: write out of bounds at %d+%d", p, len(data))
	}
	return p, uint32(len(data)), nil
}

// encodeJSON and decodeJSON are the plain (non-envelope) codec for call
// arguments, which carry a bare value rather than an ok/error envelope:
// encodeJSON for arguments the host passes to guest exports, decodeJSON
// for arguments a guest passes to host imports.
func encodeJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

func decodeJSON(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// decodeEnvelope reads a (ptr, len) result pair produced by a guest
// export and decodes it into v, returning the guest-reported error (if
// any) as a Go error.
func decodeEnvelope(mod api.Module, ptr, length uint32, v any) error {
	raw, err := readMemory(mod, ptr, length)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("runtime: malformed envelope: %w", err)
	}
	if !env.OK {
		return fmt.Errorf("guest error: %s", env.Error)
	}
	if v == nil || len(env.Value) == 0 {
		return nil
	}
	return json.Unmarshal(env.Value, v)
}
