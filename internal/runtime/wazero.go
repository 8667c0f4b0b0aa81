package runtime

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/trinitybot/trinity/internal/capabilities"
	"github.com/trinitybot/trinity/pkg/models"
)

// WazeroGuest is the production GuestModule: a compiled WebAssembly
// module running in its own wazero runtime, with one capability Set
// bound into its imports. Each module gets its own wazero.Runtime
// rather than sharing one across the registry, so a guest trapping or
// exhausting memory can never touch another module's instance.
type WazeroGuest struct {
	name   string
	rt     wazero.Runtime
	mod    api.Module
	caps   *capabilities.Set
}

// Compile compiles wasmBytes and instantiates it with the given
// capability set bound into its imports. The returned guest has not
// yet had Init called.
func Compile(ctx context.Context, name string, wasmBytes []byte, caps *capabilities.Set) (*WazeroGuest, error) {
	rt := wazero.NewRuntime(ctx)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI for module %s: %w", name, err)
	}

	g := &WazeroGuest{name: name, rt: rt, caps: caps}
	if err := g.bindImports(ctx); err != nil {
		rt.Close(ctx)
		return nil, err
	}

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("compile module %s: %w", name, err)
	}

	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate module %s: %w", name, err)
	}
	g.mod = mod

	return g, nil
}

// bindImports registers the four host-capability namespaces ("imports",
// "log", "sync-request", "kv") the same way the original component
// linker wired imports::Imports, log::Log and sync_request::SyncRequest
// to a per-module ModuleState, substituting ptr/len core-wasm functions
// for the Component Model's typed imports.
func (g *WazeroGuest) bindImports(ctx context.Context) error {
	imports := g.rt.NewHostModuleBuilder("imports")
	imports.NewFunctionBuilder().WithFunc(g.sysRandU64).Export("rand_u64")
	imports.NewFunctionBuilder().WithFunc(g.sysResolveRoom).Export("resolve_room")
	if _, err := imports.Instantiate(ctx); err != nil {
		return fmt.Errorf("bind imports namespace: %w", err)
	}

	logs := g.rt.NewHostModuleBuilder("log")
	logs.NewFunctionBuilder().WithFunc(g.logTrace).Export("trace")
	logs.NewFunctionBuilder().WithFunc(g.logDebug).Export("debug")
	logs.NewFunctionBuilder().WithFunc(g.logInfo).Export("info")
	logs.NewFunctionBuilder().WithFunc(g.logWarn).Export("warn")
	logs.NewFunctionBuilder().WithFunc(g.logError).Export("error")
	if _, err := logs.Instantiate(ctx); err != nil {
		return fmt.Errorf("bind log namespace: %w", err)
	}

	sync := g.rt.NewHostModuleBuilder("sync-request")
	sync.NewFunctionBuilder().WithFunc(g.runRequest).Export("run_request")
	if _, err := sync.Instantiate(ctx); err != nil {
		return fmt.Errorf("bind sync-request namespace: %w", err)
	}

	kv := g.rt.NewHostModuleBuilder("kv")
	kv.NewFunctionBuilder().WithFunc(g.kvGet).Export("get")
	kv.NewFunctionBuilder().WithFunc(g.kvSet).Export("set")
	kv.NewFunctionBuilder().WithFunc(g.kvRemove).Export("remove")
	if _, err := kv.Instantiate(ctx); err != nil {
		return fmt.Errorf("bind kv namespace: %w", err)
	}

	return nil
}

// ── imports::Imports ─────────────────────────────────────────

func (g *WazeroGuest) sysRandU64(ctx context.Context, mod api.Module) uint64 {
	v, err := g.caps.Sys.RandU64()
	if err != nil {
		g.caps.Log.Error("rand_u64: " + err.Error())
		return 0
	}
	return v
}

func (g *WazeroGuest) sysResolveRoom(ctx context.Context, mod api.Module, ptr, length uint32) (uint32, uint32) {
	raw, err := readMemory(mod, ptr, length)
	if err != nil {
		return g.writeErr(mod, err)
	}
	roomID, found, err := g.caps.Sys.ResolveRoom(string(raw))
	if err != nil {
		return g.writeErr(mod, err)
	}
	payload, err := okEnvelope(struct {
		Found  bool   `json:"found"`
		RoomID string `json:"room_id,omitempty"`
	}{Found: found, RoomID: roomID})
	if err != nil {
		return g.writeErr(mod, err)
	}
	return g.write(mod, payload)
}

// ── log::Log ─────────────────────────────────────────────────

func (g *WazeroGuest) logTrace(ctx context.Context, mod api.Module, ptr, length uint32) {
	if raw, err := readMemory(mod, ptr, length); err == nil {
		g.caps.Log.Trace(string(raw))
	}
}

func (g *WazeroGuest) logDebug(ctx context.Context, mod api.Module, ptr, length uint32) {
	if raw, err := readMemory(mod, ptr, length); err == nil {
		g.caps.Log.Debug(string(raw))
	}
}

func (g *WazeroGuest) logInfo(ctx context.Context, mod api.Module, ptr, length uint32) {
	if raw, err := readMemory(mod, ptr, length); err == nil {
		g.caps.Log.Info(string(raw))
	}
}

func (g *WazeroGuest) logWarn(ctx context.Context, mod api.Module, ptr, length uint32) {
	if raw, err := readMemory(mod, ptr, length); err == nil {
		g.caps.Log.Warn(string(raw))
	}
}

func (g *WazeroGuest) logError(ctx context.Context, mod api.Module, ptr, length uint32) {
	if raw, err := readMemory(mod, ptr, length); err == nil {
		g.caps.Log.Error(string(raw))
	}
}

// ── sync_request::SyncRequest ───────────────────────────────

func (g *WazeroGuest) runRequest(ctx context.Context, mod api.Module, ptr, length uint32) (uint32, uint32) {
	raw, err := readMemory(mod, ptr, length)
	if err != nil {
		return g.writeErr(mod, err)
	}
	var req models.SyncRequest
	if err := decodeJSON(raw, &req); err != nil {
		return g.writeErr(mod, err)
	}
	resp, runErr := g.caps.SyncRequest.RunRequest(req)
	if runErr != nil {
		return g.writeErr(mod, runErr)
	}
	payload, err := okEnvelope(resp)
	if err != nil {
		return g.writeErr(mod, err)
	}
	return g.write(mod, payload)
}

// ── kv ───────────────────────────────────────────────────────

func (g *WazeroGuest) kvGet(ctx context.Context, mod api.Module, ptr, length uint32) (uint32, uint32) {
	key, err := readMemory(mod, ptr, length)
	if err != nil {
		return g.writeErr(mod, err)
	}
	value, found, err := g.caps.KV.Get(key)
	if err != nil {
		return g.writeErr(mod, err)
	}
	payload, err := okEnvelope(struct {
		Found bool   `json:"found"`
		Value []byte `json:"value,omitempty"`
	}{Found: found, Value: value})
	if err != nil {
		return g.writeErr(mod, err)
	}
	return g.write(mod, payload)
}

func (g *WazeroGuest) kvSet(ctx context.Context, mod api.Module, keyPtr, keyLen, valPtr, valLen uint32) uint32 {
	key, err := readMemory(mod, keyPtr, keyLen)
	if err != nil {
		return 1
	}
	value, err := readMemory(mod, valPtr, valLen)
	if err != nil {
		return 1
	}
	if err := g.caps.KV.Set(key, value); err != nil {
		return 1
	}
	return 0
}

func (g *WazeroGuest) kvRemove(ctx context.Context, mod api.Module, keyPtr, keyLen uint32) uint32 {
	key, err := readMemory(mod, keyPtr, keyLen)
	if err != nil {
		return 1
	}
	if err := g.caps.KV.Remove(key); err != nil {
		return 1
	}
	return 0
}

// ── envelope helpers bound to this guest's memory ───────────

func (g *WazeroGuest) write(mod api.Module, payload []byte) (uint32, uint32) {
	p, l, err := writeResult(mod, payload)
	if err != nil {
		g.caps.Log.Error("runtime: " + err.Error())
		return 0, 0
	}
	return p, l
}

func (g *WazeroGuest) writeErr(mod api.Module, err error) (uint32, uint32) {
	return g.write(mod, errEnvelope(err.Error()))
}

// ── guest exports ────────────────────────────────────────────

func (g *WazeroGuest) Init(initConfig map[string]string) error {
	fn := g.mod.ExportedFunction("trinity_init")
	if fn == nil {
		return fmt.Errorf("module %s: missing export trinity_init", g.name)
	}
	argPtr, argLen, err := g.writeArg(initConfig)
	if err != nil {
		return err
	}
	results, err := fn.Call(context.Background(), uint64(argPtr), uint64(argLen))
	if err != nil {
		return fmt.Errorf("module %s: init trapped: %w", g.name, err)
	}
	return decodeEnvelope(g.mod, uint32(results[0]), uint32(results[1]), nil)
}

func (g *WazeroGuest) Help(topic *string) (string, error) {
	fn := g.mod.ExportedFunction("trinity_help")
	if fn == nil {
		return "", fmt.Errorf("module %s: missing export trinity_help", g.name)
	}
	argPtr, argLen, err := g.writeArg(topic)
	if err != nil {
		return "", err
	}
	results, err := fn.Call(context.Background(), uint64(argPtr), uint64(argLen))
	if err != nil {
		return "", fmt.Errorf("module %s: help trapped: %w", g.name, err)
	}
	var help string
	if err := decodeEnvelope(g.mod, uint32(results[0]), uint32(results[1]), &help); err != nil {
		return "", err
	}
	return help, nil
}

func (g *WazeroGuest) OnMsg(event models.InboundEvent) ([]models.Action, error) {
	fn := g.mod.ExportedFunction("trinity_on_msg")
	if fn == nil {
		return nil, fmt.Errorf("module %s: missing export trinity_on_msg", g.name)
	}
	argPtr, argLen, err := g.writeArg(event)
	if err != nil {
		return nil, err
	}
	results, err := fn.Call(context.Background(), uint64(argPtr), uint64(argLen))
	if err != nil {
		return nil, fmt.Errorf("module %s: on_msg trapped: %w", g.name, err)
	}
	var actions []models.Action
	if err := decodeEnvelope(g.mod, uint32(results[0]), uint32(results[1]), &actions); err != nil {
		return nil, err
	}
	return actions, nil
}

func (g *WazeroGuest) Admin(command string, senderID string, roomID string) ([]models.Action, error) {
	fn := g.mod.ExportedFunction("trinity_admin")
	if fn == nil {
		return nil, fmt.Errorf("module %s: missing export trinity_admin", g.name)
	}
	argPtr, argLen, err := g.writeArg(struct {
		Command  string `json:"command"`
		SenderID string `json:"sender_id"`
		RoomID   string `json:"room_id"`
	}{Command: command, SenderID: senderID, RoomID: roomID})
	if err != nil {
		return nil, err
	}
	results, err := fn.Call(context.Background(), uint64(argPtr), uint64(argLen))
	if err != nil {
		return nil, fmt.Errorf("module %s: admin trapped: %w", g.name, err)
	}
	var actions []models.Action
	if err := decodeEnvelope(g.mod, uint32(results[0]), uint32(results[1]), &actions); err != nil {
		return nil, err
	}
	return actions, nil
}

// writeArg JSON-encodes v and copies it into guest memory via alloc,
// the mirror image of writeResult used for host->guest calls.
func (g *WazeroGuest) writeArg(v any) (uint32, uint32, error) {
	raw, err := encodeJSON(v)
	if err != nil {
		return 0, 0, err
	}
	return writeResult(g.mod, raw)
}

func (g *WazeroGuest) Close() error {
	return g.rt.Close(context.Background())
}
