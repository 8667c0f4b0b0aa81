// Package models holds the data types shared across the Trinity host:
// the capability wire shapes guest modules exchange with the host, the
// actions a guest can emit, and the module bookkeeping records the
// registry and runtime operate on.
package models

import "time"

// ── Config ───────────────────────────────────────────────────

// Config is the fully-resolved configuration the host is constructed
// from. It is produced by internal/config and never re-read once the
// host starts.
type Config struct {
	Homeserver       string
	BotUserID        string
	BotPassword      string
	TransportStore   string // path to the chat transport's own state directory
	AdminKVPath      string // path to the single admin+module KV database file
	AdminUserID      string
	ModuleDirs       []string
	ModuleInitConfig map[string]map[string]string // module name -> init config
}

// ── Action ───────────────────────────────────────────────────

// ActionKind discriminates the Action tagged union.
type ActionKind string

const (
	ActionRespond ActionKind = "respond"
	ActionReact   ActionKind = "react"
)

// Action is a guest-emitted instruction to send a message or react to
// the triggering event. Exactly one of the Respond/React fields is
// meaningful, selected by Kind.
type Action struct {
	Kind ActionKind

	// Respond fields.
	Text string
	HTML string // optional; empty means "no HTML alternative"
	To   string // opaque recipient tag the transport interprets

	// React fields.
	Reaction string
}

// Respond builds a Respond action.
func Respond(text, html, to string) Action {
	return Action{Kind: ActionRespond, Text: text, HTML: html, To: to}
}

// React builds a React action.
func React(reaction string) Action {
	return Action{Kind: ActionReact, Reaction: reaction}
}

// ── Sync-request capability wire shapes ─────────────────────

// Verb is an HTTP method allowed through the sync-request capability.
type Verb string

const (
	VerbGet    Verb = "GET"
	VerbPut    Verb = "PUT"
	VerbPost   Verb = "POST"
	VerbDelete Verb = "DELETE"
)

// SyncRequest is the request a guest sends to run_request.
type SyncRequest struct {
	Verb    Verb
	URL     string
	Headers map[string]string
	Body    *string
}

// ResponseStatus buckets an HTTP response by status class.
type ResponseStatus string

const (
	StatusSuccess ResponseStatus = "success" // 2xx
	StatusError   ResponseStatus = "error"   // everything else
)

// SyncResponse is the response run_request hands back to the guest.
type SyncResponse struct {
	Status ResponseStatus
	Body   *string
}

// RunErrorKind distinguishes a malformed request from a transport failure.
type RunErrorKind string

const (
	RunErrorBuilder RunErrorKind = "builder"
	RunErrorExecute RunErrorKind = "execute"
)

// RunError is the guest-visible error from run_request.
type RunError struct {
	Kind    RunErrorKind
	Message string
}

func (e *RunError) Error() string { return string(e.Kind) + ": " + e.Message }

// ── KV capability wire shapes ────────────────────────────────

// KVErrorKind enumerates kv-error variants. Currently only Internal exists.
type KVErrorKind string

const KVErrorInternal KVErrorKind = "internal"

// KVError is the guest-visible error from the kv capability.
type KVError struct {
	Kind    KVErrorKind
	Message string
}

func (e *KVError) Error() string { return string(e.Kind) + ": " + e.Message }

// ── Module record ────────────────────────────────────────────

// ModuleInfo is the read-only bookkeeping the registry and admin API
// expose about a loaded module. It never holds the live guest state
// or compiled artefact directly (those are owned by internal/runtime).
type ModuleInfo struct {
	Name      string
	Path      string
	LoadedAt  time.Time
	InitError string // non-empty if the module failed to load (read, compile, instantiate or init) and was skipped
}

// ── Event-in / Action-out contracts (§6) ─────────────────────

// InboundEvent is what the transport delivers to the dispatcher for
// every textual message from a joined room.
type InboundEvent struct {
	RoomID     string
	SenderID   string
	SenderName string
	Content    string
	EventID    string
}
