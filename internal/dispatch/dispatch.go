// Package dispatch implements the host's message-routing logic (C6):
// admin commands, help text, and ordinary module message handling, in
// that priority order, against a single registry.Registry.
package dispatch

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/trinitybot/trinity/internal/metrics"
	"github.com/trinitybot/trinity/internal/registry"
	"github.com/trinitybot/trinity/internal/telemetry"
	"github.com/trinitybot/trinity/pkg/models"
)

// RoomResolver is the subset of internal/roomresolve.Resolver the
// admin path needs to decide whether a command's second token is a
// room target or part of the command itself.
type RoomResolver interface {
	Resolve(aliasOrID string) (roomID string, ok bool, err error)
}

// Dispatcher routes inbound events to the admin handler, the help
// handler, or the first module willing to respond, serialized behind
// the registry's dispatch mutex.
type Dispatcher struct {
	adminUserID string
	rooms       RoomResolver
}

// New returns a Dispatcher that treats adminUserID as the only sender
// allowed to issue "!admin" commands, using rooms to resolve optional
// room targets in admin commands.
func New(adminUserID string, rooms RoomResolver) *Dispatcher {
	return &Dispatcher{adminUserID: adminUserID, rooms: rooms}
}

// Handle routes one inbound event against reg and returns the actions
// to emit, in priority order: admin, then help, then modules in
// discovery order, first non-empty result wins.
func (d *Dispatcher) Handle(reg *registry.Registry, event models.InboundEvent) []models.Action {
	start := time.Now()
	_, span := telemetry.StartDispatchSpan(context.Background(), event.RoomID)
	defer span.End()

	reg.Lock()
	defer reg.Unlock()

	if event.SenderID == d.adminUserID {
		if actions, handled := d.tryAdmin(reg, event); handled {
			log.Trace().Msg("dispatch: handled by admin, skipping modules")
			telemetry.SetDispatchPath(span, "admin")
			metrics.ObserveDispatch("admin", start)
			return actions
		}
	}

	if actions, handled := d.tryHelp(reg, event.Content); handled {
		log.Trace().Msg("dispatch: handled by help, skipping modules")
		telemetry.SetDispatchPath(span, "help")
		metrics.ObserveDispatch("help", start)
		return actions
	}

	for _, entry := range reg.Loaded() {
		log.Trace().Str("module", entry.Info.Name).Msg("dispatch: trying module")

		actions, err := entry.Guest.OnMsg(event)
		if err != nil {
			log.Warn().Err(err).Str("module", entry.Info.Name).Msg("dispatch: module error")
			continue
		}
		if len(actions) > 0 {
			log.Trace().Str("module", entry.Info.Name).Msg("dispatch: module responded")
			telemetry.SetDispatchPath(span, "module")
			metrics.ObserveDispatch("module", start)
			return actions
		}
	}

	telemetry.SetDispatchPath(span, "unhandled")
	metrics.ObserveDispatch("unhandled", start)
	return nil
}

// tryAdmin implements "!admin MODULE [ROOM] CMD..." dispatch. The
// second return value reports whether "!admin" prefixed content at
// all — once it has, the event is always considered handled (by a
// reply, an error log, or a module's actions), never falling through
// to help or ordinary module dispatch.
func (d *Dispatcher) tryAdmin(reg *registry.Registry, event models.InboundEvent) ([]models.Action, bool) {
	rest, isAdmin := strings.CutPrefix(event.Content, "!admin")
	if !isAdmin {
		return nil, false
	}

	rest = strings.TrimSpace(strings.TrimPrefix(rest, " "))
	if rest == "" {
		return []models.Action{models.Respond("missing module and command", "", "")}, true
	}

	moduleName, tail, hasTail := strings.Cut(rest, " ")
	if !hasTail || strings.TrimSpace(tail) == "" {
		return []models.Action{models.Respond("missing command", "", "")}, true
	}
	tail = strings.TrimSpace(tail)

	// The tail's first token may itself be a room alias/id target: if
	// it resolves, that room is the command's target room and the
	// remainder is the command; otherwise the whole tail is the
	// command and the triggering room is the target.
	targetRoom := event.RoomID
	command := tail
	if maybeRoom, cmdRest, has := strings.Cut(tail, " "); has {
		if resolved, ok, err := d.rooms.Resolve(maybeRoom); err == nil && ok {
			targetRoom = resolved
			command = strings.TrimSpace(cmdRest)
		}
	}

	entry, ok := reg.Find(moduleName)
	if !ok {
		return []models.Action{models.Respond("Module '" + moduleName + "' not found", "", "")}, true
	}

	actions, err := entry.Guest.Admin(command, event.SenderID, targetRoom)
	if err != nil {
		log.Error().Err(err).Str("module", moduleName).Msg("dispatch: admin command error")
		return nil, true
	}
	return actions, true
}

// tryHelp implements "!help" (module summary listing) and
// "!help MODULE [topic]" (per-module help) dispatch.
func (d *Dispatcher) tryHelp(reg *registry.Registry, content string) ([]models.Action, bool) {
	rest, isHelp := strings.CutPrefix(content, "!help")
	if !isHelp {
		return nil, false
	}

	rest = strings.TrimSpace(rest)
	if rest == "" {
		return []models.Action{d.summarizeHelp(reg)}, true
	}

	moduleName, topic, hasTopic := strings.Cut(rest, " ")
	var topicPtr *string
	if hasTopic {
		t := strings.TrimSpace(topic)
		topicPtr = &t
	}

	entry, ok := reg.Find(moduleName)
	if !ok {
		msg := "module " + moduleName + " not found"
		return []models.Action{models.Respond(msg, msg, "")}, true
	}

	help, err := entry.Guest.Help(topicPtr)
	if err != nil {
		log.Error().Err(err).Str("module", moduleName).Msg("dispatch: help command error")
		help = "<missing>"
	}
	return []models.Action{models.Respond(help, help, "")}, true
}

func (d *Dispatcher) summarizeHelp(reg *registry.Registry) models.Action {
	var text, html strings.Builder
	text.WriteString("Available modules:")
	html.WriteString("Available modules: <ul>")

	for _, entry := range reg.Loaded() {
		help, err := entry.Guest.Help(nil)
		if err != nil {
			log.Error().Err(err).Str("module", entry.Info.Name).Msg("dispatch: help command error")
			help = "<missing>"
		}
		text.WriteString("\n- " + entry.Info.Name + ": " + help)
		html.WriteString("<li><b>" + entry.Info.Name + "</b>: " + help + "</li>")
	}
	html.WriteString("</ul>")

	return models.Respond(text.String(), html.String(), "")
}
