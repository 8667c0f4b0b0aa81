package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trinitybot/trinity/internal/registry"
	"github.com/trinitybot/trinity/internal/runtime/runtimetest"
	"github.com/trinitybot/trinity/pkg/models"
)

const adminID = "@admin:example.org"

type stubResolver struct {
	resolved map[string]string
}

func (s stubResolver) Resolve(aliasOrID string) (string, bool, error) {
	if r, ok := s.resolved[aliasOrID]; ok {
		return r, true, nil
	}
	return "", false, nil
}

func newTestRegistry(modules map[string]*runtimetest.Fake) *registry.Registry {
	var entries []registry.Entry
	for name, fake := range modules {
		entries = append(entries, registry.Entry{
			Info:  models.ModuleInfo{Name: name},
			Guest: fake,
		})
	}
	return registry.NewFromModules(entries)
}

func TestDispatchAdminMissingModuleAndCommand(t *testing.T) {
	reg := newTestRegistry(nil)
	d := New(adminID, stubResolver{})

	actions := d.Handle(reg, models.InboundEvent{SenderID: adminID, Content: "!admin"})

	require.Len(t, actions, 1)
	assert.Equal(t, "missing module and command", actions[0].Text)
}

func TestDispatchAdminMissingCommand(t *testing.T) {
	reg := newTestRegistry(nil)
	d := New(adminID, stubResolver{})

	actions := d.Handle(reg, models.InboundEvent{SenderID: adminID, Content: "!admin linkify"})

	require.Len(t, actions, 1)
	assert.Equal(t, "missing command", actions[0].Text)
}

func TestDispatchAdminUnknownModule(t *testing.T) {
	reg := newTestRegistry(nil)
	d := New(adminID, stubResolver{})

	actions := d.Handle(reg, models.InboundEvent{SenderID: adminID, Content: "!admin linkify enable issue"})

	require.Len(t, actions, 1)
	assert.Equal(t, "Module 'linkify' not found", actions[0].Text)
}

func TestDispatchAdminRoutesToModuleAndShortCircuits(t *testing.T) {
	fake := runtimetest.New()
	fake.AdminFunc = func(command, senderID, roomID string) ([]models.Action, error) {
		return []models.Action{models.Respond("Rule has been created!", "", "")}, nil
	}
	other := runtimetest.New()
	other.OnMsgFunc = func(models.InboundEvent) ([]models.Action, error) {
		t.Fatal("module dispatch should not run after admin short-circuit")
		return nil, nil
	}

	reg := newTestRegistry(map[string]*runtimetest.Fake{"linkify": fake, "other": other})
	d := New(adminID, stubResolver{})

	actions := d.Handle(reg, models.InboundEvent{
		SenderID: adminID,
		Content:  `!admin linkify new issue "#([0-9]+)" https://example/$1`,
	})

	require.Len(t, actions, 1)
	assert.Equal(t, "Rule has been created!", actions[0].Text)
	require.Len(t, fake.AdminCalls, 1)
	assert.Equal(t, `new issue "#([0-9]+)" https://example/$1`, fake.AdminCalls[0])
}

func TestDispatchAdminWithRoomTarget(t *testing.T) {
	fake := runtimetest.New()
	var gotRoom string
	fake.AdminFunc = func(command, senderID, roomID string) ([]models.Action, error) {
		gotRoom = roomID
		return []models.Action{models.Respond("ok", "", "")}, nil
	}

	reg := newTestRegistry(map[string]*runtimetest.Fake{"mastodon": fake})
	d := New(adminID, stubResolver{resolved: map[string]string{"!OtherRoom": "!OtherRoom"}})

	d.Handle(reg, models.InboundEvent{
		SenderID: adminID,
		RoomID:   "!Here",
		Content:  "!admin mastodon !OtherRoom set-config http://x TOKEN",
	})

	assert.Equal(t, "!OtherRoom", gotRoom)
	require.Len(t, fake.AdminCalls, 1)
	assert.Equal(t, "set-config http://x TOKEN", fake.AdminCalls[0])
}

func TestDispatchAdminFromNonAdminFallsThroughToModules(t *testing.T) {
	fake := runtimetest.New()
	fake.OnMsgFunc = func(models.InboundEvent) ([]models.Action, error) {
		return []models.Action{models.Respond("handled as ordinary message", "", "")}, nil
	}

	reg := newTestRegistry(map[string]*runtimetest.Fake{"linkify": fake})
	d := New(adminID, stubResolver{})

	actions := d.Handle(reg, models.InboundEvent{SenderID: "@someone:example.org", Content: "!admin linkify CMD"})

	require.Len(t, actions, 1)
	assert.Equal(t, "handled as ordinary message", actions[0].Text)
}

func TestDispatchHelpSummary(t *testing.T) {
	fake := runtimetest.New()
	fake.HelpText = "does a thing"

	reg := newTestRegistry(map[string]*runtimetest.Fake{"linkify": fake})
	d := New(adminID, stubResolver{})

	actions := d.Handle(reg, models.InboundEvent{SenderID: "@u:example.org", Content: "!help"})

	require.Len(t, actions, 1)
	assert.Contains(t, actions[0].Text, "linkify: does a thing")
}

func TestDispatchHelpUnknownModule(t *testing.T) {
	reg := newTestRegistry(nil)
	d := New(adminID, stubResolver{})

	actions := d.Handle(reg, models.InboundEvent{SenderID: "@u:example.org", Content: "!help nope"})

	require.Len(t, actions, 1)
	assert.Equal(t, "module nope not found", actions[0].Text)
}

func TestDispatchOrdinaryFirstModuleWins(t *testing.T) {
	silent := runtimetest.New()
	responder := runtimetest.New()
	responder.OnMsgFunc = func(models.InboundEvent) ([]models.Action, error) {
		return []models.Action{models.Respond("got it", "", "")}, nil
	}
	neverCalled := runtimetest.New()
	neverCalled.OnMsgFunc = func(models.InboundEvent) ([]models.Action, error) {
		t.Fatal("module after the responder should not be tried")
		return nil, nil
	}

	var entries []registry.Entry
	entries = append(entries, registry.Entry{Info: models.ModuleInfo{Name: "silent"}, Guest: silent})
	entries = append(entries, registry.Entry{Info: models.ModuleInfo{Name: "responder"}, Guest: responder})
	entries = append(entries, registry.Entry{Info: models.ModuleInfo{Name: "never"}, Guest: neverCalled})
	reg := registry.NewFromModules(entries)

	d := New(adminID, stubResolver{})
	actions := d.Handle(reg, models.InboundEvent{SenderID: "@u:example.org", Content: "hello"})

	require.Len(t, actions, 1)
	assert.Equal(t, "got it", actions[0].Text)
}

func TestDispatchNonAdminCannotUseAdminCommandEvenWithAdminPrefix(t *testing.T) {
	fake := runtimetest.New()
	fake.AdminFunc = func(command, senderID, roomID string) ([]models.Action, error) {
		t.Fatal("admin export must not be invoked for a non-admin sender")
		return nil, nil
	}

	reg := newTestRegistry(map[string]*runtimetest.Fake{"linkify": fake})
	d := New(adminID, stubResolver{})

	d.Handle(reg, models.InboundEvent{SenderID: "@impostor:example.org", Content: "!admin linkify CMD"})
}
