// Package runtimetest provides a GuestModule double for exercising
// internal/registry and internal/dispatch without a compiled .wasm
// binary, the same role a hand-written stub plays in the teacher's
// own in-memory store tests.
package runtimetest

import "github.com/trinitybot/trinity/pkg/models"

// Fake is a GuestModule controlled entirely by the test: Init, OnMsg
// and Admin calls are recorded, Close calls are counted, and every
// return value is whatever the test set up.
type Fake struct {
	HelpText    string
	HelpErr     error
	OnMsgFunc   func(models.InboundEvent) ([]models.Action, error)
	AdminFunc   func(command, senderID, roomID string) ([]models.Action, error)
	InitErr     error
	ClosedCount int

	InitCalls  []map[string]string
	OnMsgCalls []models.InboundEvent
	AdminCalls []string
}

func New() *Fake { return &Fake{} }

func (f *Fake) Init(initConfig map[string]string) error {
	f.InitCalls = append(f.InitCalls, initConfig)
	return f.InitErr
}

func (f *Fake) Help(topic *string) (string, error) {
	return f.HelpText, f.HelpErr
}

func (f *Fake) OnMsg(event models.InboundEvent) ([]models.Action, error) {
	f.OnMsgCalls = append(f.OnMsgCalls, event)
	if f.OnMsgFunc != nil {
		return f.OnMsgFunc(event)
	}
	return nil, nil
}

func (f *Fake) Admin(command, senderID, roomID string) ([]models.Action, error) {
	f.AdminCalls = append(f.AdminCalls, command)
	if f.AdminFunc != nil {
		return f.AdminFunc(command, senderID, roomID)
	}
	return nil, nil
}

func (f *Fake) Close() error {
	f.ClosedCount++
	return nil
}
