// Package matrixtransport implements transport.EventSource and
// transport.ActionSink (A5) over a real Matrix connection via
// maunium.net/go/mautrix, and exposes the alias-resolution hook
// internal/roomresolve needs.
package matrixtransport

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/crypto/cryptohelper"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/trinitybot/trinity/pkg/models"
)

// Client wraps a mautrix.Client, adapting it to this host's transport
// and room-resolution seams.
type Client struct {
	mx   *mautrix.Client
	self id.UserID
}

// Config is what Client needs to log in and start syncing.
type Config struct {
	Homeserver string
	UserID     string
	Password   string
	StorePath  string // sqlite state store, also backs the crypto helper
	DeviceID   string // persisted across restarts so e2ee device trust survives them
}

// Connect logs into the homeserver with a password grant and prepares
// end-to-end crypto via cryptohelper, the same bootstrap shape used by
// mautrix-based bots generally: login once, then Sync drives events.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	mx, err := mautrix.NewClient(cfg.Homeserver, "", "")
	if err != nil {
		return nil, fmt.Errorf("matrixtransport: create client: %w", err)
	}
	mx.UserID = id.UserID(cfg.UserID)

	_, err = mx.Login(ctx, &mautrix.ReqLogin{
		Type:             mautrix.AuthTypePassword,
		Identifier:       mautrix.UserIdentifier{Type: mautrix.IdentifierTypeUser, User: cfg.UserID},
		Password:         cfg.Password,
		DeviceID:         id.DeviceID(cfg.DeviceID),
		StoreCredentials: true,
	})
	if err != nil {
		return nil, fmt.Errorf("matrixtransport: login: %w", err)
	}

	helper, err := cryptohelper.NewCryptoHelper(mx, []byte("trinity"), cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("matrixtransport: crypto helper: %w", err)
	}
	if err := helper.Init(ctx); err != nil {
		return nil, fmt.Errorf("matrixtransport: crypto helper init: %w", err)
	}
	mx.Crypto = helper

	return &Client{mx: mx, self: mx.UserID}, nil
}

// Run starts the sync loop, invoking onEvent for every joined-room
// text message not sent by the bot itself. It blocks until ctx is
// cancelled or the sync loop fails fatally.
func (c *Client) Run(ctx context.Context, onEvent func(models.InboundEvent)) error {
	syncer := c.mx.Syncer.(*mautrix.DefaultSyncer)

	syncer.OnEventType(event.EventMessage, func(ctx context.Context, evt *event.Event) {
		if evt.Sender == c.self {
			return
		}
		content, ok := evt.Content.Parsed.(*event.MessageEventContent)
		if !ok || content.MsgType != event.MsgText {
			return
		}
		onEvent(models.InboundEvent{
			RoomID:     evt.RoomID.String(),
			SenderID:   evt.Sender.String(),
			SenderName: evt.Sender.String(), // the sender's user id; no display name lookup is made
			Content:    content.Body,
			EventID:    evt.ID.String(),
		})
	})

	syncer.OnEventType(event.StateMember, func(ctx context.Context, evt *event.Event) {
		if evt.GetStateKey() != c.self.String() {
			return
		}
		membership, ok := evt.Content.Parsed.(*event.MemberEventContent)
		if !ok || membership.Membership != event.MembershipInvite {
			return
		}
		go func() {
			if _, err := c.mx.JoinRoomByID(context.Background(), evt.RoomID); err != nil {
				log.Warn().Err(err).Str("room", evt.RoomID.String()).Msg("matrixtransport: autojoin failed")
			}
		}()
	})

	return c.mx.SyncWithContext(ctx)
}

// Send carries outbound actions back to roomID: Respond becomes a
// (possibly HTML-formatted) text message, React becomes a reaction on
// eventID, the event that triggered the dispatch.
func (c *Client) Send(ctx context.Context, roomID string, eventID string, actions []models.Action) error {
	room := id.RoomID(roomID)
	for _, action := range actions {
		switch action.Kind {
		case models.ActionRespond:
			content := &event.MessageEventContent{MsgType: event.MsgText, Body: action.Text}
			if action.HTML != "" {
				content.Format = event.FormatHTML
				content.FormattedBody = action.HTML
			}
			if _, err := c.mx.SendMessageEvent(ctx, room, event.EventMessage, content); err != nil {
				return fmt.Errorf("matrixtransport: send message: %w", err)
			}

		case models.ActionReact:
			if eventID == "" {
				log.Warn().Str("reaction", action.Reaction).Msg("matrixtransport: no triggering event id, dropping reaction")
				continue
			}
			if _, err := c.mx.SendReaction(ctx, room, id.EventID(eventID), action.Reaction); err != nil {
				return fmt.Errorf("matrixtransport: send reaction: %w", err)
			}
		}
	}
	return nil
}

// ResolveAlias looks up the room id behind a room alias, the hook
// internal/roomresolve calls on a cache miss.
func (c *Client) ResolveAlias(alias id.RoomAlias) (id.RoomID, error) {
	resp, err := c.mx.ResolveAlias(context.Background(), alias)
	if err != nil {
		return "", err
	}
	return resp.RoomID, nil
}
