package driver

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

// WhatsmeowFactory builds drivers backed by whatsmeow. Each session gets its
// own sqlite credential store inside its auth directory, so tenant
// credentials never share a file.
type WhatsmeowFactory struct{}

func (WhatsmeowFactory) New(sessionID, authDir string, handlers Handlers) (Driver, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(authDir, "auth.db"))
	container, err := sqlstore.New("sqlite3", dsn, waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("open auth store: %w", err)
	}

	device, err := container.GetFirstDevice()
	if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}

	d := &whatsmeowDriver{
		sessionID: sessionID,
		client:    whatsmeow.NewClient(device, waLog.Noop),
		handlers:  handlers,
	}
	d.client.AddEventHandler(d.handleEvent)
	return d, nil
}

type whatsmeowDriver struct {
	sessionID string
	client    *whatsmeow.Client
	handlers  Handlers
	readyOnce sync.Once
}

func (d *whatsmeowDriver) Initialize(ctx context.Context) error {
	if d.client.Store.ID != nil {
		// Credentials already on disk, reconnect without pairing.
		return d.client.Connect()
	}

	qrChan, err := d.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("qr channel: %w", err)
	}
	if err := d.client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	go func() {
		for evt := range qrChan {
			switch evt.Event {
			case "code":
				if d.handlers.QR != nil {
					d.handlers.QR(evt.Code)
				}
			case "timeout":
				if d.handlers.Disconnected != nil {
					d.handlers.Disconnected("pairing timed out")
				}
			case "success":
				// Pairing done; the Connected event carries the rest.
			default:
				if d.handlers.AuthFailure != nil {
					d.handlers.AuthFailure(evt.Event)
				}
			}
		}
	}()
	return nil
}

func (d *whatsmeowDriver) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Connected:
		d.readyOnce.Do(func() {
			phone := ""
			if id := d.client.Store.ID; id != nil {
				phone = id.User
			}
			if d.handlers.Ready != nil {
				d.handlers.Ready(phone)
			}
		})
	case *events.PairError:
		if d.handlers.AuthFailure != nil {
			d.handlers.AuthFailure(v.Error.Error())
		}
	case *events.LoggedOut:
		if d.handlers.Disconnected != nil {
			d.handlers.Disconnected("logged out remotely")
		}
	case *events.StreamReplaced:
		if d.handlers.Disconnected != nil {
			d.handlers.Disconnected("stream replaced by another client")
		}
	case *events.Disconnected:
		if d.handlers.Disconnected != nil {
			d.handlers.Disconnected("connection closed")
		}
	case *events.Message:
		if v.Info.IsFromMe || d.handlers.Message == nil {
			return
		}
		text := v.Message.GetConversation()
		if text == "" {
			text = v.Message.GetExtendedTextMessage().GetText()
		}
		if text == "" {
			log.Debug().Str("session_id", d.sessionID).Msg("Dropping non-text message")
			return
		}
		d.handlers.Message(InboundMessage{
			From:      v.Info.Sender.User,
			Text:      text,
			Timestamp: v.Info.Timestamp,
		})
	}
}

func (d *whatsmeowDriver) Send(ctx context.Context, jid, text string) (*SendResult, error) {
	to, err := types.ParseJID(jid)
	if err != nil {
		return nil, fmt.Errorf("parse jid: %w", err)
	}
	resp, err := d.client.SendMessage(ctx, to, &waProto.Message{Conversation: proto.String(text)})
	if err != nil {
		return nil, err
	}
	return &SendResult{MessageID: resp.ID, Timestamp: resp.Timestamp}, nil
}

func (d *whatsmeowDriver) Logout(ctx context.Context) error {
	return d.client.Logout()
}

func (d *whatsmeowDriver) Destroy() {
	d.client.Disconnect()
}
