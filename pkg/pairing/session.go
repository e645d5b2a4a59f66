// Copyright 2024-2026 Aiku AI

package pairing

import (
	"context"

	"github.com/aiku/wa-pairing/pkg/connector"
	"github.com/aiku/wa-pairing/pkg/notify"
)

// Session is one WhatsApp companion-device session bound to a session
// directory. *connector.WhatsAppClient implements it.
type Session interface {
	Events() <-chan connector.Event
	Connect(ctx context.Context) error
	Registered() bool
	RequestPairingCode(ctx context.Context, number string) (string, error)
	ExportCreds() (string, error)
	UserJID() string
	SendText(ctx context.Context, to, text string) error
	SendImage(ctx context.Context, to, imageURL, caption string) error
	Close()
}

// SessionOpener creates session directories and opens sessions in them.
type SessionOpener interface {
	NewSessionDir(name string) (string, error)
	Open(ctx context.Context, dir string) (Session, error)
}

// Restarter is told about unexpected failures so the process supervisor can
// restart the service.
type Restarter interface {
	Restart(reason string)
}

// Notifier announces successful pairings to operators.
type Notifier interface {
	Notify(ctx context.Context, paired notify.Paired) error
}

type connectorOpener struct {
	wc *connector.WhatsAppConnector
}

// ConnectorOpener adapts a WhatsAppConnector to SessionOpener.
func ConnectorOpener(wc *connector.WhatsAppConnector) SessionOpener {
	return connectorOpener{wc: wc}
}

func (o connectorOpener) NewSessionDir(name string) (string, error) {
	return o.wc.NewSessionDir(name)
}

func (o connectorOpener) Open(ctx context.Context, dir string) (Session, error) {
	client, err := o.wc.Open(ctx, dir)
	if err != nil {
		return nil, err
	}
	return client, nil
}
