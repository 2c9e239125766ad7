package notify

import (
	"context"
	"fmt"
	"log/slog"

	"wardline.app/api/internal/queue"
)

// Deliverer turns queued notification tasks into sent emails.
type Deliverer struct {
	mailer Mailer
}

func NewDeliverer(mailer Mailer) *Deliverer {
	return &Deliverer{mailer: mailer}
}

func (d *Deliverer) Deliver(ctx context.Context, msg queue.Message) error {
	email, err := Render(Kind(msg.Kind), msg.Recipient, msg.Payload)
	if err != nil {
		return err
	}

	if err := d.mailer.Send(ctx, email); err != nil {
		return fmt.Errorf("sending %s email: %w", msg.Kind, err)
	}

	slog.InfoContext(ctx, "notification delivered", "kind", msg.Kind)
	return nil
}
