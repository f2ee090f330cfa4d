package notification

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/cart-sync/internal/email"
	"github.com/example/cart-sync/internal/session"
)

// Mailer sends removal notices
type Mailer interface {
	SendItemsRemoved(to string, items []email.RemovedItem) error
}

// Handler processes cart events for sending notifications
type Handler struct {
	mailer Mailer
}

func NewHandler(mailer Mailer) *Handler {
	return &Handler{mailer: mailer}
}

// HandleEvent processes an event from Kafka
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event session.Event
	if err := json.Unmarshal(value, &event); err != nil {
		log.Printf("[Notifier] Failed to unmarshal event: %v", err)
		return err
	}

	if event.Type == session.EventCartItemsRemoved {
		return h.handleItemsRemoved(event)
	}
	return nil
}

func (h *Handler) handleItemsRemoved(event session.Event) error {
	var e session.CartItemsRemoved
	if err := json.Unmarshal(event.Data, &e); err != nil {
		log.Printf("[Notifier] Failed to unmarshal CartItemsRemoved event: %v", err)
		return err
	}
	if len(e.Removed) == 0 {
		return nil
	}

	if e.Email == "" {
		log.Printf("[Notifier] Session %s lost %d items while guest, no one to notify", e.SessionID, len(e.Removed))
		return nil
	}

	items := make([]email.RemovedItem, len(e.Removed))
	for i, r := range e.Removed {
		items[i] = email.RemovedItem{
			ProductID:     r.Item.ProductID,
			VariantWeight: r.Item.VariantWeight,
			Quantity:      r.Item.Quantity,
			Reason:        string(r.Reason),
		}
	}

	if err := h.mailer.SendItemsRemoved(e.Email, items); err != nil {
		log.Printf("[Notifier] Failed to send email to %s: %v", e.Email, err)
		return err
	}

	log.Printf("[Notifier] Removal notice sent to %s for session %s", e.Email, e.SessionID)
	return nil
}
