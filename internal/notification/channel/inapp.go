package channel

import (
	"context"
	"fmt"

	"freelancer_ops_backend/internal/notification/inapp"

	"github.com/google/uuid"
)

// Inbox is implemented by inapp.Service.
type Inbox interface {
	Send(ctx context.Context, p inapp.SendParams) (inapp.Notification, error)
}

// InAppProvider writes to the user's notification inbox. It has no external
// dependency and only fails when storage fails.
type InAppProvider struct {
	inbox Inbox
}

// NewInAppProvider creates the in-app provider.
func NewInAppProvider(inbox Inbox) *InAppProvider {
	return &InAppProvider{inbox: inbox}
}

func (p *InAppProvider) Channel() Channel { return InApp }

func (p *InAppProvider) HealthCheck() bool { return p != nil && p.inbox != nil }

func (p *InAppProvider) Send(ctx context.Context, msg Message, target Target) Result {
	if !p.HealthCheck() {
		return failed(fmt.Errorf("%w: inbox storage is not wired", ErrNotConfigured))
	}
	if target.UserID == uuid.Nil {
		return failed(missing("no user to deliver to"))
	}

	content := msg.Body
	if content == "" {
		content = msg.Title
	}
	_, err := p.inbox.Send(ctx, inapp.SendParams{
		TenantID:   target.TenantID,
		UserID:     target.UserID,
		Title:      msg.Title,
		Content:    content,
		EventName:  msg.EventName,
		ResourceID: msg.ResourceID,
		Category:   msg.Category,
	})
	if err != nil {
		return failed(err)
	}
	return ok()
}
