package email

import (
	"context"
	"time"

	"github.com/incosense/incosense/internal/domain"
)

// ConfirmationNotifier composes and sends a confirmation for each new
// subscription.
type ConfirmationNotifier struct {
	sender   Sender
	composer *Composer
	timeout  time.Duration
}

// NewConfirmationNotifier bounds each send by timeout; zero means no bound
// beyond the caller's context.
func NewConfirmationNotifier(sender Sender, composer *Composer, timeout time.Duration) *ConfirmationNotifier {
	return &ConfirmationNotifier{sender: sender, composer: composer, timeout: timeout}
}

func (n *ConfirmationNotifier) SendConfirmation(ctx context.Context, s *domain.Subscription) error {
	msg, err := n.composer.Compose(s)
	if err != nil {
		return err
	}
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	return n.sender.Send(ctx, msg)
}
