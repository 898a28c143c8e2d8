package notifications

import "context"

// MailObserver is satisfied by observability.Prom.
type MailObserver interface {
	ObserveMail(kind string, fn func() error) error
}

type MeteredNotifier struct {
	inner Notifier
	obs   MailObserver
}

func NewMeteredNotifier(inner Notifier, obs MailObserver) *MeteredNotifier {
	return &MeteredNotifier{inner: inner, obs: obs}
}

func (n *MeteredNotifier) SendAccountConfirmation(ctx context.Context, input AccountEmail) error {
	return n.obs.ObserveMail(string(KindConfirmation), func() error {
		return n.inner.SendAccountConfirmation(ctx, input)
	})
}

func (n *MeteredNotifier) SendPasswordReset(ctx context.Context, input AccountEmail) error {
	return n.obs.ObserveMail(string(KindPasswordReset), func() error {
		return n.inner.SendPasswordReset(ctx, input)
	})
}
