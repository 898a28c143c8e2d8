package notifications

import (
	"context"
	"fmt"
)

type Kind string

const (
	KindConfirmation  Kind = "confirmation"
	KindPasswordReset Kind = "password_reset"
)

// AccountEmail carries what both transactional emails need.
type AccountEmail struct {
	Email string `json:"email"`
	Name  string `json:"nombre"`
	Token string `json:"token"`
}

type Notifier interface {
	SendAccountConfirmation(ctx context.Context, input AccountEmail) error
	SendPasswordReset(ctx context.Context, input AccountEmail) error
}

// Dispatch routes kind to the matching Notifier method.
func Dispatch(ctx context.Context, n Notifier, kind Kind, input AccountEmail) error {
	switch kind {
	case KindConfirmation:
		return n.SendAccountConfirmation(ctx, input)
	case KindPasswordReset:
		return n.SendPasswordReset(ctx, input)
	default:
		return fmt.Errorf("unknown email kind %q", kind)
	}
}
