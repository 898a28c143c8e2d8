// Package outbox is a Redis list of pending emails. The API pushes, the
// worker pops with a blocking read, and failed sends land in a dead-letter list.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/bienesraices/internal/notifications"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultKey        = "bienesraices:mail:outbox"
	DefaultDeadLetter = "bienesraices:mail:dead"
)

var (
	ErrEmpty           = errors.New("outbox empty")
	ErrInvalidEnvelope = errors.New("invalid outbox envelope")
)

type Outbox struct {
	rdb        *redis.Client
	key        string
	deadLetter string
}

func New(rdb *redis.Client) *Outbox {
	return &Outbox{rdb: rdb, key: DefaultKey, deadLetter: DefaultDeadLetter}
}

func (o *Outbox) Enqueue(ctx context.Context, env notifications.Envelope) error {
	b, err := Encode(env)
	if err != nil {
		return err
	}

	if err := o.rdb.LPush(ctx, o.key, b).Err(); err != nil {
		return fmt.Errorf("outbox push: %w", err)
	}
	return nil
}

// Dequeue blocks up to wait for the next envelope. It returns ErrEmpty when
// nothing arrived in time.
func (o *Outbox) Dequeue(ctx context.Context, wait time.Duration) (notifications.Envelope, error) {
	res, err := o.rdb.BRPop(ctx, wait, o.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return notifications.Envelope{}, ErrEmpty
		}
		return notifications.Envelope{}, fmt.Errorf("outbox pop: %w", err)
	}

	// BRPOP answers [key, value]
	if len(res) != 2 {
		return notifications.Envelope{}, ErrInvalidEnvelope
	}

	return Decode([]byte(res[1]))
}

func (o *Outbox) DeadLetter(ctx context.Context, env notifications.Envelope, cause error) error {
	if cause != nil {
		env.LastError = cause.Error()
	}

	b, err := Encode(env)
	if err != nil {
		return err
	}

	return o.rdb.LPush(ctx, o.deadLetter, b).Err()
}

func (o *Outbox) Ping(ctx context.Context) error {
	return o.rdb.Ping(ctx).Err()
}

func Encode(env notifications.Envelope) ([]byte, error) {
	if err := validate(env); err != nil {
		return nil, err
	}

	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	return b, nil
}

func Decode(b []byte) (notifications.Envelope, error) {
	var env notifications.Envelope

	if err := json.Unmarshal(b, &env); err != nil {
		return notifications.Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	if err := validate(env); err != nil {
		return notifications.Envelope{}, err
	}

	return env, nil
}

func validate(env notifications.Envelope) error {
	switch env.Kind {
	case notifications.KindConfirmation, notifications.KindPasswordReset:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEnvelope, env.Kind)
	}

	if env.Input.Email == "" || env.Input.Token == "" {
		return fmt.Errorf("%w: email and token are required", ErrInvalidEnvelope)
	}

	return nil
}
