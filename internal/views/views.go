// Package views holds the lists a front end shows and the mutations it
// offers on them. Each model keeps a local copy that is edited in place after
// a successful mutation, so nothing has to be reloaded by hand.
package views

import (
	"context"
	"errors"
	"log"
	"net"

	"roombook/internal/api"
	"roombook/internal/mq"
	"roombook/internal/validation"
)

// ErrDeclined is returned when the user answers no to a delete confirmation.
var ErrDeclined = errors.New("views: not confirmed")

// Confirm asks the user to approve a destructive action.
type Confirm func(ctx context.Context, prompt string) (bool, error)

// Yes approves everything, for non-interactive callers that confirmed
// up front.
func Yes(context.Context, string) (bool, error) { return true, nil }

func confirmed(ctx context.Context, confirm Confirm, prompt string) error {
	if confirm == nil {
		return ErrDeclined
	}
	ok, err := confirm(ctx, prompt)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDeclined
	}
	return nil
}

// ErrorKind labels err with the failure classes a front end reports.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var vErr *validation.Error
	var netErr net.Error
	switch {
	case errors.Is(err, api.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.As(err, &vErr):
		return "validation"
	case errors.Is(err, ErrDeclined):
		return "declined"
	case api.StatusCode(err) != 0:
		return "api"
	case errors.As(err, &netErr):
		return "network"
	}
	return "unexpected"
}

type options struct {
	logger *log.Logger
	events mq.Publisher
}

type Option func(*options)

func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithPublisher(p mq.Publisher) Option {
	return func(o *options) { o.events = p }
}

func buildOptions(opts []Option) options {
	o := options{logger: log.Default(), events: mq.Nop{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.Default()
	}
	if o.events == nil {
		o.events = mq.Nop{}
	}
	return o
}

type Registrar interface {
	Register(ctx context.Context, req api.RegisterRequest) error
}

// Register signs up a new account. It does not log in.
func Register(ctx context.Context, r Registrar, username, password string) error {
	v := validation.New()
	if username == "" {
		v.Add("username", "required")
	}
	if password == "" {
		v.Add("password", "required")
	}
	if err := v.Err(); err != nil {
		return err
	}
	return r.Register(ctx, api.RegisterRequest{Username: username, Password: password})
}
