package mail

import (
	"github.com/pkg/errors"
)

var (
	ErrNoRecipients = errors.New("no recipients specified")
	ErrNoSubject    = errors.New("no subject specified")
	ErrNoBody       = errors.New("no message body specified")
	ErrNoFrom       = errors.New("no from address specified")
)

// Kind classifies why a dispatch failed.
type Kind string

const (
	KindUnreachable     Kind = "unreachable"
	KindUnauthenticated Kind = "unauthenticated"
	KindInvalidMessage  Kind = "invalid_message"
	KindRejected        Kind = "rejected"
)

// DeliveryError is returned by Sender.Send when a message was not accepted.
type DeliveryError struct {
	Kind Kind
	Err  error
}

func (e *DeliveryError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}

	return e.Err.Error()
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// KindOf returns the failure kind of err, or "" when err is not a DeliveryError.
func KindOf(err error) Kind {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Kind
	}

	return ""
}
