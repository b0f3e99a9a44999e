package service

import "github.com/cockroachdb/errors"

var (
	ErrUnknownLease = errors.New("service: unknown lease")
	ErrUnknownWatch = errors.New("service: unknown watch")
	ErrExpired      = errors.New("service: buffer already released")
	ErrInvalidSize  = errors.New("service: invalid buffer size")
	ErrOutOfRange   = errors.New("service: access outside buffer")
	ErrClosed       = errors.New("service: closed")
)
