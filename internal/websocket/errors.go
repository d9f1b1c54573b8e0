// internal/websocket/errors.go
package websocket

import "errors"

var (
	ErrForbiddenChannel = errors.New("channel requires an admin role")
	ErrUnknownChannel   = errors.New("unknown channel")
)
