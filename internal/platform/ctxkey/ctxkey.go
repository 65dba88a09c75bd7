// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ctxkey defines the typed keys under which request-scoped values
// are stored. Only [ctxutil] reads and writes them.
package ctxkey

// Key is unexported in spirit: other packages compare against the constants
// below and never construct their own.
type Key uint8

const (
	// KeyRequestID holds the X-Request-ID correlation value.
	KeyRequestID Key = iota + 1

	// KeyLogger holds the per-request [*log/slog.Logger].
	KeyLogger

	// KeyPrincipal holds the authenticated [sec.Principal].
	KeyPrincipal

	// KeyLoggedUser holds the mutable slot the access log reads the user id from.
	KeyLoggedUser

	// KeyClientIP holds the client address resolved against the trusted proxies.
	KeyClientIP
)

var names = map[Key]string{
	KeyRequestID:  "request_id",
	KeyLogger:     "logger",
	KeyPrincipal:  "principal",
	KeyLoggedUser: "logged_user",
	KeyClientIP:   "client_ip",
}

// String implements [fmt.Stringer] for debugging output.
func (k Key) String() string {
	if name, ok := names[k]; ok {
		return "ctxkey." + name
	}
	return "ctxkey.unknown"
}
