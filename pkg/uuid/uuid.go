// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package uuid mints the string ids used for account rows. Values are
// version 7, so users.account primary keys grow roughly in insert order.
package uuid

import "github.com/google/uuid"

// New returns a fresh UUIDv7 in canonical form. It panics only if the system
// random source fails, which leaves nothing sensible to return.
func New() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Valid reports whether s parses as a UUID of any version.
func Valid(s string) bool {
	return uuid.Validate(s) == nil
}
