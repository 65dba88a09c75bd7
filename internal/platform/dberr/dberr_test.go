// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package dberr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/extcontrol/internal/platform/dberr"
)

func TestClassification(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "account_email_lower_key"}
	wrapped := fmt.Errorf("insert: %w", unique)

	assert.True(t, dberr.IsUniqueViolation(wrapped))
	assert.Equal(t, "account_email_lower_key", dberr.ConstraintName(wrapped))
	assert.False(t, dberr.IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, dberr.IsUniqueViolation(errors.New("boom")))

	assert.True(t, dberr.IsNoRows(fmt.Errorf("select: %w", pgx.ErrNoRows)))
	assert.False(t, dberr.IsNoRows(unique))
	assert.Empty(t, dberr.ConstraintName(errors.New("boom")))
}
