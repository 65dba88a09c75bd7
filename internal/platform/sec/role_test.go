// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/extcontrol/internal/platform/sec"
)

/*
TestUserRole_AtLeast checks the role hierarchy.
*/
func TestUserRole_AtLeast(t *testing.T) {
	assert.True(t, sec.RoleAdmin.AtLeast(sec.RoleUser))
	assert.True(t, sec.RoleAdmin.AtLeast(sec.RoleAdmin))
	assert.True(t, sec.RoleUser.AtLeast(sec.RoleUser))
	assert.False(t, sec.RoleUser.AtLeast(sec.RoleAdmin))
	assert.False(t, sec.UserRole("ghost").AtLeast(sec.RoleUser))
}

/*
TestValidity rejects unknown roles and tiers.
*/
func TestValidity(t *testing.T) {
	assert.True(t, sec.RoleUser.Valid())
	assert.False(t, sec.UserRole("").Valid())
	assert.True(t, sec.TierPremium.Valid())
	assert.False(t, sec.Tier("gold").Valid())
}
