package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserRole(t *testing.T) {
	assert.Equal(t, RoleMember, User{}.Role())
	assert.Equal(t, RoleAdmin, User{IsAdmin: true}.Role())
}

func TestRoleToggled(t *testing.T) {
	assert.Equal(t, RoleAdmin, RoleMember.Toggled())
	assert.Equal(t, RoleMember, RoleAdmin.Toggled())
}

func TestUserPublicStripsHash(t *testing.T) {
	u := User{ID: 7, Email: "a@ex.com", PasswordHash: "$2a$04$abc", CreatedAt: time.Now()}
	pub := u.Public()
	assert.Empty(t, pub.PasswordHash)
	assert.Equal(t, "$2a$04$abc", u.PasswordHash)
	assert.Equal(t, u.ID, pub.ID)
}
