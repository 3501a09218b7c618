// Package role derives the caller's role from the access token's claims.
//
// The token is decoded, not verified: the role is a hint for which controls a
// front end shows. The booking API still authorizes every request itself.
package role

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	Admin Role = "ADMIN"
	User  Role = "USER"
)

func (r Role) IsAdmin() bool { return r == Admin }

// Claims is the subset of the token payload a front end displays.
type Claims struct {
	Subject   string
	Username  string
	Role      Role
	ExpiresAt time.Time
}

// Decode reads the payload of a JWT without checking its signature.
func Decode(credential string) (Claims, error) {
	if credential == "" {
		return Claims{}, fmt.Errorf("decode token: empty credential")
	}
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(credential, mc); err != nil {
		return Claims{}, fmt.Errorf("decode token: %w", err)
	}

	var c Claims
	if v, ok := mc["sub"]; ok && v != nil {
		c.Subject = fmt.Sprint(v)
	}
	if v, ok := mc["username"].(string); ok {
		c.Username = v
	}
	if v, ok := mc["role"].(string); ok {
		c.Role = Role(v)
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

// Resolve never fails: a missing, malformed or role-less credential is the
// non-privileged User role.
func Resolve(credential string) Role {
	c, err := Decode(credential)
	if err != nil || c.Role == "" {
		return User
	}
	return c.Role
}

// Affordances lists the admin-only controls a front end renders for a role.
type Affordances struct {
	ManageRooms bool `json:"manage_rooms" yaml:"manage_rooms"`
	AllBookings bool `json:"all_bookings" yaml:"all_bookings"`
	ManageUsers bool `json:"manage_users" yaml:"manage_users"`
}

func (r Role) Affordances() Affordances {
	admin := r.IsAdmin()
	return Affordances{ManageRooms: admin, AllBookings: admin, ManageUsers: admin}
}
