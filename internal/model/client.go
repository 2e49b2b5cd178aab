package model

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// ClientRole is the permission tier of an API client.
type ClientRole string

const (
	RoleReader ClientRole = "reader"
	RoleClerk  ClientRole = "clerk"
	RoleAdmin  ClientRole = "admin"
)

// RoleRank orders roles for comparison. Higher rank means more privilege.
func RoleRank(r ClientRole) int {
	switch r {
	case RoleReader:
		return 1
	case RoleClerk:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// RoleAtLeast reports whether r carries at least the privilege of minimum.
func RoleAtLeast(r, minimum ClientRole) bool {
	return RoleRank(r) >= RoleRank(minimum)
}

// Client is an authenticated API principal.
type Client struct {
	ID         uuid.UUID  `json:"id"`
	ClientID   string     `json:"client_id"`
	Role       ClientRole `json:"role"`
	APIKeyHash string     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
}

var clientIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,64}$`)

// ValidateClientID enforces the client_id character set and length.
func ValidateClientID(id string) error {
	if !clientIDPattern.MatchString(id) {
		return fmt.Errorf("client_id must be 1-64 characters of [a-zA-Z0-9_.-]")
	}
	return nil
}
