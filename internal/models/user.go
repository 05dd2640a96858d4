package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleUser       UserRole = "USER"
)

// AccountStatus is the user-level visibility flag, independent of any profile status.
type AccountStatus string

const (
	AccountActive     AccountStatus = "active"
	AccountRestricted AccountStatus = "restricted"
	AccountBanned     AccountStatus = "banned"
)

// Valid reports whether s is one of the known account statuses.
func (s AccountStatus) Valid() bool {
	switch s {
	case AccountActive, AccountRestricted, AccountBanned:
		return true
	}
	return false
}

// Listable reports whether profiles owned by the account may be shown to other users.
func (s AccountStatus) Listable() bool {
	return s == AccountActive
}

// CanWrite reports whether the account may still save drafts or edit its profile.
func (s AccountStatus) CanWrite() bool {
	return s != AccountBanned
}

// User represents an application user stored in the users table.
type User struct {
	ID            string        `db:"id" json:"id"`
	Email         string        `db:"email" json:"email"`
	FullName      string        `db:"full_name" json:"full_name"`
	Role          UserRole      `db:"role" json:"role"`
	AccountStatus AccountStatus `db:"account_status" json:"account_status"`
	Credits       int           `db:"credits" json:"credits"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
