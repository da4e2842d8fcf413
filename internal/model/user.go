package model

import "time"

// Roles understood by the admin boundary.
const (
	RoleAdmin   = "ADMIN"
	RoleStudent = "STUDENT"
)

// User represents an account allowed to sign in.  Only admins matter to
// the allocation core; students may sign in to list their own bookings.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – ADMIN or STUDENT.
//  CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	CreatedAt    time.Time // users.created_at
}
