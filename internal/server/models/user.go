// Package models holds the value objects shared by repositories and
// services.
package models

// Role values for User.Role.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a directory entry. Password holds the bcrypt hash of the
// credential; it never leaves the server.
type User struct {
	ID          int64
	DisplayName string
	Email       string
	Password    string
	Role        string
}
