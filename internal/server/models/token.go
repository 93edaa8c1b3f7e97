package models

import "time"

// TokenType discriminates the three credential kinds. The values are part
// of the token wire format (the "type" claim).
type TokenType string

const (
	TokenTypeAccess        TokenType = "access"
	TokenTypeRefresh       TokenType = "refresh"
	TokenTypeResetPassword TokenType = "resetPassword"
)

// Token is a credential row. Access tokens are never persisted; refresh
// and reset tokens are, and the persisted row is the authority for
// liveness. ID is -1 until the store assigns one.
type Token struct {
	ID          int64
	Value       string
	UserID      int64
	Type        TokenType
	Expires     time.Time
	Blacklisted bool
}

// NewToken builds an unpersisted token value object.
func NewToken(value string, userID int64, expires time.Time, typ TokenType) *Token {
	return &Token{ID: -1, Value: value, UserID: userID, Type: typ, Expires: expires}
}
