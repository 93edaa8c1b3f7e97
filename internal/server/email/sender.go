// Package email delivers transactional mail. The auth workflow treats
// delivery as fire-and-forget: a failed send never invalidates the token
// it carries.
package email

import "context"

// Sender is the outbound-mail collaborator.
type Sender interface {
	SendResetPasswordEmail(ctx context.Context, to string, token string) error
}
