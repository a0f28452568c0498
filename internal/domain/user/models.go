package user

import (
	"time"

	"moneymind/internal/shared/apperr"
)

var ErrUserNotFound = apperr.NotFoundf("user not found")

// User is created lazily on the first authenticated request and never
// deleted by the server.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}
