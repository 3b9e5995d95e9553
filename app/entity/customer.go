package entity

import "time"

// Customer maps a Telegram identity to an internal record. Created lazily on
// first interaction and never deleted.
type Customer struct {
	ID uint64

	TelegramID int64
	Username   *string
	FirstName  string
	LastName   *string

	CreatedAt time.Time
}
