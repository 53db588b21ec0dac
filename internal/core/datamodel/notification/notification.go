package notification

import "time"

type Notification struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	OrderID   *string   `db:"order_id"`
	Type      string    `db:"type"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	IsRead    bool      `db:"is_read"`
	CreatedAt time.Time `db:"created_at"`
}
