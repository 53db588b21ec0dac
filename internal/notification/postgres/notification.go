package postgres

import (
	"context"
	"time"

	notificationDatamodel "github.com/frahmantamala/upi-payments/internal/core/datamodel/notification"
	"github.com/frahmantamala/upi-payments/internal/notification"
	"github.com/jmoiron/sqlx"
)

const (
	insertNotification = `INSERT INTO notifications (user_id, order_id, type, title, message, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`
	selectByUser = `SELECT id, user_id, order_id, type, title, message, is_read, created_at
		FROM notifications WHERE user_id = ?`
	markRead    = `UPDATE notifications SET is_read = TRUE WHERE id = ? AND user_id = ?`
	countUnread = `SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = FALSE`
)

// Repository stores notifications with plain SQL through sqlx.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, n *notification.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	row := notification.ToDataModel(n)
	return r.db.QueryRowxContext(ctx, r.db.Rebind(insertNotification),
		row.UserID, row.OrderID, row.Type, row.Title, row.Message, row.IsRead, row.CreatedAt,
	).Scan(&n.ID)
}

func (r *Repository) ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]*notification.Notification, error) {
	query := selectByUser
	args := []interface{}{userID}
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	var rows []notificationDatamodel.Notification
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}

	out := make([]*notification.Notification, 0, len(rows))
	for i := range rows {
		out = append(out, notification.FromDataModel(&rows[i]))
	}
	return out, nil
}

func (r *Repository) MarkRead(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(markRead), id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notification.ErrNotFound
	}
	return nil
}

func (r *Repository) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(countUnread), userID); err != nil {
		return 0, err
	}
	return count, nil
}
