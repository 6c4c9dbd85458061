// Package notify persists in-app notifications and publishes them to Redis
// for the gateway's bell/SSE forwarding. Delivery is fire-and-forget: no
// failure in here ever escalates to the caller — the primary operation has
// already succeeded by the time a notification is dispatched.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// EventChannel is the Redis pub/sub channel notifications are mirrored to.
const EventChannel = "EVENT_OD_NOTIFICATION"

// listLimit caps the bell dropdown at the most recent entries.
const listLimit = 20

// Notification is one row in the notifications table.
type Notification struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Service writes notification rows and mirrors them to Redis.
type Service struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewService returns a configured Service.
func NewService(pool *pgxpool.Pool, rdb *redis.Client) *Service {
	return &Service{pool: pool, rdb: rdb}
}

// Notify stores a notification for the recipient and publishes it. Errors
// are logged and swallowed.
func (s *Service) Notify(ctx context.Context, email, title, message, severity string) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (email, title, message, type) VALUES ($1, $2, $3, $4)`,
		email, title, message, severity,
	)
	if err != nil {
		slog.Warn("store notification failed", "email", email, "title", title, "err", err)
		return
	}

	event, _ := json.Marshal(map[string]string{
		"email":   email,
		"title":   title,
		"message": message,
		"type":    severity,
	})
	if err := s.rdb.Publish(ctx, EventChannel, event).Err(); err != nil {
		slog.Warn("publish notification event failed", "err", err)
	}
}

// BroadcastToAdmins sends the same notification to every admin.
func (s *Service) BroadcastToAdmins(ctx context.Context, title, message, severity string) {
	rows, err := s.pool.Query(ctx, `SELECT email FROM admins`)
	if err != nil {
		slog.Warn("list admins failed", "err", err)
		return
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			slog.Warn("scan admin email failed", "err", err)
			return
		}
		emails = append(emails, email)
	}
	for _, email := range emails {
		s.Notify(ctx, email, title, message, severity)
	}
}

// List returns the recipient's most recent notifications, newest first.
func (s *Service) List(ctx context.Context, email string) ([]Notification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, email, title, message, type, read, created_at
		 FROM notifications
		 WHERE email = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		email, listLimit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Notification, 0)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.Email, &n.Title, &n.Message, &n.Type, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead marks one notification read, checking ownership. Returns false
// when the notification does not exist or belongs to someone else.
func (s *Service) MarkRead(ctx context.Context, id int64, email string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = true WHERE id = $1 AND email = $2`,
		id, email,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkAllRead marks every unread notification of the recipient read.
func (s *Service) MarkAllRead(ctx context.Context, email string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = true WHERE email = $1 AND read = false`,
		email,
	)
	return err
}

// CheckAndNotifyUnassignedStudents counts students without a mentor and, if
// any exist and no unread alert is already pending, broadcasts a warning to
// all admins. Returns the count.
func (s *Service) CheckAndNotifyUnassignedStudents(ctx context.Context) int {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM students WHERE mentor_id IS NULL`,
	).Scan(&count)
	if err != nil {
		slog.Warn("count unassigned students failed", "err", err)
		return 0
	}
	if count == 0 {
		return 0
	}

	// Simple throttle: skip when an unread alert is already pending.
	var pending bool
	err = s.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM notifications
		   WHERE title = $1 AND read = false
		 )`,
		unassignedAlertTitle,
	).Scan(&pending)
	if err != nil {
		slog.Warn("check pending alert failed", "err", err)
		return count
	}
	if !pending {
		s.BroadcastToAdmins(ctx, unassignedAlertTitle,
			fmt.Sprintf("There are %d students without an assigned mentor. Please assign them immediately.", count),
			"WARNING")
	}
	return count
}

const unassignedAlertTitle = "Action Required: Unassigned Students"
