package mongo

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/robertarktes/hotel-booking-web/internal/notify"
	"github.com/robertarktes/hotel-booking-web/internal/observability"
)

// AuditLogger writes a trail of the actions users take through the front-end: booking
// cancellations and their outcome, and room changes made in the editor.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
	now    func() time.Time
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
		now:    time.Now,
	}
}

type AuditLog struct {
	ID        string    `bson:"_id" json:"id"`
	Action    string    `bson:"action" json:"action"`
	UserID    string    `bson:"user_id,omitempty" json:"userId,omitempty"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	Data      bson.M    `bson:"data,omitempty" json:"data,omitempty"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action, userID string, data map[string]interface{}) error {
	entry := AuditLog{
		ID:        uuid.NewString(),
		Action:    action,
		UserID:    userID,
		Timestamp: a.now().UTC(),
		Data:      bson.M(data),
	}
	if _, err := a.coll.InsertOne(ctx, entry); err != nil {
		a.logger.WithField("action", action).WithError(err).Error("failed to insert audit log")
		return errors.Wrap(err, "inserting audit log")
	}
	return nil
}

// Notify records booking notifications, which carry the outcome of cancellations. Other
// notifications are not audited.
func (a *AuditLogger) Notify(ctx context.Context, n notify.Notification) error {
	if n.BookingID == 0 {
		return nil
	}
	return a.LogEvent(ctx, "booking.cancel."+string(n.Kind), n.UserID, map[string]interface{}{
		"booking_id":      n.BookingID,
		"notification_id": n.ID.String(),
		"message":         n.Message,
	})
}

func (a *AuditLogger) RoomChanged(ctx context.Context, action string, roomID int64, actor string) error {
	data := map[string]interface{}{}
	if roomID != 0 {
		data["room_id"] = roomID
	}
	return a.LogEvent(ctx, action, actor, data)
}

// Recent returns up to limit entries, newest first.
func (a *AuditLogger) Recent(ctx context.Context, limit int64) ([]AuditLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(limit)
	cur, err := a.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying audit log")
	}
	out := []AuditLog{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decoding audit log")
	}
	return out, nil
}
