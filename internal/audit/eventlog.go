// Package audit appends gradebook writes to the event_log table.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Event struct {
	Seq       int64
	ID        string
	SiteID    string
	Type      string
	Key       string
	DataJSON  string
	CreatedAt int64
}

type EventRepo struct {
	db     *sql.DB
	siteID string
	now    func() time.Time
}

func NewEventRepo(db *sql.DB, siteID string) *EventRepo {
	if siteID == "" {
		siteID = "local"
	}
	return &EventRepo{db: db, siteID: siteID, now: time.Now}
}

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.SiteID == "" {
		e.SiteID = r.siteID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (id, site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		e.ID, e.SiteID, e.Type, e.Key, e.DataJSON, r.now().Unix())
	return err
}

// Record encodes payload as JSON and appends it.
func (r *EventRepo) Record(ctx context.Context, typ, key string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", typ, err)
	}
	return r.Append(ctx, Event{Type: typ, Key: key, DataJSON: string(b)})
}

// Since lists events after seq in append order.
func (r *EventRepo) Since(ctx context.Context, seq int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, id, site_id, typ, key, data, created_at FROM event_log
		 WHERE seq > $1 ORDER BY seq LIMIT $2`, seq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.ID, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
