package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/brunoSandoval210/authorization-service/internal/audit"
	"github.com/brunoSandoval210/authorization-service/internal/auth"
)

var activityColumns = []string{
	"id", "user_id", "module", "action", "details", "ip_address", "status", "occurred_at", "request_id",
}

func (s *Store) AppendActivity(ctx context.Context, e audit.Entry) error {
	b := s.sb.Insert("activity_logs").
		Columns(activityColumns...).
		Values(
			e.ID,
			e.UserID,
			e.Module,
			e.Action,
			nullIfEmpty(e.Details),
			nullIfEmpty(e.IPAddress),
			string(e.Status),
			e.Timestamp.UTC(),
			nullIfEmpty(e.RequestID),
		)
	if _, err := exec(ctx, s.db, b); err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (s *Store) SearchActivity(ctx context.Context, q audit.Query, page auth.PageRequest) (auth.Page[audit.Entry], error) {
	where := squirrel.And{}
	if q.Module != "" {
		where = append(where, squirrel.Expr("lower(module) = lower(?)", q.Module))
	}
	if !q.Date.IsZero() {
		y, m, d := q.Date.UTC().Date()
		start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		where = append(where,
			squirrel.GtOrEq{"occurred_at": start},
			squirrel.Lt{"occurred_at": start.AddDate(0, 0, 1)},
		)
	}
	total, err := s.count(ctx, "activity_logs", where)
	if err != nil {
		return auth.Page[audit.Entry]{}, err
	}
	b := window(s.sb.Select(activityColumns...).From("activity_logs").Where(where).OrderBy("occurred_at DESC"), page)
	rows, err := query(ctx, s.db, b)
	if err != nil {
		return auth.Page[audit.Entry]{}, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var items []audit.Entry
	for rows.Next() {
		var (
			e                           audit.Entry
			status                      string
			details, ipAddress, request sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Module, &e.Action, &details, &ipAddress, &status, &e.Timestamp, &request); err != nil {
			return auth.Page[audit.Entry]{}, err
		}
		e.Details, e.IPAddress, e.RequestID = details.String, ipAddress.String, request.String
		e.Status = audit.Status(status)
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return auth.Page[audit.Entry]{}, err
	}
	return auth.NewPage(items, page, total), nil
}
