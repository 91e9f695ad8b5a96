package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/xela07ax/orbit-auth/internal/audit"
)

func (r *Repo) WriteBatch(ctx context.Context, events []audit.AuthEvent) error {
	if len(events) == 0 {
		return nil
	}

	// Количество колонок в таблице auth_events
	const numFields = 9
	var placeholders strings.Builder
	vals := make([]interface{}, 0, len(events)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, e := range events {
		p := i * numFields
		if i > 0 {
			placeholders.WriteString(",")
		}
		fmt.Fprintf(&placeholders, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8, p+9)

		vals = append(vals,
			e.ID, e.RequestID, e.UserID, e.Email,
			e.Action, e.Outcome, e.RemoteIP, e.Detail, e.Timestamp,
		)
	}

	query := "INSERT INTO auth_events (id, request_id, user_id, email, action, outcome, remote_ip, detail, timestamp) VALUES " +
		placeholders.String() + " ON CONFLICT (id) DO NOTHING"

	if _, err := r.pool.Exec(ctx, query, vals...); err != nil {
		return fmt.Errorf("postgres: failed to write audit batch: %w", err)
	}
	return nil
}
