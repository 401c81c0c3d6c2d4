package repo

import (
	"context"

	"rhflow/internal/domain"
)

func (r Repo) InsertAssistantMessage(ctx context.Context, m domain.AssistantMessage) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO assistant_messages(user_id,role,content,created_at) VALUES (?,?,?,?)`,
		m.UserID, m.Role, m.Content, m.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) ListAssistantMessages(ctx context.Context, userID int64) ([]domain.AssistantMessage, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,user_id,role,content,created_at FROM assistant_messages WHERE user_id=? ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AssistantMessage
	for rows.Next() {
		var m domain.AssistantMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// HasOverdueAlertToday reports whether an overdue digest was already posted to
// the user's thread today. The digest is recognized by its fixed marker text.
func (r Repo) HasOverdueAlertToday(ctx context.Context, userID int64, marker, today string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM assistant_messages
WHERE user_id=? AND role='assistant' AND content LIKE '%' || ? || '%' AND DATE(created_at)=DATE(?)`,
		userID, marker, today).Scan(&n)
	return n > 0, err
}
