package audit

import (
	"context"
	"database/sql"
	"time"
)

// Writer appends task_change_log rows inside the caller's transaction, one row
// per changed field.
type Writer struct {
	Now func() time.Time
}

// Change is one field diff. Nil old/new values record SQL NULL, not "null".
type Change struct {
	Field string
	Old   *string
	New   *string
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, taskID, authorID int64, changes []Change) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	for _, c := range changes {
		_, err := tx.ExecContext(ctx, `INSERT INTO task_change_log(task_id,author_id,field,old_value,new_value,created_at) VALUES (?,?,?,?,?,?)`,
			taskID, authorID, c.Field, nullablePtr(c.Old), nullablePtr(c.New), ts)
		if err != nil {
			return err
		}
	}
	return nil
}

func nullablePtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
