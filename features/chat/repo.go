package chat

import (
	"context"
	"database/sql"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, documentID, role, content string) (*Message, error) {
	m := &Message{DocumentID: documentID, Role: role, Content: content}
	query := `INSERT INTO messages (document_id, role, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, documentID, role, content).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// List pages the conversation newest first. It fetches one row beyond the
// requested limit; when that extra row exists it is withheld and its id
// becomes the cursor, so the next page starts at the cursor row itself.
// Ties on created_at break on id, which keeps the order total and the
// cursor stable under concurrent appends.
func (r *PostgresRepo) List(ctx context.Context, documentID, cursor string, limit int) (*Page, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if cursor == "" {
		query := `SELECT id, role, content, created_at FROM messages
			WHERE document_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2`
		rows, err = r.db.QueryContext(ctx, query, documentID, limit+1)
	} else {
		// An unknown or foreign cursor makes the subquery empty, the
		// comparison unsatisfiable, and the page empty.
		query := `SELECT id, role, content, created_at FROM messages
			WHERE document_id = $1
			AND (created_at, id) <= (SELECT created_at, id FROM messages WHERE id = $2 AND document_id = $1)
			ORDER BY created_at DESC, id DESC
			LIMIT $3`
		rows, err = r.db.QueryContext(ctx, query, documentID, cursor, limit+1)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.DocumentID = documentID
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	page := &Page{Messages: msgs}
	if len(msgs) > limit {
		page.Messages = msgs[:limit]
		page.NextCursor = msgs[limit].ID
	}
	if page.Messages == nil {
		page.Messages = []Message{}
	}
	return page, nil
}

// Recent returns the latest n messages for prompt composition, oldest
// first so they read as a transcript.
func (r *PostgresRepo) Recent(ctx context.Context, documentID string, n int) ([]Message, error) {
	query := `SELECT id, role, content, created_at FROM (
			SELECT id, role, content, created_at FROM messages
			WHERE document_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) latest ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, documentID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.DocumentID = documentID
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
