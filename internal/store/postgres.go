package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrConflict marks unique-constraint violations surfaced to the service
// layer (duplicate user name or email).
var ErrConflict = errors.New("conflict")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// -- users --

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
	`, user.ID, user.Name, user.Email, user.PasswordHash, user.Role)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

const userColumns = `id, name, COALESCE(email, ''), password_hash, role, created_at, updated_at`

func (s *PostgresStore) scanUser(row *sql.Row) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID))
}

func (s *PostgresStore) GetUserByName(ctx context.Context, name string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE name=$1`, name))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email))
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateUserProfile(ctx context.Context, userID, name, email string) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE users SET name=$2, email=NULLIF($3, ''), updated_at=NOW()
		WHERE id=$1
		RETURNING `+userColumns+`
	`, userID, name, email)
	user, err := s.scanUser(row)
	if err != nil && isUniqueViolation(err) {
		return User{}, ErrConflict
	}
	return user, err
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// -- sections --

type SaveSectionParams struct {
	SectionID      string
	StageContentID string
	UserID         string
	SectionCode    string
	SectionName    string
	Stage          string
	Content        string
	Log            ActivityLog
}

// SaveSection upserts the section row, then either the main content or one
// stage's content depending on params.Stage, and appends the activity log
// entry. One transaction.
func (s *PostgresStore) SaveSection(ctx context.Context, params SaveSectionParams) (PpeppSection, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return PpeppSection{}, fmt.Errorf("begin save section: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var section PpeppSection
	if params.Stage == "" {
		err = tx.QueryRowContext(ctx, `
			INSERT INTO ppepp_sections (id, user_id, section_code, section_name, content)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id, section_code)
			DO UPDATE SET content=EXCLUDED.content, updated_at=NOW()
			RETURNING id, user_id, section_code, section_name, content, status, created_at, updated_at
		`, params.SectionID, params.UserID, params.SectionCode, params.SectionName, params.Content).
			Scan(&section.ID, &section.UserID, &section.SectionCode, &section.SectionName, &section.Content, &section.Status, &section.CreatedAt, &section.UpdatedAt)
	} else {
		// Stage saves must not clobber the main body.
		err = tx.QueryRowContext(ctx, `
			INSERT INTO ppepp_sections (id, user_id, section_code, section_name, content)
			VALUES ($1, $2, $3, $4, '')
			ON CONFLICT (user_id, section_code)
			DO UPDATE SET updated_at=NOW()
			RETURNING id, user_id, section_code, section_name, content, status, created_at, updated_at
		`, params.SectionID, params.UserID, params.SectionCode, params.SectionName).
			Scan(&section.ID, &section.UserID, &section.SectionCode, &section.SectionName, &section.Content, &section.Status, &section.CreatedAt, &section.UpdatedAt)
	}
	if err != nil {
		return PpeppSection{}, fmt.Errorf("upsert section: %w", err)
	}

	if params.Stage != "" {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ppepp_stage_contents (id, section_id, stage, content)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (section_id, stage)
			DO UPDATE SET content=EXCLUDED.content, updated_at=NOW()
		`, params.StageContentID, section.ID, params.Stage, params.Content); err != nil {
			return PpeppSection{}, fmt.Errorf("upsert stage content: %w", err)
		}
	}

	if err := insertActivityLogTx(ctx, tx, params.Log); err != nil {
		return PpeppSection{}, err
	}
	if err := tx.Commit(); err != nil {
		return PpeppSection{}, fmt.Errorf("commit save section: %w", err)
	}
	return section, nil
}

func (s *PostgresStore) GetSection(ctx context.Context, userID, code string) (PpeppSection, error) {
	var section PpeppSection
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, section_code, section_name, content, status, created_at, updated_at
		FROM ppepp_sections
		WHERE user_id=$1 AND section_code=$2
	`, userID, code).Scan(&section.ID, &section.UserID, &section.SectionCode, &section.SectionName, &section.Content, &section.Status, &section.CreatedAt, &section.UpdatedAt)
	if err != nil {
		return PpeppSection{}, err
	}
	return section, nil
}

func (s *PostgresStore) ListSections(ctx context.Context, userID string) ([]PpeppSection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, section_code, section_name, content, status, created_at, updated_at
		FROM ppepp_sections
		WHERE user_id=$1
		ORDER BY section_code
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	items := make([]PpeppSection, 0)
	for rows.Next() {
		var section PpeppSection
		if err := rows.Scan(&section.ID, &section.UserID, &section.SectionCode, &section.SectionName, &section.Content, &section.Status, &section.CreatedAt, &section.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		items = append(items, section)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sections: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListStageContents(ctx context.Context, userID string) ([]StageContent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sc.id, sc.section_id, ps.section_code, sc.stage, sc.content, sc.updated_at
		FROM ppepp_stage_contents sc
		JOIN ppepp_sections ps ON ps.id = sc.section_id
		WHERE ps.user_id=$1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list stage contents: %w", err)
	}
	defer rows.Close()

	items := make([]StageContent, 0)
	for rows.Next() {
		var sc StageContent
		if err := rows.Scan(&sc.ID, &sc.SectionID, &sc.SectionCode, &sc.Stage, &sc.Content, &sc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stage content: %w", err)
		}
		items = append(items, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stage contents: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CountDocumentsByStage(ctx context.Context, userID string) ([]DocumentStageCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.section_code, COALESCE(d.detail, ''), COUNT(*)
		FROM documents d
		WHERE d.user_id=$1 AND d.status='active'
		GROUP BY d.section_code, d.detail
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("count documents by stage: %w", err)
	}
	defer rows.Close()

	items := make([]DocumentStageCount, 0)
	for rows.Next() {
		var count DocumentStageCount
		if err := rows.Scan(&count.SectionCode, &count.Detail, &count.Count); err != nil {
			return nil, fmt.Errorf("scan document count: %w", err)
		}
		items = append(items, count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document counts: %w", err)
	}
	return items, nil
}

// -- documents --

const documentColumns = `id, user_id, section_id, section_code, name, object_key, content_type, size, status, COALESCE(detail, ''), created_at, updated_at`

func scanDocument(scan func(...any) error) (Document, error) {
	var doc Document
	err := scan(&doc.ID, &doc.UserID, &doc.SectionID, &doc.SectionCode, &doc.Name, &doc.ObjectKey, &doc.ContentType, &doc.Size, &doc.Status, &doc.Detail, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (s *PostgresStore) InsertDocument(ctx context.Context, doc Document, logEntry ActivityLog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert document: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (id, user_id, section_id, section_code, name, object_key, content_type, size, status, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'active', NULLIF($9, ''))
	`, doc.ID, doc.UserID, doc.SectionID, doc.SectionCode, doc.Name, doc.ObjectKey, doc.ContentType, doc.Size, doc.Detail); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	if err := insertActivityLogTx(ctx, tx, logEntry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1`, documentID)
	return scanDocument(row.Scan)
}

func (s *PostgresStore) listDocuments(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListDocumentsByUser(ctx context.Context, userID string) ([]Document, error) {
	return s.listDocuments(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE user_id=$1 AND status='active'
		ORDER BY created_at DESC
	`, userID)
}

func (s *PostgresStore) ListDocumentsBySection(ctx context.Context, userID, code string) ([]Document, error) {
	return s.listDocuments(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE user_id=$1 AND section_code=$2 AND status='active'
		ORDER BY created_at DESC
	`, userID, code)
}

func (s *PostgresStore) CountDocumentsByUser(ctx context.Context, userID string) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM documents WHERE user_id=$1 AND status='active'
	`, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return total, nil
}

// UpdateDocument renames a document and, when sectionContent is non-nil,
// updates the owning section's content in the same transaction.
func (s *PostgresStore) UpdateDocument(ctx context.Context, documentID, name string, sectionContent *string, logEntry ActivityLog) (Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Document{}, fmt.Errorf("begin update document: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		UPDATE documents SET name=$2, updated_at=NOW()
		WHERE id=$1
		RETURNING `+documentColumns+`
	`, documentID, name)
	doc, err := scanDocument(row.Scan)
	if err != nil {
		return Document{}, err
	}

	if sectionContent != nil {
		if _, err := tx.ExecContext(ctx, `
			UPDATE ppepp_sections SET content=$2, updated_at=NOW() WHERE id=$1
		`, doc.SectionID, *sectionContent); err != nil {
			return Document{}, fmt.Errorf("update section content: %w", err)
		}
	}

	if err := insertActivityLogTx(ctx, tx, logEntry); err != nil {
		return Document{}, err
	}
	if err := tx.Commit(); err != nil {
		return Document{}, fmt.Errorf("commit update document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, documentID string, logEntry ActivityLog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete document: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id=$1`, documentID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	if err := insertActivityLogTx(ctx, tx, logEntry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete document: %w", err)
	}
	return nil
}

// BulkDeleteDocuments removes the given documents for one user and returns
// how many rows went away. Documents owned by someone else are left alone;
// the caller verifies ownership up front.
func (s *PostgresStore) BulkDeleteDocuments(ctx context.Context, userID string, documentIDs []string, logEntry ActivityLog) (int, error) {
	if len(documentIDs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin bulk delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := make([]string, len(documentIDs))
	args := make([]any, 0, len(documentIDs)+1)
	args = append(args, userID)
	for i, id := range documentIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	result, err := tx.ExecContext(ctx, `
		DELETE FROM documents WHERE user_id=$1 AND id IN (`+strings.Join(placeholders, ",")+`)
	`, args...)
	if err != nil {
		return 0, fmt.Errorf("bulk delete documents: %w", err)
	}
	deleted, _ := result.RowsAffected()

	if err := insertActivityLogTx(ctx, tx, logEntry); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit bulk delete: %w", err)
	}
	return int(deleted), nil
}

func (s *PostgresStore) ListDocumentOwners(ctx context.Context, documentIDs []string) (map[string]string, error) {
	if len(documentIDs) == 0 {
		return map[string]string{}, nil
	}
	placeholders := make([]string, len(documentIDs))
	args := make([]any, len(documentIDs))
	for i, id := range documentIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id FROM documents WHERE id IN (`+strings.Join(placeholders, ",")+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list document owners: %w", err)
	}
	defer rows.Close()

	owners := make(map[string]string, len(documentIDs))
	for rows.Next() {
		var id, userID string
		if err := rows.Scan(&id, &userID); err != nil {
			return nil, fmt.Errorf("scan document owner: %w", err)
		}
		owners[id] = userID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document owners: %w", err)
	}
	return owners, nil
}

// -- activity log --

func insertActivityLogTx(ctx context.Context, tx *sql.Tx, logEntry ActivityLog) error {
	if logEntry.ID == "" {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO activity_logs (id, user_id, action, action_type, action_id, description, ip_address)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
	`, logEntry.ID, logEntry.UserID, logEntry.Action, logEntry.ActionType, logEntry.ActionID, logEntry.Description, logEntry.IPAddress)
	if err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertActivityLog(ctx context.Context, logEntry ActivityLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_logs (id, user_id, action, action_type, action_id, description, ip_address)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
	`, logEntry.ID, logEntry.UserID, logEntry.Action, logEntry.ActionType, logEntry.ActionID, logEntry.Description, logEntry.IPAddress)
	if err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

const activityLogColumns = `al.id, al.user_id, COALESCE(u.name, ''), al.action, al.action_type, COALESCE(al.action_id, ''), al.description, al.ip_address, al.created_at`

func (s *PostgresStore) listActivityLogs(ctx context.Context, where string, limit, offset int, args ...any) ([]ActivityLog, error) {
	query := `
		SELECT ` + activityLogColumns + `
		FROM activity_logs al
		LEFT JOIN users u ON u.id = al.user_id
		` + where + `
		ORDER BY al.created_at DESC
		LIMIT ` + fmt.Sprintf("%d OFFSET %d", limit, offset)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activity logs: %w", err)
	}
	defer rows.Close()

	items := make([]ActivityLog, 0)
	for rows.Next() {
		var entry ActivityLog
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.UserName, &entry.Action, &entry.ActionType, &entry.ActionID, &entry.Description, &entry.IPAddress, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity log: %w", err)
		}
		items = append(items, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity logs: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListActivityLogs(ctx context.Context, limit, offset int) ([]ActivityLog, int, error) {
	items, err := s.listActivityLogs(ctx, ``, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_logs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count activity logs: %w", err)
	}
	return items, total, nil
}

func (s *PostgresStore) ListActivityLogsByUser(ctx context.Context, userID string, limit, offset int) ([]ActivityLog, error) {
	return s.listActivityLogs(ctx, `WHERE al.user_id=$1`, limit, offset, userID)
}

// -- events & notifications --

const eventColumns = `id, user_id, title, description, start_date, end_date, color, created_at, updated_at`

// CreateEvent stores the event and its notification fan-out atomically.
func (s *PostgresStore) CreateEvent(ctx context.Context, event Event, notifications []Notification, logEntry ActivityLog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create event: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO events (id, user_id, title, description, start_date, end_date, color)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, event.ID, event.UserID, event.Title, event.Description, event.StartDate, event.EndDate, event.Color); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	for _, n := range notifications {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO notifications (id, user_id, event_id, title, message, type, role, scheduled_at)
			VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), $8)
		`, n.ID, n.UserID, n.EventID, n.Title, n.Message, n.Type, n.Role, n.ScheduledAt); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
	}

	if err := insertActivityLogTx(ctx, tx, logEntry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create event: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, eventID string) (Event, error) {
	var event Event
	err := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id=$1`, eventID).
		Scan(&event.ID, &event.UserID, &event.Title, &event.Description, &event.StartDate, &event.EndDate, &event.Color, &event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		return Event{}, err
	}
	return event, nil
}

// ListEventsByMonth returns events whose span touches the given month.
func (s *PostgresStore) ListEventsByMonth(ctx context.Context, year int, month time.Month) ([]Event, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE start_date < $2 AND COALESCE(end_date, start_date) >= $1
		ORDER BY start_date
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	items := make([]Event, 0)
	for rows.Next() {
		var event Event
		if err := rows.Scan(&event.ID, &event.UserID, &event.Title, &event.Description, &event.StartDate, &event.EndDate, &event.Color, &event.CreatedAt, &event.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		items = append(items, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateEvent(ctx context.Context, event Event, logEntry ActivityLog) (Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Event{}, fmt.Errorf("begin update event: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var updated Event
	err = tx.QueryRowContext(ctx, `
		UPDATE events SET title=$2, description=$3, start_date=$4, end_date=$5, color=$6, updated_at=NOW()
		WHERE id=$1
		RETURNING `+eventColumns+`
	`, event.ID, event.Title, event.Description, event.StartDate, event.EndDate, event.Color).
		Scan(&updated.ID, &updated.UserID, &updated.Title, &updated.Description, &updated.StartDate, &updated.EndDate, &updated.Color, &updated.CreatedAt, &updated.UpdatedAt)
	if err != nil {
		return Event{}, err
	}
	if err := insertActivityLogTx(ctx, tx, logEntry); err != nil {
		return Event{}, err
	}
	if err := tx.Commit(); err != nil {
		return Event{}, fmt.Errorf("commit update event: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) DeleteEvent(ctx context.Context, eventID string, logEntry ActivityLog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete event: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id=$1`, eventID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	if err := insertActivityLogTx(ctx, tx, logEntry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete event: %w", err)
	}
	return nil
}

const notificationColumns = `id, user_id, COALESCE(event_id, ''), title, message, type, COALESCE(role, ''), is_read, scheduled_at, created_at`

func (s *PostgresStore) ListNotificationsByUser(ctx context.Context, userID string) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE user_id=$1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.EventID, &n.Title, &n.Message, &n.Type, &n.Role, &n.IsRead, &n.ScheduledAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND NOT is_read
	`, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read=TRUE WHERE id=$1 AND user_id=$2
	`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read=TRUE WHERE user_id=$1 AND NOT is_read
	`, userID)
	if err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

// -- password reset tokens --

func (s *PostgresStore) SavePasswordResetToken(ctx context.Context, email, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_reset_tokens (email, token_hash, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (email) DO UPDATE SET token_hash=EXCLUDED.token_hash, created_at=NOW()
	`, email, tokenHash)
	if err != nil {
		return fmt.Errorf("save reset token: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordResetToken(ctx context.Context, email string) (PasswordResetToken, error) {
	var token PasswordResetToken
	err := s.db.QueryRowContext(ctx, `
		SELECT email, token_hash, created_at FROM password_reset_tokens WHERE email=$1
	`, email).Scan(&token.Email, &token.TokenHash, &token.CreatedAt)
	if err != nil {
		return PasswordResetToken{}, err
	}
	return token, nil
}

func (s *PostgresStore) DeletePasswordResetToken(ctx context.Context, email string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE email=$1`, email)
	if err != nil {
		return fmt.Errorf("delete reset token: %w", err)
	}
	return nil
}

// -- remember tokens (fallback when Redis is not configured) --

func (s *PostgresStore) SaveRememberToken(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO remember_tokens (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save remember token: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRememberToken(ctx context.Context, tokenHash string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM remember_tokens WHERE token_hash=$1 AND expires_at > NOW()
	`, tokenHash).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) RevokeRememberToken(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM remember_tokens WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke remember token: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key value")
}
