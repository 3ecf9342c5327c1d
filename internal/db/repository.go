package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/kimhsiao/syncledger/backend/internal/models"
)

// SQLRepository implements Repository against a SQLite connection. It is
// the only component (besides the Migrator) that touches the schema
// directly; everything else in the sync core goes through it.
type SQLRepository struct {
	db *DB
}

var _ Repository = (*SQLRepository)(nil)

// NewRepository wraps an open DB in a Repository.
func NewRepository(database *DB) *SQLRepository {
	return &SQLRepository{db: database}
}

// BeginTx starts a write transaction.
func (r *SQLRepository) BeginTx() (*sql.Tx, error) {
	return r.db.Begin()
}

// timeLayout is fixed-width (always nine fractional digits, always UTC),
// so stored timestamps sort chronologically as strings and the
// updated_at >= ? filters compare correctly.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// ListCategories returns every category.
func (r *SQLRepository) ListCategories() ([]models.Category, error) {
	return r.listCategories("")
}

// ListCategoriesUpdatedSince returns categories with updated_at >= threshold.
func (r *SQLRepository) ListCategoriesUpdatedSince(threshold time.Time) ([]models.Category, error) {
	return r.listCategories(formatTime(threshold))
}

func (r *SQLRepository) listCategories(since string) ([]models.Category, error) {
	query := "SELECT id, name, color, created_at, updated_at FROM categories"
	args := []interface{}{}
	if since != "" {
		query += " WHERE updated_at >= ?"
		args = append(args, since)
	}
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []models.Category
	for rows.Next() {
		var c models.Category
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("invalid category created_at: %w", err)
		}
		if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("invalid category updated_at: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListTasks returns every task.
func (r *SQLRepository) ListTasks() ([]models.Task, error) {
	return r.listTasks("")
}

// ListTasksUpdatedSince returns tasks with updated_at >= threshold.
func (r *SQLRepository) ListTasksUpdatedSince(threshold time.Time) ([]models.Task, error) {
	return r.listTasks(formatTime(threshold))
}

func (r *SQLRepository) listTasks(since string) ([]models.Task, error) {
	query := "SELECT id, category_id, name, completed, created_at, updated_at FROM tasks"
	args := []interface{}{}
	if since != "" {
		query += " WHERE updated_at >= ?"
		args = append(args, since)
	}
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var out []models.Task
	for rows.Next() {
		var t models.Task
		var categoryID sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&t.ID, &categoryID, &t.Name, &t.Completed, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.CategoryID = categoryID.String
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("invalid task created_at: %w", err)
		}
		if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("invalid task updated_at: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListTimeEntries returns every time entry.
func (r *SQLRepository) ListTimeEntries() ([]models.TimeEntry, error) {
	return r.listTimeEntries("")
}

// ListTimeEntriesUpdatedSince returns time entries with updated_at >= threshold.
func (r *SQLRepository) ListTimeEntriesUpdatedSince(threshold time.Time) ([]models.TimeEntry, error) {
	return r.listTimeEntries(formatTime(threshold))
}

func (r *SQLRepository) listTimeEntries(since string) ([]models.TimeEntry, error) {
	query := "SELECT id, task_id, category_id, start_time, end_time, created_at, updated_at FROM time_entries"
	args := []interface{}{}
	if since != "" {
		query += " WHERE updated_at >= ?"
		args = append(args, since)
	}
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list time entries: %w", err)
	}
	defer rows.Close()

	var out []models.TimeEntry
	for rows.Next() {
		var e models.TimeEntry
		var categoryID sql.NullString
		var startTime, endTime, createdAt, updatedAt string
		if err := rows.Scan(&e.ID, &e.TaskID, &categoryID, &startTime, &endTime, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan time entry: %w", err)
		}
		e.CategoryID = categoryID.String
		if e.StartTime, err = parseTime(startTime); err != nil {
			return nil, fmt.Errorf("invalid time entry start_time: %w", err)
		}
		if e.EndTime, err = parseTime(endTime); err != nil {
			return nil, fmt.Errorf("invalid time entry end_time: %w", err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("invalid time entry created_at: %w", err)
		}
		if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("invalid time entry updated_at: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListAccounts returns every account.
func (r *SQLRepository) ListAccounts() ([]models.Account, error) {
	return r.listAccounts("")
}

// ListAccountsUpdatedSince returns accounts with updated_at >= threshold.
func (r *SQLRepository) ListAccountsUpdatedSince(threshold time.Time) ([]models.Account, error) {
	return r.listAccounts(formatTime(threshold))
}

func (r *SQLRepository) listAccounts(since string) ([]models.Account, error) {
	query := "SELECT id, name, created_at, updated_at FROM accounts"
	args := []interface{}{}
	if since != "" {
		query += " WHERE updated_at >= ?"
		args = append(args, since)
	}
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var out []models.Account
	for rows.Next() {
		var a models.Account
		var createdAt, updatedAt string
		if err := rows.Scan(&a.ID, &a.Name, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("invalid account created_at: %w", err)
		}
		if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("invalid account updated_at: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListTransactions returns every transaction.
func (r *SQLRepository) ListTransactions() ([]models.Transaction, error) {
	return r.listTransactions("")
}

// ListTransactionsUpdatedSince returns transactions with updated_at >= threshold.
func (r *SQLRepository) ListTransactionsUpdatedSince(threshold time.Time) ([]models.Transaction, error) {
	return r.listTransactions(formatTime(threshold))
}

func (r *SQLRepository) listTransactions(since string) ([]models.Transaction, error) {
	query := "SELECT id, account_id, amount, description, occurred_at, created_at, updated_at FROM transactions"
	args := []interface{}{}
	if since != "" {
		query += " WHERE updated_at >= ?"
		args = append(args, since)
	}
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		var occurredAt, createdAt, updatedAt string
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.Amount, &tx.Description, &occurredAt, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if tx.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, fmt.Errorf("invalid transaction occurred_at: %w", err)
		}
		if tx.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("invalid transaction created_at: %w", err)
		}
		if tx.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("invalid transaction updated_at: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// GetSetting reads a single key from the settings table.
func (r *SQLRepository) GetSetting(key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %q: %w", key, err)
	}
	return value, true, nil
}

// SetSetting upserts a single key in the settings table.
func (r *SQLRepository) SetSetting(key, value string) error {
	_, err := r.db.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set setting %q: %w", key, err)
	}
	return nil
}

// SetSettingTx upserts a single key in the settings table within an
// already-open transaction, so provenance writes commit atomically with
// the record replacement that precedes them.
func (r *SQLRepository) SetSettingTx(tx *sql.Tx, key, value string) error {
	_, err := tx.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set setting %q: %w", key, err)
	}
	return nil
}

// Replace truncates all five tables (children before parents) and inserts
// every record from snap (parents before children), all within the caller's
// transaction. It never commits or rolls back; the caller (the Serializer's
// transactional import) owns that decision.
func (r *SQLRepository) Replace(tx *sql.Tx, snap *models.Snapshot) error {
	truncateOrder := []string{"time_entries", "transactions", "tasks", "categories", "accounts"}
	for _, table := range truncateOrder {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}

	for _, c := range snap.Categories {
		if _, err := tx.Exec(
			"INSERT INTO categories (id, name, color, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
			c.ID, c.Name, c.Color, formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
		); err != nil {
			return fmt.Errorf("failed to insert category %s: %w", c.ID, err)
		}
	}

	for _, a := range snap.Accounts {
		if _, err := tx.Exec(
			"INSERT INTO accounts (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)",
			a.ID, a.Name, formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
		); err != nil {
			return fmt.Errorf("failed to insert account %s: %w", a.ID, err)
		}
	}

	for _, t := range snap.Tasks {
		categoryID := sql.NullString{String: t.CategoryID, Valid: t.CategoryID != ""}
		if _, err := tx.Exec(
			"INSERT INTO tasks (id, category_id, name, completed, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
			t.ID, categoryID, t.Name, t.Completed, formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
		); err != nil {
			return fmt.Errorf("failed to insert task %s: %w", t.ID, err)
		}
	}

	for _, e := range snap.TimeEntries {
		categoryID := sql.NullString{String: e.CategoryID, Valid: e.CategoryID != ""}
		if _, err := tx.Exec(
			"INSERT INTO time_entries (id, task_id, category_id, start_time, end_time, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			e.ID, e.TaskID, categoryID, formatTime(e.StartTime), formatTime(e.EndTime), formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
		); err != nil {
			return fmt.Errorf("failed to insert time entry %s: %w", e.ID, err)
		}
	}

	for _, tr := range snap.Transactions {
		if _, err := tx.Exec(
			"INSERT INTO transactions (id, account_id, amount, description, occurred_at, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			tr.ID, tr.AccountID, tr.Amount, tr.Description, formatTime(tr.OccurredAt), formatTime(tr.CreatedAt), formatTime(tr.UpdatedAt),
		); err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", tr.ID, err)
		}
	}

	return nil
}
