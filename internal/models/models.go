// Package models defines the record types synchronized between the local
// SQLite store and the remote snapshot: tasks, categories, time entries,
// accounts, and transactions.
package models

import "time"

// Category groups tasks and time entries under a name and a display color.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Task is a single to-do item, optionally filed under a Category.
type Task struct {
	ID         string    `json:"id"`
	CategoryID string    `json:"category_id,omitempty"`
	Name       string    `json:"name"`
	Completed  bool      `json:"completed"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TimeEntry records a span of time worked against a Task.
type TimeEntry struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	CategoryID string    `json:"category_id,omitempty"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Account is a named money container that transactions post against.
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transaction is a single posting against an Account.
type Transaction struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurred_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Duration returns the span of a time entry.
func (e TimeEntry) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}
