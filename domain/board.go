package domain

import (
	"fmt"
	"strings"
	"time"
)

// Board is the top-level container. Names are unique case-insensitively
// across the deployment (single-tenant mode).
type Board struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Column belongs to exactly one board and holds a dense order index
// within it.
type Column struct {
	ID        string    `json:"id"`
	BoardID   string    `json:"boardId"`
	Name      string    `json:"name"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Card belongs to exactly one column. BoardID is denormalized from the
// column and must always match the column's board; both fields change
// together on a move.
type Card struct {
	ID          string    `json:"id"`
	BoardID     string    `json:"boardId"`
	ColumnID    string    `json:"columnId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Order       int       `json:"order"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Snapshot is a point-in-time view of one board and everything on it.
type Snapshot struct {
	Board   Board    `json:"board"`
	Columns []Column `json:"columns"`
	Cards   []Card   `json:"cards"`
}

const (
	BoardNameMinLen  = 3
	BoardNameMaxLen  = 50
	BoardDescMaxLen  = 200
	ColumnNameMinLen = 1
	ColumnNameMaxLen = 50
	CardTitleMinLen  = 1
	CardTitleMaxLen  = 100
	CardDescMaxLen   = 500
)

func ValidateBoardName(name string) error {
	if n := len(strings.TrimSpace(name)); n < BoardNameMinLen || n > BoardNameMaxLen {
		return Validationf("board name must be between %d and %d characters", BoardNameMinLen, BoardNameMaxLen)
	}
	return nil
}

func ValidateBoardDescription(desc string) error {
	if len(desc) > BoardDescMaxLen {
		return Validationf("board description must be at most %d characters", BoardDescMaxLen)
	}
	return nil
}

func ValidateColumnName(name string) error {
	if n := len(strings.TrimSpace(name)); n < ColumnNameMinLen || n > ColumnNameMaxLen {
		return Validationf("column name must be between %d and %d characters", ColumnNameMinLen, ColumnNameMaxLen)
	}
	return nil
}

func ValidateCardTitle(title string) error {
	if n := len(strings.TrimSpace(title)); n < CardTitleMinLen || n > CardTitleMaxLen {
		return Validationf("card title must be between %d and %d characters", CardTitleMinLen, CardTitleMaxLen)
	}
	return nil
}

func ValidateCardDescription(desc string) error {
	if len(desc) > CardDescMaxLen {
		return Validationf("card description must be at most %d characters", CardDescMaxLen)
	}
	return nil
}

// SameName reports whether two names collide under the case-insensitive
// uniqueness rule.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func (b Board) String() string  { return fmt.Sprintf("board %s (%s)", b.ID, b.Name) }
func (c Column) String() string { return fmt.Sprintf("column %s (%s)", c.ID, c.Name) }
