// Package repository provides data access layer implementations for the application.
package repository

import (
	"errors"
	"strings"

	"circles/internal/database"
	"circles/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// readDB returns the replica for plain reads. Inside a transaction the
// transaction handle is kept so check-then-act reads see their own writes.
func readDB(primary *gorm.DB) *gorm.DB {
	if _, inTx := primary.Statement.ConnPool.(gorm.TxCommitter); inTx {
		return primary
	}
	if db := database.GetReadDB(); db != nil {
		return db
	}
	return primary
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// likePattern builds a case-insensitive substring LIKE pattern, escaping
// wildcard characters in the user input.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(q)) + "%"
}

// summaryColumns selects the public identity of the joined users row.
const summaryColumns = "users.id, users.username, users.first_name, users.last_name, profiles.avatar_url AS avatar"

type summaryRow struct {
	ID        uint
	Username  string
	FirstName string
	LastName  string
	Avatar    *string
}

func (s summaryRow) summary() models.UserSummary {
	out := models.UserSummary{
		ID:        s.ID,
		Username:  s.Username,
		FirstName: s.FirstName,
		LastName:  s.LastName,
	}
	if s.Avatar != nil {
		out.Avatar = *s.Avatar
	}
	return out
}
