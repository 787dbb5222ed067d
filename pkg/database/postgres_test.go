package database_test

import (
	"errors"
	"fmt"
	"testing"

	"clinic-booking/pkg/database"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestConstraintViolations(t *testing.T) {
	fk := fmt.Errorf("delete slot: %w", &pgconn.PgError{Code: "23503"})
	unique := &pgconn.PgError{Code: "23505"}

	assert.True(t, database.IsForeignKeyViolation(fk))
	assert.False(t, database.IsForeignKeyViolation(unique))
	assert.False(t, database.IsForeignKeyViolation(errors.New("connection reset")))
	assert.False(t, database.IsForeignKeyViolation(nil))

	assert.True(t, database.IsUniqueViolation(unique))
	assert.False(t, database.IsUniqueViolation(fk))
}
