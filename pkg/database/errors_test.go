package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert article: %w", &pq.Error{Code: "23505", Constraint: "articles_slug_key"})

	assert.True(t, IsUniqueViolation(err))
	assert.True(t, IsUniqueViolation(err, "articles_slug_key"))
	assert.False(t, IsUniqueViolation(err, "students_admission_number_key"))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}

func TestIsInvalidInput(t *testing.T) {
	assert.True(t, IsInvalidInput(fmt.Errorf("increment counter: %w", &pq.Error{Code: "22P02"})))
	assert.False(t, IsInvalidInput(&pq.Error{Code: "23505"}))
	assert.False(t, IsInvalidInput(sql.ErrNoRows))
}

func TestIsUnavailable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "bad conn", err: fmt.Errorf("query: %w", driver.ErrBadConn), want: true},
		{name: "conn done", err: sql.ErrConnDone, want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "connection failure", err: &pq.Error{Code: "08006"}, want: true},
		{name: "shutdown", err: &pq.Error{Code: "57P01"}, want: true},
		{name: "net", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: true},
		{name: "syntax", err: &pq.Error{Code: "42601"}, want: false},
		{name: "no rows", err: sql.ErrNoRows, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsUnavailable(tc.err))
		})
	}
}
