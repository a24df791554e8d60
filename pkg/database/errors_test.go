package database

import (
	"fmt"
	"testing"

	"github.com/careops/careops-backend/pkg/errors"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPQError(t *testing.T) {
	tests := []struct {
		name     string
		err      *pq.Error
		wantErr  error
		wantCode string
	}{
		{
			name:     "serialization failure",
			err:      &pq.Error{Code: "40001"},
			wantErr:  errors.ErrConcurrencyConflict,
			wantCode: "CONCURRENCY_CONFLICT",
		},
		{
			name:     "deadlock",
			err:      &pq.Error{Code: "40P01"},
			wantErr:  errors.ErrConcurrencyConflict,
			wantCode: "CONCURRENCY_CONFLICT",
		},
		{
			name:     "negative quantity check",
			err:      &pq.Error{Code: "23514", Constraint: "inventory_lines_quantity_non_negative"},
			wantErr:  errors.ErrConcurrencyConflict,
			wantCode: "CONCURRENCY_CONFLICT",
		},
		{
			name:     "transfer quantity check",
			err:      &pq.Error{Code: "23514", Constraint: "transfers_quantity_positive"},
			wantErr:  errors.ErrValidation,
			wantCode: "VALIDATION_ERROR",
		},
		{
			name:     "transfer locations check",
			err:      &pq.Error{Code: "23514", Constraint: "transfers_locations_differ"},
			wantErr:  errors.ErrValidation,
			wantCode: "VALIDATION_ERROR",
		},
		{
			name:     "duplicate tracking number",
			err:      &pq.Error{Code: "23505", Constraint: "transfers_tracking_number_uniq"},
			wantErr:  errors.ErrConflict,
			wantCode: "CONFLICT",
		},
		{
			name:     "duplicate active line",
			err:      &pq.Error{Code: "23505", Constraint: "inventory_lines_active_line_uniq"},
			wantErr:  errors.ErrConflict,
			wantCode: "CONFLICT",
		},
		{
			name:     "foreign key violation",
			err:      &pq.Error{Code: "23503"},
			wantErr:  errors.ErrBadRequest,
			wantCode: "BAD_REQUEST",
		},
		{
			name:     "not null violation",
			err:      &pq.Error{Code: "23502", Column: "reason"},
			wantErr:  errors.ErrValidation,
			wantCode: "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapPQError(tt.err)
			require.NotNil(t, mapped)
			assert.True(t, errors.Is(mapped, tt.wantErr))
			assert.Equal(t, tt.wantCode, mapped.Code)
		})
	}
}

func TestMapPQError_PassesThroughUnknown(t *testing.T) {
	// Unknown pq codes and non-pq errors are left for the caller
	assert.Nil(t, MapPQError(&pq.Error{Code: "42P01"}))
	assert.Nil(t, MapPQError(fmt.Errorf("plain error")))
	assert.Nil(t, MapPQError(nil))
}
