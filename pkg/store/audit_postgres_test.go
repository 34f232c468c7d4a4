package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresAuditSink_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs(sqlmock.AnyArg(), "rule.created", "RegulatoryRule", "r-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sink := NewPostgresAuditSink(db)
	err = sink.Record(context.Background(), "rule.created", "RegulatoryRule", "r-1",
		map[string]any{"concept_slug": "vat-standard-rate"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAuditSink_NilMetadataInsertsNull(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs(sqlmock.AnyArg(), "rule.deprecated", "RegulatoryRule", "r-2", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sink := NewPostgresAuditSink(db)
	require.NoError(t, sink.Record(context.Background(), "rule.deprecated", "RegulatoryRule", "r-2", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
