package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"boqunits/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestBOQReader_ForEachBOQ(t *testing.T) {
	db, mock := setupMockDB(t)
	rows := sqlmock.NewRows([]string{"id", "company_id", "number", "data"}).
		AddRow("b-1", "c-1", "BOQ-001", []byte(`{"sections": [{"items": [{"unit": "kg"}]}]}`)).
		AddRow("b-2", "c-1", "BOQ-002", nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, company_id, number, data")).WillReturnRows(rows)

	var got []models.BOQ
	err := NewBOQReader(db).ForEachBOQ(context.Background(), nil, func(boq models.BOQ) error {
		got = append(got, boq)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "kg", got[0].Data.Sections[0].Items[0].LegacyToken())
	assert.False(t, got[1].Data.HasSections())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBOQReader_ForEachBOQ_FiltersCompanies(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("ANY($1::text[])")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "number", "data"}))

	err := NewBOQReader(db).ForEachBOQ(context.Background(), []string{"c-1", "c-2"}, func(models.BOQ) error {
		t.Fatal("no rows expected")
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBOQReader_ForEachBOQ_StopsOnCallbackError(t *testing.T) {
	db, mock := setupMockDB(t)
	rows := sqlmock.NewRows([]string{"id", "company_id", "number", "data"}).
		AddRow("b-1", "c-1", "BOQ-001", []byte(`{}`)).
		AddRow("b-2", "c-1", "BOQ-002", []byte(`{}`))
	mock.ExpectQuery("FROM boqs").WillReturnRows(rows)

	stop := errors.New("stop")
	calls := 0
	err := NewBOQReader(db).ForEachBOQ(context.Background(), nil, func(models.BOQ) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestBOQReader_GetBOQ(t *testing.T) {
	db, mock := setupMockDB(t)
	updated := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM boqs")).
		WithArgs("b-1", "c-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "number", "client_name", "currency", "data", "updated_at"}).
			AddRow("b-1", "c-1", "BOQ-001", nil, "AED", []byte(`{"sections": []}`), updated))

	boq, err := NewBOQReader(db).GetBOQ(context.Background(), "c-1", "b-1")
	require.NoError(t, err)
	assert.Equal(t, "BOQ-001", boq.Number)
	assert.Nil(t, boq.ClientName)
	require.NotNil(t, boq.Currency)
	assert.Equal(t, "AED", *boq.Currency)
	assert.True(t, boq.Data.HasSections())
	assert.Equal(t, updated, boq.UpdatedAt)
}

func TestBOQReader_GetBOQ_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery("FROM boqs").
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "number", "client_name", "currency", "data", "updated_at"}))

	_, err := NewBOQReader(db).GetBOQ(context.Background(), "c-1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBOQReader_ListUnits(t *testing.T) {
	db, mock := setupMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM units")).
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "name", "abbreviation", "created_by", "created_at", "updated_at"}).
			AddRow("u-1", "c-1", "Cubic Meters", "m³", nil, now, now).
			AddRow("u-2", "c-1", "Lot", nil, "unit-migration", now, now))

	units, err := NewBOQReader(db).ListUnits(context.Background(), "c-1")
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "m³", units[0].DisplayAbbreviation())
	assert.Nil(t, units[1].Abbreviation)
	assert.Equal(t, "unit-migration", models.StringValue(units[1].CreatedBy))
}
