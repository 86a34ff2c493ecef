package cohort

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockWarehouse(t *testing.T) (*Warehouse, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	return wrapMockWarehouse(t, mockDB, mock, err)
}

// wrapMockWarehouse exists because sqlmock's option type is unexported and
// cannot be forwarded through a variadic helper parameter.
func wrapMockWarehouse(t *testing.T, mockDB *sql.DB, mock sqlmock.Sqlmock, err error) (*Warehouse, sqlmock.Sqlmock) {
	t.Helper()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return NewWarehouseFromDB(sqlx.NewDb(mockDB, "mysql")), mock
}

func TestWarehouse_StreamAllRows(t *testing.T) {
	w, mock := setupMockWarehouse(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT patient_id, name FROM cohort")).
		WillReturnRows(sqlmock.NewRows([]string{"patient_id", "name"}).
			AddRow(int64(1), []byte("Ada")).
			AddRow(int64(2), nil))

	table := &Table{}
	truncated, err := w.Stream(context.Background(), "SELECT patient_id, name FROM cohort", 10, table)

	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Equal(t, []string{"patient_id", "name"}, table.Header)
	require.Len(t, table.Data, 2)
	assert.Equal(t, "Ada", table.Data[0][1], "text columns should come back as strings")
	assert.Nil(t, table.Data[1][1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWarehouse_StreamStopsAtLimit(t *testing.T) {
	w, mock := setupMockWarehouse(t)
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).AddRow(3))

	table := &Table{}
	truncated, err := w.Stream(context.Background(), "SELECT id FROM cohort", 2, table)

	require.NoError(t, err)
	assert.True(t, truncated)
	assert.Len(t, table.Data, 2)
}

func TestWarehouse_ExactlyLimitIsNotTruncated(t *testing.T) {
	w, mock := setupMockWarehouse(t)
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))

	table := &Table{}
	truncated, err := w.Stream(context.Background(), "SELECT id FROM cohort", 2, table)

	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Len(t, table.Data, 2)
}

func TestWarehouse_QueryError(t *testing.T) {
	w, mock := setupMockWarehouse(t)
	mock.ExpectQuery("SELECT").WillReturnError(errors.New("Table 'cohort' doesn't exist"))

	_, err := w.Stream(context.Background(), "SELECT id FROM cohort", 2, &Table{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "doesn't exist")
}

func TestWarehouse_RowError(t *testing.T) {
	w, mock := setupMockWarehouse(t)
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).RowError(1, errors.New("connection lost")))

	table := &Table{}
	_, err := w.Stream(context.Background(), "SELECT id FROM cohort", 10, table)

	require.Error(t, err)
	assert.Len(t, table.Data, 1)
}

func TestWarehouse_Ping(t *testing.T) {
	mockDB, sqlMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	w, mock := wrapMockWarehouse(t, mockDB, sqlMock, err)
	mock.ExpectPing()

	assert.NoError(t, w.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWarehouse(t *testing.T) {
	_, err := NewWarehouse("not a dsn")
	assert.Error(t, err)

	w, err := NewWarehouse("reader:secret@tcp(localhost:3306)/warehouse")
	require.NoError(t, err)
	assert.NoError(t, w.Close())
}
