package executor

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLAdapterExecuteQueryScansRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "name"}).
		AddRow(1, "alice").
		AddRow(2, "bob")
	mock.ExpectQuery("SELECT id, name FROM users").WillReturnRows(rows)

	a := &mysqlAdapter{db: db, cfg: Config{Database: "testdb"}}
	result, err := a.ExecuteQuery(context.Background(), "SELECT id, name FROM users")
	require.NoError(t, err)

	assert.Equal(t, 2, result.RowCount)
	assert.Equal(t, []string{"id", "name"}, result.Columns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLAdapterIntrospectBuildsDatabaseInfo(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SHOW TABLES").
		WillReturnRows(sqlmock.NewRows([]string{"Tables_in_testdb"}).AddRow("orders"))
	mock.ExpectQuery("DESCRIBE `orders`").
		WillReturnRows(sqlmock.NewRows([]string{"Field", "Type", "Null", "Key", "Default", "Extra"}).
			AddRow("id", "int", "NO", "PRI", nil, "").
			AddRow("customer_id", "int", "YES", "", nil, ""))
	mock.ExpectQuery("KEY_COLUMN_USAGE").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "REFERENCED_TABLE_NAME", "REFERENCED_COLUMN_NAME"}).
			AddRow("customer_id", "customers", "id"))
	mock.ExpectQuery("SELECT \\* FROM `orders` LIMIT 3").
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id"}).AddRow(1, 7))

	a := &mysqlAdapter{db: db, cfg: Config{Database: "testdb"}}
	info, err := a.Introspect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"orders"}, info.Tables)
	assert.Equal(t, []string{"id"}, info.PrimaryKeyMap["orders"])
	require.Len(t, info.ForeignKeyMap["orders"], 1)
	assert.Equal(t, "customers", info.ForeignKeyMap["orders"][0].ForeignTable)
	require.Len(t, info.SampleValueMap["orders"], 2)
}
