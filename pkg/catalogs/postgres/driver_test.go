package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapcomplete/pkg/catalog"
	"github.com/leapstack-labs/leapcomplete/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   catalog.Config
		expected string
	}{
		{
			name: "basic connection",
			config: catalog.Config{
				Host:     "localhost",
				Port:     5432,
				Database: "testdb",
				User:     "user",
				Password: "pass",
			},
			expected: "host=localhost port=5432 dbname=testdb sslmode=disable user=user password=pass",
		},
		{
			name: "with custom sslmode",
			config: catalog.Config{
				Host:     "prod.example.com",
				Database: "proddb",
				User:     "admin",
				Options:  map[string]string{"sslmode": "require"},
			},
			expected: "host=prod.example.com port=5432 dbname=proddb sslmode=require user=admin",
		},
		{
			name:     "defaults",
			config:   catalog.Config{Database: "mydb"},
			expected: "host=localhost port=5432 dbname=mydb sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildPostgresDSN(tt.config))
		})
	}
}

func TestDriver_ListTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("FROM pg_class c").
		WithArgs("sales").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "table_comment"}).
			AddRow("orders", "customer orders").
			AddRow("users", nil))

	d := New(nil)
	d.DB = db
	d.Cfg = catalog.Config{Schema: "sales"}

	stubs, err := d.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []core.TableStub{{Name: "orders", Comment: "customer orders"}, {Name: "users"}}, stubs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDriver_DescribeTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("FROM pg_attribute a").
		WithArgs("public", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "column_comment", "is_primary_key", "is_nullable"}).
			AddRow("id", "bigint", nil, true, false).
			AddRow("total", "numeric(10,2)", "order total", false, true))
	mock.ExpectQuery("SELECT obj_description").
		WithArgs("public", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"obj_description"}).AddRow("customer orders"))

	d := New(nil)
	d.DB = db

	detail, err := d.DescribeTable(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, "orders", detail.Name)
	assert.Equal(t, "customer orders", detail.Comment)
	require.Len(t, detail.Columns, 2)
	assert.True(t, detail.Columns[0].IsPrimaryKey)
	assert.Equal(t, "order total", detail.Columns[1].Comment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDriver_DescribeTable_Qualified(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("FROM pg_attribute a").
		WithArgs("audit", "events").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "column_comment", "is_primary_key", "is_nullable"}))

	d := New(nil)
	d.DB = db

	_, err = d.DescribeTable(context.Background(), "audit.events")
	assert.ErrorIs(t, err, core.ErrTableNotFound)
}

func TestRegistered(t *testing.T) {
	assert.True(t, catalog.IsRegistered("postgres"))
}
