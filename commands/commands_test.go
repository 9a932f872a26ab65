package commands

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)
	return db, mock
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "seed-categories", "version"}, names)
	assert.NotNil(t, root.PersistentFlags().ShorthandLookup("c"))
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), Version)
}

func TestServeCommand_PortFlag(t *testing.T) {
	cmd := newServeCommand(new(string))
	flag := cmd.Flags().ShorthandLookup("p")
	require.NotNil(t, flag)
	assert.Equal(t, "port", flag.Name)
}

func TestNormalizePort(t *testing.T) {
	assert.Equal(t, ":8080", normalizePort("8080"))
	assert.Equal(t, ":9090", normalizePort(":9090"))
}

func TestSeedCategories_AllUsers(t *testing.T) {
	db, mock := setupMockGorm(t)

	mock.ExpectQuery("SELECT `id` FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `categories`").WillReturnResult(sqlmock.NewResult(1, 14))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `categories`").WillReturnResult(sqlmock.NewResult(15, 0))
	mock.ExpectCommit()

	var out bytes.Buffer
	require.NoError(t, seedCategories(context.Background(), db, nil, &out))
	assert.Contains(t, out.String(), "用户 1: 新建 14 个类别")
	assert.Contains(t, out.String(), "用户 2: 新建 0 个类别")
	assert.Contains(t, out.String(), "处理 2 个用户，新建 14 个类别")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedCategories_UnknownUser(t *testing.T) {
	db, mock := setupMockGorm(t)

	mock.ExpectQuery("SELECT \\* FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "created_at"}))

	err := seedCategories(context.Background(), db, []uint{42}, &bytes.Buffer{})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedCategories_SingleUser(t *testing.T) {
	db, mock := setupMockGorm(t)

	mock.ExpectQuery("SELECT \\* FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "created_at"}).AddRow(7, "bob", time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `categories`").WillReturnResult(sqlmock.NewResult(1, 3))
	mock.ExpectCommit()

	var out bytes.Buffer
	require.NoError(t, seedCategories(context.Background(), db, []uint{7}, &out))
	assert.Contains(t, out.String(), "用户 7: 新建 3 个类别")
	require.NoError(t, mock.ExpectationsWereMet())
}
