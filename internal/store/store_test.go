package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/okabe/favcrawl/internal/catalog"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	st, err := NewWithDB(mock)
	require.NoError(t, err)
	return st, mock
}

func TestUpsertSubjects(t *testing.T) {
	t.Parallel()

	st, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO subjects").
		WithArgs("actor", "Alice", "/actors/a").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery("INSERT INTO subjects").
		WithArgs("actor", "Beth", "/actors/b").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(2)))

	n, err := st.UpsertSubjects(context.Background(), catalog.ScopeActor, []catalog.SubjectRecord{
		{Name: " Alice ", Href: " /actors/a "},
		{Name: "Beth", Href: "/actors/b"},
		{Name: "  ", Href: "/dropped"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, n, "the nameless record is dropped, not saved")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListSubjects(t *testing.T) {
	t.Parallel()

	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, name, href FROM subjects").
		WithArgs("series").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "href"}).
			AddRow(int64(2), "alpha", "/series/a").
			AddRow(int64(1), "Beta", "/series/b"))

	subjects, err := st.ListSubjects(context.Background(), catalog.ScopeSeries)
	require.NoError(t, err)
	require.Equal(t, []catalog.Subject{
		{ID: 2, Scope: catalog.ScopeSeries, Name: "alpha", Href: "/series/a"},
		{ID: 1, Scope: catalog.ScopeSeries, Name: "Beta", Href: "/series/b"},
	}, subjects)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectHrefUnknownSubject(t *testing.T) {
	t.Parallel()

	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT href FROM subjects").
		WithArgs("actor", "Nobody").
		WillReturnError(pgx.ErrNoRows)

	href, err := st.SubjectHref(context.Background(), catalog.ScopeActor, "Nobody")
	require.NoError(t, err)
	require.Empty(t, href)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertWorksOverwritesTitleAndHref(t *testing.T) {
	t.Parallel()

	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO subjects").
		WithArgs("actor", "Alice", "/actors/a").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec("INSERT INTO works").
		WithArgs(int64(7), "AAA-1", "New Title", "/v/AAA-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := st.UpsertWorks(context.Background(), catalog.ScopeActor,
		catalog.SubjectRecord{Name: "Alice", Href: "/actors/a"},
		[]catalog.Work{
			{Code: "AAA-1", Title: "New Title", Href: "/v/AAA-1"},
			{Code: "", Href: "/dropped"},
		})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceMagnetsDeleteThenInsert(t *testing.T) {
	t.Parallel()

	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO subjects").
		WithArgs("actor", "Alice", "/actors/a").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectQuery("INSERT INTO works").
		WithArgs(int64(7), "AAA-1", "Title", "/v/AAA-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(21)))
	mock.ExpectExec("DELETE FROM magnets").
		WithArgs(int64(21)).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec("INSERT INTO magnets").
		WithArgs(int64(21), "magnet:?xt=a", "高清", "5.2GB").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO magnets").
		WithArgs(int64(21), "magnet:?xt=b", "", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := st.ReplaceMagnets(context.Background(), catalog.ScopeActor,
		catalog.SubjectRecord{Name: "Alice", Href: "/actors/a"},
		catalog.Work{Code: "AAA-1", Title: "Title", Href: "/v/AAA-1"},
		[]catalog.Magnet{
			{URI: "magnet:?xt=a", Tags: "高清", Size: "5.2GB"},
			{URI: "magnet:?xt=b"},
		})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceMagnetsEmptySetStillClears(t *testing.T) {
	t.Parallel()

	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO subjects").
		WithArgs("actor", "Alice", "").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectQuery("INSERT INTO works").
		WithArgs(int64(7), "AAA-1", "", "/v/AAA-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(21)))
	mock.ExpectExec("DELETE FROM magnets").
		WithArgs(int64(21)).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCommit()

	n, err := st.ReplaceMagnets(context.Background(), catalog.ScopeActor,
		catalog.SubjectRecord{Name: "Alice"},
		catalog.Work{Code: "AAA-1", Href: "/v/AAA-1"},
		nil)
	require.NoError(t, err)
	require.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateWorkCodeConflict(t *testing.T) {
	t.Parallel()

	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM subjects").
		WithArgs("actor", "Alice").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectQuery("SELECT id FROM works").
		WithArgs(int64(7), "AAA-2").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(33)))
	mock.ExpectRollback()

	err := st.UpdateWork(context.Background(), catalog.ScopeActor, "Alice", "AAA-1", "AAA-2", "Renamed")
	require.ErrorIs(t, err, ErrCodeExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateWork(t *testing.T) {
	t.Parallel()

	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM subjects").
		WithArgs("actor", "Alice").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectQuery("SELECT id FROM works").
		WithArgs(int64(7), "AAA-2").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("UPDATE works SET").
		WithArgs("AAA-2", "Renamed", int64(7), "AAA-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := st.UpdateWork(context.Background(), catalog.ScopeActor, "Alice", "AAA-1", "AAA-2", "Renamed")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	st, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS subjects").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS works").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS magnets").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, st.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
