package similarityedge

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CBPFGMS/GOmapping/pkg/database"
	"github.com/CBPFGMS/GOmapping/pkg/logging"
	"github.com/CBPFGMS/GOmapping/pkg/models"
)

type fakeResult struct{}

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeResult) RowsAffected() (int64, error) { return 0, nil }

// recorder captures executed statements for assertions
type recorder struct {
	queries []string
	failOn  string
}

func (r *recorder) exec(query string) (sql.Result, error) {
	if r.failOn != "" && strings.Contains(query, r.failOn) {
		return nil, errors.New("exec failed")
	}
	r.queries = append(r.queries, query)
	return fakeResult{}, nil
}

type fakeTx struct {
	recorder
	commits   int
	rollbacks int
}

func (t *fakeTx) IsOpen() bool                       { return t.commits == 0 }
func (t *fakeTx) Commit(ctx context.Context) error   { t.commits++; return nil }
func (t *fakeTx) Rollback(ctx context.Context) error { t.rollbacks++; return nil }

func (t *fakeTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.exec(query)
}

func (t *fakeTx) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}

func (t *fakeTx) NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error) {
	return t.exec(query)
}

func (t *fakeTx) QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	return nil, nil
}

func (t *fakeTx) QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row {
	return nil
}

func (t *fakeTx) Rebind(query string) string { return query }

func (t *fakeTx) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}

type fakeDB struct {
	recorder
	tx       *fakeTx
	txFailed bool
}

func (d *fakeDB) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return nil, nil
}

func (d *fakeDB) Close() error { return nil }

func (d *fakeDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.exec(query)
}

func (d *fakeDB) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}

func (d *fakeDB) NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error) {
	return d.exec(query)
}

func (d *fakeDB) PingContext(ctx context.Context) error { return nil }

func (d *fakeDB) QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	return nil, nil
}

func (d *fakeDB) QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row {
	return nil
}

func (d *fakeDB) Rebind(query string) string { return query }

func (d *fakeDB) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}

func (d *fakeDB) Unsafe() *sqlx.DB { return nil }

func (d *fakeDB) GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error) {
	if d.txFailed {
		return ctx, nil, errors.New("begin failed")
	}
	return ctx, d.tx, nil
}

func testEdges(n int) []models.SimilarityEdge {
	edges := make([]models.SimilarityEdge, 0, n*2)
	for i := 0; i < n; i++ {
		a, b := int64(i*2+1), int64(i*2+2)
		edges = append(edges,
			models.SimilarityEdge{SourceOrgID: a, TargetOrgID: b, Score: 80},
			models.SimilarityEdge{SourceOrgID: b, TargetOrgID: a, Score: 80},
		)
	}
	return edges
}

func TestReplaceRunsInsideOneTransaction(t *testing.T) {
	tx := &fakeTx{}
	db := &fakeDB{tx: tx}
	repo := NewRepository(db, logging.NewNop())

	err := repo.Replace(context.Background(), testEdges(2))
	require.NoError(t, err)

	require.Len(t, tx.queries, 2)
	assert.True(t, strings.HasPrefix(tx.queries[0], "DELETE FROM similarity_edges"), "first statement must clear the table: %s", tx.queries[0])
	assert.Contains(t, tx.queries[1], "INSERT INTO similarity_edges")
	assert.Equal(t, 1, tx.commits)

	// nothing may run on the bare pool
	assert.Empty(t, db.queries)
}

func TestReplaceInsertFailureLeavesTransactionUncommitted(t *testing.T) {
	tx := &fakeTx{recorder: recorder{failOn: "INSERT"}}
	db := &fakeDB{tx: tx}
	repo := NewRepository(db, logging.NewNop())

	err := repo.Replace(context.Background(), testEdges(2))
	require.Error(t, err)

	// the delete ran on the transaction but was never committed, so the
	// previous edge set stays visible
	require.Len(t, tx.queries, 1)
	assert.True(t, strings.HasPrefix(tx.queries[0], "DELETE FROM similarity_edges"))
	assert.Zero(t, tx.commits)
}

func TestReplaceBeginFailure(t *testing.T) {
	db := &fakeDB{txFailed: true}
	repo := NewRepository(db, logging.NewNop())

	err := repo.Replace(context.Background(), testEdges(1))
	require.Error(t, err)
	assert.Empty(t, db.queries)
}

func TestInsertBatchUpsertsOnConflict(t *testing.T) {
	db := &fakeDB{}
	repo := NewRepository(db, logging.NewNop())

	err := repo.InsertBatch(context.Background(), testEdges(1))
	require.NoError(t, err)

	require.Len(t, db.queries, 1)
	assert.Contains(t, db.queries[0], "INSERT INTO similarity_edges")
	assert.Contains(t, db.queries[0], "ON CONFLICT (source_org_id, target_org_id) DO UPDATE")
	assert.Contains(t, db.queries[0], "EXCLUDED.score")
}

func TestInsertBatchChunks(t *testing.T) {
	db := &fakeDB{}
	repo := NewRepository(db, logging.NewNop())

	edges := make([]models.SimilarityEdge, insertChunkSize*2+1)
	for i := range edges {
		edges[i] = models.SimilarityEdge{SourceOrgID: int64(i + 1), TargetOrgID: int64(i + 2), Score: 75}
	}

	err := repo.InsertBatch(context.Background(), edges)
	require.NoError(t, err)
	assert.Len(t, db.queries, 3)
}

func TestInsertBatchEmpty(t *testing.T) {
	db := &fakeDB{}
	repo := NewRepository(db, logging.NewNop())

	require.NoError(t, repo.InsertBatch(context.Background(), nil))
	assert.Empty(t, db.queries)
}
