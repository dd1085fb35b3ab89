package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MJE43/mapgame-session-go/internal/engine"
)

const selectSession = "SELECT token, definition_id, player, current_prompt, next_allowed, choices_json, choice_order_json, created_at, updated_at FROM sessions WHERE token = $1"

var sessionColumns = []string{"token", "definition_id", "player", "current_prompt", "next_allowed", "choices_json", "choice_order_json", "created_at", "updated_at"}

func TestPostgresLoad(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgres(db)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(selectSession)).
		WithArgs("tok-1").
		WillReturnRows(sqlmock.NewRows(sessionColumns).
			AddRow("tok-1", "harbor", "ana", int64(2), nil, `{"0":1,"2":0}`, `[2,0]`, now, now))

	st, err := store.Load(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "harbor", st.DefinitionID)
	require.NotNil(t, st.CurrentPromptIndex)
	assert.Equal(t, 2, *st.CurrentPromptIndex)
	assert.Nil(t, st.NextAllowedPromptIndex)
	assert.Equal(t, map[int]int{0: 1, 2: 0}, st.UserChoices)
	assert.Equal(t, []int{2, 0}, st.UserChoiceOrder)

	mock.ExpectQuery(regexp.QuoteMeta(selectSession)).
		WithArgs("tok-2").
		WillReturnRows(sqlmock.NewRows(sessionColumns))

	_, err = store.Load(ctx, "tok-2")
	assert.True(t, errors.Is(err, engine.ErrNotFound), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSave(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgres(db)
	st := sampleState("tok-1")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
		WithArgs("tok-1", "harbor", "ana", int64(1), int64(3), `{"0":1,"1":0}`, `[1,0]`, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assert.NoError(t, store.Save(context.Background(), st))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
		WillReturnError(errors.New("connection reset"))

	err = NewPostgres(db).Save(context.Background(), sampleState("tok-1"))
	assert.ErrorContains(t, err, "failed to persist session")
}

func TestPostgresDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgres(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE token = $1")).
		WithArgs("tok-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE token = $1")).
		WithArgs("tok-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, store.Delete(ctx, "tok-1"))
	assert.ErrorIs(t, store.Delete(ctx, "tok-1"), engine.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresExpiredAndResults(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgres(db)
	ctx := context.Background()
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT token FROM sessions WHERE updated_at < $1 ORDER BY updated_at LIMIT $2")).
		WithArgs(cutoff, int64(50)).
		WillReturnRows(sqlmock.NewRows([]string{"token"}).AddRow("tok-a").AddRow("tok-b"))

	tokens, err := store.ExpiredTokens(ctx, cutoff, 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-a", "tok-b"}, tokens)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (token) DO NOTHING")).
		WithArgs("tok-1", "harbor", "ana", "11", "17", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = store.RecordResult(ctx, engine.Result{
		Token:        "tok-1",
		DefinitionID: "harbor",
		Player:       "ana",
		Score:        engine.Score{Total: decimal.NewFromInt(11), Possible: decimal.NewFromInt(17)},
	})
	assert.NoError(t, err, "a result already archived for the token is not an error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgres(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_lock(hashtext($1))")).
		WithArgs("tok").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_unlock(hashtext($1))")).
		WithArgs("tok").
		WillReturnResult(sqlmock.NewResult(0, 1))

	unlock, err := store.Lock(ctx, "tok")
	require.NoError(t, err)
	unlock()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLockFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgres(db)
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_lock(hashtext($1))")).
		WithArgs("tok").
		WillReturnError(errors.New("canceling statement due to lock timeout"))

	unlock, err := store.Lock(context.Background(), "tok")
	assert.Error(t, err)
	assert.Nil(t, unlock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS sessions")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS idx_sessions_updated")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS results")).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, NewPostgres(db).Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
