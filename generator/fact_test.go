package generator

import (
	"context"
	"testing"
	"time"

	"github.com/gruzilkin/urmom-bot-sub000/domain"
	"github.com/gruzilkin/urmom-bot-sub000/internal/database"
	"github.com/gruzilkin/urmom-bot-sub000/internal/store"
	"github.com/gruzilkin/urmom-bot-sub000/llm"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type fakeResolver struct {
	userID string
	ok     bool
}

func (r fakeResolver) ResolveUser(_ context.Context, _, _ string) (string, bool) {
	return r.userID, r.ok
}

func domainFactParams(operation, userMention, factContent, languageName string) domain.FactParams {
	return domain.FactParams{
		Operation:    operation,
		UserMention:  userMention,
		FactContent:  factContent,
		LanguageName: languageName,
	}
}

func setupFactStore(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{})
	require.NoError(t, err)

	pool, err := database.NewPool(gormDB, database.Config{MaxOpenConns: 1, MaxIdleConns: 1, ConnMaxLifetime: time.Hour}, nil, zap.NewNop())
	require.NoError(t, err)

	return store.New(pool), mock
}

func TestFactGeneratorUnresolvedMentionIsNotAnError(t *testing.T) {
	st, _ := setupFactStore(t)
	client := &fakeClient{name: "gemma"}
	g := NewFactGenerator(client, st, fakeResolver{ok: false}, zap.NewNop())

	out, err := g.Generate(context.Background(), "guild1", domainFactParams("remember", "nobody", "likes pizza", "English"))
	require.NoError(t, err)
	require.Contains(t, out, "couldn't identify")
}

func TestFactGeneratorRememberNewFact(t *testing.T) {
	st, mock := setupFactStore(t)
	mock.ExpectQuery(`SELECT \* FROM "user_facts"`).
		WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "user_facts"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	client := &fakeClient{name: "gemma", reply: func(req llm.Request) (string, error) {
		return `{"updated_memory":"They like pizza.","confirmation_message":"I'll remember that they like pizza."}`, nil
	}}
	g := NewFactGenerator(client, st, fakeResolver{userID: "42", ok: true}, zap.NewNop())

	out, err := g.Generate(context.Background(), "guild1", domainFactParams("remember", "gruzilkin", "likes pizza", "English"))
	require.NoError(t, err)
	require.Equal(t, "I'll remember that they like pizza.", out)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFactGeneratorForgetWithNoExistingMemory(t *testing.T) {
	st, mock := setupFactStore(t)
	mock.ExpectQuery(`SELECT \* FROM "user_facts"`).
		WillReturnError(gorm.ErrRecordNotFound)

	client := &fakeClient{name: "gemma", reply: func(req llm.Request) (string, error) {
		return `{"updated_memory":"","fact_found":false,"confirmation_message":"I couldn't find that information in my memory"}`, nil
	}}
	g := NewFactGenerator(client, st, fakeResolver{userID: "42", ok: true}, zap.NewNop())

	out, err := g.Generate(context.Background(), "guild1", domainFactParams("forget", "gruzilkin", "likes pizza", "English"))
	require.NoError(t, err)
	require.Equal(t, "I couldn't find that information in my memory", out)
	require.NoError(t, mock.ExpectationsWereMet())
}
