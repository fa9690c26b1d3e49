package integration

import (
	"context"
	"log"
	"os"
	"testing"

	"chatbot-be/internal/entity"
	"chatbot-be/internal/repository/specification"
	"chatbot-be/internal/repository/unitofwork"
	"chatbot-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
)

func TestGormConnection(t *testing.T) {
	// Load .env from root
	err := godotenv.Load("../../.env")
	if err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	// Verify Wiring
	uowFactory := unitofwork.NewRepositoryFactory(gormDB)
	uow := uowFactory.NewUnitOfWork(context.Background())

	assert.NotNil(t, uow.UserRepository())
	assert.NotNil(t, uow.ChatRepository())
	assert.NotNil(t, uow.MessageRepository())

	// Basic Ping
	sqlDB, _ := gormDB.DB()
	err = sqlDB.Ping()
	assert.NoError(t, err)
	t.Log("Successfully connected to DB and initialized UnitOfWork Factory")

	// Verify Data Access (implies columns exist)
	t.Run("Check User Repository", func(t *testing.T) {
		count, err := uow.UserRepository().Count(context.Background())
		assert.NoError(t, err)
		t.Logf("User count: %d", count)
	})

	t.Run("Check Message Repository", func(t *testing.T) {
		count, err := uow.MessageRepository().Count(context.Background())
		assert.NoError(t, err)
		t.Logf("Message count: %d", count)
	})

	t.Run("Check Transactional Chat And Message", func(t *testing.T) {
		ctx := context.Background()

		userId := uuid.New()
		user := &entity.User{
			Id:           userId,
			Email:        "test-integration-" + uuid.New().String() + "@example.com",
			PasswordHash: "$2a$10$integrationtesthashvalue",
		}
		err := uow.UserRepository().Create(ctx, user)
		assert.NoError(t, err)

		// Transaction Test
		err = uow.Begin(ctx)
		assert.NoError(t, err)
		defer uow.Rollback()

		chatId := uuid.New()
		chat := &entity.Chat{
			Id:     chatId,
			UserId: userId,
			Title:  "Integration Chat",
		}
		err = uow.ChatRepository().Create(ctx, chat)
		assert.NoError(t, err)

		msg := &entity.Message{
			Id:      uuid.New(),
			ChatId:  chatId,
			UserId:  userId,
			Content: "Hello from the integration test",
		}
		err = uow.MessageRepository().Create(ctx, msg)
		assert.NoError(t, err)

		err = uow.Commit()
		assert.NoError(t, err)

		// Read back through the specification path
		found, err := uow.ChatRepository().FindOne(ctx,
			specification.ByID{ID: chatId},
			specification.OwnedBy{UserID: userId},
		)
		assert.NoError(t, err)
		assert.NotNil(t, found)
		assert.Equal(t, "Integration Chat", found.Title)

		t.Log("Successfully created Chat with Message in Transaction")
	})
}
