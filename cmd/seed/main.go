package main

import (
	"log"
	"os"
	"time"

	"chatbot-be/internal/model"
	"chatbot-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Seeds a demo account with a couple of chats so the client has something to
// render on first sign-in.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	user := seedUser(db, "demo@example.com", "password123")

	planning := seedChat(db, user, "Trip planning", -2*time.Hour)
	seedMessage(db, planning, user, "Where should we go this summer?", false, -2*time.Hour)
	seedMessage(db, planning, user, "A coastal route through Portugal is a great fit for a summer trip.", true, -2*time.Hour+time.Minute)

	groceries := seedChat(db, user, "Groceries", -30*time.Minute)
	seedMessage(db, groceries, user, "What do I need for carbonara?", false, -30*time.Minute)

	log.Println("✅ Success: Seed data created.")
}

func seedUser(db *gorm.DB, email, password string) *model.User {
	var existing model.User
	if err := db.Where("email = ?", email).First(&existing).Error; err == nil {
		log.Printf("User %s already exists, reusing", email)
		return &existing
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Error: Failed to hash password: %v", err)
	}

	user := model.User{
		Id:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := db.Create(&user).Error; err != nil {
		log.Fatalf("Error: Failed to create user: %v", err)
	}
	log.Printf("Created user %s", email)
	return &user
}

func seedChat(db *gorm.DB, user *model.User, title string, age time.Duration) *model.Chat {
	chat := model.Chat{
		Id:        uuid.New(),
		UserId:    user.Id,
		Title:     title,
		CreatedAt: time.Now().Add(age),
		UpdatedAt: time.Now().Add(age),
	}
	if err := db.Create(&chat).Error; err != nil {
		log.Fatalf("Error: Failed to create chat %q: %v", title, err)
	}
	return &chat
}

func seedMessage(db *gorm.DB, chat *model.Chat, user *model.User, content string, isBot bool, age time.Duration) {
	msg := model.Message{
		Id:        uuid.New(),
		ChatId:    chat.Id,
		UserId:    user.Id,
		Content:   content,
		IsBot:     isBot,
		CreatedAt: time.Now().Add(age),
	}
	if err := db.Create(&msg).Error; err != nil {
		log.Fatalf("Error: Failed to create message: %v", err)
	}
}
