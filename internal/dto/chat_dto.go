package dto

import (
	"time"

	"chatbot-be/internal/entity"

	"github.com/google/uuid"
)

type CreateChatRequest struct {
	Title string `json:"title" validate:"required"`
}

type ChatResponse struct {
	Id        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserId    uuid.UUID `json:"user_id"`
}

type MessageResponse struct {
	Id        uuid.UUID `json:"id"`
	ChatId    uuid.UUID `json:"chat_id"`
	UserId    uuid.UUID `json:"user_id"`
	Content   string    `json:"content"`
	IsBot     bool      `json:"is_bot"`
	CreatedAt time.Time `json:"created_at"`
}

// SendMessageRequest carries the body of a send; the chat comes from the
// route parameter.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

type SendMessageResponse struct {
	Sent    MessageResponse `json:"sent"`
	Trigger TriggerResult   `json:"trigger"`
}

// TriggerResult mirrors the responder action's informational payload. The
// actual bot reply arrives asynchronously through the message stream.
type TriggerResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ResponderCallbackRequest is the payload the external responder posts back
// with its bot-authored reply.
type ResponderCallbackRequest struct {
	ChatId  uuid.UUID `json:"chat_id" validate:"required"`
	Content string    `json:"content" validate:"required"`
}

func ChatToResponse(chat entity.Chat) ChatResponse {
	return ChatResponse{
		Id:        chat.Id,
		Title:     chat.Title,
		CreatedAt: chat.CreatedAt,
		UpdatedAt: chat.UpdatedAt,
		UserId:    chat.UserId,
	}
}

func ChatsToResponse(chats []entity.Chat) []ChatResponse {
	out := make([]ChatResponse, len(chats))
	for i, chat := range chats {
		out[i] = ChatToResponse(chat)
	}
	return out
}

func MessageToResponse(msg entity.Message) MessageResponse {
	return MessageResponse{
		Id:        msg.Id,
		ChatId:    msg.ChatId,
		UserId:    msg.UserId,
		Content:   msg.Content,
		IsBot:     msg.IsBot,
		CreatedAt: msg.CreatedAt,
	}
}

func MessagesToResponse(msgs []entity.Message) []MessageResponse {
	out := make([]MessageResponse, len(msgs))
	for i, msg := range msgs {
		out[i] = MessageToResponse(msg)
	}
	return out
}
