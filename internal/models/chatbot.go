package models

import (
	"time"

	"gorm.io/gorm"
)

// ChatSender tells who wrote a chatbot message.
type ChatSender string

const (
	ChatSenderUser ChatSender = "USER"
	ChatSenderBot  ChatSender = "BOT"
)

// ChatSessionState enum
type ChatSessionState string

const (
	ChatSessionActive ChatSessionState = "ACTIVE"
	ChatSessionEnded  ChatSessionState = "ENDED"
)

// ChatbotSession is one conversation of a user with the clinic assistant.
// Clients address it by SessionToken.
type ChatbotSession struct {
	BaseModel
	UserID       string           `gorm:"size:36;not null;index" json:"userId"`
	SessionToken string           `gorm:"size:64;uniqueIndex;not null" json:"sessionToken"`
	Channel      string           `gorm:"size:10;not null;default:'WEB'" json:"channel"`
	Locale       string           `gorm:"size:10;not null;default:'vi'" json:"locale"`
	State        ChatSessionState `gorm:"size:10;not null" json:"state"`
	StartedAt    time.Time        `gorm:"not null" json:"startedAt"`
	EndedAt      *time.Time       `json:"endedAt,omitempty"`

	Messages []ChatbotMessage `gorm:"foreignKey:SessionID" json:"messages,omitempty"`
}

// ChatbotMessage is a single line of a chatbot conversation.
type ChatbotMessage struct {
	BaseModel
	SessionID string     `gorm:"size:36;not null;index" json:"sessionId"`
	Sender    ChatSender `gorm:"size:4;not null" json:"sender"`
	Content   string     `gorm:"type:text" json:"content"`
	// FaqID is set on bot answers taken from the FAQ list.
	FaqID *string `gorm:"size:36" json:"faqId,omitempty"`
}

// ChatbotFaq is a canned answer the assistant can give.
type ChatbotFaq struct {
	BaseModel
	Question string `gorm:"size:500;not null" json:"question"`
	Answer   string `gorm:"type:text;not null" json:"answer"`
	Tags     string `gorm:"size:255" json:"tags,omitempty"`
	Locale   string `gorm:"size:10;not null;default:'vi'" json:"locale"`
	Enabled  bool   `gorm:"not null" json:"enabled"`
}

// DeleteChatbotSessions removes every session of a user with its messages.
func DeleteChatbotSessions(tx *gorm.DB, userID string) error {
	var sessionIDs []string
	if err := tx.Model(&ChatbotSession{}).Where("user_id = ?", userID).Pluck("id", &sessionIDs).Error; err != nil {
		return err
	}
	if len(sessionIDs) > 0 {
		if err := tx.Where("session_id IN ?", sessionIDs).Delete(&ChatbotMessage{}).Error; err != nil {
			return err
		}
	}
	return tx.Where("user_id = ?", userID).Delete(&ChatbotSession{}).Error
}
