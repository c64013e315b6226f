package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Message struct {
	ID        string    `gorm:"column:id;type:uuid;primaryKey" bson:"id" json:"id"`
	ChatbotID string    `gorm:"column:chatbot_id;type:uuid;index" bson:"chatbot_id" json:"chatbot_id"`
	SessionID string    `gorm:"column:session_id;type:uuid;index" bson:"session_id" json:"session_id"`
	Role      Role      `gorm:"column:role;type:text;not null" bson:"role" json:"role"`
	Content   string    `gorm:"column:content;type:text;not null" bson:"content" json:"content"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;index" bson:"created_at" json:"created_at"`
}

func (Message) TableName() string { return CollectionMessages }
