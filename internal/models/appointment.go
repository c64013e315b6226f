package models

import (
	"time"

	"gorm.io/datatypes"
)

type AppointmentStatus string

const (
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentPending   AppointmentStatus = "pending"
)

// Appointment keeps start/end exactly as the model emitted them.
type Appointment struct {
	ID        string            `gorm:"column:id;type:uuid;primaryKey" bson:"id" json:"id"`
	ChatbotID string            `gorm:"column:chatbot_id;type:uuid;index" bson:"chatbot_id" json:"chatbot_id"`
	SessionID string            `gorm:"column:session_id;type:uuid;index" bson:"session_id" json:"session_id"`
	UserData  datatypes.JSONMap `gorm:"column:user_data;type:jsonb" bson:"user_data" json:"user_data"`
	StartTime string            `gorm:"column:start_time;type:text" bson:"start_time" json:"start_time"`
	EndTime   string            `gorm:"column:end_time;type:text" bson:"end_time" json:"end_time"`
	Status    AppointmentStatus `gorm:"column:status;type:text" bson:"status" json:"status"`
	CreatedAt time.Time         `gorm:"column:created_at;type:timestamptz" bson:"created_at" json:"created_at"`
}

func (Appointment) TableName() string { return CollectionAppointments }
