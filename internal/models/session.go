package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
)

// collection names used against the records store
const (
	CollectionBots         = "chatbots"
	CollectionSessions     = "sessions"
	CollectionMessages     = "messages"
	CollectionAppointments = "appointments"
)

// Session placeholders that never reach the store.
const (
	TempSessionID  = "temp"  // persistence failed or not attempted
	LocalSessionID = "local" // synthesized greeting
)

const PreviewMaxRunes = 50

type Session struct {
	ID          string            `gorm:"column:id;type:uuid;primaryKey" bson:"id" json:"id"`
	ChatbotID   string            `gorm:"column:chatbot_id;type:uuid;index" bson:"chatbot_id" json:"chatbot_id"`
	CreatedAt   time.Time         `gorm:"column:created_at;type:timestamptz" bson:"created_at" json:"created_at"`
	PreviewText string            `gorm:"column:preview_text;type:text" bson:"preview_text" json:"preview_text"`
	OriginURL   string            `gorm:"column:origin_url;type:text" bson:"origin_url,omitempty" json:"origin_url,omitempty"`
	UserData    datatypes.JSONMap `gorm:"column:user_data;type:jsonb" bson:"user_data,omitempty" json:"user_data,omitempty"`
	ClientInfo  *ClientInfo       `gorm:"column:client_info;type:jsonb" bson:"client_info,omitempty" json:"client_info,omitempty"`
}

func (Session) TableName() string { return CollectionSessions }

// IsPersistedSessionID reports whether the id refers to a stored row.
func IsPersistedSessionID(id string) bool {
	return id != "" && id != TempSessionID && id != LocalSessionID
}

// Preview cuts text to the session preview length.
func Preview(text string) string {
	r := []rune(text)
	if len(r) > PreviewMaxRunes {
		r = r[:PreviewMaxRunes]
	}
	return string(r)
}

// ClientInfo is the flat visitor context the bridge collects on the host page.
type ClientInfo struct {
	UserAgent      string  `bson:"user_agent,omitempty" json:"userAgent,omitempty"`
	Language       string  `bson:"language,omitempty" json:"language,omitempty"`
	Platform       string  `bson:"platform,omitempty" json:"platform,omitempty"`
	ScreenWidth    int     `bson:"screen_width,omitempty" json:"screenWidth,omitempty"`
	ScreenHeight   int     `bson:"screen_height,omitempty" json:"screenHeight,omitempty"`
	Referrer       string  `bson:"referrer,omitempty" json:"referrer,omitempty"`
	CookiesEnabled bool    `bson:"cookies_enabled,omitempty" json:"cookiesEnabled,omitempty"`
	UTMSource      string  `bson:"utm_source,omitempty" json:"utmSource,omitempty"`
	UTMMedium      string  `bson:"utm_medium,omitempty" json:"utmMedium,omitempty"`
	UTMCampaign    string  `bson:"utm_campaign,omitempty" json:"utmCampaign,omitempty"`
	UTMTerm        string  `bson:"utm_term,omitempty" json:"utmTerm,omitempty"`
	UTMContent     string  `bson:"utm_content,omitempty" json:"utmContent,omitempty"`
	Timezone       string  `bson:"timezone,omitempty" json:"timezone,omitempty"`
	NetworkType    string  `bson:"network_type,omitempty" json:"networkType,omitempty"`
	Downlink       float64 `bson:"downlink,omitempty" json:"downlink,omitempty"`
}

func (c ClientInfo) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *ClientInfo) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return errors.New("client_info: unsupported scan type")
	}
}
