package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/lib/pq"
)

const DefaultThemeColor = "#3b82f6"

// Bot is the persona record an operator authors. The widget runtime only reads it.
type Bot struct {
	ID             string `gorm:"column:id;type:uuid;primaryKey" bson:"id" json:"id"`
	Name           string `gorm:"column:name;type:text;not null" bson:"name" json:"name"`
	RoleDefinition string `gorm:"column:role_definition;type:text" bson:"role_definition" json:"role_definition"`
	KnowledgeBase  string `gorm:"column:knowledge_base;type:text" bson:"knowledge_base" json:"knowledge_base"`
	ThemeColor     string `gorm:"column:theme_color;type:text" bson:"theme_color" json:"theme_color"`
	AvatarURL      string `gorm:"column:avatar_url;type:text" bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`

	// JSONB (partial, optional; see Normalize)
	LeadConfig       ConfigJSON `gorm:"column:lead_config;type:jsonb" bson:"lead_config,omitempty" json:"lead_config,omitempty"`
	SchedulingConfig ConfigJSON `gorm:"column:scheduling_config;type:jsonb" bson:"scheduling_config,omitempty" json:"scheduling_config,omitempty"`

	// host pages allowed to embed the widget; empty means any
	AllowedOrigins pq.StringArray `gorm:"column:allowed_origins;type:text[]" bson:"allowed_origins,omitempty" json:"allowed_origins,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" bson:"created_at" json:"created_at"`
}

func (Bot) TableName() string { return CollectionBots }

// BotProfile is a Bot with every optional config filled in. Built once by Normalize.
type BotProfile struct {
	ID             string
	Name           string
	RoleDefinition string
	KnowledgeBase  string
	ThemeColor     string
	AvatarURL      string
	AllowedOrigins []string
	Lead           LeadConfig
	Scheduling     SchedulingConfig
}

// ProfileDefaults carries service-level fallbacks for values a bot may omit.
type ProfileDefaults struct {
	Timezone string
}

// Normalize merges the stored partial configs with defaults. Malformed config JSON
// is treated as absent.
func (b Bot) Normalize(d ProfileDefaults) BotProfile {
	p := BotProfile{
		ID:             b.ID,
		Name:           b.Name,
		RoleDefinition: b.RoleDefinition,
		KnowledgeBase:  b.KnowledgeBase,
		ThemeColor:     strings.TrimSpace(b.ThemeColor),
		AvatarURL:      b.AvatarURL,
		AllowedOrigins: append([]string(nil), b.AllowedOrigins...),
	}
	if p.ThemeColor == "" {
		p.ThemeColor = DefaultThemeColor
	}

	var lead LeadConfig
	if len(b.LeadConfig) > 0 {
		if err := json.Unmarshal(b.LeadConfig, &lead); err != nil {
			lead = LeadConfig{}
		}
	}
	p.Lead = lead.normalize()

	var raw rawSchedulingConfig
	if len(b.SchedulingConfig) > 0 {
		if err := json.Unmarshal(b.SchedulingConfig, &raw); err != nil {
			raw = rawSchedulingConfig{}
		}
	}
	p.Scheduling = raw.normalize(d.Timezone)
	return p
}

// Greeting is the local-only first assistant message shown when the chat opens.
func (p BotProfile) Greeting() string {
	return "Hi! I'm " + p.Name + ". How can I help you today?"
}

// AllowsOrigin reports whether a host page URL may embed this bot.
func (p BotProfile) AllowsOrigin(pageOrigin string) bool {
	if len(p.AllowedOrigins) == 0 {
		return true
	}
	pageOrigin = strings.TrimRight(strings.ToLower(strings.TrimSpace(pageOrigin)), "/")
	for _, o := range p.AllowedOrigins {
		if strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/") == pageOrigin {
			return true
		}
	}
	return false
}
