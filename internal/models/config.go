package models

import (
	"strings"
	"time"
)

type LeadConfig struct {
	Enabled       bool   `json:"enabled"`
	NameRequired  bool   `json:"nameRequired"`
	EmailRequired bool   `json:"emailRequired"`
	PhoneRequired bool   `json:"phoneRequired"`
	CustomField   string `json:"customField,omitempty"`
}

// lead field labels, also used as user_data keys
const (
	LeadFieldName  = "Name"
	LeadFieldEmail = "Email"
	LeadFieldPhone = "Phone"
)

func (l LeadConfig) normalize() LeadConfig {
	l.CustomField = strings.TrimSpace(l.CustomField)
	return l
}

// Fields lists the labels the capture form asks for, in display order.
func (l LeadConfig) Fields() []string {
	var out []string
	if l.NameRequired {
		out = append(out, LeadFieldName)
	}
	if l.EmailRequired {
		out = append(out, LeadFieldEmail)
	}
	if l.PhoneRequired {
		out = append(out, LeadFieldPhone)
	}
	if l.CustomField != "" {
		out = append(out, l.CustomField)
	}
	return out
}

type DaySchedule struct {
	Day     string `json:"day"` // monday..sunday
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"` // HH:MM
	End     string `json:"end"`   // HH:MM
}

type SchedulingConfig struct {
	Enabled         bool          `json:"enabled"`
	DurationMinutes int           `json:"durationMinutes"`
	BufferMinutes   int           `json:"bufferMinutes"`
	Availability    []DaySchedule `json:"availability"`
	Timezone        string        `json:"timezone"`
}

const (
	DefaultDurationMinutes = 30
	DefaultTimezone        = "UTC"
)

// Weekdays in the order the availability table is rendered.
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

type rawSchedulingConfig struct {
	Enabled         bool          `json:"enabled"`
	DurationMinutes *int          `json:"durationMinutes"`
	BufferMinutes   *int          `json:"bufferMinutes"`
	Availability    []DaySchedule `json:"availability"`
	Timezone        string        `json:"timezone"`
}

func defaultAvailability() []DaySchedule {
	out := make([]DaySchedule, 0, len(Weekdays))
	for i, d := range Weekdays {
		out = append(out, DaySchedule{Day: d, Enabled: i < 5, Start: "09:00", End: "17:00"})
	}
	return out
}

func (r rawSchedulingConfig) normalize(fallbackTZ string) SchedulingConfig {
	c := SchedulingConfig{
		Enabled:         r.Enabled,
		DurationMinutes: DefaultDurationMinutes,
		Timezone:        strings.TrimSpace(r.Timezone),
	}
	if r.DurationMinutes != nil && *r.DurationMinutes > 0 {
		c.DurationMinutes = *r.DurationMinutes
	}
	if r.BufferMinutes != nil && *r.BufferMinutes > 0 {
		c.BufferMinutes = *r.BufferMinutes
	}
	if c.Timezone == "" {
		c.Timezone = fallbackTZ
	}
	if _, err := time.LoadLocation(c.Timezone); c.Timezone == "" || err != nil {
		c.Timezone = DefaultTimezone
	}

	src := r.Availability
	if src == nil {
		src = defaultAvailability()
	}
	seen := map[string]bool{}
	for _, d := range src {
		d.Day = strings.ToLower(strings.TrimSpace(d.Day))
		if d.Day == "" || seen[d.Day] {
			continue
		}
		seen[d.Day] = true
		if d.Enabled {
			start, okStart := ParseClock(d.Start)
			end, okEnd := ParseClock(d.End)
			if !okStart || !okEnd || start >= end {
				d.Enabled = false
			}
		}
		c.Availability = append(c.Availability, d)
	}
	return c
}

// Location resolves the configured timezone, falling back to UTC.
func (c SchedulingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Day returns the schedule for a weekday key.
func (c SchedulingConfig) Day(day string) (DaySchedule, bool) {
	for _, d := range c.Availability {
		if d.Day == day {
			return d, true
		}
	}
	return DaySchedule{}, false
}

// ParseClock parses HH:MM into minutes since midnight.
func ParseClock(s string) (int, bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
