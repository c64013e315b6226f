package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yoockh/nexusbot/internal/models"
)

var (
	ErrSchedulingOff   = errors.New("scheduling is disabled for this bot")
	ErrUnparseableTime = errors.New("booking time is not ISO-8601")
	ErrInPast          = errors.New("booking starts in the past")
	ErrWrongDuration   = errors.New("booking length does not match the appointment duration")
	ErrOutsideHours    = errors.New("booking is outside opening hours")
	ErrSlotTaken       = errors.New("booking overlaps an existing appointment")
)

var localLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04"}

// ParseTime accepts RFC 3339 or a zone-less ISO timestamp read in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableTime, s)
}

// Validate checks a booking against the configured calendar. The extractor
// trusts the model; callers that want a second opinion run this.
func Validate(b Booking, cfg models.SchedulingConfig, now time.Time) error {
	if !cfg.Enabled {
		return ErrSchedulingOff
	}
	loc := cfg.Location()
	start, err := ParseTime(b.Start, loc)
	if err != nil {
		return err
	}
	end, err := ParseTime(b.End, loc)
	if err != nil {
		return err
	}

	if !start.After(now) {
		return ErrInPast
	}
	if end.Sub(start) != time.Duration(cfg.DurationMinutes)*time.Minute {
		return fmt.Errorf("%w: got %s, want %d minutes", ErrWrongDuration, end.Sub(start), cfg.DurationMinutes)
	}

	day := strings.ToLower(start.Weekday().String())
	sched, ok := cfg.Day(day)
	if !ok || !sched.Enabled {
		return fmt.Errorf("%w: closed on %s", ErrOutsideHours, day)
	}
	open, _ := models.ParseClock(sched.Start)
	closing, _ := models.ParseClock(sched.End)

	startMin := start.Hour()*60 + start.Minute()
	endMin := startMin + cfg.DurationMinutes
	if !sameDay(start, end) || startMin < open || endMin > closing {
		return fmt.Errorf("%w: %s %s to %s", ErrOutsideHours, day, sched.Start, sched.End)
	}
	return nil
}

// CheckConflicts rejects b when it comes within the configured buffer of an
// appointment in taken. Cancelled and unparseable entries hold no slot.
func CheckConflicts(b Booking, taken []models.Appointment, cfg models.SchedulingConfig) error {
	loc := cfg.Location()
	start, err := ParseTime(b.Start, loc)
	if err != nil {
		return err
	}
	end, err := ParseTime(b.End, loc)
	if err != nil {
		return err
	}
	gap := time.Duration(cfg.BufferMinutes) * time.Minute

	for _, a := range taken {
		if a.Status == models.AppointmentCancelled {
			continue
		}
		aStart, err := ParseTime(a.StartTime, loc)
		if err != nil {
			continue
		}
		aEnd, err := ParseTime(a.EndTime, loc)
		if err != nil {
			continue
		}
		if start.Before(aEnd.Add(gap)) && aStart.Before(end.Add(gap)) {
			return fmt.Errorf("%w: %s to %s", ErrSlotTaken, a.StartTime, a.EndTime)
		}
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
