// Package scheduling builds the dynamic part of the prompt that lets the model
// book appointments: ground-truth time, opening hours and the directive contract.
package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/yoockh/nexusbot/internal/models"
)

const DefaultTag = "BOOKING"

const directiveTimeLayout = "YYYY-MM-DDTHH:MM:00"

// Injector renders scheduling context for a given directive keyword.
type Injector struct {
	Tag string
}

func NewInjector(tag string) Injector {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		tag = DefaultTag
	}
	return Injector{Tag: tag}
}

// BuildContext renders the context with the default keyword.
func BuildContext(cfg models.SchedulingConfig, now time.Time) string {
	return NewInjector(DefaultTag).Build(cfg, now)
}

// Build returns "" when scheduling is disabled.
func (in Injector) Build(cfg models.SchedulingConfig, now time.Time) string {
	if !cfg.Enabled {
		return ""
	}
	loc := cfg.Location()
	local := now.In(loc)

	var b strings.Builder
	b.WriteString("\n\nCURRENT DATE AND TIME:\n")
	fmt.Fprintf(&b, "- Today is %s, %s.\n", local.Format("Monday, January 2, 2006"), local.Format("15:04"))
	fmt.Fprintf(&b, "- Time zone: %s.\n", loc.String())

	b.WriteString("\nSCHEDULING RULES:\n")
	fmt.Fprintf(&b, "- Appointment duration: %d minutes.\n", cfg.DurationMinutes)
	if cfg.BufferMinutes > 0 {
		fmt.Fprintf(&b, "- Leave at least %d minutes between appointments.\n", cfg.BufferMinutes)
	}
	b.WriteString("- Opening hours (availability):\n")
	open := 0
	for _, d := range cfg.Availability {
		if !d.Enabled {
			continue
		}
		fmt.Fprintf(&b, "  %s: %s to %s\n", d.Day, d.Start, d.End)
		open++
	}
	if open == 0 {
		b.WriteString("  (no opening hours configured; do not book anything)\n")
	}

	example := fmt.Sprintf(`[%s: {"start": "%s", "end": "%s"}]`, in.Tag, directiveTimeLayout, directiveTimeLayout)

	b.WriteString("\nBOOKING INSTRUCTIONS:\n")
	b.WriteString("1. Only accept requests for a future date and time that falls inside the opening hours above.\n")
	b.WriteString("2. Before finalizing, repeat the chosen date and time and ask the user to confirm.\n")
	fmt.Fprintf(&b, "3. When the user explicitly confirms, add this tag at the end of your reply:\n   %s\n", example)
	fmt.Fprintf(&b, "   Use exact ISO-8601 with seconds. The end must be the start plus %d minutes.\n", cfg.DurationMinutes)
	b.WriteString("4. Write the tag on its own, without code blocks or any other markup. Only add it after the user confirms; ")
	b.WriteString("if they are only asking about availability, just answer.\n")
	return b.String()
}
