// Package booking pulls the booking directive out of model output.
package booking

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrInvalidDirective means a directive tag was found but its payload is unusable.
var ErrInvalidDirective = errors.New("invalid booking directive")

// Booking is the directive payload, kept exactly as the model wrote it.
type Booking struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Result struct {
	Text    string
	Booking *Booking
}

// Extractor finds one `[TAG: {...}]` directive. The JSON may span lines.
type Extractor struct {
	tag string
	re  *regexp.Regexp
	log logrus.FieldLogger
}

func NewExtractor(tag string, log logrus.FieldLogger) *Extractor {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		tag = "BOOKING"
	}
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Extractor{
		tag: tag,
		re:  regexp.MustCompile(`(?s)\[` + regexp.QuoteMeta(tag) + `:\s*(\{.*?\})\]`),
		log: log,
	}
}

func (e *Extractor) Tag() string { return e.tag }

// Extract returns the visible text and the booking, if any. A malformed payload
// leaves the text untouched, tag included.
func (e *Extractor) Extract(text string) Result {
	loc := e.re.FindStringSubmatchIndex(text)
	if loc == nil {
		return Result{Text: text}
	}
	payload := text[loc[2]:loc[3]]

	b, err := Parse(payload)
	if err != nil {
		e.log.WithError(err).WithField("tag", e.tag).Warn("booking directive ignored")
		return Result{Text: text}
	}

	cleaned := strings.TrimSpace(text[:loc[0]] + text[loc[1]:])
	return Result{Text: cleaned, Booking: &b}
}

// Parse decodes a directive payload. Both fields must be present; their values
// are returned exactly as the model wrote them.
func Parse(payload string) (Booking, error) {
	var b Booking
	if err := json.Unmarshal([]byte(payload), &b); err != nil {
		return Booking{}, fmt.Errorf("%w: %v", ErrInvalidDirective, err)
	}
	if strings.TrimSpace(b.Start) == "" || strings.TrimSpace(b.End) == "" {
		return Booking{}, fmt.Errorf("%w: start and end are required", ErrInvalidDirective)
	}
	return b, nil
}
