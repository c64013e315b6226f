package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractNoTagReturnsInputUnchanged(t *testing.T) {
	ex := NewExtractor("BOOKING", nil)
	for _, in := range []string{
		"",
		"We are open Monday 9 to 5.",
		"  spaced text with [brackets] and {braces}  ",
		`[OTHER: {"start": "2025-01-06T10:00:00", "end": "2025-01-06T10:30:00"}]`,
	} {
		res := ex.Extract(in)
		assert.Equal(t, in, res.Text)
		assert.Nil(t, res.Booking)
	}
}

func TestExtractRemovesTagAnywhere(t *testing.T) {
	ex := NewExtractor("BOOKING", nil)
	tag := `[BOOKING: {"start": "2025-01-06T10:00:00", "end": "2025-01-06T10:30:00"}]`

	cases := map[string]struct {
		in   string
		want string
	}{
		"end":    {in: "Great, see you Monday at 10!\n" + tag, want: "Great, see you Monday at 10!"},
		"start":  {in: tag + " Great, see you then.", want: "Great, see you then."},
		"middle": {in: "Done. " + tag + " See you.", want: "Done.  See you."},
		"alone":  {in: tag, want: ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			res := ex.Extract(tc.in)
			require.NotNil(t, res.Booking)
			assert.Equal(t, "2025-01-06T10:00:00", res.Booking.Start)
			assert.Equal(t, "2025-01-06T10:30:00", res.Booking.End)
			assert.Equal(t, tc.want, res.Text)
			assert.NotContains(t, res.Text, "[BOOKING")
		})
	}
}

func TestExtractToleratesNewlinesInsideJSON(t *testing.T) {
	ex := NewExtractor("BOOKING", nil)
	in := "Confirmed!\n[BOOKING: {\n  \"start\": \"2025-01-06T10:00:00-03:00\",\n  \"end\": \"2025-01-06T10:30:00-03:00\"\n}]"

	res := ex.Extract(in)
	require.NotNil(t, res.Booking)
	assert.Equal(t, "2025-01-06T10:00:00-03:00", res.Booking.Start)
	assert.Equal(t, "Confirmed!", res.Text)
}

func TestExtractInvalidJSONFailsSoft(t *testing.T) {
	ex := NewExtractor("BOOKING", nil)
	for _, in := range []string{
		`Ok [BOOKING: {"start": "2025-01-06T10:00:00", "end": "2025-01-06T10:30:00",}]`,
		`Ok [BOOKING: {"start": 10, "end": 11}]`,
		`Ok [BOOKING: {"start": "2025-01-06T10:00:00"}]`,
	} {
		var res Result
		require.NotPanics(t, func() { res = ex.Extract(in) })
		assert.Nil(t, res.Booking)
		assert.Equal(t, in, res.Text)
	}
}

func TestExtractOnlyFirstDirective(t *testing.T) {
	ex := NewExtractor("BOOKING", nil)
	in := `[BOOKING: {"start": "a1", "end": "b1"}] and [BOOKING: {"start": "a2", "end": "b2"}]`

	res := ex.Extract(in)
	require.NotNil(t, res.Booking)
	assert.Equal(t, "a1", res.Booking.Start)
	assert.Equal(t, `and [BOOKING: {"start": "a2", "end": "b2"}]`, res.Text)
}

func TestExtractCustomTagIsQuoted(t *testing.T) {
	ex := NewExtractor("BOOK.ME", nil)
	assert.Equal(t, "BOOK.ME", ex.Tag())

	res := ex.Extract(`[BOOKXME: {"start": "a", "end": "b"}]`)
	assert.Nil(t, res.Booking)

	res = ex.Extract(`[BOOK.ME: {"start": "a", "end": "b"}]`)
	require.NotNil(t, res.Booking)
}

func TestParseRejectsMissingFields(t *testing.T) {
	_, err := Parse(`{"end": "x"}`)
	assert.ErrorIs(t, err, ErrInvalidDirective)

	_, err = Parse(`{"start": "  ", "end": "x"}`)
	assert.ErrorIs(t, err, ErrInvalidDirective)
}

func TestParseKeepsValuesAsWritten(t *testing.T) {
	b, err := Parse(`{"start": " 2025-01-06T10:00:00 ", "end": "2025-01-06T10:30:00"}`)
	require.NoError(t, err)
	assert.Equal(t, Booking{Start: " 2025-01-06T10:00:00 ", End: "2025-01-06T10:30:00"}, b)

	// validation still reads the padded value
	_, err = ParseTime(b.Start, time.UTC)
	assert.NoError(t, err)
}
