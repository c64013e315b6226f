package widget

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgeCarriesProtocol(t *testing.T) {
	r, err := NewRenderer("https://app.example/")
	require.NoError(t, err)
	js := string(r.Bridge())

	assert.Contains(t, js, `var FALLBACK_ORIGIN = "https://app.example";`)
	assert.Contains(t, js, `var FRAME_ID = "nexus-bot-iframe";`)
	assert.Contains(t, js, `"nexus-client-info"`)
	assert.Contains(t, js, `"nexus-resize"`)
	assert.Contains(t, js, `var BREAKPOINT = 640;`)
	assert.Contains(t, js, `"width":"380px","height":"650px"`)
	assert.Contains(t, js, `"width":"80px","height":"80px"`)
	assert.Contains(t, js, `style.zIndex = "999999";`)
	assert.Contains(t, js, `event.origin !== origin`)
	assert.Contains(t, js, "window.nexusBotId")
}

func TestRenderPage(t *testing.T) {
	r, err := NewRenderer("https://app.example")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.RenderPage(&buf, PageData{Config: PageConfig{
		BotID:      "b1",
		Name:       "Ana <script>",
		ThemeColor: "#3b82f6",
		Greeting:   "Hi! I'm Ana. How can I help you today?",
		LeadFields: []string{"Name", "Email"},
		Origin:     "https://shop.example",
	}}))
	page := buf.String()

	assert.Contains(t, page, "Ana &lt;script&gt;")
	assert.NotContains(t, page, "Ana <script>")
	assert.Contains(t, page, `name="Email"`)
	assert.Contains(t, page, `type="email"`)
	assert.Contains(t, page, "nexus_session_b1")
	assert.Contains(t, page, "background-color: #3b82f6")
}

func TestRenderUnavailablePage(t *testing.T) {
	r, err := NewRenderer("https://app.example")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.RenderPage(&buf, PageData{Unavailable: true}))
	assert.Contains(t, buf.String(), "Bot unavailable.")
	assert.NotContains(t, buf.String(), "/api/widget/bots/")

	buf.Reset()
	require.NoError(t, r.RenderPage(&buf, PageData{Unavailable: true, Notice: "No database connected."}))
	assert.Contains(t, buf.String(), "No database connected.")
}

func TestLeadFormStaysGatedOnRejection(t *testing.T) {
	r, err := NewRenderer("https://app.example")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.RenderPage(&buf, PageData{Config: PageConfig{BotID: "b1", LeadFields: []string{"Email"}}}))
	page := buf.String()

	assert.Contains(t, page, `id="lead-error"`)
	assert.Contains(t, page, `err.code === "INVALID_ARGUMENT" || err.code === "FORBIDDEN"`)
	assert.Contains(t, page, `leadError.textContent = err.message`)
	// the gate only drops inside the success and transport-failure branches
	assert.Equal(t, 1, strings.Count(page, `root.classList.remove("gated")`))
	assert.Equal(t, 3, strings.Count(page, "ungate()"))
	assert.NotContains(t, page, `.then(function () {
        root.classList.remove("gated");`)
}

func TestTurnEventsFromOwnTabAreSkipped(t *testing.T) {
	r, err := NewRenderer("https://app.example")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.RenderPage(&buf, PageData{Config: PageConfig{BotID: "b1"}}))
	page := buf.String()

	assert.Contains(t, page, "clientId: newClientId()")
	assert.Contains(t, page, "client_id: state.clientId")
	assert.Contains(t, page, "data.client_id === state.clientId) return;")
}
