package widget

import (
	"net/url"
	"strings"
)

// Cross-frame protocol constants shared by the bridge and the widget page.
const (
	FrameID           = "nexus-bot-iframe"
	MessageClientInfo = "nexus-client-info"
	MessageResize     = "nexus-resize"
	SessionKeyPrefix  = "nexus_session_"

	// below this viewport width an open widget takes the whole screen
	MobileBreakpoint = 640

	Transition = "width 0.3s ease, height 0.3s ease, bottom 0.3s, right 0.3s"
	ZIndex     = 999999
)

// FrameStyle is the iframe geometry for one widget state. Field names follow
// CSSStyleDeclaration so the bridge can assign them directly.
type FrameStyle struct {
	Width        string `json:"width"`
	Height       string `json:"height"`
	Bottom       string `json:"bottom"`
	Right        string `json:"right"`
	BorderRadius string `json:"borderRadius"`
	MaxHeight    string `json:"maxHeight"`
}

var (
	closedFrame  = FrameStyle{Width: "80px", Height: "80px", Bottom: "20px", Right: "20px", BorderRadius: "10px"}
	desktopFrame = FrameStyle{Width: "380px", Height: "650px", Bottom: "20px", Right: "20px", BorderRadius: "16px", MaxHeight: "90vh"}
	mobileFrame  = FrameStyle{Width: "100%", Height: "100%", Bottom: "0", Right: "0", BorderRadius: "0"}
)

// FrameFor returns the geometry the bridge applies after a resize signal.
// Closed is always the bubble, whatever came before.
func FrameFor(isOpen bool, viewportWidth int) FrameStyle {
	switch {
	case !isOpen:
		return closedFrame
	case viewportWidth < MobileBreakpoint:
		return mobileFrame
	default:
		return desktopFrame
	}
}

// SessionKey is the localStorage key the widget caches its session token under.
func SessionKey(botID string) string { return SessionKeyPrefix + botID }

// BootParams is the query string the bridge puts on the iframe URL.
type BootParams struct {
	Embed  bool
	BotID  string
	Origin string // host page URL
	// Backend credentials the host page may have cached. Accepted for
	// compatibility; the server uses its own records store.
	SBURL string
	SBKey string
}

func (p BootParams) Values() url.Values {
	v := url.Values{}
	if p.Embed {
		v.Set("embed", "true")
	}
	if p.BotID != "" {
		v.Set("botId", p.BotID)
	}
	if p.Origin != "" {
		v.Set("origin", p.Origin)
	}
	if p.SBURL != "" && p.SBKey != "" {
		v.Set("sbUrl", p.SBURL)
		v.Set("sbKey", p.SBKey)
	}
	return v
}

// FrameURL is the iframe src for appOrigin.
func (p BootParams) FrameURL(appOrigin string) string {
	return strings.TrimRight(appOrigin, "/") + "/?" + p.Values().Encode()
}

// Valid reports whether the params describe an embed boot.
func (p BootParams) Valid() bool { return p.Embed && strings.TrimSpace(p.BotID) != "" }

func ParseBootParams(v url.Values) BootParams {
	return BootParams{
		Embed:  v.Get("embed") == "true",
		BotID:  strings.TrimSpace(v.Get("botId")),
		Origin: strings.TrimSpace(v.Get("origin")),
		SBURL:  v.Get("sbUrl"),
		SBKey:  v.Get("sbKey"),
	}
}
