package widget

import (
	"bytes"
	"embed"
	"encoding/json"
	htmltemplate "html/template"
	"io"
	"strings"
	texttemplate "text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Renderer holds the parsed widget templates and the pre-rendered bridge script.
type Renderer struct {
	bridge []byte
	page   *htmltemplate.Template
}

type bridgeData struct {
	FallbackOrigin string
	FrameID        string
	ClientInfoType string
	ResizeType     string
	Breakpoint     int
	Transition     string
	ZIndex         int
	Closed         FrameStyle
	Desktop        FrameStyle
	Mobile         FrameStyle
}

// NewRenderer renders the bridge once for appOrigin, its fallback when the
// script cannot read its own src.
func NewRenderer(appOrigin string) (*Renderer, error) {
	js, err := texttemplate.New("bridge.js.tmpl").
		Funcs(texttemplate.FuncMap{"json": toJSON}).
		ParseFS(templateFS, "templates/bridge.js.tmpl")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = js.Execute(&buf, bridgeData{
		FallbackOrigin: strings.TrimRight(appOrigin, "/"),
		FrameID:        FrameID,
		ClientInfoType: MessageClientInfo,
		ResizeType:     MessageResize,
		Breakpoint:     MobileBreakpoint,
		Transition:     Transition,
		ZIndex:         ZIndex,
		Closed:         FrameFor(false, MobileBreakpoint),
		Desktop:        FrameFor(true, MobileBreakpoint),
		Mobile:         FrameFor(true, MobileBreakpoint-1),
	})
	if err != nil {
		return nil, err
	}

	page, err := htmltemplate.ParseFS(templateFS, "templates/widget.html.tmpl")
	if err != nil {
		return nil, err
	}
	return &Renderer{bridge: buf.Bytes(), page: page}, nil
}

// Bridge returns the host-page script served as /widget.js.
func (r *Renderer) Bridge() []byte { return r.bridge }

// PageData feeds the page loaded inside the iframe.
type PageData struct {
	// Unavailable switches the page to its terminal error view.
	Unavailable bool
	Notice      string

	Config PageConfig
}

// PageConfig is handed to the page script as a JSON object.
type PageConfig struct {
	BotID          string   `json:"botId"`
	Name           string   `json:"name"`
	ThemeColor     string   `json:"themeColor"`
	AvatarURL      string   `json:"avatarUrl,omitempty"`
	Greeting       string   `json:"greeting"`
	LeadFields     []string `json:"leadFields"`
	Origin         string   `json:"origin"`
	SessionKey     string   `json:"sessionKey"`
	ClientInfoType string   `json:"clientInfoType"`
	ResizeType     string   `json:"resizeType"`
}

func (r *Renderer) RenderPage(w io.Writer, data PageData) error {
	data.Config.SessionKey = SessionKey(data.Config.BotID)
	data.Config.ClientInfoType = MessageClientInfo
	data.Config.ResizeType = MessageResize
	if data.Config.LeadFields == nil {
		data.Config.LeadFields = []string{}
	}
	return r.page.ExecuteTemplate(w, "widget.html.tmpl", data)
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
