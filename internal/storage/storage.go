package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
)

// Object describes how a blob is served once uploaded.
type Object struct {
	Name         string
	ContentType  string
	CacheControl string
	Public       bool
}

type Uploader interface {
	Upload(ctx context.Context, obj Object, r io.Reader) (publicURL string, err error)
}

const (
	BridgeObject      = "widget.js"
	bridgeContentType = "application/javascript; charset=utf-8"
)

// PublishBridge uploads the rendered host-page script, optionally under a
// prefix such as a release tag.
func PublishBridge(ctx context.Context, up Uploader, prefix string, script []byte) (string, error) {
	name := BridgeObject
	if p := strings.Trim(prefix, "/"); p != "" {
		name = p + "/" + BridgeObject
	}
	return up.Upload(ctx, Object{
		Name:         name,
		ContentType:  bridgeContentType,
		CacheControl: "public, max-age=300",
		Public:       true,
	}, bytes.NewReader(script))
}
