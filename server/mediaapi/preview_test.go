package mediaapi

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jari57/studio-agents-sub002/runtime/blob"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func handleID(t *testing.T, reg *blob.Registry, mimeType string, data []byte) string {
	t.Helper()
	ref, err := reg.CreateObjectURL(context.Background(), mimeType, data)
	require.NoError(t, err)
	id, ok := reg.ID(ref)
	require.True(t, ok)
	return id
}

func TestPreview(t *testing.T) {
	srv, reg := newTestServer(t)
	id := handleID(t, reg, "image/png", pngBytes(t, 300, 150))

	resp := do(t, http.MethodGet, srv.URL+"/v1/blobs/"+id+"/preview?size=60")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	cfg, err := png.DecodeConfig(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Width)
	assert.Equal(t, 30, cfg.Height)
	assert.Equal(t, 1, reg.Holders(id), "previews do not retain the handle")
}

func TestPreview_Errors(t *testing.T) {
	srv, reg := newTestServer(t)
	img := handleID(t, reg, "image/png", pngBytes(t, 10, 10))
	audio := handleID(t, reg, "audio/wav", []byte("RIFF...."))

	tests := []struct {
		name   string
		path   string
		status int
		msg    string
	}{
		{"unknown handle", "/v1/blobs/nope/preview", http.StatusNotFound, "not found"},
		{"not an image", "/v1/blobs/" + audio + "/preview", http.StatusUnsupportedMediaType, "not a decodable image"},
		{"size not a number", "/v1/blobs/" + img + "/preview?size=big", http.StatusBadRequest, "size must be"},
		{"size too large", "/v1/blobs/" + img + "/preview?size=5000", http.StatusBadRequest, "size must be"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodGet, srv.URL+tt.path)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.True(t, strings.Contains(decodeError(t, resp), tt.msg))
		})
	}
}
