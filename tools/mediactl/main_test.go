package main

import (
	"bytes"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jari57/studio-agents-sub002/pkg/config"
	"github.com/Jari57/studio-agents-sub002/runtime/media"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resolveKind, resolveFile, resolveSelect, resolveDecode, resolveConfig = "image", "", "", "", ""
	validateSchemaOnly = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "studio media runtime version")
}

func TestResolveCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bare url", []string{"resolve", "https://cdn.example/a.png"}, "remote_url\thttps://cdn.example/a.png"},
		{"json wrapper", []string{"resolve", `{"url":"https://cdn.example/b.png"}`}, "remote_url\thttps://cdn.example/b.png"},
		{"empty", []string{"resolve", "--kind", "video", "null"}, "empty\t"},
		{"select", []string{"resolve", "--select", "data[0]", `{"data":[{"b64_json":"iVBORw0KGgo="}]}`}, "data_uri\tdata:image/png;base64,iVBORw0KGgo="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "", tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out)
		})
	}
}

func TestResolveCommand_Stdin(t *testing.T) {
	out, err := execute(t, `"https://cdn.example/s.mp3"`, "resolve", "--kind", "audio")
	require.NoError(t, err)
	assert.Equal(t, "remote_url\thttps://cdn.example/s.mp3\n", out)
}

func TestResolveCommand_DecodeMaterialized(t *testing.T) {
	raw := bytes.Repeat([]byte{0xAB}, media.DefaultAudioInlineLimit)
	payload := writeFile(t, "tts.json",
		`{"audio":"data:audio/wav;base64,`+base64.StdEncoding.EncodeToString(raw)+`"}`)
	target := filepath.Join(t.TempDir(), "out.wav")

	out, err := execute(t, "", "resolve", "--kind", "audio", "--file", payload, "--decode", target)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "local_ref\tblob:"), out)
	assert.Contains(t, out, "(audio/wav)")

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestResolveCommand_DecodeRemoteFails(t *testing.T) {
	_, err := execute(t, "", "resolve", "--decode", filepath.Join(t.TempDir(), "x"), "https://cdn.example/a.png")
	assert.ErrorContains(t, err, "has no local bytes")
}

func TestResolveCommand_Errors(t *testing.T) {
	_, err := execute(t, "", "resolve", "--kind", "hologram", "x")
	assert.Error(t, err)

	_, err = execute(t, "", "resolve", "--select", "data[0]", "not json")
	assert.ErrorContains(t, err, "--select needs a JSON payload")

	_, err = execute(t, "", "resolve", "--select", "[", `{"a":1}`)
	assert.ErrorContains(t, err, "invalid --select expression")

	_, err = execute(t, "", "resolve", "--file", filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to read payload file")
}

const validManifest = `apiVersion: studio.jari57.dev/v1alpha1
kind: MediaRuntime
metadata:
  name: staging
spec:
  media:
    origin: studio.example
`

func TestValidateCommand(t *testing.T) {
	path := writeFile(t, "runtime.yaml", validManifest)

	out, err := execute(t, "", "validate", path)
	require.NoError(t, err)
	assert.Equal(t, "staging is valid (store: memory, origin: studio.example)\n", out)

	out, err = execute(t, "", "validate", "--schema-only", path)
	require.NoError(t, err)
	assert.Contains(t, out, "runtime.yaml matches the MediaRuntime schema")
}

func TestValidateCommand_Invalid(t *testing.T) {
	path := writeFile(t, "bad.yaml", strings.Replace(validManifest, "kind: MediaRuntime", "kind: Arena", 1))

	_, err := execute(t, "", "validate", path)
	assert.Error(t, err)

	_, err = execute(t, "", "validate", "--schema-only", path)
	assert.ErrorContains(t, err, "MediaRuntime validation failed")

	_, err = execute(t, "", "validate")
	assert.Error(t, err, "a file argument is required")
}

func TestBuildRuntime(t *testing.T) {
	rt, err := buildRuntime(t.Context(), config.Default())
	require.NoError(t, err)
	t.Cleanup(rt.close)

	assert.Nil(t, rt.exporter, "metrics mount on the API when no metrics address is set")
	assert.True(t, rt.voice.IsVoiceSupported())

	srv := httptest.NewServer(rt.api.Handler())
	defer srv.Close()

	for _, path := range []string{"/healthz", "/metrics", "/v1/voice"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestBuildRuntime_SeparateMetricsAndRateLimit(t *testing.T) {
	manifest := config.Default()
	spec := &manifest.Spec
	spec.Server.MetricsAddr = ":0"
	spec.Server.RateLimit = &config.RateLimitSpec{RequestsPerSecond: 1, Burst: 1}

	rt, err := buildRuntime(t.Context(), manifest)
	require.NoError(t, err)
	t.Cleanup(rt.close)
	require.NotNil(t, rt.exporter)

	srv := httptest.NewServer(rt.api.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	codes := make([]int, 0, 2)
	for range 2 {
		resp, err := http.Post(srv.URL+"/v1/resolve/image", "application/json", strings.NewReader(`"https://x/y.png"`))
		require.NoError(t, err)
		_ = resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestBuildRuntime_InvalidStore(t *testing.T) {
	manifest := config.Default()
	manifest.Spec.BlobStore.Type = "s3"
	_, err := buildRuntime(t.Context(), manifest)
	assert.Error(t, err)
}

func TestOriginChecker(t *testing.T) {
	assert.Nil(t, originChecker(nil))

	check := originChecker([]string{"https://studio.example"})
	req := httptest.NewRequest(http.MethodGet, "/v1/voice/bridge", nil)
	assert.True(t, check(req), "non-browser clients send no origin")

	req.Header.Set("Origin", "https://studio.example")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))

	req.Header.Set("Origin", "https://any.example")
	assert.True(t, originChecker([]string{"*"})(req))
}
