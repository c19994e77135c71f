package media

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jari57/studio-agents-sub002/runtime/blob"
)

func newTestResolver(t *testing.T) (*Resolver, *[]Event) {
	t.Helper()
	events := &[]Event{}
	r := NewResolver(Config{
		Registry: blob.NewRegistry(blob.WithOrigin("test")),
		Listener: func(ev Event) { *events = append(*events, ev) },
	})
	return r, events
}

// b64Of returns a base64 payload whose encoded length is at least n.
func b64Of(n int) string {
	raw := make([]byte, n*3/4+3)
	for i := range raw {
		raw[i] = byte(i)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func TestResolve_CanonicalReferencesAreIdempotent(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	refs := []string{
		"http://cdn.example.com/a.png",
		"https://cdn.example.com/b.mp3?sig=1",
		"HTTPS://cdn.example.com/c.mp4",
		"blob:test/6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		"blob:https://app.example.com/6ba7b810-9dad-11d1-80b4-00c04fd430c8",
	}
	for _, ref := range refs {
		for _, kind := range Kinds {
			t.Run(string(kind)+"/"+ref, func(t *testing.T) {
				once := r.Resolve(ctx, kind, Text(ref))
				assert.Equal(t, Reference(ref), once)
				assert.Equal(t, once, r.Resolve(ctx, kind, Text(once)))
			})
		}
	}
}

func TestResolveImage_SmallBase64RoundTrip(t *testing.T) {
	r, _ := newTestResolver(t)
	p := b64Of(40)

	got := r.ResolveImage(context.Background(), Wrapper{B64JSON: Text(p)})

	assert.Equal(t, ClassDataURI, got.Class())
	assert.Equal(t, Reference("data:image/png;base64,"+p), got)
	assert.True(t, strings.HasSuffix(string(got), p))
}

func TestResolveImage_RawBase64Heuristic(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	short := strings.Repeat("A", DefaultImageRawMinLen)
	assert.Equal(t, Reference(short), r.ResolveImage(ctx, Text(short)), "at the threshold the string is left alone")

	long := b64Of(DefaultImageRawMinLen + 4)
	got := r.ResolveImage(ctx, Text(long))
	// The synthesized data URI exceeds the image inline limit, so it is materialized.
	assert.Equal(t, ClassLocal, got.Class())

	obj, err := r.Registry().Lookup(ctx, string(got))
	require.NoError(t, err)
	assert.Equal(t, MIMETypeImagePNG, obj.MIMEType)
	want, _ := base64.StdEncoding.DecodeString(long)
	assert.Equal(t, want, obj.Data)
}

func TestResolveAudio_MaterializationThreshold(t *testing.T) {
	r, events := newTestResolver(t)
	ctx := context.Background()
	prefix := "data:audio/wav;base64,"

	atLimit := prefix + strings.Repeat("A", DefaultAudioInlineLimit-len(prefix))
	require.Len(t, atLimit, DefaultAudioInlineLimit)
	assert.Equal(t, Reference(atLimit), r.ResolveAudio(ctx, Text(atLimit)))

	overLimit := prefix + strings.Repeat("A", DefaultAudioInlineLimit-len(prefix)+4)
	got := r.ResolveAudio(ctx, Text(overLimit))
	assert.Equal(t, ClassLocal, got.Class())
	assert.NotEqual(t, Reference(overLimit), got)

	obj, err := r.Registry().Lookup(ctx, string(got))
	require.NoError(t, err)
	assert.Equal(t, "audio/wav", obj.MIMEType)

	require.Len(t, *events, 2)
	assert.Equal(t, OutcomeInline, (*events)[0].Outcome)
	assert.Equal(t, OutcomeMaterialized, (*events)[1].Outcome)
}

func TestResolve_DeterministicMaterialization(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()
	uri := "data:video/mp4;base64," + b64Of(DefaultVideoInlineLimit+10)

	a := r.ResolveVideo(ctx, Text(uri))
	b := r.ResolveVideo(ctx, Text(uri))

	assert.Equal(t, ClassLocal, a.Class())
	assert.Equal(t, a, b)
	assert.Equal(t, 2, r.Registry().Holders(string(a)), "each resolution hands out its own hold")
}

func TestResolveAudio_DecodeFailureFallsBack(t *testing.T) {
	r, events := newTestResolver(t)
	ctx := context.Background()

	tests := map[string]string{
		"corrupted base64": "data:audio/mpeg;base64," + strings.Repeat("!@#$", DefaultAudioInlineLimit/4),
		"not base64":       "data:audio/mpeg," + strings.Repeat("x", DefaultAudioInlineLimit),
		"no separator":     "data:audio/mpeg;base64" + strings.Repeat("A", DefaultAudioInlineLimit),
	}
	for name, uri := range tests {
		t.Run(name, func(t *testing.T) {
			*events = nil
			var got Reference
			assert.NotPanics(t, func() { got = r.ResolveAudio(ctx, Text(uri)) })
			assert.Equal(t, Reference(uri), got)
			require.Len(t, *events, 1)
			assert.Equal(t, OutcomeDecodeFailure, (*events)[0].Outcome)
		})
	}
	assert.Equal(t, 0, r.Registry().Live())
}

func TestResolveAudio_WrapperPriority(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	got := r.ResolveAudio(ctx, FromAny(map[string]any{"url": "http://a", "audio": "http://b"}))
	assert.Equal(t, Reference("http://a"), got)

	got = r.ResolveAudio(ctx, FromAny(map[string]any{"url": "", "audio": "http://b"}))
	assert.Equal(t, Reference("http://b"), got, "an empty url falls through to the kind key")

	got = r.ResolveVideo(ctx, FromAny(map[string]any{"audio": "http://b"}))
	assert.True(t, got.IsEmpty(), "keys of other kinds are ignored")
}

func TestResolve_WrapperKindKeys(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	assert.Equal(t, Reference("https://v"), r.ResolveVideo(ctx, Wrapper{Video: Text("https://v")}))
	assert.True(t, r.ResolveImage(ctx, Wrapper{Audio: Text("https://a")}).IsEmpty())
	assert.True(t, r.ResolveAudio(ctx, Wrapper{B64JSON: Text("AAAA")}).IsEmpty())

	// Nested wrappers under url resolve recursively.
	nested := Wrapper{URL: Wrapper{URL: Text("https://deep")}}
	assert.Equal(t, Reference("https://deep"), r.ResolveImage(ctx, nested))

	// Raw base64 under the audio key gets the audio default MIME.
	raw := b64Of(DefaultAudioRawMinLen + 8)
	got := r.ResolveAudio(ctx, Wrapper{Audio: Text(raw)})
	assert.Equal(t, Reference("data:audio/mpeg;base64,"+raw), got)
}

func TestResolve_SequenceUnwrap(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	assert.Equal(t, Reference("http://x"), r.ResolveImage(ctx, FromAny([]any{"http://x", "http://y"})))
	assert.True(t, r.ResolveImage(ctx, FromAny([]any{})).IsEmpty())
	assert.Equal(t, Reference("http://w"), r.ResolveAudio(ctx, FromAny([]any{map[string]any{"audio": "http://w"}})))
	assert.True(t, r.ResolveImage(ctx, Sequence{Sequence{Text("http://x")}}).IsEmpty())
	assert.True(t, r.ResolveImage(ctx, Sequence{nil, Text("http://x")}).IsEmpty())
}

func TestResolve_EmptyAndUnusable(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	for name, p := range map[string]Payload{
		"nil":          nil,
		"empty text":   Text(""),
		"number":       FromAny(42),
		"bool":         FromAny(false),
		"plain object": FromAny(map[string]any{"name": "cover"}),
		"empty wrap":   Wrapper{},
	} {
		t.Run(name, func(t *testing.T) {
			for _, kind := range Kinds {
				assert.Equal(t, Reference(""), r.Resolve(ctx, kind, p))
			}
		})
	}
}

func TestResolve_ShortStringsPassThrough(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	assert.Equal(t, Reference("/assets/cover.png"), r.ResolveImage(ctx, Text("/assets/cover.png")))
	assert.Equal(t, Reference("clip-01"), r.ResolveAudio(ctx, Text("clip-01")))

	// Video has no default MIME, so long raw strings are never reinterpreted.
	long := b64Of(5000)
	assert.Equal(t, Reference(long), r.ResolveVideo(ctx, Text(long)))
}

func TestResolve_PolicyOverride(t *testing.T) {
	r := NewResolver(Config{
		Registry: blob.NewRegistry(),
		Policies: map[Kind]KindPolicy{
			KindImage: {DefaultMIME: "image/webp", InlineLimit: 0, RawMinLength: 10},
		},
	})
	ctx := context.Background()

	raw := b64Of(2000)
	got := r.ResolveImage(ctx, Text(raw))
	assert.Equal(t, Reference("data:image/webp;base64,"+raw), got, "InlineLimit 0 never materializes")
	assert.Equal(t, DefaultPolicies()[KindAudio], r.Policy(KindAudio))
}

func TestPackageLevelHelpers(t *testing.T) {
	assert.Equal(t, Reference("https://x/y.png"), ResolveImage(map[string]any{"url": "https://x/y.png"}))
	assert.Equal(t, Reference(""), ResolveAudio(nil))
	assert.Equal(t, Reference("https://v"), ResolveVideo([]string{"https://v"}))
}

func TestReference_Class(t *testing.T) {
	tests := map[Reference]Class{
		"":                   ClassEmpty,
		"http://a":           ClassRemote,
		"https://a":          ClassRemote,
		"blob:o/1":           ClassLocal,
		"data:image/png,abc": ClassDataURI,
		"relative/path.png":  ClassOther,
		"httpfoo":            ClassOther,
	}
	for ref, want := range tests {
		assert.Equal(t, want, ref.Class(), string(ref))
	}
	assert.Equal(t, "https://a", Reference("https://a").String())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Audio ")
	require.NoError(t, err)
	assert.Equal(t, KindAudio, k)

	_, err = ParseKind("hologram")
	assert.Error(t, err)
}
