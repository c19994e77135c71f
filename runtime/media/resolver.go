package media

import (
	"context"

	"github.com/Jari57/studio-agents-sub002/runtime/blob"
	"github.com/Jari57/studio-agents-sub002/runtime/logger"
)

// maxDepth bounds wrapper and sequence nesting.
const maxDepth = 8

// Outcome describes how a payload was resolved.
type Outcome string

// Resolution outcomes.
const (
	OutcomeEmpty         Outcome = "empty"
	OutcomePassthrough   Outcome = "passthrough"
	OutcomeInline        Outcome = "inline"
	OutcomeSynthesized   Outcome = "synthesized"
	OutcomeMaterialized  Outcome = "materialized"
	OutcomeDecodeFailure Outcome = "decode_failure"
)

// Event reports one top-level resolution.
type Event struct {
	Kind     Kind
	Outcome  Outcome
	Class    Class
	InputLen int
}

// Config configures a Resolver.
type Config struct {
	// Registry receives materialized objects. Default: blob.DefaultRegistry.
	Registry *blob.Registry

	// Policies overrides the per-kind defaults. Kinds left out keep
	// DefaultPolicies.
	Policies map[Kind]KindPolicy

	// Listener, when set, is called once per Resolve.
	Listener func(Event)
}

// Resolver turns payloads into references.
// It is safe for concurrent use.
type Resolver struct {
	registry *blob.Registry
	policies map[Kind]KindPolicy
	listener func(Event)
}

// NewResolver creates a Resolver.
func NewResolver(cfg Config) *Resolver {
	policies := DefaultPolicies()
	for k, p := range cfg.Policies {
		policies[k] = p
	}
	registry := cfg.Registry
	if registry == nil {
		registry = blob.DefaultRegistry
	}
	return &Resolver{
		registry: registry,
		policies: policies,
		listener: cfg.Listener,
	}
}

// Registry returns the registry that owns materialized objects.
func (r *Resolver) Registry() *blob.Registry {
	return r.registry
}

// Policy returns the policy applied to kind.
func (r *Resolver) Policy(kind Kind) KindPolicy {
	return r.policies[kind]
}

// resolution tracks the most significant step taken while resolving.
type resolution struct {
	kind    Kind
	policy  KindPolicy
	outcome Outcome
}

// Resolve reduces payload to a single Reference. It never fails: malformed
// inline data falls back to the original string and unusable shapes yield
// the empty Reference.
//
// A "blob:" Reference produced by materialization belongs to the caller,
// who must release it with the registry's RevokeObjectURL.
func (r *Resolver) Resolve(ctx context.Context, kind Kind, payload Payload) Reference {
	ctx = logger.WithMediaKind(ctx, string(kind))
	res := &resolution{kind: kind, policy: r.policies[kind], outcome: OutcomeEmpty}

	ref := r.resolvePayload(ctx, res, payload, 0)
	if ref.IsEmpty() {
		res.outcome = OutcomeEmpty
	}

	inputLen := 0
	if t, ok := payload.(Text); ok {
		inputLen = len(t)
	}
	logger.MediaResolved(ctx, string(kind), string(ref.Class()), inputLen, len(ref), "outcome", res.outcome)
	if r.listener != nil {
		r.listener(Event{Kind: kind, Outcome: res.outcome, Class: ref.Class(), InputLen: inputLen})
	}
	return ref
}

// ResolveImage resolves an image payload. Empty means no image.
func (r *Resolver) ResolveImage(ctx context.Context, payload Payload) Reference {
	return r.Resolve(ctx, KindImage, payload)
}

// ResolveAudio resolves an audio payload. The empty string is returned on
// failure so it can be bound straight to a player's source.
func (r *Resolver) ResolveAudio(ctx context.Context, payload Payload) Reference {
	return r.Resolve(ctx, KindAudio, payload)
}

// ResolveVideo resolves a video payload.
func (r *Resolver) ResolveVideo(ctx context.Context, payload Payload) Reference {
	return r.Resolve(ctx, KindVideo, payload)
}

func (r *Resolver) resolvePayload(ctx context.Context, res *resolution, payload Payload, depth int) Reference {
	if depth > maxDepth {
		return ""
	}
	switch p := payload.(type) {
	case nil:
		return ""
	case Text:
		return r.resolveText(ctx, res, string(p))
	case Wrapper:
		return r.resolveWrapper(ctx, res, p, depth)
	case Sequence:
		if len(p) == 0 {
			return ""
		}
		switch first := p[0].(type) {
		case Text, Wrapper:
			return r.resolvePayload(ctx, res, first, depth+1)
		default:
			return ""
		}
	default:
		return ""
	}
}

func (r *Resolver) resolveWrapper(ctx context.Context, res *resolution, w Wrapper, depth int) Reference {
	if ref := r.resolvePayload(ctx, res, w.URL, depth+1); !ref.IsEmpty() {
		return ref
	}

	switch res.kind {
	case KindAudio:
		return r.resolvePayload(ctx, res, w.Audio, depth+1)
	case KindVideo:
		return r.resolvePayload(ctx, res, w.Video, depth+1)
	case KindImage:
		b64, ok := w.B64JSON.(Text)
		if !ok || b64 == "" || res.policy.DefaultMIME == "" {
			return ""
		}
		res.outcome = OutcomeSynthesized
		return r.resolveDataURI(ctx, res, blob.FormatDataURI(res.policy.DefaultMIME, string(b64)))
	}
	return ""
}

func (r *Resolver) resolveText(ctx context.Context, res *resolution, s string) Reference {
	switch {
	case s == "":
		return ""
	case isRemote(s), blob.IsLocalRef(s):
		res.outcome = OutcomePassthrough
		return Reference(s)
	case blob.HasScheme(s, blob.SchemeData):
		res.outcome = OutcomeInline
		return r.resolveDataURI(ctx, res, s)
	case res.policy.DefaultMIME != "" && res.policy.RawMinLength > 0 && len(s) > res.policy.RawMinLength:
		res.outcome = OutcomeSynthesized
		return r.resolveDataURI(ctx, res, blob.FormatDataURI(res.policy.DefaultMIME, s))
	default:
		res.outcome = OutcomePassthrough
		return Reference(s)
	}
}

// resolveDataURI returns uri unchanged when it is small enough to inline and
// materializes it into a blob handle otherwise. Materialization failures fall
// back to uri.
func (r *Resolver) resolveDataURI(ctx context.Context, res *resolution, uri string) Reference {
	if res.policy.InlineLimit <= 0 || len(uri) <= res.policy.InlineLimit {
		return Reference(uri)
	}

	ref, err := r.materialize(ctx, uri)
	if err != nil {
		logger.WarnContext(ctx, "media materialization failed, using inline data URI",
			"length", len(uri), "error", err)
		res.outcome = OutcomeDecodeFailure
		return Reference(uri)
	}
	res.outcome = OutcomeMaterialized
	return Reference(ref)
}

func (r *Resolver) materialize(ctx context.Context, uri string) (string, error) {
	parsed, err := blob.ParseDataURI(uri)
	if err != nil {
		return "", err
	}
	data, err := parsed.Decode()
	if err != nil {
		return "", err
	}
	return r.registry.CreateObjectURL(ctx, parsed.MIMEType, data)
}

// defaultResolver backs the package-level helpers.
var defaultResolver = NewResolver(Config{})

// ResolveImage resolves an untyped image payload with the default resolver.
func ResolveImage(payload any) Reference {
	return defaultResolver.ResolveImage(context.Background(), FromAny(payload))
}

// ResolveAudio resolves an untyped audio payload with the default resolver.
func ResolveAudio(payload any) Reference {
	return defaultResolver.ResolveAudio(context.Background(), FromAny(payload))
}

// ResolveVideo resolves an untyped video payload with the default resolver.
func ResolveVideo(payload any) Reference {
	return defaultResolver.ResolveVideo(context.Background(), FromAny(payload))
}
