package mediaapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/jmespath/go-jmespath"

	pkgerrors "github.com/Jari57/studio-agents-sub002/pkg/errors"
	"github.com/Jari57/studio-agents-sub002/runtime/blob"
	"github.com/Jari57/studio-agents-sub002/runtime/logger"
	"github.com/Jari57/studio-agents-sub002/runtime/media"
	"github.com/Jari57/studio-agents-sub002/runtime/telemetry"
)

const component = "mediaapi"

// SelectParam names the query parameter holding a JMESPath expression that
// picks the payload out of a larger service response.
const SelectParam = "select"

// SizeParam bounds the longest side of a preview, in pixels.
const SizeParam = "size"

// ResolveResponse is the body returned by the resolve endpoint. Reference is
// null only for an unusable image payload; audio and video report "".
type ResolveResponse struct {
	Reference *string `json:"reference"`
	Class     string  `json:"class"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

var errRateLimited = errors.New("rate limit exceeded")

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.limiter != nil && !s.limiter.Allow() {
		writeError(w, r, pkgerrors.New(component, "Resolve", errRateLimited).
			WithStatusCode(http.StatusTooManyRequests))
		return
	}

	kind, err := media.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, r, pkgerrors.New(component, "ParseKind", err).WithStatusCode(http.StatusNotFound))
		return
	}
	ctx = logger.WithMediaKind(ctx, string(kind))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodySize))
	if err != nil {
		status := http.StatusBadRequest
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, r, pkgerrors.New(component, "ReadBody", err).WithStatusCode(status))
		return
	}

	payload, err := decodePayload(body, r.URL.Query().Get(SelectParam))
	if err != nil {
		writeError(w, r, pkgerrors.New(component, "DecodePayload", err).WithStatusCode(http.StatusBadRequest))
		return
	}

	ctx, span := telemetry.StartResolve(ctx, s.tracer, kind)
	ref := s.resolver.Resolve(ctx, kind, payload)
	telemetry.EndResolve(span, ref, len(body), nil)

	writeJSON(w, http.StatusOK, render(kind, ref))
}

// decodePayload parses body as JSON, optionally narrowed by a JMESPath
// expression.
func decodePayload(body []byte, expr string) (media.Payload, error) {
	if expr == "" {
		return media.ParsePayload(body)
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode media payload: %w", err)
	}
	selected, err := jmespath.Search(expr, doc)
	if err != nil {
		return nil, fmt.Errorf("select %q: %w", expr, err)
	}
	return media.FromAny(selected), nil
}

func render(kind media.Kind, ref media.Reference) ResolveResponse {
	resp := ResolveResponse{Class: string(ref.Class())}
	if ref.IsEmpty() && kind == media.KindImage {
		return resp
	}
	s := ref.String()
	resp.Reference = &s
	return resp
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	registry := s.resolver.Registry()
	id := r.PathValue("id")

	if registry.Holders(id) == 0 {
		writeError(w, r, pkgerrors.New(component, "Revoke", fmt.Errorf("blob %s not found", id)).
			WithStatusCode(http.StatusNotFound))
		return
	}
	if err := registry.RevokeObjectURL(r.Context(), id); err != nil {
		writeError(w, r, pkgerrors.New(component, "Revoke", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePreview serves a downscaled copy of an image handle.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	size := media.DefaultPreviewSize
	if v := r.URL.Query().Get(SizeParam); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > media.MaxPreviewSize {
			writeError(w, r, pkgerrors.New(component, "Preview",
				fmt.Errorf("%s must be between 1 and %d", SizeParam, media.MaxPreviewSize)).
				WithStatusCode(http.StatusBadRequest))
			return
		}
		size = n
	}

	obj, err := s.resolver.Registry().Lookup(r.Context(), r.PathValue("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, blob.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, r, pkgerrors.New(component, "Preview", err).WithStatusCode(status))
		return
	}

	preview, err := media.Thumbnail(obj, size)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, media.ErrNotImage) {
			status = http.StatusUnsupportedMediaType
		}
		writeError(w, r, pkgerrors.New(component, "Preview", err).WithStatusCode(status))
		return
	}

	w.Header().Set("Content-Type", preview.MIMEType)
	w.Header().Set("Cache-Control", "private, no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(preview.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(preview.Data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := pkgerrors.StatusCode(err, http.StatusInternalServerError)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	} else {
		logger.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
