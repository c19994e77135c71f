package prometheus

import (
	"github.com/Jari57/studio-agents-sub002/runtime/blob"
	"github.com/Jari57/studio-agents-sub002/runtime/media"
	"github.com/Jari57/studio-agents-sub002/runtime/voice"
)

// MetricsListener records runtime events as Prometheus metrics. Its methods
// match the listener hooks of blob.Registry, media.Resolver and voice.IO:
//
//	l := prometheus.NewMetricsListener()
//	reg := blob.NewRegistry(blob.WithListener(l.HandleBlob))
//	res := media.NewResolver(media.Config{Registry: reg, Listener: l.HandleMedia})
//	vio := voice.New(engine, voice.Config{Listener: l.HandleVoice})
type MetricsListener struct{}

// NewMetricsListener creates a new MetricsListener.
func NewMetricsListener() *MetricsListener {
	return &MetricsListener{}
}

// HandleBlob records a blob handle lifecycle event.
func (l *MetricsListener) HandleBlob(ev blob.Event) {
	switch ev.Type {
	case blob.EventCreated:
		RecordBlobCreated(ev.Size)
	case blob.EventRevoked:
		RecordBlobRevoked(ev.Size)
	default:
		RecordBlobEvent(string(ev.Type))
	}
}

// HandleMedia records a media resolution.
func (l *MetricsListener) HandleMedia(ev media.Event) {
	RecordResolution(string(ev.Kind), string(ev.Outcome), ev.InputLen)
}

// HandleVoice records a finished voice session.
func (l *MetricsListener) HandleVoice(ev voice.Event) {
	RecordVoiceSession(string(ev.Direction), ev.Outcome)
}
