package media

import (
	"context"
	"sync"

	"github.com/SAP-F-2025/attempt-engine/internal/models"
	"github.com/SAP-F-2025/attempt-engine/internal/utils"
)

type Kind string

const (
	KindCamera     Kind = "camera"
	KindMicrophone Kind = "microphone"
)

// Constraints narrows what the device should produce. Zero values leave
// the choice to the device.
type Constraints struct {
	Width      int
	Height     int
	SampleRate int
}

// Stream is a live device stream handle. Streams exist only while a
// capture is open and are always released explicitly through the Manager.
// Close must be idempotent: a stream can be closed both through Release
// and directly by its holder.
type Stream interface {
	ID() string
	Kind() Kind
	Close() error
}

// CameraStream additionally supports single-shot frame capture.
type CameraStream interface {
	Stream
	Frame(ctx context.Context) (*models.ImageFile, error)
}

// MicrophoneStream delivers encoded audio chunks until closed.
type MicrophoneStream interface {
	Stream
	Supports(mimeType string) bool
	Chunks() <-chan []byte
}

// Device opens streams. Permission prompts happen behind this interface;
// the engine only sees a stream or a typed error.
type Device interface {
	Open(ctx context.Context, kind Kind, c Constraints) (Stream, error)
}

// Manager owns every acquired stream. At most one stream per kind is
// active at a time, and each is held exclusively by the question that
// acquired it until released.
type Manager struct {
	mu     sync.Mutex
	device Device
	active map[Kind]Stream
	logger utils.Logger
}

func NewManager(device Device, logger utils.Logger) *Manager {
	return &Manager{
		device: device,
		active: make(map[Kind]Stream),
		logger: logger,
	}
}

// Acquire opens a stream of the given kind. The previous holder must
// release before another acquisition of the same kind can succeed.
func (m *Manager) Acquire(ctx context.Context, kind Kind, c Constraints) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active[kind] != nil {
		return nil, ErrDeviceBusy
	}

	stream, err := m.device.Open(ctx, kind, c)
	if err != nil {
		m.logger.Warn("Device acquisition failed", "kind", kind, "error", err)
		return nil, err
	}

	m.active[kind] = stream
	m.logger.Debug("Device stream acquired", "kind", kind, "stream_id", stream.ID())
	return stream, nil
}

// Release closes a stream and frees its kind slot. Safe to call more
// than once and with streams that were already released.
func (m *Manager) Release(stream Stream) {
	if stream == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.active[stream.Kind()]
	if !ok || current == nil || current.ID() != stream.ID() {
		return
	}

	delete(m.active, stream.Kind())
	if err := stream.Close(); err != nil {
		m.logger.Warn("Stream close failed", "kind", stream.Kind(), "error", err)
	}
	m.logger.Debug("Device stream released", "kind", stream.Kind(), "stream_id", stream.ID())
}

// ReleaseAll drops every active stream; called on session teardown.
func (m *Manager) ReleaseAll() {
	m.mu.Lock()
	streams := make([]Stream, 0, len(m.active))
	for _, s := range m.active {
		streams = append(streams, s)
	}
	m.mu.Unlock()

	for _, s := range streams {
		m.Release(s)
	}
}

// Active reports whether a stream of the given kind is currently held.
func (m *Manager) Active(kind Kind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[kind] != nil
}

// CaptureFrame rasterizes the live camera stream into a still image and
// releases the stream on success.
func (m *Manager) CaptureFrame(ctx context.Context, stream Stream) (*models.ImageFile, error) {
	camera, ok := stream.(CameraStream)
	if !ok {
		return nil, ErrNotCamera
	}

	frame, err := camera.Frame(ctx)
	if err != nil {
		return nil, &DeviceError{Kind: KindCamera, Reason: err.Error()}
	}

	m.Release(stream)
	return frame, nil
}
