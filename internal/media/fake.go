package media

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/attempt-engine/internal/models"
)

// FakeDevice is an in-process Device for tests and demo runs. It can be
// told to deny permission or fail per kind, and its microphone streams
// emit the chunks queued on the device.
type FakeDevice struct {
	mu sync.Mutex

	DenyPermission map[Kind]string
	FailOpen       map[Kind]string
	Encodings      []string // Supported recording encodings; defaults to EncodingPreference[0]
	FramePNG       []byte   // Returned by camera frame capture
	AudioChunks    [][]byte // Emitted by each opened microphone stream

	opened []Stream
}

func NewFakeDevice() *FakeDevice {
	return &FakeDevice{
		DenyPermission: make(map[Kind]string),
		FailOpen:       make(map[Kind]string),
	}
}

func (d *FakeDevice) Open(_ context.Context, kind Kind, _ Constraints) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if reason, ok := d.DenyPermission[kind]; ok {
		return nil, &PermissionError{Kind: kind, Reason: reason}
	}
	if reason, ok := d.FailOpen[kind]; ok {
		return nil, &DeviceError{Kind: kind, Reason: reason}
	}

	switch kind {
	case KindCamera:
		s := &fakeCameraStream{id: uuid.NewString(), png: d.FramePNG}
		d.opened = append(d.opened, s)
		return s, nil
	case KindMicrophone:
		encodings := d.Encodings
		if len(encodings) == 0 {
			encodings = EncodingPreference[:1]
		}
		ch := make(chan []byte, len(d.AudioChunks))
		for _, chunk := range d.AudioChunks {
			ch <- chunk
		}
		s := &fakeMicStream{id: uuid.NewString(), encodings: encodings, chunks: ch}
		d.opened = append(d.opened, s)
		return s, nil
	default:
		return nil, &DeviceError{Kind: kind, Reason: "unknown device kind"}
	}
}

// OpenStreams returns every stream handed out so far, closed or not.
func (d *FakeDevice) OpenStreams() []Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Stream(nil), d.opened...)
}

type fakeCameraStream struct {
	id     string
	png    []byte
	closed bool
	mu     sync.Mutex
}

func (s *fakeCameraStream) ID() string { return s.id }
func (s *fakeCameraStream) Kind() Kind { return KindCamera }

func (s *fakeCameraStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeCameraStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeCameraStream) Frame(context.Context) (*models.ImageFile, error) {
	return &models.ImageFile{Name: "frame.png", MIME: "image/png", Data: s.png}, nil
}

type fakeMicStream struct {
	id        string
	encodings []string
	chunks    chan []byte
	closeOnce sync.Once
	closed    bool
	mu        sync.Mutex
}

func (s *fakeMicStream) ID() string { return s.id }
func (s *fakeMicStream) Kind() Kind { return KindMicrophone }

func (s *fakeMicStream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.chunks)
	})
	return nil
}

func (s *fakeMicStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeMicStream) Supports(mimeType string) bool {
	for _, e := range s.encodings {
		if e == mimeType {
			return true
		}
	}
	return false
}

func (s *fakeMicStream) Chunks() <-chan []byte { return s.chunks }
