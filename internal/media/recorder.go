package media

import (
	"context"
	"sync"

	"github.com/SAP-F-2025/attempt-engine/internal/models"
)

// EncodingPreference is the descending list of recording encodings; the
// first one the device supports wins.
var EncodingPreference = []string{
	"audio/webm;codecs=opus",
	"audio/webm",
	"audio/ogg;codecs=opus",
	"audio/mp4",
}

// Recorder buffers microphone chunks until stopped. Its duration counter
// is independent of any session clock.
type Recorder struct {
	mu       sync.Mutex
	manager  *Manager
	stream   MicrophoneStream
	encoding string
	chunks   [][]byte
	seconds  int
	finished bool
	drained  chan struct{}
}

// StartRecording acquires the microphone, negotiates an encoding and
// begins draining chunks.
func (m *Manager) StartRecording(ctx context.Context, c Constraints) (*Recorder, error) {
	stream, err := m.Acquire(ctx, KindMicrophone, c)
	if err != nil {
		return nil, err
	}

	mic, ok := stream.(MicrophoneStream)
	if !ok {
		m.Release(stream)
		return nil, ErrNotMicrophone
	}

	encoding := ""
	for _, candidate := range EncodingPreference {
		if mic.Supports(candidate) {
			encoding = candidate
			break
		}
	}
	if encoding == "" {
		m.Release(stream)
		return nil, &DeviceError{Kind: KindMicrophone, Reason: "no mutually supported recording encoding"}
	}

	r := &Recorder{
		manager:  m,
		stream:   mic,
		encoding: encoding,
		drained:  make(chan struct{}),
	}

	go r.drain()

	m.logger.Debug("Recording started", "encoding", encoding, "stream_id", mic.ID())
	return r, nil
}

func (r *Recorder) drain() {
	for chunk := range r.stream.Chunks() {
		r.mu.Lock()
		r.chunks = append(r.chunks, chunk)
		r.mu.Unlock()
	}
	close(r.drained)
}

// Encoding returns the negotiated recording MIME type.
func (r *Recorder) Encoding() string { return r.encoding }

// Seconds returns the elapsed recording duration.
func (r *Recorder) Seconds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seconds
}

// TickSecond advances the recording-duration counter; driven by the
// host's periodic task, not by the session countdown.
func (r *Recorder) TickSecond() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.finished {
		r.seconds++
	}
}

// ChunkCount reports how many chunks are buffered so far.
func (r *Recorder) ChunkCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks)
}

// Stop flushes the buffered chunks into one blob and releases the
// microphone. Stopping with zero chunks is an error; the microphone is
// released either way.
func (r *Recorder) Stop() (*models.AudioBlob, error) {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return nil, ErrRecorderFinished
	}
	r.finished = true
	r.mu.Unlock()

	// Closing the stream ends the chunk feed; wait for the drain to
	// flush whatever was still buffered.
	r.manager.Release(r.stream)
	r.stream.Close()
	<-r.drained

	r.mu.Lock()
	chunks := r.chunks
	r.mu.Unlock()

	if len(chunks) == 0 {
		return nil, ErrNoAudioCaptured
	}

	size := 0
	for _, c := range chunks {
		size += len(c)
	}
	data := make([]byte, 0, size)
	for _, c := range chunks {
		data = append(data, c...)
	}

	return &models.AudioBlob{MIME: r.encoding, Data: data}, nil
}

// Discard releases the microphone and drops everything buffered.
func (r *Recorder) Discard() {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.finished = true
	r.mu.Unlock()

	r.manager.Release(r.stream)
	r.stream.Close()
	<-r.drained

	r.mu.Lock()
	r.chunks = nil
	r.mu.Unlock()
}
