package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/SAP-F-2025/attempt-engine/internal/errors"
	"github.com/SAP-F-2025/attempt-engine/internal/media"
	"github.com/SAP-F-2025/attempt-engine/internal/models"
	"github.com/SAP-F-2025/attempt-engine/internal/utils"
)

type mockTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
	blobs []*models.AudioBlob
}

func (m *mockTranscriber) Transcribe(_ context.Context, blob *models.AudioBlob) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.blobs = append(m.blobs, blob)
	return m.text, m.err
}

func newASRFixture(transcriber *mockTranscriber, chunks [][]byte) (*ASRPipeline, *media.FakeDevice, *media.Manager) {
	device := media.NewFakeDevice()
	device.AudioChunks = chunks
	manager := media.NewManager(device, utils.NewDiscardLogger())
	p := NewASRPipeline(transcriber, manager, ASRConfig{}, utils.NewDiscardLogger())
	return p, device, manager
}

func TestASRPipeline_RecordAndTranscribe(t *testing.T) {
	transcriber := &mockTranscriber{text: "spoken words"}
	p, _, manager := newASRFixture(transcriber, [][]byte{[]byte("ab"), []byte("cd")})
	job := NewJob(1, ModalityVoice)

	recorder, err := p.StartRecording(context.Background(), job, media.Constraints{})
	require.NoError(t, err)
	assert.Equal(t, StageRecording, job.Stage)
	assert.True(t, manager.Active(media.KindMicrophone))

	require.NoError(t, p.StopAndTranscribe(context.Background(), job, recorder))

	assert.Equal(t, StageComplete, job.Stage)
	assert.Equal(t, "spoken words", job.Text)
	assert.False(t, manager.Active(media.KindMicrophone))

	// Chunks were flushed into a single blob in arrival order
	require.Len(t, transcriber.blobs, 1)
	assert.Equal(t, []byte("abcd"), transcriber.blobs[0].Data)
}

func TestASRPipeline_EmptyRecordingAborts(t *testing.T) {
	transcriber := &mockTranscriber{text: "unused"}
	p, _, manager := newASRFixture(transcriber, nil)
	job := NewJob(1, ModalityVoice)

	recorder, err := p.StartRecording(context.Background(), job, media.Constraints{})
	require.NoError(t, err)

	err = p.StopAndTranscribe(context.Background(), job, recorder)
	var verrs apperrors.ValidationErrors
	require.ErrorAs(t, err, &verrs)

	assert.Equal(t, StageError, job.Stage)
	assert.Equal(t, 0, transcriber.calls)
	// The microphone is released even when nothing was captured
	assert.False(t, manager.Active(media.KindMicrophone))
}

func TestASRPipeline_RetryReusesBlob(t *testing.T) {
	transcriber := &mockTranscriber{err: errors.New("asr backend down")}
	p, _, _ := newASRFixture(transcriber, [][]byte{[]byte("audio")})
	job := NewJob(1, ModalityVoice)

	recorder, err := p.StartRecording(context.Background(), job, media.Constraints{})
	require.NoError(t, err)
	require.Error(t, p.StopAndTranscribe(context.Background(), job, recorder))
	assert.Equal(t, StageError, job.Stage)

	transcriber.err = nil
	transcriber.text = "recovered"
	require.NoError(t, p.Retry(context.Background(), job))

	assert.Equal(t, "recovered", job.Text)
	require.Len(t, transcriber.blobs, 2)
	// Both attempts saw the same captured audio
	assert.Equal(t, transcriber.blobs[0], transcriber.blobs[1])
}

func TestASRPipeline_RetryGuards(t *testing.T) {
	transcriber := &mockTranscriber{}
	p, _, _ := newASRFixture(transcriber, nil)

	job := NewJob(1, ModalityVoice)
	assert.ErrorIs(t, p.Retry(context.Background(), job), ErrNotRetryable)
}

func TestASRPipeline_DiscardResetsJob(t *testing.T) {
	transcriber := &mockTranscriber{}
	p, _, manager := newASRFixture(transcriber, [][]byte{[]byte("audio")})
	job := NewJob(1, ModalityVoice)

	recorder, err := p.StartRecording(context.Background(), job, media.Constraints{})
	require.NoError(t, err)

	p.Discard(job, recorder)

	assert.Equal(t, StageIdle, job.Stage)
	assert.Nil(t, job.Audio)
	assert.Equal(t, 0, transcriber.calls)
	assert.False(t, manager.Active(media.KindMicrophone))

	// The question can record again from scratch
	_, err = p.StartRecording(context.Background(), job, media.Constraints{})
	assert.NoError(t, err)
}

func TestASRPipeline_StartRequiresIdleJob(t *testing.T) {
	transcriber := &mockTranscriber{}
	p, _, _ := newASRFixture(transcriber, [][]byte{[]byte("audio")})
	job := NewJob(1, ModalityVoice)

	_, err := p.StartRecording(context.Background(), job, media.Constraints{})
	require.NoError(t, err)

	_, err = p.StartRecording(context.Background(), job, media.Constraints{})
	assert.ErrorIs(t, err, ErrJobNotIdle)
}

func TestASRPipeline_PermissionDenied(t *testing.T) {
	transcriber := &mockTranscriber{}
	p, device, _ := newASRFixture(transcriber, nil)
	device.DenyPermission[media.KindMicrophone] = "denied by user"
	job := NewJob(1, ModalityVoice)

	_, err := p.StartRecording(context.Background(), job, media.Constraints{})
	assert.True(t, media.IsPermission(err))
	assert.Equal(t, StageIdle, job.Stage)
}
