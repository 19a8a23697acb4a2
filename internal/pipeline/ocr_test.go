package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/SAP-F-2025/attempt-engine/internal/errors"
	"github.com/SAP-F-2025/attempt-engine/internal/models"
	"github.com/SAP-F-2025/attempt-engine/internal/utils"
)

type mockExtractor struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (m *mockExtractor) ExtractText(context.Context, *models.ImageFile) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.text, m.err
}

type countingUploader struct {
	mu    sync.Mutex
	calls int
}

func (u *countingUploader) Upload(context.Context, *models.ImageFile) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	return "upload-1", nil
}

func validImage() *models.ImageFile {
	return &models.ImageFile{Name: "answer.jpg", MIME: "image/jpeg", Data: []byte("jpegdata")}
}

func newOCRFixture(extractor *mockExtractor) (*OCRPipeline, *countingUploader) {
	uploader := &countingUploader{}
	p := NewOCRPipeline(extractor, OCRConfig{MaxSizeBytes: 1 << 20}, utils.NewDiscardLogger()).
		WithUploader(uploader)
	return p, uploader
}

func TestOCRPipeline_ValidationFailsFast(t *testing.T) {
	tests := []struct {
		name string
		file *models.ImageFile
	}{
		{
			name: "nil file",
			file: nil,
		},
		{
			name: "empty data",
			file: &models.ImageFile{Name: "a.jpg", MIME: "image/jpeg"},
		},
		{
			name: "unsupported type",
			file: &models.ImageFile{Name: "a.gif", MIME: "image/gif", Data: []byte("gif")},
		},
		{
			name: "oversized image",
			file: &models.ImageFile{Name: "a.jpg", MIME: "image/jpeg", Data: make([]byte, 2<<20)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor := &mockExtractor{}
			p, uploader := newOCRFixture(extractor)
			job := NewJob(1, ModalityImage)

			err := p.Process(context.Background(), job, tt.file)

			var verrs apperrors.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, StageError, job.Stage)
			// A rejected image never reaches the upload stage
			assert.Equal(t, 0, uploader.calls)
			assert.Equal(t, 0, extractor.calls)
		})
	}
}

func TestOCRPipeline_SuccessfulRun(t *testing.T) {
	extractor := &mockExtractor{text: "extracted text"}
	p, uploader := newOCRFixture(extractor)
	job := NewJob(1, ModalityImage)

	require.NoError(t, p.Process(context.Background(), job, validImage()))

	assert.Equal(t, StageComplete, job.Stage)
	assert.True(t, job.Completed)
	assert.Equal(t, "extracted text", job.Text)
	assert.Equal(t, "upload-1", job.UploadID)
	assert.Equal(t, 1, uploader.calls)
}

func TestOCRPipeline_EmptyExtractionStillCompletes(t *testing.T) {
	extractor := &mockExtractor{text: ""}
	p, _ := newOCRFixture(extractor)
	job := NewJob(1, ModalityImage)

	require.NoError(t, p.Process(context.Background(), job, validImage()))
	assert.True(t, job.Completed)
	assert.Empty(t, job.Text)
}

func TestOCRPipeline_RetrySkipsUpload(t *testing.T) {
	extractor := &mockExtractor{err: errors.New("ocr backend down")}
	p, uploader := newOCRFixture(extractor)
	job := NewJob(1, ModalityImage)

	err := p.Process(context.Background(), job, validImage())
	var perr *PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StageProcessing, perr.Stage)
	assert.Equal(t, StageError, job.Stage)

	extractor.err = nil
	extractor.text = "hello"
	require.NoError(t, p.Retry(context.Background(), job))

	assert.Equal(t, "hello", job.Text)
	assert.True(t, job.Completed)
	// The image was uploaded exactly once across both runs
	assert.Equal(t, 1, uploader.calls)
	assert.Equal(t, 2, extractor.calls)
}

func TestOCRPipeline_RetryGuards(t *testing.T) {
	extractor := &mockExtractor{text: "ok"}
	p, _ := newOCRFixture(extractor)

	t.Run("idle job is not retryable", func(t *testing.T) {
		job := NewJob(1, ModalityImage)
		assert.ErrorIs(t, p.Retry(context.Background(), job), ErrNotRetryable)
	})

	t.Run("completed job is not retryable", func(t *testing.T) {
		job := NewJob(1, ModalityImage)
		require.NoError(t, p.Process(context.Background(), job, validImage()))
		assert.ErrorIs(t, p.Retry(context.Background(), job), ErrNotRetryable)
	})

	t.Run("validation failure is not retryable", func(t *testing.T) {
		job := NewJob(1, ModalityImage)
		require.Error(t, p.Process(context.Background(), job, nil))
		// No upload id was ever issued, so there is nothing to resume
		assert.ErrorIs(t, p.Retry(context.Background(), job), ErrNotRetryable)
	})
}

func TestOCRPipeline_ProcessRequiresIdleJob(t *testing.T) {
	extractor := &mockExtractor{text: "ok"}
	p, _ := newOCRFixture(extractor)
	job := NewJob(1, ModalityImage)

	require.NoError(t, p.Process(context.Background(), job, validImage()))
	assert.ErrorIs(t, p.Process(context.Background(), job, validImage()), ErrJobNotIdle)
}

func TestOCRPipeline_ReplaceRestartsFromValidation(t *testing.T) {
	extractor := &mockExtractor{text: "first"}
	p, uploader := newOCRFixture(extractor)
	job := NewJob(1, ModalityImage)

	require.NoError(t, p.Process(context.Background(), job, validImage()))
	require.Equal(t, 1, uploader.calls)

	p.Replace(job)
	assert.Equal(t, StageIdle, job.Stage)
	assert.Empty(t, job.UploadID)
	assert.Nil(t, job.Image)

	extractor.text = "second"
	require.NoError(t, p.Process(context.Background(), job, validImage()))
	assert.Equal(t, "second", job.Text)
	// The replacement image went through its own upload
	assert.Equal(t, 2, uploader.calls)
}
