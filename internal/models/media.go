package models

// ImageFile is a still image selected by the student or captured from a
// camera stream.
type ImageFile struct {
	Name string `json:"name"`
	MIME string `json:"mime"`
	Data []byte `json:"-"`
}

func (f *ImageFile) Size() int64 {
	if f == nil {
		return 0
	}
	return int64(len(f.Data))
}

// AudioBlob is one recording, flushed from buffered chunks on stop.
type AudioBlob struct {
	MIME string `json:"mime"`
	Data []byte `json:"-"`
}

func (b *AudioBlob) Size() int64 {
	if b == nil {
		return 0
	}
	return int64(len(b.Data))
}
