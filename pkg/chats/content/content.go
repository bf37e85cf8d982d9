// Package content defines multi-modal content parts for conversation turns.
package content

// Kind is the variant tag of a content part.
type Kind string

const (
	KindText      Kind = "text"
	KindImage     Kind = "image"
	KindVideoFile Kind = "video_file"
	KindAudioFile Kind = "audio_file"
)

// Part is a piece of content within a turn.
type Part interface {
	PartKind() Kind
}

// Text is a plain text content part.
type Text struct {
	Text string
}

func (t Text) PartKind() Kind { return KindText }

// Image is an image content part embedded as a data URI
// ("data:<mime>;base64,<payload>").
type Image struct {
	URL string
}

func (i Image) PartKind() Kind { return KindImage }

// VideoFile references a local video file that providers upload on demand.
type VideoFile struct {
	Path string
}

func (v VideoFile) PartKind() Kind { return KindVideoFile }

// AudioFile references a local audio file that providers upload on demand.
type AudioFile struct {
	Path string
}

func (a AudioFile) PartKind() Kind { return KindAudioFile }
