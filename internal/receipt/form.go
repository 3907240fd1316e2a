// Package receipt turns a photographed receipt into prefilled expense fields.
//
// A Form holds the in-progress add-expense draft together with an optional
// captured image. A Recognizer sends that image to an Extractor, parses the
// structured reply and merges the usable fields into the Form. Only one
// recognition may be in flight per Form.
package receipt

import (
	"errors"
	"strings"
	"sync"

	"spendly/internal/core"
)

// Phase is the recognition state of a Form.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseImageCaptured Phase = "image_captured"
	PhaseRecognizing   Phase = "recognizing"
)

// DefaultMaxImageBytes bounds captured images when no limit is configured.
const DefaultMaxImageBytes = 8 << 20

var (
	ErrNoImage       = errors.New("no receipt image captured")
	ErrBusy          = errors.New("recognition already in progress")
	ErrDiscarded     = errors.New("form discarded")
	ErrImageTooLarge = errors.New("receipt image too large")
	ErrNotAnImage    = errors.New("receipt must be an image")
	ErrEmptyImage    = errors.New("receipt image is empty")
)

// Image is a captured receipt photo.
type Image struct {
	Data     []byte
	MIMEType string
}

// Fields are the user-editable values of the add-expense form. Amount is kept
// as entered so partially typed input survives until submit.
type Fields struct {
	Amount      string
	Category    core.Category
	Description string
}

// DefaultFields is the state of a freshly opened form.
func DefaultFields() Fields {
	return Fields{Category: core.CategoryFood}
}

// Snapshot is a read-only copy of a Form.
type Snapshot struct {
	Fields   Fields
	Phase    Phase
	HasImage bool
	MIMEType string
	Size     int
	Message  string
}

// Form is one add-expense draft. All methods are safe for concurrent use.
type Form struct {
	mu        sync.Mutex
	fields    Fields
	image     *Image
	phase     Phase
	message   string
	discarded bool
	// submitting freezes the form while its expense is written.
	submitting bool
	maxBytes   int
	gen       uint64
}

// NewForm returns an idle form with default fields. maxBytes <= 0 selects
// DefaultMaxImageBytes.
func NewForm(maxBytes int) *Form {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &Form{fields: DefaultFields(), phase: PhaseIdle, maxBytes: maxBytes}
}

func (f *Form) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot()
}

func (f *Form) snapshot() Snapshot {
	s := Snapshot{Fields: f.fields, Phase: f.phase, Message: f.message}
	if f.image != nil {
		s.HasImage = true
		s.MIMEType = f.image.MIMEType
		s.Size = len(f.image.Data)
	}
	return s
}

// CaptureImage stores img, replacing any previous capture.
func (f *Form) CaptureImage(img Image) error {
	if len(img.Data) == 0 {
		return ErrEmptyImage
	}
	if !strings.HasPrefix(strings.ToLower(img.MIMEType), "image/") {
		return ErrNotAnImage
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkMutable(); err != nil {
		return err
	}
	if len(img.Data) > f.maxBytes {
		return ErrImageTooLarge
	}
	data := make([]byte, len(img.Data))
	copy(data, img.Data)
	f.image = &Image{Data: data, MIMEType: img.MIMEType}
	f.phase = PhaseImageCaptured
	f.message = ""
	return nil
}

func (f *Form) ClearImage() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkMutable(); err != nil {
		return err
	}
	f.image = nil
	f.phase = PhaseIdle
	f.message = ""
	return nil
}

// SetFields replaces the user-editable values.
func (f *Form) SetFields(fields Fields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkMutable(); err != nil {
		return err
	}
	f.fields = fields
	return nil
}

// Discard ends the form. A recognition still in flight has its result
// dropped when it returns.
func (f *Form) Discard() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discarded = true
	f.submitting = false
	f.image = nil
	f.phase = PhaseIdle
	f.gen++
}

func (f *Form) Discarded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.discarded
}

func (f *Form) checkMutable() error {
	if f.discarded {
		return ErrDiscarded
	}
	if f.phase == PhaseRecognizing || f.submitting {
		return ErrBusy
	}
	return nil
}

// BeginSubmit freezes the form and returns what will be written. Edits and
// recognitions fail with ErrBusy until EndSubmit or Discard.
func (f *Form) BeginSubmit() (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkMutable(); err != nil {
		return Snapshot{}, err
	}
	f.submitting = true
	return f.snapshot(), nil
}

// EndSubmit reopens the form after a submission that wrote nothing.
func (f *Form) EndSubmit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
}

// begin moves the form into PhaseRecognizing and returns the image to send
// along with a generation token for finish.
func (f *Form) begin() (Image, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.discarded {
		return Image{}, 0, ErrDiscarded
	}
	if f.phase == PhaseRecognizing || f.submitting {
		return Image{}, 0, ErrBusy
	}
	if f.image == nil {
		return Image{}, 0, ErrNoImage
	}
	f.phase = PhaseRecognizing
	f.message = ""
	f.gen++
	return *f.image, f.gen, nil
}

// fail returns the form to PhaseImageCaptured with msg and leaves the fields
// untouched.
func (f *Form) fail(gen uint64, msg string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.discarded || gen != f.gen {
		return false
	}
	f.phase = PhaseImageCaptured
	f.message = msg
	return true
}

// complete merges ext into the fields and applies the image policy.
func (f *Form) complete(gen uint64, ext Extraction, clearImage bool) (Applied, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.discarded || gen != f.gen {
		return Applied{}, false
	}
	var applied Applied
	f.fields, applied = Merge(f.fields, ext)
	if clearImage {
		f.image = nil
		f.phase = PhaseIdle
	} else {
		f.phase = PhaseImageCaptured
	}
	f.message = ""
	return applied, true
}
