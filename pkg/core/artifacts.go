package core

// Attachment is a debug artifact captured when a cycle ends badly.
type Attachment struct {
	Name        string `json:"name"`        // screenshot or hierarchy
	ContentType string `json:"contentType"` // image/png, application/xml
	Path        string `json:"path"`        // relative to the run's report directory
	Body        []byte `json:"-"`
}

// Common attachment names
const (
	AttachmentScreenshot = "screenshot"
	AttachmentHierarchy  = "hierarchy"
)

// Common content types
const (
	ContentTypePNG = "image/png"
	ContentTypeXML = "application/xml"
)

// NewScreenshotAttachment creates a screenshot attachment
func NewScreenshotAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentScreenshot,
		ContentType: ContentTypePNG,
		Path:        path,
		Body:        data,
	}
}

// NewHierarchyAttachment creates a page-source attachment
func NewHierarchyAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentHierarchy,
		ContentType: ContentTypeXML,
		Path:        path,
		Body:        data,
	}
}

// ArtifactConfig controls when and what artifacts are captured
type ArtifactConfig struct {
	// When to capture
	CaptureOnAbort  bool `yaml:"captureOnAbort" json:"captureOnAbort"`   // Default: true
	CaptureOnLimit  bool `yaml:"captureOnLimit" json:"captureOnLimit"`   // Default: true
	CaptureOnCancel bool `yaml:"captureOnCancel" json:"captureOnCancel"` // Default: false

	// What to capture
	Screenshot  bool `yaml:"screenshot" json:"screenshot"`   // Default: true
	UIHierarchy bool `yaml:"uiHierarchy" json:"uiHierarchy"` // Default: true
}

// DefaultArtifactConfig returns the default capture policy
func DefaultArtifactConfig() ArtifactConfig {
	return ArtifactConfig{
		CaptureOnAbort:  true,
		CaptureOnLimit:  true,
		CaptureOnCancel: false,
		Screenshot:      true,
		UIHierarchy:     true,
	}
}

// ShouldCapture returns true if artifacts should be captured for a cycle
// that ended with kind
func (c ArtifactConfig) ShouldCapture(kind OutcomeKind) bool {
	switch kind {
	case OutcomeAborted:
		return c.CaptureOnAbort
	case OutcomeLimitReached:
		return c.CaptureOnLimit
	case OutcomeCancelled:
		return c.CaptureOnCancel
	default:
		return false
	}
}
