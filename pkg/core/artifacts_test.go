package core

import "testing"

func TestNewScreenshotAttachment(t *testing.T) {
	data := []byte{0x89, 0x50, 0x4E, 0x47} // PNG header
	attachment := NewScreenshotAttachment("cycle-003-screenshot.png", data)

	if attachment.Name != AttachmentScreenshot {
		t.Errorf("Name = %s, want %s", attachment.Name, AttachmentScreenshot)
	}
	if attachment.ContentType != ContentTypePNG {
		t.Errorf("ContentType = %s, want %s", attachment.ContentType, ContentTypePNG)
	}
	if attachment.Path != "cycle-003-screenshot.png" {
		t.Errorf("Path = %s, want 'cycle-003-screenshot.png'", attachment.Path)
	}
	if len(attachment.Body) != 4 {
		t.Errorf("Body length = %d, want 4", len(attachment.Body))
	}
}

func TestNewHierarchyAttachment(t *testing.T) {
	attachment := NewHierarchyAttachment("cycle-003-hierarchy.xml", []byte("<hierarchy/>"))

	if attachment.Name != AttachmentHierarchy {
		t.Errorf("Name = %s, want %s", attachment.Name, AttachmentHierarchy)
	}
	if attachment.ContentType != ContentTypeXML {
		t.Errorf("ContentType = %s, want %s", attachment.ContentType, ContentTypeXML)
	}
}

func TestArtifactConfig_ShouldCapture(t *testing.T) {
	cfg := DefaultArtifactConfig()

	tests := []struct {
		kind OutcomeKind
		want bool
	}{
		{OutcomeAborted, true},
		{OutcomeLimitReached, true},
		{OutcomeCancelled, false},
		{OutcomeCompleted, false},
		{OutcomeSkippedNoData, false},
		{OutcomeExhausted, false},
	}
	for _, tt := range tests {
		if got := cfg.ShouldCapture(tt.kind); got != tt.want {
			t.Errorf("ShouldCapture(%s) = %v, want %v", tt.kind, got, tt.want)
		}
	}

	cfg.CaptureOnCancel = true
	if !cfg.ShouldCapture(OutcomeCancelled) {
		t.Error("CaptureOnCancel should enable capture on cancel")
	}
}
