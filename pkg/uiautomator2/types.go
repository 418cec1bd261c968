// Package uiautomator2 is an HTTP client for the on-device UIAutomator2
// server. Only the endpoints the runner drives are covered.
package uiautomator2

import "encoding/json"

// envelope wraps every server response.
type envelope struct {
	SessionID string          `json:"sessionId"`
	Value     json.RawMessage `json:"value"`
}

// serverErrorValue is the value of a failed response.
type serverErrorValue struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Capabilities for session creation.
type Capabilities struct {
	PlatformName string `json:"platformName,omitempty"`
	DeviceName   string `json:"deviceName,omitempty"`
}

type sessionRequest struct {
	Capabilities Capabilities `json:"capabilities"`
}

type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type clickRequest struct {
	Offset   point `json:"offset"`
	Duration int   `json:"duration,omitempty"` // milliseconds, long click only
}

type keyCodeRequest struct {
	KeyCode int `json:"keycode"`
}

type clipboardRequest struct {
	Content     string `json:"content"` // base64
	ContentType string `json:"contentType"`
}

type settingsRequest struct {
	Settings map[string]interface{} `json:"settings"`
}

// DeviceInfo from the device info endpoint.
type DeviceInfo struct {
	Manufacturer    string `json:"manufacturer"`
	Model           string `json:"model"`
	Brand           string `json:"brand"`
	APIVersion      string `json:"apiVersion"`
	PlatformVersion string `json:"platformVersion"`
	RealDisplaySize string `json:"realDisplaySize"` // "1080x2340"
	DisplayDensity  int    `json:"displayDensity"`
}

