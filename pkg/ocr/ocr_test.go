package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	return NewHTTPClient(server.URL, WithHTTPClient(server.Client())), server
}

func TestExtractText(t *testing.T) {
	client, server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var req recognizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.Images) != 1 {
			t.Fatalf("expected one image, got %d", len(req.Images))
		}
		raw, _ := base64.StdEncoding.DecodeString(req.Images[0])
		if string(raw) != "png-bytes" {
			t.Errorf("unexpected image payload %q", raw)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "000",
			"results": [][]map[string]interface{}{{
				{"text": " 粤A12345 ", "confidence": 0.99},
				{"text": "", "confidence": 0.99},
				{"text": "噪点", "confidence": 0.2},
			}},
		})
	})
	defer server.Close()
	client.minConfidence = 0.5

	text, err := client.ExtractText(context.Background(), []byte("png-bytes"), "png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "粤A12345" {
		t.Errorf("expected 粤A12345, got %q", text)
	}
}

func TestExtractTextJoinsLines(t *testing.T) {
	client, server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": [][]map[string]interface{}{{
				{"text": "当场处罚", "confidence": 0.9},
				{"text": "打印预览", "confidence": 0.9},
			}},
		})
	})
	defer server.Close()

	text, err := client.ExtractText(context.Background(), []byte("x"), "png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "当场处罚\n打印预览" {
		t.Errorf("unexpected text %q", text)
	}
}

func TestExtractTextServiceError(t *testing.T) {
	client, server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "101", "msg": "model not loaded"})
	})
	defer server.Close()

	if _, err := client.ExtractText(context.Background(), []byte("x"), "png"); err == nil {
		t.Fatal("expected error for non-zero status")
	}
}

func TestExtractTextHTTPError(t *testing.T) {
	client, server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	defer server.Close()

	if _, err := client.ExtractText(context.Background(), []byte("x"), "png"); err == nil {
		t.Fatal("expected error for 500")
	}
}

func TestExtractTextEmptyImage(t *testing.T) {
	client := NewHTTPClient("http://127.0.0.1:1")
	if _, err := client.ExtractText(context.Background(), nil, "png"); err == nil {
		t.Fatal("expected error for empty image")
	}
}

func TestWithTimeout(t *testing.T) {
	client := NewHTTPClient("http://example.invalid", WithTimeout(3*time.Second), WithMinConfidence(0.4))
	if client.http.Timeout != 3*time.Second {
		t.Errorf("expected 3s timeout, got %v", client.http.Timeout)
	}
	if client.minConfidence != 0.4 {
		t.Errorf("expected min confidence 0.4, got %v", client.minConfidence)
	}
}
