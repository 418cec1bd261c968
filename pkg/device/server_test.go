package device

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func installedRunner() *fakeRunner {
	return &fakeRunner{answers: map[string]string{
		"-s SER123 shell pm list packages " + UIAutomator2Server: "package:" + UIAutomator2Server + "\n",
		"-s SER123 shell pm list packages " + UIAutomator2Test:   "package:" + UIAutomator2Test + "\n",
	}}
}

func TestStartUIAutomator2_TCP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/status" {
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()
	_, portStr, _ := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	port, _ := strconv.Atoi(portStr)

	f := installedRunner()
	d := newFakeDevice(f)
	cfg := ServerConfig{Transport: TransportTCP, LocalPort: port, Timeout: time.Second, Poll: 10 * time.Millisecond}
	if err := d.StartUIAutomator2(context.Background(), cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.LocalPort() != port {
		t.Errorf("LocalPort() = %d, want %d", d.LocalPort(), port)
	}

	var forwarded, instrumented bool
	for _, c := range f.calls {
		if c == "-s SER123 forward tcp:"+portStr+" tcp:6790" {
			forwarded = true
		}
		if strings.Contains(c, "am instrument") {
			instrumented = true
		}
	}
	if !forwarded || !instrumented {
		t.Errorf("expected forward and instrument, got %v", f.calls)
	}

	d.StopUIAutomator2(context.Background())
	if d.LocalPort() != 0 {
		t.Error("stop should clear the forward")
	}
}

func TestStartUIAutomator2_NotInstalled(t *testing.T) {
	f := &fakeRunner{}
	d := newFakeDevice(f)
	err := d.StartUIAutomator2(context.Background(), ServerConfig{Transport: TransportTCP})
	if err == nil || !strings.Contains(err.Error(), UIAutomator2Server) {
		t.Fatalf("expected not-installed error, got %v", err)
	}
	for _, c := range f.calls {
		if strings.Contains(c, "forward") {
			t.Errorf("must not forward when the server is missing: %v", f.calls)
		}
	}
}

func TestStartUIAutomator2_NeverReady(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	d := newFakeDevice(installedRunner())
	cfg := ServerConfig{Transport: TransportTCP, LocalPort: port, Timeout: 50 * time.Millisecond, Poll: 10 * time.Millisecond}
	if err := d.StartUIAutomator2(context.Background(), cfg); err == nil {
		t.Fatal("expected readiness timeout")
	}
	if d.LocalPort() != 0 {
		t.Error("failed start should remove the forward")
	}
}

func TestServerConfigDefaults(t *testing.T) {
	cfg := ServerConfig{}.withDefaults()
	if cfg.DevicePort != defaultDevicePort || cfg.Timeout != 30*time.Second || cfg.Transport == "" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestFindFreePort(t *testing.T) {
	port, err := findFreePort(tcpPortFirst, tcpPortLast)
	if err != nil {
		t.Skipf("no free port: %v", err)
	}
	if port < tcpPortFirst || port > tcpPortLast {
		t.Errorf("port %d outside range", port)
	}
}

func TestProbeStatus(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ok.Close()
	busy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer busy.Close()

	client := &http.Client{Timeout: 500 * time.Millisecond}
	ctx := context.Background()
	if !probeStatus(ctx, client, ok.URL+"/status") {
		t.Error("expected healthy server")
	}
	if probeStatus(ctx, client, busy.URL+"/status") {
		t.Error("expected false for 503")
	}
	if probeStatus(ctx, client, "http://127.0.0.1:1/status") {
		t.Error("expected false for unreachable server")
	}
}
