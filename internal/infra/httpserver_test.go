package infra

import (
	"net/http"
	"testing"
	"time"
)

func TestNewHTTPServerAppliesConfig(t *testing.T) {
	cfg := &Config{
		Port:             "9090",
		HTTPReadTimeout:  10 * time.Second,
		HTTPWriteTimeout: 20 * time.Second,
		HTTPIdleTimeout:  30 * time.Second,
	}
	server := NewHTTPServer(cfg, http.NewServeMux())

	if server.srv.Addr != ":9090" {
		t.Fatalf("addr = %q", server.srv.Addr)
	}
	if server.srv.ReadTimeout != 10*time.Second || server.srv.WriteTimeout != 20*time.Second {
		t.Fatalf("timeouts = %v/%v", server.srv.ReadTimeout, server.srv.WriteTimeout)
	}
	if server.srv.ReadHeaderTimeout != readHeaderTimeout {
		t.Fatalf("read header timeout = %v", server.srv.ReadHeaderTimeout)
	}
}
