package httputil

import (
	"context"
	"errors"
	"net"
	"testing"
)

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		code      int
		wantErr   error
		retryable bool
	}{
		{200, nil, false},
		{204, nil, false},
		{404, ErrNotFound, false},
		{429, ErrNetwork, true},
		{500, ErrNetwork, true},
		{503, ErrNetwork, true},
		{403, ErrNetwork, false},
	}

	for _, tt := range tests {
		err := CheckStatus(tt.code)
		if tt.wantErr == nil {
			if err != nil {
				t.Errorf("CheckStatus(%d) = %v, want nil", tt.code, err)
			}
			continue
		}
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("CheckStatus(%d) = %v, want %v", tt.code, err, tt.wantErr)
		}
		if IsRetryable(err) != tt.retryable {
			t.Errorf("CheckStatus(%d) retryable = %v, want %v", tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

type fakeResolver map[string][]string

func (f fakeResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	ips, ok := f[host]
	if !ok {
		return nil, errors.New("no such host")
	}
	var out []net.IPAddr
	for _, s := range ips {
		out = append(out, net.IPAddr{IP: net.ParseIP(s)})
	}
	return out, nil
}

func TestIsSafeURL(t *testing.T) {
	r := fakeResolver{
		"images.example.com": {"93.184.216.34"},
		"internal.example":   {"10.0.0.7"},
		"mixed.example":      {"93.184.216.34", "127.0.0.1"},
	}

	tests := []struct {
		url  string
		safe bool
	}{
		{"https://images.example.com/cat.png", true},
		{"http://93.184.216.34/cat.png", true},
		{"ftp://images.example.com/cat.png", false},
		{"file:///etc/passwd", false},
		{"http://127.0.0.1/admin", false},
		{"http://169.254.169.254/latest/meta-data", false},
		{"https://internal.example/x.png", false},
		{"https://mixed.example/x.png", false},
		{"https://unknown.example/x.png", false},
		{"not a url", false},
	}

	for _, tt := range tests {
		err := IsSafeURL(context.Background(), r, tt.url)
		if (err == nil) != tt.safe {
			t.Errorf("IsSafeURL(%q) = %v, want safe=%v", tt.url, err, tt.safe)
		}
	}
}

func TestGuardDial(t *testing.T) {
	tests := []struct {
		address string
		ok      bool
	}{
		{"93.184.216.34:443", true},
		{"[2606:2800:220:1:248:1893:25c8:1946]:443", true},
		{"127.0.0.1:8080", false},
		{"10.1.2.3:80", false},
		{"169.254.169.254:80", false},
		{"[::1]:80", false},
		{"0.0.0.0:80", false},
		{"no-port", false},
	}
	for _, tt := range tests {
		err := GuardDial("tcp", tt.address, nil)
		if (err == nil) != tt.ok {
			t.Errorf("GuardDial(%q) = %v, want ok=%v", tt.address, err, tt.ok)
		}
	}
}
