package netutil

import (
	"context"
	"errors"
	"net"
	"net/url"
	"syscall"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("bad request"), false},
		{"reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, true},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("no route")}, true},
		{"timeout", timeoutErr{}, true},
		{"wrapped url", &url.Error{Op: "Post", URL: "https://api", Err: &net.OpError{Op: "dial", Err: errors.New("x")}}, true},
	}
	for _, tc := range cases {
		if got := ShouldRetry(tc.err); got != tc.want {
			t.Fatalf("%s: ShouldRetry = %v, want %v", tc.name, got, tc.want)
		}
	}
}
