package xerrors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorString(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "plain",
			err:  E(KindEmptyQuilt, "walrus.StoreQuilt", ""),
			want: []string{"walrus.StoreQuilt", "empty quilt input"},
		},
		{
			name: "with ref",
			err:  E(KindInvalidIdentifier, "walrus.ParseBlobID", "abc="),
			want: []string{"invalid identifier", "abc="},
		},
		{
			name: "http with excerpt",
			err:  HTTP("walrus.ReadBlob", 500, "boom"),
			want: []string{"status 500", "boom"},
		},
		{
			name: "wrapped",
			err:  Wrap(KindTransport, "walrus.ReadBlob", "", errors.New("connection refused")),
			want: []string{"transport error", "connection refused"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := tc.err.Error()
			for _, want := range tc.want {
				if !strings.Contains(msg, want) {
					t.Fatalf("expected %q in %q", want, msg)
				}
			}
		})
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(KindInternal, "op", "", nil); err != nil {
		t.Fatalf("wrapping nil must return nil, got %v", err)
	}
}

func TestWrapPreservesChain(t *testing.T) {
	inner := errors.New("root cause")
	err := Wrap(KindTransport, "walrus.ReadBlob", "", fmt.Errorf("dial: %w", inner))
	if !errors.Is(err, inner) {
		t.Fatal("wrapped chain must reach the root cause")
	}
}

func TestHTTPMapsNotFound(t *testing.T) {
	if KindOf(HTTP("op", 404, "")) != KindNotFound {
		t.Fatal("404 must map to KindNotFound")
	}
	if KindOf(HTTP("op", 500, "")) != KindHTTP {
		t.Fatal("500 must map to KindHTTP")
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindInternal},
		{"direct", E(KindEmptyQuilt, "op", ""), KindEmptyQuilt},
		{"wrapped once more", fmt.Errorf("outer: %w", E(KindNotFound, "op", "")), KindNotFound},
		{"context canceled", context.Canceled, KindTransport},
		{"deadline exceeded", fmt.Errorf("call: %w", context.DeadlineExceeded), KindTransport},
		{"foreign", errors.New("plain"), KindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("expected kind %v, got %v", tc.want, got)
			}
		})
	}
}

func TestStatusOf(t *testing.T) {
	if got := StatusOf(HTTP("op", 502, "")); got != 502 {
		t.Fatalf("expected 502, got %d", got)
	}
	if got := StatusOf(errors.New("plain")); got != 0 {
		t.Fatalf("expected 0 for foreign error, got %d", got)
	}
}
