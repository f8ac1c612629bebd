package version

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOracle_ResolveUsesFirstEntry(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`["14.24.1","14.23.1","lolpatch_3.7"]`))
	}))
	defer srv.Close()

	o := New(srv.Client(), srv.URL, "", zap.NewNop())
	require.Equal(t, "14.24.1", o.Resolve(context.Background()))
	require.Equal(t, "14.24.1", o.CurrentVersion())
}

func TestOracle_FallbackOnFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"bad json", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{`)) }},
		{"empty list", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`[]`)) }},
		{"garbage version", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`["latest"]`)) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			o := New(srv.Client(), srv.URL, "14.20.3", zap.NewNop())
			require.Equal(t, "14.20.3", o.Resolve(context.Background()))
			require.True(t, o.IsCurrent("14.20.600.1"))
		})
	}
}

func TestOracle_TransportErrorFallsBack(t *testing.T) {
	t.Parallel()

	o := New(doerFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: no route to host")
	}), "http://versions.invalid", "", zap.NewNop())

	require.Equal(t, DefaultFallback, o.Resolve(context.Background()))
}

func TestOracle_IsCurrent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`["14.24.1"]`))
	}))
	defer srv.Close()

	o := New(srv.Client(), srv.URL, "", zap.NewNop())
	o.Resolve(context.Background())

	require.True(t, o.IsCurrent("14.24.636.9802"))
	require.True(t, o.IsCurrent("14.24"))
	require.False(t, o.IsCurrent("14.23.1.500"))
	require.False(t, o.IsCurrent("15.24.1"))
	require.False(t, o.IsCurrent("14.2.1"))
	require.False(t, o.IsCurrent("14"))
	require.False(t, o.IsCurrent(""))
	require.False(t, o.IsCurrent("14.x.1"))
}

func TestOracle_FailOpenBeforeResolve(t *testing.T) {
	t.Parallel()

	o := New(nil, "", "", zap.NewNop())
	require.Empty(t, o.CurrentVersion())
	require.True(t, o.IsCurrent("13.1.1"))
	require.True(t, o.IsCurrent("anything"))
}

func TestMajorMinor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"14.24.636.9802", "14.24", true},
		{"14.24", "14.24", true},
		{" 14.3.1 ", "14.3", true},
		{"14", "", false},
		{"a.b", "", false},
		{"", "", false},
		{"-1.2", "", false},
	}
	for _, tc := range tests {
		got, ok := MajorMinor(tc.in)
		require.Equal(t, tc.ok, ok, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}

// --- fakes ---

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }
