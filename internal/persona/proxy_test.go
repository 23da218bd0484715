package persona

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteProxyForwardsPulse(t *testing.T) {
	var got remotePulseRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/dispatch", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(remotePulseResponse{Replies: []string{"hello from home"}})
	}))
	defer srv.Close()

	proxy := NewRemoteProxy("kai", srv.URL, nil)
	replies := proxy.RunPulse(context.Background(), []string{"kai", "mira"}, true)

	assert.Equal(t, []string{"hello from home"}, replies)
	assert.Equal(t, "kai", got.PersonaID)
	assert.Equal(t, []string{"kai", "mira"}, got.Occupants)
	assert.True(t, got.UserOnline)
}

func TestRemoteProxyFailuresAreSilent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	proxy := NewRemoteProxy("kai", srv.URL, nil)
	assert.Nil(t, proxy.RunPulse(context.Background(), nil, false))

	// Unreachable home runtime: same silence.
	srv.Close()
	assert.Nil(t, proxy.RunPulse(context.Background(), nil, false))
}
