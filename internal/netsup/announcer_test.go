package netsup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnouncer_Announce(t *testing.T) {
	tests := []struct {
		name        string
		host        string
		failBegin   bool
		failService bool
		want        bool
		wantHost    string
		wantDiag    string
	}{
		{name: "publishes", host: "porch", want: true, wantHost: "porch", wantDiag: "published http host name: porch"},
		{name: "default host", host: "", want: true, wantHost: "mqtt-client", wantDiag: "defaulting to \"mqtt-client\""},
		{name: "responder failure", host: "porch", failBegin: true, wantHost: "porch", wantDiag: "Error setting up mDNS responder!"},
		{name: "service failure", host: "porch", failService: true, wantHost: "porch", wantDiag: "Error publishing http"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDiscovery{failBegin: tt.failBegin, failService: tt.failService}
			diag := &diagLog{}
			a, err := NewAnnouncer(AnnouncerConfig{Service: "http", Port: 8080}, d, diag, nil)
			require.NoError(t, err)

			got := a.Announce(tt.host)

			assert.Equal(t, tt.want, got)
			assert.Equal(t, []string{tt.wantHost}, d.hosts)
			assert.Contains(t, diag.String(), tt.wantDiag)
			assert.Equal(t, 1, a.announcements())
		})
	}
}

func TestAnnouncer_DefaultsProtocol(t *testing.T) {
	d := &fakeDiscovery{}
	a, err := NewAnnouncer(AnnouncerConfig{Service: "http", Port: 80}, d, nil, nil)
	require.NoError(t, err)

	a.Announce("node")

	assert.Equal(t, []string{"http/tcp:80"}, d.services)
}

func TestNewAnnouncer_RequiresDiscovery(t *testing.T) {
	_, err := NewAnnouncer(AnnouncerConfig{}, nil, nil, nil)
	require.ErrorIs(t, err, ErrMissingDependency)
}
