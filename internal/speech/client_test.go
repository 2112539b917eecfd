package speech

import (
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/avatar-gateway/internal/conf"
	"github.com/tphakala/avatar-gateway/internal/errors"
)

func newTestClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()
	settings := &conf.SpeechSettings{Region: "eastus2"}
	client := NewClient(settings, "test-subscription-key")
	transport := httpmock.NewMockTransport()
	client.SetTransport(transport)
	return client, transport
}

func TestIssueToken(t *testing.T) {
	t.Parallel()

	client, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodPost,
		"https://eastus2.api.cognitive.microsoft.com/sts/v1.0/issueToken",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "test-subscription-key", req.Header.Get(subscriptionKeyHeader))
			return httpmock.NewStringResponse(http.StatusOK, "issued-token"), nil
		})

	token, err := client.IssueToken(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "issued-token", token)
}

func TestIssueTokenUpstreamStatusMirrored(t *testing.T) {
	t.Parallel()

	client, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodPost,
		"https://eastus2.api.cognitive.microsoft.com/sts/v1.0/issueToken",
		httpmock.NewStringResponder(http.StatusForbidden, "denied"))

	_, err := client.IssueToken(t.Context())
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}

func TestRelayTokenReturnsBodyVerbatim(t *testing.T) {
	t.Parallel()

	body := `{"Urls":["turn:relay.example.com"],"Username":"u","Password":"p"}`
	client, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodGet,
		"https://eastus2.tts.speech.microsoft.com/cognitiveservices/avatar/relay/token/v1",
		httpmock.NewStringResponder(http.StatusOK, body))

	got, err := client.RelayToken(t.Context())
	require.NoError(t, err)
	assert.JSONEq(t, body, string(got))
}

func TestEndpointOverrides(t *testing.T) {
	t.Parallel()

	settings := &conf.SpeechSettings{
		Region:        "eastus2",
		TokenEndpoint: "https://private.example.com/token",
		RelayEndpoint: "https://private.example.com/relay",
	}
	client := NewClient(settings, "key")
	transport := httpmock.NewMockTransport()
	client.SetTransport(transport)
	transport.RegisterResponder(http.MethodPost, "https://private.example.com/token",
		httpmock.NewStringResponder(http.StatusOK, "tok"))

	token, err := client.IssueToken(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
}

func TestHasKey(t *testing.T) {
	t.Parallel()

	assert.True(t, NewClient(&conf.SpeechSettings{}, "key").HasKey())
	assert.False(t, NewClient(&conf.SpeechSettings{}, "").HasKey())
}
