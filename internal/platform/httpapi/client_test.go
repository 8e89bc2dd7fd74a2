package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"inapp-messaging/internal/campaign"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		PingURL:        srv.URL + "/ping",
		PermissionURL:  srv.URL + "/permission",
		ImpressionURL:  srv.URL + "/impression",
		SubscriptionID: "sub-1",
		DeviceID:       "device-1",
		AppVersion:     "1.2.3",
		HTTPClient:     srv.Client(),
		Identity: func() []campaign.UserIdentifier {
			return []campaign.UserIdentifier{{Type: campaign.UserIdentifierUserID, Value: "alice"}}
		},
	})
}

func TestPingDecodesCampaigns(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ping", r.URL.Path)
		require.Equal(t, "sub-1", r.Header.Get("Subscription-Id"))
		require.Equal(t, "device-1", r.Header.Get("device_id"))

		var req pingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "1.2.3", req.AppVersion)
		require.Len(t, req.UserIdentifiers, 1)

		_, _ = w.Write([]byte(`{
			"data": [{"campaignData": {"campaignId": "c1", "maxImpressions": 2, "type": 1}}],
			"nextPingMillis": 60000,
			"currentPingMillis": 1700000000000
		}`))
	})

	resp, err := client.Ping(context.Background(), []campaign.UserIdentifier{{Type: campaign.UserIdentifierUserID, Value: "alice"}})
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	require.Equal(t, "c1", resp.Data[0].CampaignID)
	require.Equal(t, int64(60000), resp.NextPingMillis)
	require.Equal(t, int64(1700000000000), resp.CurrentPingMillis)
}

func TestPingErrorKinds(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "throttled", status: http.StatusTooManyRequests, want: campaign.ErrTooManyRequests},
		{name: "server error", status: http.StatusBadGateway, body: "upstream down", want: campaign.ErrRequest},
		{name: "bad json", status: http.StatusOK, body: "{", want: campaign.ErrJSONDecoding},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := client.Ping(context.Background(), nil)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestMissingConfigurationIsFatal(t *testing.T) {
	client := NewClient(Config{SubscriptionID: "sub-1"})
	_, err := client.Ping(context.Background(), nil)
	require.ErrorIs(t, err, campaign.ErrInvalidConfiguration)

	client = NewClient(Config{PingURL: "http://localhost/ping"})
	_, err = client.Ping(context.Background(), nil)
	require.ErrorIs(t, err, campaign.ErrInvalidConfiguration)
}

func TestUnreachableBackendIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(Config{PingURL: url, SubscriptionID: "sub-1"})
	_, err := client.Ping(context.Background(), nil)
	require.ErrorIs(t, err, campaign.ErrRequest)
}

func TestCheckPermission(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req permissionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "c1", req.CampaignID)
		require.Equal(t, "alice", req.UserIdentifiers[0].Value)
		_, _ = w.Write([]byte(`{"display": true, "performPing": true}`))
	})

	perm, err := client.CheckPermission(context.Background(), campaign.CampaignData{CampaignID: "c1"})
	require.NoError(t, err)
	require.Equal(t, campaign.DisplayPermission{Display: true, PerformPing: true}, perm)
}

func TestPingImpression(t *testing.T) {
	var got impressionRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/impression", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})

	impressions := []campaign.Impression{
		{Type: campaign.ImpressionTypeImpression, Timestamp: 1},
		{Type: campaign.ImpressionTypeActionOne, Timestamp: 2},
	}
	err := client.PingImpression(context.Background(), impressions, campaign.CampaignData{CampaignID: "c1", IsTest: true})
	require.NoError(t, err)
	require.Equal(t, "c1", got.CampaignID)
	require.True(t, got.IsTest)
	require.Equal(t, impressions, got.Impressions)
}

func TestFetch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/img.png" {
			_, _ = w.Write([]byte("png-bytes"))
			return
		}
		http.NotFound(w, r)
	})
	base := client.cfg.PingURL[:len(client.cfg.PingURL)-len("/ping")]

	data, err := client.Fetch(context.Background(), base+"/img.png")
	require.NoError(t, err)
	require.Equal(t, []byte("png-bytes"), data)

	_, err = client.Fetch(context.Background(), base+"/missing.png")
	require.ErrorIs(t, err, campaign.ErrResourceFetch)
}
