package campaign

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCampaignContexts(t *testing.T) {
	cases := map[string][]string{
		"[ctx1] Title":          {"ctx1"},
		"[ctx1] [ctx2] Title":   {"ctx1", "ctx2"},
		"Title [ctx1]":          {"ctx1"},
		"Title":                 nil,
		"[] Title [ ]":          nil,
		"[[nested]] Title":      {"nested"},
		"[ctx1 Title":           nil,
		"[ctx1][ctx2]Title[c3]": {"ctx1", "ctx2", "c3"},
	}
	for title, want := range cases {
		t.Run(title, func(t *testing.T) {
			data := campaignData("c1", 1)
			data.MessagePayload.Title = title
			require.Equal(t, want, NewCampaign(data).Contexts())
		})
	}
}

func TestCampaignAvailability(t *testing.T) {
	now := time.Now()
	data := campaignData("c1", 1)
	data.MessagePayload.MessageSettings.DisplaySettings.EndTimeMillis = now.Add(-time.Second).UnixMilli()

	c := NewCampaign(data)
	require.True(t, c.IsOutdated(now))
	c.Data.HasNoEndDate = true
	require.False(t, c.IsOutdated(now))

	c.ImpressionsLeft = 0
	require.False(t, c.HasImpressionsLeft())
	c.Data.InfiniteImpressions = true
	require.True(t, c.HasImpressionsLeft())

	require.Zero(t, NewCampaign(campaignData("c2", -4)).ImpressionsLeft)
}

func TestCampaignDataDecodesBackendPayload(t *testing.T) {
	payload := `{
		"campaignId": "summer-sale",
		"type": 1,
		"isTest": false,
		"maxImpressions": 2,
		"triggers": [{
			"type": 1,
			"eventType": 4,
			"eventName": "addToCart",
			"attributes": [{"name": "price", "value": "10.5", "type": 3, "operator": 2}]
		}],
		"messagePayload": {
			"title": "[home] Summer",
			"resource": {"imageUrl": "https://cdn.example.com/a.png"},
			"messageSettings": {"displaySettings": {"endTimeMillis": 1893456000000, "delay": 3000, "optOut": true}}
		}
	}`
	var data CampaignData
	require.NoError(t, json.Unmarshal([]byte(payload), &data))

	c := NewCampaign(data)
	require.Equal(t, "summer-sale", c.ID())
	require.Equal(t, 2, c.ImpressionsLeft)
	require.Equal(t, CampaignTypeModal, c.Data.Type)
	require.Equal(t, 3*time.Second, c.Delay())
	require.Equal(t, []string{"home"}, c.Contexts())
	require.True(t, c.Data.MessagePayload.MessageSettings.DisplaySettings.OptOut)

	trigger := c.Data.Triggers[0]
	require.Equal(t, EventTypeCustom, trigger.EventType)
	require.Equal(t, OperatorIsNotEqual, trigger.Attributes[0].Operator)
	require.True(t, trigger.Matches(NewCustomEvent("addToCart", CustomAttribute{Name: "price", Value: DoubleValue(12)})))
}
