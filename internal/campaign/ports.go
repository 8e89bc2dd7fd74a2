package campaign

import "context"

// PingSource fetches the campaign list. Errors wrap ErrInvalidConfiguration,
// ErrJSONDecoding, ErrRequest or ErrTooManyRequests.
type PingSource interface {
	Ping(ctx context.Context, ids []UserIdentifier) (PingResponse, error)
}

type PermissionSource interface {
	CheckPermission(ctx context.Context, data CampaignData) (DisplayPermission, error)
}

// ImpressionSink receives impressions after a message is dismissed.
type ImpressionSink interface {
	PingImpression(ctx context.Context, impressions []Impression, data CampaignData) error
}

// Cache persists campaign lists per user partition. A miss is (nil, nil).
type Cache interface {
	GetUserData(ctx context.Context, key string) (*UserData, error)
	CacheCampaignData(ctx context.Context, key string, list []Campaign) error
}

type ResourceLoader interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Router renders campaigns. completion must be called exactly once, from any goroutine.
type Router interface {
	DisplayCampaign(ctx context.Context, c Campaign, image []byte, completion func(DisplayResult))
}

type Delegate interface {
	ShouldShowCampaignMessage(title string, contexts []string) bool
}

type ErrorDelegate interface {
	DidReceiveError(sender string, err error)
}
