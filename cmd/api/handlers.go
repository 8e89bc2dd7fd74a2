package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"inapp-messaging/internal/campaign"
)

type Handler struct {
	service *campaign.Service
	router  *displayRouter
}

func NewHandler(service *campaign.Service, router *displayRouter) *Handler {
	return &Handler{service: service, router: router}
}

type AttributeRequest struct {
	Name  string          `json:"name"`
	Type  string          `json:"type" enums:"string,integer,double,boolean,time"`
	Value json.RawMessage `json:"value" swaggertype:"string"`
}

type PurchaseRequest struct {
	AmountMicros  int64    `json:"purchaseAmountMicros"`
	NumberOfItems int64    `json:"numberOfItems"`
	CurrencyCode  string   `json:"currencyCode"`
	ItemIDs       []string `json:"itemIdList"`
}

type EventRequest struct {
	Type       string             `json:"type" enums:"app_start,login_successful,purchase_successful,custom"`
	Name       string             `json:"name,omitempty"`
	Attributes []AttributeRequest `json:"attributes,omitempty"`
	Purchase   *PurchaseRequest   `json:"purchase,omitempty"`
}

type EventResponse struct {
	ID string `json:"id"`
}

func (req EventRequest) toEvent() (campaign.Event, error) {
	switch req.Type {
	case "app_start":
		return campaign.NewAppStartEvent(), nil
	case "login_successful":
		return campaign.NewLoginSuccessfulEvent(), nil
	case "purchase_successful":
		if req.Purchase == nil {
			return campaign.Event{}, errors.New("purchase is required")
		}
		return campaign.NewPurchaseSuccessfulEvent(campaign.Purchase{
			AmountMicros:  req.Purchase.AmountMicros,
			NumberOfItems: req.Purchase.NumberOfItems,
			CurrencyCode:  req.Purchase.CurrencyCode,
			ItemIDs:       req.Purchase.ItemIDs,
		}), nil
	case "custom":
		if strings.TrimSpace(req.Name) == "" {
			return campaign.Event{}, errors.New("name is required for custom events")
		}
		attrs := make([]campaign.CustomAttribute, 0, len(req.Attributes))
		for _, a := range req.Attributes {
			v, err := a.value()
			if err != nil {
				return campaign.Event{}, fmt.Errorf("attribute %q: %w", a.Name, err)
			}
			attrs = append(attrs, campaign.CustomAttribute{Name: a.Name, Value: v})
		}
		return campaign.NewCustomEvent(req.Name, attrs...), nil
	default:
		return campaign.Event{}, fmt.Errorf("unknown event type %q", req.Type)
	}
}

func (a AttributeRequest) value() (campaign.AttributeValue, error) {
	if a.Name == "" {
		return campaign.AttributeValue{}, errors.New("name is required")
	}
	switch a.Type {
	case "string":
		var s string
		err := json.Unmarshal(a.Value, &s)
		return campaign.StringValue(s), err
	case "integer":
		var i int64
		err := json.Unmarshal(a.Value, &i)
		return campaign.IntValue(i), err
	case "double":
		var f float64
		err := json.Unmarshal(a.Value, &f)
		return campaign.DoubleValue(f), err
	case "boolean":
		var b bool
		err := json.Unmarshal(a.Value, &b)
		return campaign.BoolValue(b), err
	case "time":
		var ms int64
		err := json.Unmarshal(a.Value, &ms)
		return campaign.TimeValue(time.UnixMilli(ms)), err
	default:
		return campaign.AttributeValue{}, fmt.Errorf("unknown attribute type %q", a.Type)
	}
}

// LogEvent godoc
// @Summary      Log Event
// @Description  Feeds an event to the matcher. Campaigns whose triggers are all satisfied are queued for display.
// @Tags         Client
// @Accept       json
// @Produce      json
// @Param        event body EventRequest true "Event"
// @Success      202  {object}  EventResponse
// @Failure      400  {string}  string "Invalid event"
// @Router       /v1/events [post]
func (h *Handler) LogEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	e, err := req.toEvent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.service.LogEvent(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(EventResponse{ID: e.ID.String()})
}

type UserRequest struct {
	UserIdentifiers []campaign.UserIdentifier `json:"userIdentifiers"`
}

// SetUser godoc
// @Summary      Switch User
// @Description  Replaces the user identifiers. Pending displays are dropped and the user's cached campaigns loaded.
// @Tags         Client
// @Accept       json
// @Param        user body UserRequest true "User identifiers"
// @Success      204  "No Content"
// @Failure      400  {string}  string "Invalid identifiers"
// @Router       /v1/users [put]
func (h *Handler) SetUser(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for _, id := range req.UserIdentifiers {
		if id.Value == "" {
			http.Error(w, "identifier id is required", http.StatusBadRequest)
			return
		}
	}

	h.service.SetUserIdentifiers(req.UserIdentifiers)
	w.WriteHeader(http.StatusNoContent)
}

// ListCampaigns godoc
// @Summary      List Campaigns
// @Description  Returns the local campaign list with impressions left and opt-out state.
// @Tags         Client
// @Produce      json
// @Success      200  {array}  campaign.Campaign
// @Router       /v1/campaigns [get]
func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	list := h.service.Campaigns()
	if list == nil {
		list = []campaign.Campaign{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// OptOut godoc
// @Summary      Opt Out Of Campaign
// @Description  Marks a campaign as opted out so it is never displayed again for this user.
// @Tags         Client
// @Produce      json
// @Param        id   query      string  true  "Campaign ID"
// @Success      200  {object}  campaign.Campaign
// @Failure      400  {string}  string "Missing id"
// @Failure      404  {string}  string "Unknown campaign"
// @Router       /v1/campaigns/opt-out [post]
func (h *Handler) OptOut(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	c, ok := h.service.OptOut(id)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c)
}

// ListDisplays godoc
// @Summary      List Displays
// @Description  Returns the campaigns handed to the display router, oldest first.
// @Tags         Client
// @Produce      json
// @Success      200  {array}  Display
// @Router       /v1/displays [get]
func (h *Handler) ListDisplays(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.router.Displays())
}

// Dismiss godoc
// @Summary      Dismiss Display
// @Description  Closes the displayed campaign before its display duration ends, optionally opting out.
// @Tags         Client
// @Param        id      query  string  true   "Campaign ID"
// @Param        optOut  query  bool    false  "Opt out of the campaign"
// @Success      204  "No Content"
// @Failure      404  {string}  string "Not displayed"
// @Router       /v1/displays/dismiss [post]
func (h *Handler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	optOut, _ := strconv.ParseBool(r.URL.Query().Get("optOut"))
	if !h.router.Dismiss(id, optOut) {
		http.Error(w, "not displayed", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Ping godoc
// @Summary      Refresh Campaign List
// @Description  Pings the messaging backend now instead of waiting for the next scheduled refresh.
// @Tags         Debug
// @Success      200  "Refreshed"
// @Router       /debug/ping [post]
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	h.service.Refresh(r.Context())
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "%d campaigns\n", len(h.service.Campaigns()))
}
