package campaign

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type EventType int

const (
	EventTypeInvalid            EventType = 0
	EventTypeAppStart           EventType = 1
	EventTypeLoginSuccessful    EventType = 2
	EventTypePurchaseSuccessful EventType = 3
	EventTypeCustom             EventType = 4
)

func (t EventType) String() string {
	switch t {
	case EventTypeAppStart:
		return "app_start"
	case EventTypeLoginSuccessful:
		return "login_successful"
	case EventTypePurchaseSuccessful:
		return "purchase_successful"
	case EventTypeCustom:
		return "custom"
	default:
		return "invalid"
	}
}

// IsPersistent reports whether events of this type stay available after a campaign consumed them.
func (t EventType) IsPersistent() bool {
	switch t {
	case EventTypeAppStart, EventTypeLoginSuccessful, EventTypePurchaseSuccessful:
		return true
	default:
		return false
	}
}

type AttributeType int

const (
	AttributeTypeInvalid     AttributeType = 0
	AttributeTypeString      AttributeType = 1
	AttributeTypeInteger     AttributeType = 2
	AttributeTypeDouble      AttributeType = 3
	AttributeTypeBoolean     AttributeType = 4
	AttributeTypeTimeInMilli AttributeType = 5
)

// AttributeValue is a typed custom attribute value.
type AttributeValue struct {
	Type AttributeType
	s    string
	i    int64
	f    float64
	b    bool
}

func StringValue(v string) AttributeValue  { return AttributeValue{Type: AttributeTypeString, s: v} }
func IntValue(v int64) AttributeValue      { return AttributeValue{Type: AttributeTypeInteger, i: v} }
func DoubleValue(v float64) AttributeValue { return AttributeValue{Type: AttributeTypeDouble, f: v} }
func BoolValue(v bool) AttributeValue      { return AttributeValue{Type: AttributeTypeBoolean, b: v} }
func TimeValue(v time.Time) AttributeValue {
	return AttributeValue{Type: AttributeTypeTimeInMilli, i: v.UnixMilli()}
}

func (v AttributeValue) String() string {
	switch v.Type {
	case AttributeTypeString:
		return v.s
	case AttributeTypeInteger, AttributeTypeTimeInMilli:
		return strconv.FormatInt(v.i, 10)
	case AttributeTypeDouble:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case AttributeTypeBoolean:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

type CustomAttribute struct {
	Name  string
	Value AttributeValue
}

type Event struct {
	ID         uuid.UUID
	Type       EventType
	Name       string
	Attributes []CustomAttribute
	Timestamp  time.Time
}

func newEvent(t EventType, name string, attrs []CustomAttribute) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		Name:       name,
		Attributes: attrs,
		Timestamp:  time.Now(),
	}
}

func NewAppStartEvent() Event {
	return newEvent(EventTypeAppStart, EventTypeAppStart.String(), nil)
}

func NewLoginSuccessfulEvent() Event {
	return newEvent(EventTypeLoginSuccessful, EventTypeLoginSuccessful.String(), nil)
}

type Purchase struct {
	AmountMicros  int64
	NumberOfItems int64
	CurrencyCode  string
	ItemIDs       []string
}

// NewPurchaseSuccessfulEvent exposes the purchase fields as matchable attributes.
func NewPurchaseSuccessfulEvent(p Purchase) Event {
	return newEvent(EventTypePurchaseSuccessful, EventTypePurchaseSuccessful.String(), []CustomAttribute{
		{Name: "purchaseAmountMicros", Value: IntValue(p.AmountMicros)},
		{Name: "numberOfItems", Value: IntValue(p.NumberOfItems)},
		{Name: "currencyCode", Value: StringValue(p.CurrencyCode)},
		{Name: "itemIdList", Value: StringValue(strings.Join(p.ItemIDs, ","))},
	})
}

func NewCustomEvent(name string, attrs ...CustomAttribute) Event {
	return newEvent(EventTypeCustom, name, attrs)
}

// Attribute looks up a custom attribute by case-insensitive name.
func (e Event) Attribute(name string) (AttributeValue, bool) {
	for _, a := range e.Attributes {
		if strings.EqualFold(a.Name, name) {
			return a.Value, true
		}
	}
	return AttributeValue{}, false
}
