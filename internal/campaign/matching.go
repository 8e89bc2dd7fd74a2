package campaign

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

type Operator int

const (
	OperatorInvalid           Operator = 0
	OperatorEquals            Operator = 1
	OperatorIsNotEqual        Operator = 2
	OperatorGreaterThan       Operator = 3
	OperatorLessThan          Operator = 4
	OperatorIsBlank           Operator = 5
	OperatorIsNotBlank        Operator = 6
	OperatorMatchesRegex      Operator = 7
	OperatorDoesNotMatchRegex Operator = 8
)

// TimeToleranceMillis absorbs clock skew between the backend and the device.
const TimeToleranceMillis int64 = 1000

// Comparable is the set of value types CompareValues understands. Named
// types are excluded so every instantiation reaches a comparison.
type Comparable interface {
	string | bool | int64 | float64
}

// CompareValues evaluates "event <op> trigger". Combinations an operator does
// not support return false.
func CompareValues[T Comparable](trigger, event T, op Operator) bool {
	switch t := any(trigger).(type) {
	case string:
		return compareStrings(t, any(event).(string), op)
	case bool:
		return compareBools(t, any(event).(bool), op)
	case int64:
		return compareOrdered(t, any(event).(int64), op)
	case float64:
		return compareOrdered(t, any(event).(float64), op)
	}
	return false
}

func compareStrings(trigger, event string, op Operator) bool {
	switch op {
	case OperatorEquals:
		return strings.EqualFold(trigger, event)
	case OperatorIsNotEqual:
		return !strings.EqualFold(trigger, event)
	case OperatorIsBlank:
		return strings.TrimSpace(event) == ""
	case OperatorIsNotBlank:
		return strings.TrimSpace(event) != ""
	case OperatorMatchesRegex, OperatorDoesNotMatchRegex:
		return CompareRegex(trigger, event, op)
	default:
		return false
	}
}

func compareBools(trigger, event bool, op Operator) bool {
	switch op {
	case OperatorEquals:
		return trigger == event
	case OperatorIsNotEqual:
		return trigger != event
	default:
		return false
	}
}

func compareOrdered[T int64 | float64](trigger, event T, op Operator) bool {
	switch op {
	case OperatorEquals:
		return event == trigger
	case OperatorIsNotEqual:
		return event != trigger
	case OperatorGreaterThan:
		return event > trigger
	case OperatorLessThan:
		return event < trigger
	default:
		return false
	}
}

// CompareTimeValues compares millisecond timestamps within TimeToleranceMillis.
func CompareTimeValues(triggerMillis, eventMillis int64, op Operator) bool {
	diff := subSaturating(eventMillis, triggerMillis)
	switch op {
	case OperatorEquals:
		return -TimeToleranceMillis <= diff && diff <= TimeToleranceMillis
	case OperatorIsNotEqual:
		return diff < -TimeToleranceMillis || diff > TimeToleranceMillis
	case OperatorGreaterThan:
		return diff > TimeToleranceMillis
	case OperatorLessThan:
		return diff < -TimeToleranceMillis
	default:
		return false
	}
}

// subSaturating returns a-b clamped to the int64 range.
func subSaturating(a, b int64) int64 {
	d := a - b
	if (a >= 0) != (b >= 0) && (d >= 0) != (a >= 0) {
		if a >= 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return d
}

// CompareRegex applies a regex operator. An empty event value never matches,
// so doesNotMatchRegex holds for it; an empty or invalid pattern fails both.
func CompareRegex(pattern, event string, op Operator) bool {
	if op != OperatorMatchesRegex && op != OperatorDoesNotMatchRegex {
		return false
	}
	if pattern == "" {
		return false
	}
	if event == "" {
		return op == OperatorDoesNotMatchRegex
	}
	re := compilePattern(pattern)
	if re == nil {
		return false
	}
	if op == OperatorMatchesRegex {
		return re.MatchString(event)
	}
	return !re.MatchString(event)
}

const maxCachedPatterns = 256

// patterns caches compiled trigger patterns. Invalid patterns are stored as nil.
var patterns = struct {
	sync.RWMutex
	compiled map[string]*regexp.Regexp
}{compiled: make(map[string]*regexp.Regexp)}

func compilePattern(pattern string) *regexp.Regexp {
	patterns.RLock()
	re, ok := patterns.compiled[pattern]
	patterns.RUnlock()
	if ok {
		return re
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		re = nil
	}
	patterns.Lock()
	if len(patterns.compiled) >= maxCachedPatterns {
		clear(patterns.compiled)
	}
	patterns.compiled[pattern] = re
	patterns.Unlock()
	return re
}

// satisfiedBy checks one declared attribute condition against an event value.
func (a TriggerAttribute) satisfiedBy(v AttributeValue) bool {
	if a.Operator == OperatorInvalid {
		return false
	}
	switch a.Type {
	case AttributeTypeString:
		if v.Type != AttributeTypeString {
			return false
		}
		return CompareValues(a.Value, v.s, a.Operator)
	case AttributeTypeBoolean:
		want, err := strconv.ParseBool(a.Value)
		if err != nil || v.Type != AttributeTypeBoolean {
			return false
		}
		return CompareValues(want, v.b, a.Operator)
	case AttributeTypeInteger:
		want, err := strconv.ParseInt(a.Value, 10, 64)
		if err != nil || v.Type != AttributeTypeInteger {
			return false
		}
		return CompareValues(want, v.i, a.Operator)
	case AttributeTypeDouble:
		want, err := strconv.ParseFloat(a.Value, 64)
		if err != nil {
			return false
		}
		switch v.Type {
		case AttributeTypeDouble:
			return CompareValues(want, v.f, a.Operator)
		case AttributeTypeInteger:
			return CompareValues(want, float64(v.i), a.Operator)
		}
		return false
	case AttributeTypeTimeInMilli:
		want, err := strconv.ParseInt(a.Value, 10, 64)
		if err != nil || v.Type != AttributeTypeTimeInMilli {
			return false
		}
		return CompareTimeValues(want, v.i, a.Operator)
	default:
		return false
	}
}

// Matches reports whether the event has the trigger's shape and satisfies every attribute condition.
func (t Trigger) Matches(e Event) bool {
	if t.EventType == EventTypeInvalid || t.EventType != e.Type {
		return false
	}
	if e.Type == EventTypeCustom && !strings.EqualFold(t.EventName, e.Name) {
		return false
	}
	for _, attr := range t.Attributes {
		v, ok := e.Attribute(attr.Name)
		if !ok || !attr.satisfiedBy(v) {
			return false
		}
	}
	return true
}
