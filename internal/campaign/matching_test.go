package campaign

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompareStringValues(t *testing.T) {
	require.True(t, CompareValues("Hello", "hello", OperatorEquals))
	require.False(t, CompareValues("hello", "world", OperatorEquals))
	require.True(t, CompareValues("hello", "world", OperatorIsNotEqual))
	require.True(t, CompareValues("", "  ", OperatorIsBlank))
	require.False(t, CompareValues("", "x", OperatorIsBlank))
	require.True(t, CompareValues("", "x", OperatorIsNotBlank))
	require.False(t, CompareValues("a", "b", OperatorGreaterThan))
	require.False(t, CompareValues("a", "b", OperatorLessThan))
	require.False(t, CompareValues("a", "a", OperatorInvalid))
}

func TestCompareBoolValues(t *testing.T) {
	require.True(t, CompareValues(true, true, OperatorEquals))
	require.True(t, CompareValues(true, false, OperatorIsNotEqual))
	require.False(t, CompareValues(true, true, OperatorGreaterThan))
	require.False(t, CompareValues(false, true, OperatorLessThan))
	require.False(t, CompareValues(true, true, OperatorIsBlank))
	require.False(t, CompareValues(true, true, OperatorMatchesRegex))
}

func TestCompareNumericValues(t *testing.T) {
	require.True(t, CompareValues(int64(123), int64(123), OperatorEquals))
	require.False(t, CompareValues(int64(123), int64(124), OperatorEquals))
	require.True(t, CompareValues(int64(123), int64(124), OperatorIsNotEqual))
	require.True(t, CompareValues(int64(10), int64(11), OperatorGreaterThan))
	require.False(t, CompareValues(int64(10), int64(10), OperatorGreaterThan))
	require.True(t, CompareValues(int64(10), int64(9), OperatorLessThan))
	require.False(t, CompareValues(int64(10), int64(9), OperatorIsBlank))

	require.True(t, CompareValues(1.5, 1.5, OperatorEquals))
	require.True(t, CompareValues(1.5, 2.5, OperatorGreaterThan))
	require.True(t, CompareValues(1.5, 0.5, OperatorLessThan))
	require.False(t, CompareValues(1.5, 0.5, OperatorDoesNotMatchRegex))
}

func TestCompareTimeValuesUsesTolerance(t *testing.T) {
	base := int64(1_700_000_000_000)

	require.True(t, CompareTimeValues(base, base+TimeToleranceMillis, OperatorEquals))
	require.False(t, CompareTimeValues(base, base+TimeToleranceMillis+1, OperatorEquals))
	require.True(t, CompareTimeValues(base, base-TimeToleranceMillis-1, OperatorIsNotEqual))
	require.False(t, CompareTimeValues(base, base+500, OperatorIsNotEqual))

	require.False(t, CompareTimeValues(base, base+500, OperatorGreaterThan))
	require.True(t, CompareTimeValues(base, base+TimeToleranceMillis+1, OperatorGreaterThan))
	require.False(t, CompareTimeValues(base, base-500, OperatorLessThan))
	require.True(t, CompareTimeValues(base, base-TimeToleranceMillis-1, OperatorLessThan))

	require.False(t, CompareTimeValues(base, base, OperatorIsBlank))
	require.False(t, CompareTimeValues(base, base, OperatorInvalid))
}

func TestCompareTimeValuesAtInt64Extremes(t *testing.T) {
	require.True(t, CompareTimeValues(math.MinInt64, math.MaxInt64, OperatorGreaterThan))
	require.False(t, CompareTimeValues(math.MinInt64, math.MaxInt64, OperatorLessThan))
	require.True(t, CompareTimeValues(math.MaxInt64, math.MinInt64, OperatorLessThan))
	require.False(t, CompareTimeValues(math.MaxInt64, math.MinInt64, OperatorGreaterThan))
	require.True(t, CompareTimeValues(0, math.MinInt64, OperatorIsNotEqual))
	require.False(t, CompareTimeValues(0, math.MinInt64, OperatorEquals))
	require.True(t, CompareTimeValues(math.MinInt64, math.MinInt64, OperatorEquals))
}

func TestCompareRegex(t *testing.T) {
	require.True(t, CompareRegex(`^order-\d+$`, "order-42", OperatorMatchesRegex))
	require.False(t, CompareRegex(`^order-\d+$`, "order-42", OperatorDoesNotMatchRegex))
	require.True(t, CompareRegex(`^order-\d+$`, "refund-42", OperatorDoesNotMatchRegex))

	// empty pattern fails both operators
	require.False(t, CompareRegex("", "value", OperatorMatchesRegex))
	require.False(t, CompareRegex("", "value", OperatorDoesNotMatchRegex))

	// an empty value trivially does not match
	require.False(t, CompareRegex(`.*`, "", OperatorMatchesRegex))
	require.True(t, CompareRegex(`.*`, "", OperatorDoesNotMatchRegex))

	require.False(t, CompareRegex(`([`, "value", OperatorMatchesRegex))
	require.False(t, CompareRegex(`([`, "value", OperatorDoesNotMatchRegex))
	require.False(t, CompareRegex(`.*`, "value", OperatorEquals))
}

func TestCompilePatternIsCached(t *testing.T) {
	re := compilePattern(`^sku-\d+$`)
	require.NotNil(t, re)
	require.Same(t, re, compilePattern(`^sku-\d+$`))

	require.Nil(t, compilePattern(`(unclosed`))
	patterns.RLock()
	_, cached := patterns.compiled[`(unclosed`]
	patterns.RUnlock()
	require.True(t, cached)
}

func TestTriggerMatchesCustomEvent(t *testing.T) {
	trigger := customTrigger("TestEvent", TriggerAttribute{
		Name: "AttributeOne", Value: "123", Type: AttributeTypeInteger, Operator: OperatorEquals,
	})

	require.True(t, trigger.Matches(NewCustomEvent("testevent", CustomAttribute{Name: "attributeOne", Value: IntValue(123)})))
	require.False(t, trigger.Matches(NewCustomEvent("testEvent", CustomAttribute{Name: "attributeOne", Value: IntValue(124)})))
	require.False(t, trigger.Matches(NewCustomEvent("testEvent")), "missing attribute")
	require.False(t, trigger.Matches(NewCustomEvent("otherEvent", CustomAttribute{Name: "attributeOne", Value: IntValue(123)})))
	require.False(t, trigger.Matches(NewCustomEvent("testEvent", CustomAttribute{Name: "attributeOne", Value: StringValue("123")})),
		"type mismatch")
}

func TestTriggerAttributeTypes(t *testing.T) {
	double := TriggerAttribute{Name: "price", Value: "9.5", Type: AttributeTypeDouble, Operator: OperatorGreaterThan}
	require.True(t, double.satisfiedBy(DoubleValue(10.25)))
	require.True(t, double.satisfiedBy(IntValue(10)))
	require.False(t, double.satisfiedBy(StringValue("10")))

	flag := TriggerAttribute{Name: "premium", Value: "true", Type: AttributeTypeBoolean, Operator: OperatorEquals}
	require.True(t, flag.satisfiedBy(BoolValue(true)))
	require.False(t, flag.satisfiedBy(BoolValue(false)))

	broken := TriggerAttribute{Name: "premium", Value: "yes please", Type: AttributeTypeBoolean, Operator: OperatorEquals}
	require.False(t, broken.satisfiedBy(BoolValue(true)))

	invalid := TriggerAttribute{Name: "x", Value: "1", Type: AttributeTypeInvalid, Operator: OperatorEquals}
	require.False(t, invalid.satisfiedBy(IntValue(1)))
}

func TestTriggerMatchesBuiltInEvents(t *testing.T) {
	require.True(t, eventTrigger(EventTypeAppStart, "").Matches(NewAppStartEvent()))
	require.False(t, eventTrigger(EventTypeAppStart, "").Matches(NewLoginSuccessfulEvent()))

	purchase := NewPurchaseSuccessfulEvent(Purchase{AmountMicros: 5_000_000, NumberOfItems: 2, CurrencyCode: "JPY", ItemIDs: []string{"a", "b"}})
	bigSpender := eventTrigger(EventTypePurchaseSuccessful, "", TriggerAttribute{
		Name: "purchaseAmountMicros", Value: "1000000", Type: AttributeTypeInteger, Operator: OperatorGreaterThan,
	})
	require.True(t, bigSpender.Matches(purchase))
	yen := eventTrigger(EventTypePurchaseSuccessful, "", TriggerAttribute{
		Name: "currencyCode", Value: "jpy", Type: AttributeTypeString, Operator: OperatorEquals,
	})
	require.True(t, yen.Matches(purchase))
}
