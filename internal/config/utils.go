package config

import (
	"fmt"
	"slices"
)

type ordered interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

// CheckPositive checks that the value is greater than zero.
// If it is not, an anomaly is added to the anomaly collector and the value is set to the fallback.
func CheckPositive[T ordered](ac *AnomalyCollector, field string, actual *T, fallback T) {
	val := *actual
	if val <= 0 {
		ac.add(field, "must be positive", val, fallback)
		*actual = fallback
	}
}

// CheckNotGreater checks that the value is not greater than the limit.
// If it is, an anomaly is added to the anomaly collector and the value is set to the limit.
func CheckNotGreater[T ordered](ac *AnomalyCollector, field string, actual *T, limit T) {
	val := *actual
	if val > limit {
		ac.add(field, fmt.Sprintf("cannot be greater than %v", limit), val, limit)
		*actual = limit
	}
}

// CheckNotEmpty checks that the value is not empty.
// If it is, an anomaly is added to the anomaly collector and the value is set to the fallback.
func CheckNotEmpty(ac *AnomalyCollector, field string, actual *string, fallback string) {
	val := *actual
	if val == "" {
		ac.add(field, "cannot be empty", val, fallback)
		*actual = fallback
	}
}

// CheckOneOf checks that the value is one of the allowed ones.
// If it is not, an anomaly is added to the anomaly collector and the value is set to the fallback.
func CheckOneOf[T comparable](ac *AnomalyCollector, field string, actual *T, allowed []T, fallback T) {
	val := *actual
	if !slices.Contains(allowed, val) {
		ac.add(field, fmt.Sprintf("must be one of %v", allowed), val, fallback)
		*actual = fallback
	}
}
