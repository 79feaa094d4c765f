// Package parser converts raw string arguments from the host into typed values.
package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// UintFromFloat parses a string that may be an integer ("32") or float ("32.00") into uint64.
// The host scripting language has no integer type, so numbers may arrive serialized as floats.
func UintFromFloat(s string) (uint64, error) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != float64(uint64(f)) {
		return 0, fmt.Errorf("UintFromFloat: %q is not a valid uint64", s)
	}
	return uint64(f), nil
}

// IntFromFloat parses a string that may be an integer or float into int64.
func IntFromFloat(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("IntFromFloat: %q is not a valid int64", s)
	}
	return int64(f), nil
}

// MillisFromFloat parses a float-form millisecond count into a duration.
func MillisFromFloat(s string) (time.Duration, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return 0, fmt.Errorf("MillisFromFloat: %q is negative", s)
	}
	return time.Duration(f * float64(time.Millisecond)), nil
}

// BoolFromString parses host boolean forms ("true", "false", "1", "0").
func BoolFromString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("BoolFromString: %q is not a valid bool", s)
}
