package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Price limits: at most 5 digits in total, 2 of them after the decimal point.
const (
	PriceMaxDigits     = 5
	PriceDecimalPlaces = 2
)

// Price is a fixed-point amount stored as an integer number of cents.
//
// It is serialised as a decimal string ("4.50") and accepts either a JSON
// string or a JSON number on input.
type Price int64

var (
	ErrPriceInvalid       = errors.New("A valid number is required.")
	ErrPriceMaxDigits     = fmt.Errorf("Ensure that there are no more than %d digits in total.", PriceMaxDigits)
	ErrPriceDecimalPlaces = fmt.Errorf("Ensure that there are no more than %d decimal places.", PriceDecimalPlaces)
	ErrPriceWholeDigits   = fmt.Errorf("Ensure that there are no more than %d digits before the decimal point.", PriceMaxDigits-PriceDecimalPlaces)
)

// ParsePrice parses a plain decimal such as "4.5", "-12.30" or "7".
// Exponent notation is rejected.
func ParsePrice(s string) (Price, error) {
	s = strings.TrimSpace(s)

	negative := false
	switch {
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, ErrPriceInvalid
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, ErrPriceInvalid
	}

	significant := strings.TrimLeft(whole, "0")
	if len(significant)+len(frac) > PriceMaxDigits {
		return 0, ErrPriceMaxDigits
	}
	if len(frac) > PriceDecimalPlaces {
		return 0, ErrPriceDecimalPlaces
	}
	if len(significant) > PriceMaxDigits-PriceDecimalPlaces {
		return 0, ErrPriceWholeDigits
	}

	// Pad the fraction to exactly two digits: "5" -> "50".
	frac += strings.Repeat("0", PriceDecimalPlaces-len(frac))
	if significant == "" {
		significant = "0"
	}

	cents, err := strconv.ParseInt(significant+frac, 10, 64)
	if err != nil {
		return 0, ErrPriceInvalid
	}
	if negative {
		cents = -cents
	}
	return Price(cents), nil
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Cents returns the raw integer value.
func (p Price) Cents() int64 {
	return int64(p)
}

// String formats the price with exactly two decimals, e.g. "4.50".
func (p Price) String() string {
	cents := int64(p)
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// MarshalJSON encodes the price as a JSON string.
func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(p.String())), nil
}

// UnmarshalJSON accepts "4.50" as well as 4.5.
func (p *Price) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return ErrPriceInvalid
	}
	if strings.HasPrefix(raw, `"`) {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			return ErrPriceInvalid
		}
		raw = unquoted
	}

	parsed, err := ParsePrice(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
