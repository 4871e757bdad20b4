package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Price
		wantErr error
	}{
		{"two decimals", "4.50", 450, nil},
		{"one decimal is padded", "4.5", 450, nil},
		{"whole number", "7", 700, nil},
		{"trailing point", "7.", 700, nil},
		{"leading point", ".25", 25, nil},
		{"negative", "-12.30", -1230, nil},
		{"max value", "999.99", 99999, nil},
		{"leading zeros do not count as digits", "000012.5", 1250, nil},
		{"surrounding whitespace", "  3.10 ", 310, nil},
		{"empty", "", 0, ErrPriceInvalid},
		{"lone point", ".", 0, ErrPriceInvalid},
		{"letters", "abc", 0, ErrPriceInvalid},
		{"exponent", "1e2", 0, ErrPriceInvalid},
		{"too many digits", "1234.56", 0, ErrPriceMaxDigits},
		{"too many decimal places", "1.234", 0, ErrPriceDecimalPlaces},
		{"too many whole digits", "1000", 0, ErrPriceWholeDigits},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePrice(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParsePrice(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePrice(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParsePrice(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestPriceString(t *testing.T) {
	tests := []struct {
		price Price
		want  string
	}{
		{450, "4.50"},
		{5, "0.05"},
		{0, "0.00"},
		{-1230, "-12.30"},
		{99999, "999.99"},
	}

	for _, tt := range tests {
		if got := tt.price.String(); got != tt.want {
			t.Errorf("Price(%d).String() = %q, want %q", int64(tt.price), got, tt.want)
		}
	}
}

func TestPriceJSON(t *testing.T) {
	out, err := json.Marshal(struct {
		Price Price `json:"price"`
	}{Price: 450})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != `{"price":"4.50"}` {
		t.Errorf("Marshal() = %s, want {\"price\":\"4.50\"}", out)
	}

	var fromNumber, fromString Price
	if err := json.Unmarshal([]byte(`4.5`), &fromNumber); err != nil {
		t.Fatalf("Unmarshal(number) error = %v", err)
	}
	if err := json.Unmarshal([]byte(`"4.50"`), &fromString); err != nil {
		t.Fatalf("Unmarshal(string) error = %v", err)
	}
	if fromNumber != 450 || fromString != 450 {
		t.Errorf("Unmarshal() = %d / %d, want 450 / 450", fromNumber, fromString)
	}

	var bad Price
	if err := json.Unmarshal([]byte(`"1.999"`), &bad); err == nil {
		t.Error("Unmarshal() should reject three decimal places")
	}
}
