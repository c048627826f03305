package normalize

import (
	"math"
	"testing"
)

func TestAmount(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{name: "plain", in: "1234", want: 1234},
		{name: "dot_thousands_comma_decimal", in: "1.234,56", want: 1234.56},
		{name: "comma_thousands_dot_decimal", in: "1,234.56", want: 1234.56},
		{name: "single_comma_grouping", in: "1,234", want: 1234},
		{name: "single_comma_decimal", in: "12,50", want: 12.5},
		{name: "single_dot_decimal", in: "12.50", want: 12.5},
		{name: "single_dot_grouping", in: "5.000", want: 5000},
		{name: "one_digit_after_sep_is_grouping", in: "12.5", want: 125},
		{name: "currency_noise", in: "$ 1.234,56 pesos", want: 1234.56},
		{name: "negative", in: "-150,25", want: -150.25},
		{name: "multi_grouping", in: "1.234.567", want: 1234567},
		{name: "grouping_and_decimal", in: "1.234.567,89", want: 1234567.89},
		{name: "bare_decimal", in: ",50", want: 0.5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Amount(tc.in)
			if err != nil {
				t.Fatalf("Amount(%q) error: %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("Amount(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestAmountUnparseable(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "empty", in: ""},
		{name: "only_noise", in: "hola"},
		{name: "only_sign", in: "-"},
		{name: "only_separators", in: ".,."},
		{name: "too_many_integer_digits", in: "1234567890123"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got, err := Amount(tc.in); err == nil {
				t.Fatalf("Amount(%q) = %v, want error", tc.in, got)
			}
		})
	}
}

// Re-formatting an accepted value and re-parsing it must round-trip within
// one cent.
func TestAmountRoundTrip(t *testing.T) {
	inputs := []string{"1.234,56", "12,50", "999999999999", "-7.000", "0,99"}
	for _, in := range inputs {
		v, err := Amount(in)
		if err != nil {
			t.Fatalf("Amount(%q) error: %v", in, err)
		}
		back, err := Amount(FormatAmount(v))
		if err != nil {
			t.Fatalf("re-parse of %q (%v) error: %v", in, v, err)
		}
		if math.Abs(back-v) > 0.01 {
			t.Fatalf("round trip of %q: %v -> %v", in, v, back)
		}
	}
}

func TestDateKey(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "iso", in: "2026-02-01", want: "01/02/2026"},
		{name: "slashes", in: "01/02/2026", want: "01/02/2026"},
		{name: "short_year", in: "1/2/26", want: "01/02/2026"},
		{name: "dots", in: "01.02.2026", want: "01/02/2026"},
		{name: "spaces", in: "1 2 2026", want: "01/02/2026"},
		{name: "dashes", in: "01-02-2026", want: "01/02/2026"},
		{name: "nonexistent", in: "31/02/2026", wantErr: true},
		{name: "two_parts", in: "01/02", wantErr: true},
		{name: "words", in: "mañana", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DateKey(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("DateKey(%q) = %q, want error", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("DateKey(%q) error: %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("DateKey(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSameDateKey(t *testing.T) {
	if !SameDateKey("2026-02-01", "01/02/2026") {
		t.Fatal("ISO cell should match canonical key")
	}
	if SameDateKey("02/02/2026", "01/02/2026") {
		t.Fatal("different dates must not match")
	}
}
