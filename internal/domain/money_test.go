package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already cents", "150.25", "150.25"},
		{"whole", "700", "700"},
		{"half rounds up", "0.125", "0.13"},
		{"below half rounds down", "0.124", "0.12"},
		{"long tail", "1.23456", "1.23"},
		{"negative half away from zero", "-0.125", "-0.13"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Round2(decimal.RequireFromString(tt.input))
			want := decimal.RequireFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("Round2(%s) = %s, want %s", tt.input, got, want)
			}
		})
	}
}

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"zero", "0", false},
		{"whole dollars", "100", false},
		{"one decimal place", "1.5", false},
		{"two decimal places", "148.50", false},
		{"small amount", "0.01", false},
		{"negative", "-1", true},
		{"three decimal places", "1.234", true},
		{"sub-cent", "0.001", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAmount("amount", decimal.RequireFromString(tt.input))
			if tt.wantErr {
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Errorf("ValidateAmount(%s) = %v, want *ValidationError", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Errorf("ValidateAmount(%s) unexpected error: %v", tt.input, err)
			}
		})
	}
}

func TestFixed(t *testing.T) {
	if got := Fixed(decimal.NewFromInt(700)); got != "700.00" {
		t.Errorf("Fixed(700) = %q, want %q", got, "700.00")
	}
	if got := Fixed(decimal.RequireFromString("0.5")); got != "0.50" {
		t.Errorf("Fixed(0.5) = %q, want %q", got, "0.50")
	}
}

func TestDisplay(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1020", "$1,020.00"},
		{"0.01", "$0.01"},
		{"150.5", "$150.50"},
		{"92233720368547758.07", "$92,233,720,368,547,758.07"},
		{"92233720368547758.08", "$92233720368547758.08"},
		{"-92233720368547758.07", "-$92,233,720,368,547,758.07"},
		{"100000000000000000000", "$100000000000000000000.00"},
		{"-100000000000000000000", "-$100000000000000000000.00"},
	}

	for _, tt := range tests {
		if got := Display(decimal.RequireFromString(tt.input)); got != tt.want {
			t.Errorf("Display(%s) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
