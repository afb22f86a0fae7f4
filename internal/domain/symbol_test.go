package domain

import "testing"

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"upper", "AAPL", "AAPL", false},
		{"lower", "aapl", "AAPL", false},
		{"padded", "  msft ", "MSFT", false},
		{"class share", "brk.b", "BRK.B", false},
		{"digits", "x1", "X1", false},
		{"empty", "", "", true},
		{"blank", "   ", "", true},
		{"leading digit", "1ABC", "", true},
		{"too long", "ABCDEFGHIJK", "", true},
		{"space inside", "AA PL", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeSymbol(tt.input)
			if tt.wantErr {
				if _, ok := err.(*ValidationError); !ok {
					t.Errorf("NormalizeSymbol(%q) error = %v, want *ValidationError", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeSymbol(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeSymbol(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
