package convert

import (
	"errors"
	"testing"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr error
	}{
		{"0", 0, nil},
		{"42", 42, nil},
		{"-7", -7, nil},
		{"+7", 7, nil},
		{"05", 5, nil},
		{"0x1F", 31, nil},
		{"0XfF", 255, nil},
		{"0xFFFFFFFF", -1, nil},
		{"2147483647", 2147483647, nil},
		{"2147483648", 0, ErrRange},
		{"", 0, ErrSyntax},
		{"-", 0, ErrSyntax},
		{"12abc", 0, ErrSyntax},
		{"0x", 0, ErrSyntax},
		{"0xZZ", 0, ErrSyntax},
		{"1.5", 0, ErrSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseNumber(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseNumber(%q) error = %v, want %v", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseNumber(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseNumber(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestCoercions(t *testing.T) {
	if ToInt("abc") != 0 {
		t.Error("ToInt of a non-number should be 0")
	}
	if ToInt(" 12 ") != 12 {
		t.Error("ToInt should ignore surrounding space")
	}
	boolTests := map[string]bool{
		"":      false,
		"0":     false,
		"00":    false,
		"1":     true,
		"-3":    true,
		"false": true,
		"x":     true,
	}
	for in, want := range boolTests {
		if got := ToBool(in); got != want {
			t.Errorf("ToBool(%q) = %v, want %v", in, got, want)
		}
	}
	if FromBool(true) != "1" || FromBool(false) != "0" {
		t.Error("FromBool should render 1 and 0")
	}
}
