package transform

import "testing"

func TestCleanDescription(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"prefix stripped",
			"DEBIT CARD PURCHASE - STARBUCKS STORE",
			"STARBUCKS STORE",
		},
		{
			"suffix stripped",
			"STARBUCKS STORE PENDING",
			"STARBUCKS STORE",
		},
		{
			"reference number removed",
			"STARBUCKS STORE REF#A1B2C3D4",
			"STARBUCKS STORE",
		},
		{
			"long digit run removed",
			"AMAZON MKTPLACE 1234567890",
			"AMAZON MKTPLACE",
		},
		{
			"store code removed",
			"SHELL OIL #5541",
			"SHELL OIL",
		},
		{
			"whitespace collapsed",
			"  WHOLE   FOODS   MARKET  ",
			"WHOLE FOODS MARKET",
		},
		{
			"clean input unchanged",
			"Starbucks",
			"Starbucks",
		},
		{
			"empty input",
			"",
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanDescription(tt.in); got != tt.want {
				t.Errorf("CleanDescription(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
