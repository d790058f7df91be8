package transform

import "testing"

func TestNormalizeMerchant(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trailing store code", "STARBUCKS STORE #12345", "Starbucks Store"},
		{"trailing digits", "WHOLEFDS MKT 10265", "Wholefds Mkt"},
		{"legal suffix", "ACME WIDGETS LLC", "Acme Widgets"},
		{"leading the", "THE HOME DEPOT 0441", "Home Depot"},
		{"already clean", "Starbucks", "Starbucks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewMerchantCache()
			got := c.NormalizeMerchant(tt.in)
			if got.Normalized != tt.want {
				t.Errorf("NormalizeMerchant(%q) = %q, want %q", tt.in, got.Normalized, tt.want)
			}
			if got.Verified {
				t.Error("heuristic normalization must not be verified")
			}
		})
	}
}

func TestNormalizeMerchant_EmptyInput(t *testing.T) {
	c := NewMerchantCache()
	if got := c.NormalizeMerchant("   "); got.Normalized != "" {
		t.Errorf("expected empty normalization, got %q", got.Normalized)
	}
}

func TestMerchantCache_SeededEntryWins(t *testing.T) {
	c := NewMerchantCache()
	c.Seed([]Normalization{
		{Original: "WHOLEFDS MKT 10265", Normalized: "Whole Foods Market", Category: "Groceries"},
	})

	got := c.NormalizeMerchant("WHOLEFDS MKT 10265")
	if got.Normalized != "Whole Foods Market" {
		t.Errorf("Normalized = %q, want seeded value", got.Normalized)
	}
	if !got.Verified {
		t.Error("seeded entries must be verified")
	}
	if got.Category != "Groceries" {
		t.Errorf("Category = %q, want Groceries", got.Category)
	}
}

func TestMerchantCache_PutNeverOverwritesVerified(t *testing.T) {
	c := NewMerchantCache()
	c.Seed([]Normalization{{Original: "SBUX 991", Normalized: "Starbucks"}})

	c.Put(Normalization{Original: "SBUX 991", Normalized: "Sbux", Confidence: 0.99})

	got, ok := c.Lookup("SBUX 991")
	if !ok {
		t.Fatal("entry vanished")
	}
	if got.Normalized != "Starbucks" {
		t.Errorf("Normalized = %q, verified entry was overwritten", got.Normalized)
	}
}

func TestMerchantCache_LookupIsCaseInsensitive(t *testing.T) {
	c := NewMerchantCache()
	c.Seed([]Normalization{{Original: "Starbucks Store", Normalized: "Starbucks"}})

	if _, ok := c.Lookup("STARBUCKS STORE"); !ok {
		t.Error("lookup should ignore case")
	}
}
