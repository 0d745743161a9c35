package contextkey

import "testing"

func TestKeyDeterministic(t *testing.T) {
	g, err := NewGenerator(DefaultSchema())
	if err != nil {
		t.Fatal(err)
	}
	attrs := map[string]string{"industry": "tech", "deal_size": "large", "stage": "proposal"}
	first := g.Key(attrs)
	if first != "tech:large:proposal" {
		t.Errorf("expected tech:large:proposal, got %s", first)
	}
	for i := 0; i < 10; i++ {
		if got := g.Key(attrs); got != first {
			t.Fatalf("key not deterministic: %s vs %s", got, first)
		}
	}
}

func TestKeyMissingAttributes(t *testing.T) {
	g, _ := NewGenerator(DefaultSchema())

	tests := []struct {
		name  string
		attrs map[string]string
		want  string
	}{
		{"all missing", nil, "unknown:unknown:unknown"},
		{"partial", map[string]string{"industry": "finance"}, "finance:unknown:unknown"},
		{"empty value", map[string]string{"industry": "  ", "stage": "closed"}, "unknown:unknown:closed"},
		{"extras ignored", map[string]string{"industry": "tech", "region": "emea"}, "tech:unknown:unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Key(tt.attrs); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestKeyNormalization(t *testing.T) {
	g, _ := NewGenerator(DefaultSchema())
	attrs := map[string]string{
		"industry":  " Health Care ",
		"deal_size": "mid:tier",
		"stage":     "PROPOSAL",
	}
	if got := g.Key(attrs); got != "health_care:mid_tier:proposal" {
		t.Errorf("unexpected normalized key %s", got)
	}
}

func TestNewGeneratorRejectsMalformedSchema(t *testing.T) {
	if _, err := NewGenerator(nil); err == nil {
		t.Error("expected error for empty schema")
	}
	if _, err := NewGenerator([]string{"industry", " "}); err == nil {
		t.Error("expected error for blank attribute name")
	}
}

func TestSizeBucket(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{-1, "unknown"},
		{0, "unknown"},
		{10_000, "small"},
		{50_000, "mid"},
		{249_999, "mid"},
		{500_000, "large"},
		{2_000_000, "strategic"},
	}
	for _, tt := range tests {
		if got := SizeBucket(tt.amount); got != tt.want {
			t.Errorf("SizeBucket(%f) = %s, want %s", tt.amount, got, tt.want)
		}
	}
}
