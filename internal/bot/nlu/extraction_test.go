package nlu_test

import (
	"errors"
	"testing"

	"github.com/prasadmotors/dealerbot/internal/bot/nlu"
)

func TestCanonicalBrandAliases(t *testing.T) {
	// Every spelling of the same brand must land on one canonical value.
	cases := []string{"maruti", "maruthi", "suzuki", "Maruti Suzuki", "maruthi suzuki", "MARUTI"}
	for _, in := range cases {
		got, ok := nlu.CanonicalBrand(in)
		if !ok {
			t.Fatalf("CanonicalBrand(%q) not resolved", in)
		}
		if got != "Maruti Suzuki" {
			t.Fatalf("CanonicalBrand(%q) = %q, want Maruti Suzuki", in, got)
		}
	}

	if _, ok := nlu.CanonicalBrand("ferrari"); ok {
		t.Fatal("unknown brand should not resolve")
	}
}

func TestParseLakhs(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"8 lakhs", 8, true},
		{"7.5 lacs", 7.5, true},
		{"under 8 lakh", 8, true},
		{"₹8,00,000", 8, true},
		{"rs 450000", 4.5, true},
		{"no money talk here", 0, false},
	}
	for _, tt := range tests {
		got, ok := nlu.ParseLakhs(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("ParseLakhs(%q) = %v,%v want %v,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCanonicalBudgetBrackets(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"8 lakhs", "₹5-10 Lakhs"},
		{"4 lakhs", "Under ₹5 Lakhs"},
		{"15 lakhs", "₹10-20 Lakhs"},
		{"25 lakhs", "Above ₹20 Lakhs"},
		{"cheap", "Under ₹5 Lakhs"},
		{"luxury", "Above ₹20 Lakhs"},
		{"₹5-10 Lakhs", "₹5-10 Lakhs"},
	}
	for _, tt := range tests {
		got, ok := nlu.CanonicalBudget(tt.in)
		if !ok || got != tt.want {
			t.Errorf("CanonicalBudget(%q) = %q,%v want %q", tt.in, got, ok, tt.want)
		}
	}
}

func TestFallbackExtractMultiSlot(t *testing.T) {
	f := nlu.NewFallbackExtractor()
	ext := f.Extract("I want a Hyundai sedan under 8 lakhs")

	if ext.Confidence != nlu.FallbackEntityConfidence {
		t.Fatalf("confidence = %v, want %v", ext.Confidence, nlu.FallbackEntityConfidence)
	}
	want := map[string]string{
		nlu.EntityBrand:   "Hyundai",
		nlu.EntityCarType: "Sedan",
		nlu.EntityBudget:  "₹5-10 Lakhs",
	}
	for key, value := range want {
		if ext.Entities[key] != value {
			t.Errorf("entity %s = %q, want %q", key, ext.Entities[key], value)
		}
	}
}

func TestFallbackExtractIntentOnly(t *testing.T) {
	f := nlu.NewFallbackExtractor()

	ext := f.Extract("I'd like to sell my old car")
	if ext.Intent != nlu.IntentValuation {
		t.Fatalf("intent = %v, want valuation", ext.Intent)
	}
	if ext.Confidence != nlu.FallbackIntentConfidence {
		t.Fatalf("confidence = %v, want %v", ext.Confidence, nlu.FallbackIntentConfidence)
	}

	ext = f.Extract("what do you think about the weather")
	// "about" is an intent keyword; a message with no entities still gets a
	// coarse classification rather than silence.
	if ext.Intent != nlu.IntentAbout {
		t.Fatalf("intent = %v, want about", ext.Intent)
	}

	ext = f.Extract("lovely weather today")
	if ext.Intent != nlu.IntentUnknown || ext.Confidence != 0 {
		t.Fatalf("gibberish should be unknown/0, got %v/%v", ext.Intent, ext.Confidence)
	}
}

func TestFallbackExtractNumericEntities(t *testing.T) {
	f := nlu.NewFallbackExtractor()
	ext := f.Extract("2019 swift, 45,000 kms, call me on 9876543210")

	if ext.Entities[nlu.EntityYear] != "2019" {
		t.Errorf("year = %q", ext.Entities[nlu.EntityYear])
	}
	if ext.Entities[nlu.EntityKms] != "45000" {
		t.Errorf("kms = %q", ext.Entities[nlu.EntityKms])
	}
	if ext.Entities[nlu.EntityPhone] != "9876543210" {
		t.Errorf("phone = %q", ext.Entities[nlu.EntityPhone])
	}
}

func TestParseExtraction(t *testing.T) {
	raw := "```json\n{\"intent\": \"browse\", \"entities\": {\"brand\": \"maruthi\", \"car_type\": \"saloon\"}, \"confidence\": 0.92}\n```"
	ext, err := nlu.ParseExtraction(raw)
	if err != nil {
		t.Fatalf("ParseExtraction: %v", err)
	}
	if ext.Intent != nlu.IntentBrowse {
		t.Errorf("intent = %v", ext.Intent)
	}
	if ext.Entities[nlu.EntityBrand] != "Maruti Suzuki" {
		t.Errorf("brand not canonicalized: %q", ext.Entities[nlu.EntityBrand])
	}
	if ext.Entities[nlu.EntityCarType] != "Sedan" {
		t.Errorf("car_type not canonicalized: %q", ext.Entities[nlu.EntityCarType])
	}
}

func TestParseExtractionDropsUnresolvable(t *testing.T) {
	ext, err := nlu.ParseExtraction(`{"intent": "browse", "entities": {"brand": "lamborghini", "name": "Rahul"}, "confidence": 0.9}`)
	if err != nil {
		t.Fatalf("ParseExtraction: %v", err)
	}
	if _, ok := ext.Entities[nlu.EntityBrand]; ok {
		t.Error("unresolvable brand should be dropped")
	}
	if ext.Entities[nlu.EntityName] != "Rahul" {
		t.Error("free-form entity should pass through")
	}
}

func TestParseExtractionMalformed(t *testing.T) {
	cases := []string{
		"",
		"I cannot answer that.",
		`{"intent": "world domination"}`,
		`{"intent": "browse", "confidence": 3}`,
		`{"intent": "browse", "entities": {"brand": 7}}`,
	}
	for _, raw := range cases {
		if _, err := nlu.ParseExtraction(raw); !errors.Is(err, nlu.ErrMalformedOutput) {
			t.Errorf("ParseExtraction(%q) err = %v, want ErrMalformedOutput", raw, err)
		}
	}
}
