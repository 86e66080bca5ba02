package classify

import "testing"

func TestSectorFirstMatchWins(t *testing.T) {
	t.Parallel()

	// Matches both energie ("oil") and banques ("bank"); energie is tested first.
	if got := Sector("Oil major seeks bank loan"); got != "energie" {
		t.Fatalf("expected energie, got %q", got)
	}
	if got := Sector("Nvidia ships new chip"); got != "technologie" {
		t.Fatalf("expected technologie, got %q", got)
	}
	if got := Sector("Local festival draws crowds"); got != "autre" {
		t.Fatalf("expected autre fallback, got %q", got)
	}
}

func TestRegion(t *testing.T) {
	t.Parallel()

	if got := Region("Paris summit opens"); got != "fr" {
		t.Fatalf("expected fr, got %q", got)
	}
	if got := Region("Eurozone inflation holds"); got != "eu" {
		t.Fatalf("expected eu, got %q", got)
	}
	if got := Region("Washington weighs new rules"); got != "us" {
		t.Fatalf("expected us, got %q", got)
	}
	if got := Region("Tokyo markets open flat"); got != "monde" {
		t.Fatalf("expected monde fallback, got %q", got)
	}
}

func TestTone(t *testing.T) {
	t.Parallel()

	if got := Tone("Shares rally on record profit"); got != 1 {
		t.Fatalf("positive-only text: expected +1, got %d", got)
	}
	if got := Tone("Regulator issues fine after probe"); got != -1 {
		t.Fatalf("negative-only text: expected -1, got %d", got)
	}
	if got := Tone("Rally fades as crisis deepens"); got != 0 {
		t.Fatalf("both matched: expected 0, got %d", got)
	}
	if got := Tone("Committee meets on schedule"); got != 0 {
		t.Fatalf("neither matched: expected 0, got %d", got)
	}
}

func TestImpact(t *testing.T) {
	t.Parallel()

	cases := []struct{ tone, want int }{
		{-1, 30},
		{0, 50},
		{1, 70},
		{-5, 0},
		{5, 100},
	}
	for _, tc := range cases {
		if got := Impact(tc.tone); got != tc.want {
			t.Fatalf("Impact(%d) = %d, want %d", tc.tone, got, tc.want)
		}
	}
}

func TestContainsAny(t *testing.T) {
	t.Parallel()

	if !ContainsAny("European Central Bank statement", []string{"central bank"}) {
		t.Fatal("case-insensitive substring should match")
	}
	if ContainsAny("plain text", []string{""}) {
		t.Fatal("empty keyword must not match everything")
	}
	if ContainsAny("plain text", nil) {
		t.Fatal("nil keywords must not match")
	}
}
