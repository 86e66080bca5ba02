// Package classify derives sector, region and tone from item text using
// keyword heuristics. All functions are pure; matching is case-insensitive
// substring matching throughout — the detection thresholds were tuned against
// substring semantics, so do not upgrade to token matching.
package classify

import "strings"

// Fixed sector taxonomy, first match wins.
var sectorRules = []struct {
	name     string
	keywords []string
}{
	{"energie", []string{"oil", "opec", "energie", "energy", "gaz", "pétrole"}},
	{"banques", []string{"bank", "banque", "credit", "finance", "fed", "ecb", "bce", "taux"}},
	{"technologie", []string{"chip", "semi", "nvidia", "intel", "ai", "cloud", "tech", "software", "apple", "google", "microsoft"}},
	{"auto", []string{"auto", "tesla", "toyota", "volkswagen"}},
	{"crypto", []string{"bitcoin", "crypto", "ethereum", "binance", "coinbase"}},
}

// Fixed region taxonomy, first match wins.
var regionRules = []struct {
	name     string
	keywords []string
}{
	{"fr", []string{"france", "paris", "macron", "amf"}},
	{"eu", []string{"europe", "eurozone", "germany", "german", "ecb", "bce", "commission"}},
	{"us", []string{"usa", "u.s.", "united states", "washington", "sec"}},
}

var positiveWords = []string{"record profit", "beat", "growth", "upgrade", "rally", "optimis", "green", "progress", "surge", "boom"}

var negativeWords = []string{"crisis", "war", "conflict", "down", "drop", "cut", "ban", "fine", "probe", "fraud", "red", "strike", "sanction", "layoff", "collapse", "plunge"}

// ContainsAny reports whether text contains any of the keywords,
// case-insensitively. It is the matching primitive shared with the signal
// detector's family bucketing and official-source check.
func ContainsAny(text string, keywords []string) bool {
	t := strings.ToLower(text)
	for _, k := range keywords {
		if k != "" && strings.Contains(t, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// Sector assigns exactly one sector from the fixed taxonomy; "autre" when
// nothing matches.
func Sector(text string) string {
	for _, rule := range sectorRules {
		if ContainsAny(text, rule.keywords) {
			return rule.name
		}
	}
	return "autre"
}

// Region assigns exactly one region from the fixed taxonomy; "monde" when
// nothing matches.
func Region(text string) string {
	for _, rule := range regionRules {
		if ContainsAny(text, rule.keywords) {
			return rule.name
		}
	}
	return "monde"
}

// Tone scores text as +1 when only positive keywords match, -1 when only
// negative keywords match, and 0 otherwise (both or neither).
func Tone(text string) int {
	pos := ContainsAny(text, positiveWords)
	neg := ContainsAny(text, negativeWords)
	switch {
	case pos && !neg:
		return 1
	case neg && !pos:
		return -1
	default:
		return 0
	}
}

// Impact derives the 0-100 impact score from a tone value.
func Impact(tone int) int {
	impact := 50 + 20*tone
	if impact < 0 {
		return 0
	}
	if impact > 100 {
		return 100
	}
	return impact
}
