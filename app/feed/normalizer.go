package feed

import (
	"math"
	"strconv"
	"strings"
)

var fuelRules = []struct{ token, canonical string }{
	{"petrol", "gasoline"},
	{"diesel", "diesel"},
	{"electric", "electric"},
	{"hybrid", "hybrid"},
}

// Ordered most specific first: euro6d-temp must be probed before euro6d.
var emissionsRules = []struct{ token, canonical string }{
	{"euro6d-temp", "euro6d-temp"},
	{"euro6d", "euro6d"},
	{"euro6c", "euro6c"},
	{"euro6", "euro6"},
	{"euro5", "euro5"},
	{"zero", "zero emission"},
}

// Normalize maps a raw source value onto the controlled vocabulary of kind.
func Normalize(kind Kind, raw string) NormalizedAttribute {
	attr := NormalizedAttribute{Kind: kind, Raw: raw}

	var canonical string
	var ok bool
	switch kind {
	case KindFuelType:
		canonical, ok = NormalizeFuelType(raw)
	case KindEmissions:
		canonical, ok = NormalizeEmissions(raw)
	case KindDrivetrain:
		canonical, ok = NormalizeDrivetrain(raw)
	case KindEngineSize:
		canonical, ok = NormalizeEngineSize(raw)
	case KindTrim:
		canonical, ok = normalizeTrim(raw)
	case KindBodyStyle, KindTransmission:
		canonical, ok = passThrough(raw)
	}

	attr.Canonical = canonical
	attr.OK = ok
	return attr
}

func NormalizeFuelType(raw string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return "", false
	}
	for _, rule := range fuelRules {
		if strings.Contains(v, rule.token) {
			return rule.canonical, true
		}
	}
	return "other", true
}

func NormalizeEmissions(raw string) (string, bool) {
	v := strings.ToLower(strings.ReplaceAll(raw, " ", ""))
	if v == "" {
		return "", false
	}
	for _, rule := range emissionsRules {
		if strings.Contains(v, rule.token) {
			return rule.canonical, true
		}
	}
	return "", false
}

func NormalizeDrivetrain(raw string) (string, bool) {
	v := strings.ToLower(raw)
	switch {
	case v == "":
		return "", false
	case strings.Contains(v, "front"):
		return "FWD", true
	case strings.Contains(v, "rear"):
		return "RWD", true
	case strings.Contains(v, "4x4"), strings.Contains(v, "four"), strings.Contains(v, "all"):
		return "4WD", true
	}
	return "", false
}

// NormalizeEngineSize formats a litre value as "<value>L". Integral values
// keep a single decimal place ("2" becomes "2.0L").
func NormalizeEngineSize(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", false
	}
	size, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(size) || math.IsInf(size, 0) || size <= 0 {
		return "", false
	}

	s := strconv.FormatFloat(size, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s + "L", true
}

func normalizeTrim(raw string) (string, bool) {
	v, ok := passThrough(raw)
	if !ok || strings.EqualFold(v, "unlisted") {
		return "", false
	}
	return v, true
}

func passThrough(raw string) (string, bool) {
	v := collapseSpaces(raw)
	return v, v != ""
}

// collapseSpaces trims s and replaces every whitespace run with one space.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
