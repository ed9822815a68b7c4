package feed

import (
	"fmt"
	"strings"
)

// VehicleText carries the raw and normalized values the description is
// composed from. Empty fields are skipped.
type VehicleText struct {
	Title        string
	Colour       string
	EngineSize   string // normalized, e.g. "1.2L"
	FuelRaw      string
	Transmission string
	Mileage      string
	Emissions    NormalizedAttribute
}

type Describer struct {
	dealer   string
	phrases  PhraseBank
	selector Selector
}

func NewDescriber(dealer string, phrases PhraseBank, selector Selector) *Describer {
	if selector == nil {
		selector = FirstSelector{}
	}
	return &Describer{dealer: dealer, phrases: phrases, selector: selector}
}

// Run joins one sentence per available attribute group with a single space.
// The opening and closing sentences are always present.
func (d *Describer) Run(v VehicleText) string {
	sentences := make([]string, 0, 6)

	title := v.Title
	if clean(title) == "" {
		title = "vehicle"
	}
	sentences = append(sentences, sentence(pick(d.selector, d.phrases.Intros, "Introducing this"), title))

	if colour := clean(v.Colour); colour != "" {
		sentences = append(sentences, sentence(
			pick(d.selector, d.phrases.ColourIntros, "Finished in"),
			pick(d.selector, d.phrases.ColourAdjective, ""),
			colour,
		))
	}

	if powertrain := joinNonEmpty(clean(v.EngineSize), clean(v.FuelRaw)); powertrain != "" {
		parts := []string{pick(d.selector, d.phrases.EngineIntros, "Powered by a"), powertrain, "engine"}
		if trans := clean(v.Transmission); trans != "" {
			parts = append(parts, "with", trans, "transmission")
		}
		sentences = append(sentences, sentence(parts...))
	}

	if mileage := clean(v.Mileage); mileage != "" {
		sentences = append(sentences, sentence("Has covered", stripUnit(mileage, "miles"), "miles"))
	}

	if v.Emissions.OK {
		if raw := clean(v.Emissions.Raw); raw != "" {
			sentences = append(sentences, sentence("Emissions:", raw))
		}
	}

	sentences = append(sentences, sentence("Available immediately at", d.dealer))

	return strings.Join(sentences, " ")
}

// BuildTitle joins year, make, model and derivative into a single line.
func BuildTitle(year, brand, model, derivative string) string {
	return joinNonEmpty(year, brand, model, derivative)
}

// sentence joins the non-empty words and terminates the result with a
// single period.
func sentence(words ...string) string {
	s := joinNonEmpty(words...)
	s = strings.TrimRight(s, ". ")
	return s + "."
}

func joinNonEmpty(parts ...string) string {
	return collapseSpaces(strings.Join(parts, " "))
}

// clean collapses whitespace and drops trailing periods.
func clean(s string) string {
	return strings.TrimRight(collapseSpaces(s), ".")
}

// withUnit appends unit to v unless v already ends with it.
func withUnit(v, unit string) string {
	v = collapseSpaces(v)
	if v == "" {
		return ""
	}
	if hasUnit(v, unit) {
		return v
	}
	return fmt.Sprintf("%s %s", v, unit)
}

func stripUnit(v, unit string) string {
	if hasUnit(v, unit) {
		return strings.TrimSpace(v[:len(v)-len(unit)])
	}
	return v
}

func hasUnit(v, unit string) bool {
	return len(v) >= len(unit) && strings.EqualFold(v[len(v)-len(unit):], unit)
}
