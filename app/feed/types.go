package feed

import (
	"fmt"
	"slices"
)

// Record is one raw vehicle as handed over by a source. Keys are not
// guaranteed to be unique in case or spelling.
type Record map[string]string

// Kind names a normalized vehicle attribute.
type Kind string

const (
	KindFuelType     Kind = "fuel_type"
	KindEmissions    Kind = "emissions"
	KindDrivetrain   Kind = "drivetrain"
	KindEngineSize   Kind = "engine_size"
	KindBodyStyle    Kind = "body_style"
	KindTransmission Kind = "transmission"
	KindTrim         Kind = "trim"
)

type NormalizedAttribute struct {
	Kind      Kind
	Raw       string
	Canonical string
	OK        bool // false means absent: omit, never default
}

type ImageSet struct {
	Primary    string
	Additional []string
}

func (s ImageSet) Len() int {
	if s.Primary == "" {
		return 0
	}
	return 1 + len(s.Additional)
}

// Field is a single output element. Group is set for nested elements such
// as vehicle_fulfillment, in which case Value is ignored.
type Field struct {
	Name  string
	Value string
	Group []Field
}

// OutputItem is the resolved representation of one vehicle. It is built by
// the Assembler and only exposes copies of its fields.
type OutputItem struct {
	sourceIndex int
	fields      []Field
}

func (i OutputItem) SourceIndex() int {
	return i.sourceIndex
}

func (i OutputItem) Fields() []Field {
	out := make([]Field, len(i.fields))
	for n, f := range i.fields {
		out[n] = Field{Name: f.Name, Value: f.Value, Group: slices.Clone(f.Group)}
	}
	return out
}

// Get returns the value of the first field with the given name.
func (i OutputItem) Get(name string) (string, bool) {
	for _, f := range i.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

func (i OutputItem) GetAll(name string) []string {
	var values []string
	for _, f := range i.fields {
		if f.Name == name {
			values = append(values, f.Value)
		}
	}
	return values
}

func (i OutputItem) Group(name string) ([]Field, bool) {
	for _, f := range i.fields {
		if f.Name == name && f.Group != nil {
			return slices.Clone(f.Group), true
		}
	}
	return nil, false
}

// Channel is the static per-run feed header.
type Channel struct {
	Title       string
	Link        string
	Description string
}

// Rejection records a vehicle excluded by the inclusion filter.
type Rejection struct {
	Index  int
	ID     string
	Reason string
}

type AssembleResult struct {
	Items    []OutputItem
	Rejected []Rejection
}

// ImageMode selects how additional images are serialized.
type ImageMode string

const (
	ImageModeRepeated ImageMode = "repeated"
	ImageModeJoined   ImageMode = "joined"
)

func ParseImageMode(s string) (ImageMode, error) {
	switch ImageMode(s) {
	case ImageModeRepeated, ImageModeJoined:
		return ImageMode(s), nil
	case "":
		return ImageModeRepeated, nil
	default:
		return "", fmt.Errorf("unknown image mode %q (want %q or %q)", s, ImageModeRepeated, ImageModeJoined)
	}
}

// Settings holds the per-deployment constants the assembler needs.
type Settings struct {
	DealerName         string
	DealerURL          string
	FeedDescription    string
	ProductCategory    string
	StoreCode          string
	Currency           string
	ImageMode          ImageMode
	EscapeImages       bool
	ImageBaseURL       string
	MaxAdditionalImage int

	FieldMap FieldMap
	Phrases  PhraseBank

	// A fresh selector is built per Assembler unless Selector is set.
	VariedPhrasing bool
	PhraseSeed     uint64
	Selector       Selector
}

// Channel derives the feed header from the dealer settings.
func (s Settings) Channel() Channel {
	description := s.FeedDescription
	if description == "" {
		description = fmt.Sprintf("Vehicle Feed for %s", s.DealerName)
	}
	return Channel{
		Title:       s.DealerName,
		Link:        s.DealerURL,
		Description: description,
	}
}
