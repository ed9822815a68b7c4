package feed

import (
	"cmp"
	"fmt"
	"log/slog"
	"strings"
)

const (
	defaultCurrency = "GBP"

	reasonMissingPrice = "missing price"
	reasonZeroPrice    = "zero price"
	reasonNoIdentity   = "missing id and title"
)

// Assembler turns raw records into output items for one dealer.
type Assembler struct {
	settings  Settings
	fieldMap  FieldMap
	images    *ImagePipeline
	describer *Describer
}

func NewAssembler(settings Settings) *Assembler {
	fieldMap := settings.FieldMap
	if len(fieldMap) == 0 {
		fieldMap = DefaultFieldMap()
	}
	phrases := settings.Phrases
	if len(phrases.Intros) == 0 {
		phrases = DefaultPhraseBank()
	}
	settings.Currency = cmp.Or(strings.TrimSpace(settings.Currency), defaultCurrency)
	if settings.ImageMode == "" {
		settings.ImageMode = ImageModeRepeated
	}

	selector := settings.Selector
	if selector == nil {
		selector = FirstSelector{}
		if settings.VariedPhrasing {
			selector = NewSeededSelector(settings.PhraseSeed)
		}
	}

	return &Assembler{
		settings:  settings,
		fieldMap:  fieldMap,
		images:    NewImagePipeline(settings),
		describer: NewDescriber(settings.DealerName, phrases, selector),
	}
}

// Run applies the inclusion filter and builds one item per included
// record, preserving input order.
func (a *Assembler) Run(records []Record) AssembleResult {
	result := AssembleResult{Items: make([]OutputItem, 0, len(records))}

	for i, record := range records {
		fields := IndexRecord(record)

		price := strings.TrimSpace(a.fieldMap.Lookup(fields, AttrPrice))
		if reason := rejectPrice(price, a.settings.Currency); reason != "" {
			result.reject(i, a.fieldMap.Lookup(fields, AttrID), reason)
			continue
		}

		item := a.buildItem(i, fields, price)
		// An item with neither g:id nor g:title cannot be matched by Google.
		id, hasID := item.Get("id")
		if _, hasTitle := item.Get("title"); !hasID && !hasTitle {
			result.reject(i, id, reasonNoIdentity)
			continue
		}

		result.Items = append(result.Items, item)
	}

	return result
}

func (r *AssembleResult) reject(index int, id, reason string) {
	slog.Debug("Vehicle rejected", "index", index, "id", id, "reason", reason)
	r.Rejected = append(r.Rejected, Rejection{Index: index, ID: id, Reason: reason})
}

// rejectPrice treats "0", "0.00" and "0 GBP" alike.
func rejectPrice(price, currency string) string {
	amount := strings.TrimPrefix(strings.TrimSpace(stripUnit(price, currency)), "£")
	switch {
	case amount == "":
		return reasonMissingPrice
	case strings.Trim(amount, "0.,") == "":
		return reasonZeroPrice
	}
	return ""
}

type itemBuilder struct {
	fields []Field
}

func (b *itemBuilder) add(name, value string) {
	if value = strings.TrimSpace(value); value == "" {
		return
	}
	b.fields = append(b.fields, Field{Name: name, Value: value})
}

func (b *itemBuilder) addGroup(name string, group ...Field) {
	kept := make([]Field, 0, len(group))
	for _, f := range group {
		if strings.TrimSpace(f.Value) != "" {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return
	}
	b.fields = append(b.fields, Field{Name: name, Group: kept})
}

func (a *Assembler) buildItem(index int, fields Fields, price string) OutputItem {
	lookup := func(attr Attribute) string {
		return strings.TrimSpace(a.fieldMap.Lookup(fields, attr))
	}

	brand := lookup(AttrMake)
	model := lookup(AttrModel)
	colour := lookup(AttrColour)
	year := lookup(AttrYear)
	mileage := lookup(AttrMileage)
	fuelRaw := lookup(AttrFuelType)
	link := lookup(AttrLink)

	fuel := Normalize(KindFuelType, fuelRaw)
	emissions := Normalize(KindEmissions, lookup(AttrEmissions))
	drivetrain := Normalize(KindDrivetrain, lookup(AttrDrivetrain))
	engineSize := Normalize(KindEngineSize, lookup(AttrEngineSize))
	bodyStyle := Normalize(KindBodyStyle, lookup(AttrBodyStyle))
	transmission := Normalize(KindTransmission, lookup(AttrTransmission))
	trim := Normalize(KindTrim, lookup(AttrTrim))

	// Scraped sources carry a ready-made title instead of model columns.
	title := cmp.Or(collapseSpaces(lookup(AttrTitle)), BuildTitle(year, brand, model, lookup(AttrDerivative)))
	description := a.describer.Run(VehicleText{
		Title:        title,
		Colour:       colour,
		EngineSize:   engineSize.Canonical,
		FuelRaw:      fuelRaw,
		Transmission: transmission.Canonical,
		Mileage:      mileage,
		Emissions:    emissions,
	})
	images := a.images.Run(lookup(AttrPhotos))

	b := &itemBuilder{}
	b.add("id", lookup(AttrID))
	b.add("availability", "in_stock")
	b.add("quantity", "1")
	b.add("title", title)
	b.add("description", description)
	b.add("link", link)
	if link != "" {
		b.add("link_template", link+"?store={store_code}")
	}
	b.add("image_link", images.Primary)
	a.addAdditionalImages(b, images.Additional)

	b.add("price", withUnit(price, a.settings.Currency))
	b.add("brand", brand)
	b.add("model", model)
	b.add("color", colour)
	b.add("year", year)
	b.add("mileage", withUnit(mileage, "miles"))

	if fuel.OK {
		b.add("engine", fuel.Canonical)
		b.add("fuel_type", fuel.Canonical)
	}
	if emissions.OK {
		b.add("emissions_standard", emissions.Canonical)
	}
	if bodyStyle.OK {
		b.add("body_style", bodyStyle.Canonical)
	}
	if transmission.OK {
		b.add("transmission", transmission.Canonical)
	}
	if drivetrain.OK {
		b.add("drivetrain", drivetrain.Canonical)
	}
	b.add("doors", lookup(AttrDoors))
	if trim.OK {
		b.add("trim", trim.Canonical)
	}
	if r := lookup(AttrElectricRange); nonZero(r) {
		b.add("electric_range", withUnit(r, "miles"))
	}
	if mpg := cmp.Or(nonZeroOrEmpty(lookup(AttrMPGWLTP)), nonZeroOrEmpty(lookup(AttrMPGNEDC))); mpg != "" {
		b.add("fuel_efficiency", withUnit(mpg, "mpg"))
	}

	b.add("condition", "used")
	b.add("vehicle_type", "car")
	b.add("google_product_category", a.settings.ProductCategory)
	b.addGroup("vehicle_fulfillment",
		Field{Name: "option", Value: "in_store"},
		Field{Name: "store_code", Value: a.settings.StoreCode},
	)
	b.add("store_code", a.settings.StoreCode)

	return OutputItem{sourceIndex: index, fields: b.fields}
}

func (a *Assembler) addAdditionalImages(b *itemBuilder, additional []string) {
	if len(additional) == 0 {
		return
	}
	if a.settings.ImageMode == ImageModeJoined {
		b.add("additional_image_link", strings.Join(additional, ","))
		return
	}
	for _, img := range additional {
		b.add("additional_image_link", img)
	}
}

func nonZero(v string) bool {
	return v != "" && v != "0"
}

func nonZeroOrEmpty(v string) string {
	if nonZero(v) {
		return v
	}
	return ""
}

// String implements fmt.Stringer for log output.
func (r Rejection) String() string {
	return fmt.Sprintf("#%d %s: %s", r.Index, cmp.Or(r.ID, "<no id>"), r.Reason)
}
