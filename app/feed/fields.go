package feed

import (
	"slices"
	"strings"
)

// Attribute is a logical vehicle field looked up through the FieldMap.
type Attribute string

const (
	AttrID            Attribute = "id"
	AttrPrice         Attribute = "price"
	AttrMake          Attribute = "make"
	AttrModel         Attribute = "model"
	AttrDerivative    Attribute = "derivative"
	AttrColour        Attribute = "colour"
	AttrYear          Attribute = "year"
	AttrMileage       Attribute = "mileage"
	AttrFuelType      Attribute = "fuel_type"
	AttrTransmission  Attribute = "transmission"
	AttrBodyStyle     Attribute = "body_style"
	AttrEngineSize    Attribute = "engine_size"
	AttrEmissions     Attribute = "emissions"
	AttrDrivetrain    Attribute = "drivetrain"
	AttrDoors         Attribute = "doors"
	AttrTrim          Attribute = "trim"
	AttrElectricRange Attribute = "electric_range"
	AttrMPGWLTP       Attribute = "mpg_wltp"
	AttrMPGNEDC       Attribute = "mpg_nedc"
	AttrLink          Attribute = "link"
	AttrPhotos        Attribute = "photos"
	AttrTitle         Attribute = "title"
)

// FieldMap maps each attribute to the source key spellings accepted for it,
// in priority order.
type FieldMap map[Attribute][]string

func DefaultFieldMap() FieldMap {
	return FieldMap{
		AttrID:            {"registration", "vin", "id", "offer_id"},
		AttrPrice:         {"suppliedPrice", "price", "retail_price"},
		AttrMake:          {"make", "brand"},
		AttrModel:         {"model"},
		AttrDerivative:    {"derivative", "variant"},
		AttrColour:        {"colour", "color"},
		AttrYear:          {"yearOfManufacture", "year"},
		AttrMileage:       {"odometerReadingMiles", "mileage"},
		AttrFuelType:      {"fuelType", "fuel_type"},
		AttrTransmission:  {"transmissionType", "transmission"},
		AttrBodyStyle:     {"bodyType", "body_style"},
		AttrEngineSize:    {"badgeEngineSizeLitres", "engineSize", "engine_size"},
		AttrEmissions:     {"emissionClass", "emissions"},
		AttrDrivetrain:    {"drivetrain", "drivetrainType"},
		AttrDoors:         {"doors", "numberOfDoors"},
		AttrTrim:          {"trim"},
		AttrElectricRange: {"batteryRangeMiles", "electric_range"},
		AttrMPGWLTP:       {"wltpCombinedMpg", "wltp_mpg"},
		AttrMPGNEDC:       {"nedcCombinedMpg", "combinedMpg", "mpg"},
		AttrLink:          {"url", "advert_url", "link"},
		AttrPhotos:        {"photos", "image_urls", "photosurl"},
		AttrTitle:         {"title"},
	}
}

func knownAttribute(a Attribute) bool {
	_, ok := DefaultFieldMap()[a]
	return ok
}

// Lookup resolves an attribute against an indexed record.
func (m FieldMap) Lookup(fields Fields, attr Attribute) string {
	return fields.Resolve(m[attr]...)
}

// Merge returns a copy of m with the key lists of override replacing the
// corresponding entries.
func (m FieldMap) Merge(override FieldMap) FieldMap {
	merged := make(FieldMap, len(m))
	for attr, keys := range m {
		merged[attr] = slices.Clone(keys)
	}
	for attr, keys := range override {
		merged[attr] = slices.Clone(keys)
	}
	return merged
}

// Fields is a case and whitespace insensitive view of a Record.
type Fields struct {
	index map[string]string
}

// IndexRecord builds the lookup index for a record once. Raw keys that
// collapse to the same normalized key resolve to the value of the last one
// in sorted key order.
func IndexRecord(record Record) Fields {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	index := make(map[string]string, len(keys))
	for _, k := range keys {
		nk := normalizeKey(k)
		if nk == "" {
			continue
		}
		index[nk] = record[k]
	}
	return Fields{index: index}
}

// Resolve returns the value of the first candidate key present, or "".
func (f Fields) Resolve(candidates ...string) string {
	for _, key := range candidates {
		if v, ok := f.index[normalizeKey(key)]; ok {
			return v
		}
	}
	return ""
}

// Resolve is a one-shot lookup for callers that only need a single value.
func Resolve(record Record, candidates ...string) string {
	return IndexRecord(record).Resolve(candidates...)
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}
