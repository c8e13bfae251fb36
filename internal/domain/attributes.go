package domain

import "time"

// Attribute keys exposed on location event entities.
const (
	AttrTitle           = "title"
	AttrFeatureType     = "featureType"
	AttrType            = "type"
	AttrSubCategory     = "subCategory"
	AttrRoad            = "road"
	AttrCouncil         = "council"
	AttrCategory        = "category"
	AttrDescription     = "description"
	AttrPublicationDate = "publication_date"
	AttrAdviceA         = "adviceA"
	AttrAdviceB         = "adviceB"
	AttrDiversions      = "diversions"
	AttrPublicTransport = "publicTransport"
	AttrAdviceOther     = "adviceOther"
	AttrOtherAdvice     = "otherAdvice"
	AttrIsMajor         = "isMajor"
	AttrIsEnded         = "isEnded"
	AttrIsNew           = "isNew"
	AttrIsImpactNetwork = "isImpactNetwork"
	AttrDuration        = "duration"
	AttrExternalID      = "external_id"
	AttrAttribution     = "attribution"
	AttrPicture         = "entity_picture"
	AttrLocation        = "location"
)

// Attribute is a single key/value candidate for an attribute map.
type Attribute struct {
	Key   string
	Value any
}

// BuildAttributes keeps the attributes whose value is truthy or a boolean.
// Later duplicates overwrite earlier ones.
func BuildAttributes(attrs []Attribute) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, a := range attrs {
		if keepAttribute(a.Value) {
			out[a.Key] = a.Value
		}
	}
	return out
}

func keepAttribute(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return true
	case *bool:
		return x != nil
	case string:
		return x != ""
	case time.Time:
		return !x.IsZero()
	case float64:
		return x != 0
	case int:
		return x != 0
	default:
		return true
	}
}
