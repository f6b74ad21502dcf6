package domain

// Category is the closed set of semantic topic categories.
type Category string

const (
	CategoryPolitics      Category = "politics"
	CategoryEconomy       Category = "economy"
	CategoryPolicy        Category = "policy"
	CategoryGeopolitics   Category = "geopolitics"
	CategoryPublicHealth  Category = "public_health"
	CategoryClimateEnergy Category = "climate_energy"
	CategoryTechAI        Category = "tech_ai"
	CategorySports        Category = "sports"
	CategoryEntertainment Category = "entertainment"
	CategoryOther         Category = "other"
)

// AllCategories lists every category in declaration order.
var AllCategories = []Category{
	CategoryPolitics,
	CategoryEconomy,
	CategoryPolicy,
	CategoryGeopolitics,
	CategoryPublicHealth,
	CategoryClimateEnergy,
	CategoryTechAI,
	CategorySports,
	CategoryEntertainment,
	CategoryOther,
}

// String returns the string representation of Category.
func (c Category) String() string {
	return string(c)
}

// IsValid checks if the category is a member of the closed set.
func (c Category) IsValid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// GeoTag is the closed set of geographic focus tags.
type GeoTag string

const (
	GeoUS         GeoTag = "US"
	GeoEU         GeoTag = "EU"
	GeoAsia       GeoTag = "Asia"
	GeoAfrica     GeoTag = "Africa"
	GeoMiddleEast GeoTag = "MiddleEast"
	GeoWorld      GeoTag = "World"
)

// AllGeoTags lists every geo tag.
var AllGeoTags = []GeoTag{GeoUS, GeoEU, GeoAsia, GeoAfrica, GeoMiddleEast, GeoWorld}

// String returns the string representation of GeoTag.
func (g GeoTag) String() string {
	return string(g)
}

// IsValid checks if the geo tag is a member of the closed set.
func (g GeoTag) IsValid() bool {
	for _, known := range AllGeoTags {
		if g == known {
			return true
		}
	}
	return false
}
