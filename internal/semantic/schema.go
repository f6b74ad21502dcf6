package semantic

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"prediction-feed/internal/domain"
)

// ErrInvalidOutput is returned when provider output does not match the schema.
var ErrInvalidOutput = errors.New("invalid semantic output")

var categoryAliases = map[string]domain.Category{
	"tech":    domain.CategoryTechAI,
	"ai":      domain.CategoryTechAI,
	"science": domain.CategoryTechAI,
	"culture": domain.CategoryEntertainment,
}

var geoAliases = map[string]domain.GeoTag{
	"us":          domain.GeoUS,
	"usa":         domain.GeoUS,
	"eu":          domain.GeoEU,
	"europe":      domain.GeoEU,
	"asia":        domain.GeoAsia,
	"africa":      domain.GeoAfrica,
	"middleeast":  domain.GeoMiddleEast,
	"middle_east": domain.GeoMiddleEast,
	"middle east": domain.GeoMiddleEast,
	"world":       domain.GeoWorld,
	"global":      domain.GeoWorld,
}

// ParseOutputText parses provider text, tolerating code fences and prose.
func ParseOutputText(text string) (domain.SemanticOutput, error) {
	content := cleanJSONResponse(text)

	var record map[string]any
	if err := json.Unmarshal([]byte(content), &record); err != nil {
		return domain.SemanticOutput{}, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	return ParseOutput(record)
}

// ParseOutput validates a decoded JSON object.
// snake_case and camelCase keys are both accepted. Any invalid field rejects
// the whole output, except geo which falls back to World.
func ParseOutput(record map[string]any) (domain.SemanticOutput, error) {
	var out domain.SemanticOutput

	meme, ok := first(record, "is_meme", "isMeme").(bool)
	if !ok {
		return out, fmt.Errorf("%w: is_meme must be a boolean", ErrInvalidOutput)
	}

	rawScore, ok := domain.AsNumber(first(record, "newsworthiness_score", "newsworthinessScore"))
	score := int(math.Round(rawScore))
	if !ok || score < 1 || score > 100 {
		return out, fmt.Errorf("%w: newsworthiness_score out of range", ErrInvalidOutput)
	}

	category, ok := parseCategory(record["category"])
	if !ok {
		return out, fmt.Errorf("%w: unknown category %v", ErrInvalidOutput, record["category"])
	}

	confidence, ok := domain.AsNumber(record["confidence"])
	if !ok || confidence < 0 || confidence > 1 {
		return out, fmt.Errorf("%w: confidence out of range", ErrInvalidOutput)
	}

	return domain.SemanticOutput{
		IsMeme:              meme,
		NewsworthinessScore: score,
		Category:            category,
		GeoTag:              parseGeo(first(record, "geo_tag", "geoTag")),
		Confidence:          confidence,
	}, nil
}

func first(record map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := record[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func parseCategory(v any) (domain.Category, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.Join(strings.FieldsFunc(normalized, func(r rune) bool {
		return r == ' ' || r == '/' || r == '-' || r == '\t'
	}), "_")

	if c := domain.Category(normalized); c.IsValid() {
		return c, true
	}
	c, ok := categoryAliases[normalized]
	return c, ok
}

func parseGeo(v any) domain.GeoTag {
	s, ok := v.(string)
	if !ok {
		return domain.GeoWorld
	}
	s = strings.TrimSpace(s)
	if g := domain.GeoTag(s); g.IsValid() {
		return g
	}
	if g, ok := geoAliases[strings.ToLower(s)]; ok {
		return g
	}
	return domain.GeoWorld
}

// JSONSchema is the strict response schema sent to providers that support one.
func JSONSchema() map[string]any {
	categories := make([]string, 0, len(domain.AllCategories))
	for _, c := range domain.AllCategories {
		categories = append(categories, c.String())
	}
	geos := make([]string, 0, len(domain.AllGeoTags))
	for _, g := range domain.AllGeoTags {
		geos = append(geos, g.String())
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"is_meme":              map[string]any{"type": "boolean"},
			"newsworthiness_score": map[string]any{"type": "integer", "minimum": 1, "maximum": 100},
			"category":             map[string]any{"type": "string", "enum": categories},
			"geo_tag":              map[string]any{"type": "string", "enum": geos},
			"confidence":           map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		},
		"required": []string{"is_meme", "newsworthiness_score", "category", "geo_tag", "confidence"},
	}
}

func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	// Some model responses include extra prose around JSON.
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}
