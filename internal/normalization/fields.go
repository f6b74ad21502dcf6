package normalization

import (
	"encoding/json"
	"math"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"prediction-feed/internal/domain"
)

const siteURL = "https://polymarket.com"

// marketURL resolves the public URL for a listing.
// Precedence: canonical explicit url, event slug, listing slug, /market/{id}.
func marketURL(raw domain.RawListing, events []domain.RawListing, id string) string {
	if direct, ok := raw.String("url"); ok {
		if u, ok := canonicalURL(direct); ok {
			return u
		}
	}

	if len(events) > 0 {
		if slug, ok := events[0].String("slug"); ok {
			return siteURL + "/event/" + url.PathEscape(slug)
		}
	}

	if slug, ok := raw.String("slug"); ok {
		return siteURL + "/event/" + url.PathEscape(slug)
	}

	return siteURL + "/market/" + url.PathEscape(id)
}

// canonicalURL accepts polymarket.com and its subdomains only, forcing https.
func canonicalURL(s string) (string, bool) {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host != "polymarket.com" && !strings.HasSuffix(host, ".polymarket.com") {
		return "", false
	}
	u.Scheme = "https"
	return u.String(), true
}

// probability picks, in order: the Yes outcome price, the first outcome price,
// the last trade price, the bid/ask midpoint.
func probability(raw domain.RawListing) *float64 {
	outcomes := stringList(raw["outcomes"])
	prices := numberList(raw["outcomePrices"])

	if len(prices) > 0 {
		if len(outcomes) == len(prices) {
			for i, label := range outcomes {
				if strings.EqualFold(strings.TrimSpace(label), "yes") {
					if p, ok := unitInterval(prices[i]); ok {
						return &p
					}
					break
				}
			}
		}
		if p, ok := unitInterval(prices[0]); ok {
			return &p
		}
	}

	// price is consulted only when lastTradePrice is absent, not when it is invalid.
	direct := raw["lastTradePrice"]
	if direct == nil {
		direct = raw["price"]
	}
	if v, ok := domain.AsNumber(direct); ok {
		if p, ok := unitInterval(v); ok {
			return &p
		}
	}

	bid, okBid := raw.Number("bestBid")
	ask, okAsk := raw.Number("bestAsk")
	if okBid && okAsk {
		if p, ok := unitInterval((bid + ask) / 2); ok {
			return &p
		}
	}

	return nil
}

// unitInterval maps a price to 0..1; values in (1,100] are percentages.
func unitInterval(v float64) (float64, bool) {
	switch {
	case v >= 0 && v <= 1:
	case v > 1 && v <= 100:
		v = v / 100
	default:
		return 0, false
	}
	return math.Round(v*1e6) / 1e6, true
}

// mergeTags unions listing tags with event tags, first occurrence order.
func mergeTags(raw domain.RawListing, events []domain.RawListing) []string {
	seen := make(map[string]struct{})
	tags := make([]string, 0)

	add := func(list []string) {
		for _, tag := range list {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}

	add(tagList(raw["tags"]))
	for _, ev := range events {
		add(tagList(ev["tags"]))
	}
	return tags
}

// tagList reads tags given as strings, {label|slug|name} objects or a comma string.
func tagList(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			switch tag := item.(type) {
			case string:
				if s := strings.TrimSpace(tag); s != "" {
					out = append(out, s)
				}
			case map[string]any:
				if s, ok := domain.RawListing(tag).String("label", "slug", "name"); ok {
					out = append(out, s)
				}
			}
		}
		return out
	case string:
		return splitComma(t)
	}
	return nil
}

// stringList reads an array that may arrive JSON-encoded or comma separated.
func stringList(v any) []string {
	items, ok := decodeList(v)
	if !ok {
		if s, isString := v.(string); isString {
			return splitComma(s)
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func numberList(v any) []float64 {
	items, ok := decodeList(v)
	if !ok {
		s, isString := v.(string)
		if !isString {
			return nil
		}
		for _, part := range splitComma(s) {
			items = append(items, part)
		}
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		if f, ok := domain.AsNumber(item); ok {
			out = append(out, f)
		}
	}
	return out
}

func decodeList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if !strings.HasPrefix(s, "[") {
			return nil, false
		}
		var items []any
		if err := json.Unmarshal([]byte(s), &items); err != nil {
			return nil, false
		}
		return items, true
	}
	return nil, false
}

func splitComma(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// description returns plain text, flattening HTML markup when present.
func description(raw domain.RawListing) *string {
	s, ok := raw.String("description")
	if !ok {
		return nil
	}
	if strings.ContainsAny(s, "<>") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return nil
	}
	return &s
}
