package idhash

import (
	"crypto/sha256"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mr-tron/base58"

	"prediction-feed/internal/domain"
)

// ComputeFingerprint computes the semantic cache fingerprint of a market.
// Formula: SHA256 over prompt_version, question, description and sorted tags,
// all lower-cased. Every field and tag is length-prefixed, so separators
// inside values cannot make two different inputs collide.
// Returns the base58-encoded hash.
func ComputeFingerprint(m *domain.Market, promptVersion string) string {
	tags := make([]string, 0, len(m.Tags))
	for _, tag := range m.Tags {
		tags = append(tags, strings.ToLower(strings.TrimSpace(tag)))
	}
	sort.Strings(tags)

	h := sha256.New()
	writeField(h, strings.ToLower(promptVersion))
	writeField(h, strings.ToLower(m.Question))
	writeField(h, strings.ToLower(m.DescriptionText()))
	fmt.Fprintf(h, "%d#", len(tags))
	for _, tag := range tags {
		writeField(h, tag)
	}

	return base58.Encode(h.Sum(nil))
}

func writeField(w io.Writer, s string) {
	fmt.Fprintf(w, "%d:%s", len(s), s)
}
