package feed

import (
	"log/slog"
	"net/url"
	"strings"
)

const (
	MaxAdditionalImages = 10
	resizeToken         = "w1920"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

type ImagePipeline struct {
	EscapeImages  bool
	BaseURL       string
	MaxAdditional int
}

func NewImagePipeline(s Settings) *ImagePipeline {
	return &ImagePipeline{
		EscapeImages:  s.EscapeImages,
		BaseURL:       s.ImageBaseURL,
		MaxAdditional: s.MaxAdditionalImage,
	}
}

// Run splits a raw photo field and returns the deduplicated, validated
// images. The first valid image is primary.
func (p *ImagePipeline) Run(raw string) ImageSet {
	limit := p.MaxAdditional
	if limit <= 0 || limit > MaxAdditionalImages {
		limit = MaxAdditionalImages
	}

	var set ImageSet
	seen := make(map[string]struct{})
	for _, candidate := range SplitPhotos(raw) {
		cleaned := p.Clean(candidate)
		if !IsValidImage(cleaned) {
			slog.Debug("Image rejected", "url", candidate)
			continue
		}
		if _, dup := seen[cleaned]; dup {
			continue
		}
		seen[cleaned] = struct{}{}

		if set.Primary == "" {
			set.Primary = cleaned
			continue
		}
		set.Additional = append(set.Additional, cleaned)
		if len(set.Additional) == limit {
			break
		}
	}
	return set
}

// Clean normalizes a single image URL. Relative URLs are resolved against
// BaseURL when one is configured.
func (p *ImagePipeline) Clean(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	u = strings.ReplaceAll(u, "{resize}", resizeToken)
	u = strings.ReplaceAll(u, "%7Bresize%7D", resizeToken)
	u = strings.ReplaceAll(u, "%7bresize%7d", resizeToken)

	u = unwrapProxy(u)
	u = p.absolute(u)

	if p.EscapeImages {
		u = escapeAfterScheme(u)
	}
	return u
}

func (p *ImagePipeline) absolute(u string) string {
	if strings.Contains(u, "://") {
		return u
	}
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	if p.BaseURL == "" {
		return u
	}

	base, err := url.Parse(p.BaseURL)
	if err != nil {
		return u
	}
	ref, err := url.Parse(u)
	if err != nil {
		return u
	}
	return base.ResolveReference(ref).String()
}

// unwrapProxy extracts the original image from a Next.js optimizer URL
// such as /_next/image?url=https%3A%2F%2Fcdn%2Fa.jpg&w=640.
func unwrapProxy(u string) string {
	if !strings.Contains(u, "/_next/image") {
		return u
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	inner := parsed.Query().Get("url")
	if inner == "" {
		return u
	}
	if strings.HasPrefix(inner, "/") && !strings.HasPrefix(inner, "//") && parsed.Host != "" {
		return parsed.Scheme + "://" + parsed.Host + inner
	}
	return inner
}

// escapeAfterScheme percent-encodes everything after "://" except
// unreserved characters, "/" and existing %XX escapes.
func escapeAfterScheme(u string) string {
	scheme, rest, found := strings.Cut(u, "://")
	if !found {
		return escapePath(u)
	}
	return scheme + "://" + escapePath(rest)
}

func escapePath(s string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case isUnreserved(c) || c == '/':
			b.WriteByte(c)
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteString(s[i : i+3])
			i += 2
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		}
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

// IsValidImage reports whether u is an http(s) URL mentioning a known image
// extension anywhere in it.
func IsValidImage(u string) bool {
	if u == "" {
		return false
	}
	lower := strings.ToLower(u)
	if !strings.HasPrefix(lower, "http") {
		return false
	}
	for _, ext := range imageExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}

// SplitPhotos splits on "|" when present, otherwise on ",".
func SplitPhotos(raw string) []string {
	sep := ","
	if strings.Contains(raw, "|") {
		sep = "|"
	}

	var out []string
	for _, part := range strings.Split(raw, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
