package feed

import (
	"bytes"
	"fmt"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// Verifier re-parses a generated document and checks it against the
// assembled item count before it is allowed to replace the previous feed.
type Verifier struct {
	gofeedParser *gofeed.Parser
}

func NewVerifier() *Verifier {
	return &Verifier{
		gofeedParser: gofeed.NewParser(),
	}
}

func (v *Verifier) Run(data []byte, expected int) error {
	parsed, err := v.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: failed to parse feed: %w", ErrInvalidFeed, err)
	}

	if parsed.FeedType != "rss" {
		return fmt.Errorf("%w: expected rss document, got %q", ErrInvalidFeed, parsed.FeedType)
	}

	if len(parsed.Items) != expected {
		return fmt.Errorf("%w: expected %d items, got %d", ErrInvalidFeed, expected, len(parsed.Items))
	}

	for i, item := range parsed.Items {
		if googleValue(item.Extensions, "id") == "" && googleValue(item.Extensions, "title") == "" {
			return fmt.Errorf("%w: item %d has neither g:id nor g:title", ErrInvalidFeed, i)
		}
		if googleValue(item.Extensions, "price") == "" {
			return fmt.Errorf("%w: item %d has no g:price", ErrInvalidFeed, i)
		}
	}

	return nil
}

func googleValue(extensions ext.Extensions, name string) string {
	values := extensions["g"][name]
	if len(values) == 0 {
		return ""
	}
	return values[0].Value
}
