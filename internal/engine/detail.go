package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/IshaanNene/pressgoat/internal/parser"
	"github.com/IshaanNene/pressgoat/internal/sites"
	"github.com/IshaanNene/pressgoat/internal/types"
)

// article fetches an entry's detail page and builds the Article.
func (w *walk) article(ctx context.Context, e entry) (types.Article, error) {
	resp, err := w.get(ctx, e.link, types.TagDetail)
	if err != nil {
		return types.Article{}, err
	}
	root, err := parser.ParseResponse(resp, w.site.Query)
	if err != nil {
		return types.Article{}, err
	}

	date := e.date
	if !e.dated {
		l := w.site.Listing
		raw, err := parser.First(root, l.Date.Selector, l.Date.Attr)
		if err != nil {
			return types.Article{}, err
		}
		if date, err = ParseDate(raw, l.DateLayouts, l.DateStrip, 0); err != nil {
			return types.Article{}, &types.ParseError{URL: e.link, Selector: l.Date.Selector, Err: err}
		}
	}

	body, err := w.body(root, resp)
	if err != nil {
		return types.Article{}, err
	}

	return types.NewArticle(w.site.Region, date, e.link, e.title, body), nil
}

// body extracts the article text, falling back to readability when the
// site allows it.
func (w *walk) body(root parser.Node, resp *types.Response) (string, error) {
	d := w.site.Detail
	parts, err := parser.Values(root, d.Body.Selector, d.Body.Attr)
	if err != nil {
		var pe *types.ParseError
		if errors.As(err, &pe) {
			pe.URL = resp.BaseURL()
		}
		return "", err
	}
	if body := strings.Join(parts, "\n"); body != "" {
		return body, nil
	}

	if d.Fallback == sites.FallbackReadability {
		w.log.Debug("body selector empty, using readability", "url", resp.BaseURL())
		return parser.Readable(resp.Body, resp.BaseURL())
	}
	return "", types.ErrNoBody
}
