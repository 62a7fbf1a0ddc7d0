package fragment

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/njoerd114/mohucal/internal/model"
)

// DefaultOptionSelector matches every option element in a fragment.
const DefaultOptionSelector = "option"

// ParseOptions returns the option records matched by selector in document
// order. An empty selector means [DefaultOptionSelector]. Options with a blank
// label are skipped; an option without a value attribute uses its label as
// value.
func ParseOptions(markup, selector string) ([]model.OptionRecord, error) {
	if selector == "" {
		selector = DefaultOptionSelector
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, &MalformedFragmentError{Reason: "parsing option markup", Err: err}
	}

	var opts []model.OptionRecord
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		label := strings.TrimSpace(s.Text())
		if label == "" {
			return
		}
		value, _ := s.Attr("value")
		value = strings.TrimSpace(value)
		if value == "" {
			value = label
		}
		opts = append(opts, model.OptionRecord{Label: label, Value: value})
	})
	return opts, nil
}

// Resolve picks the candidate whose label matches query. Matching is
// case-insensitive, folds en and em dashes to "-", and accepts a substring of
// the label. When several labels match, the first one in document order
// wins: two streets sharing a substring resolve by position, not by
// closeness, so callers that need certainty should pass a longer query.
//
// Resolve returns a [*NoMatchError] when nothing matches.
func Resolve(candidates []model.OptionRecord, query string) (model.OptionRecord, error) {
	q := normalize(query)
	if q != "" {
		for _, c := range candidates {
			if strings.Contains(normalize(c.Label), q) {
				return c, nil
			}
		}
	}
	return model.OptionRecord{}, &NoMatchError{Query: query, Candidates: candidates}
}

// ResolveCode picks the candidate whose value equals query or starts with it,
// then falls back to [Resolve] on the labels. District selects carry the
// postal code in the value while the label may only name the district.
func ResolveCode(candidates []model.OptionRecord, query string) (model.OptionRecord, error) {
	q := normalize(query)
	if q != "" {
		for _, c := range candidates {
			if normalize(c.Value) == q {
				return c, nil
			}
		}
		for _, c := range candidates {
			if strings.HasPrefix(normalize(c.Value), q) {
				return c, nil
			}
		}
	}
	return Resolve(candidates, query)
}

var dashFolder = strings.NewReplacer("–", "-", "—", "-")

func normalize(s string) string {
	return strings.TrimSpace(dashFolder.Replace(strings.ToLower(s)))
}
