package fragment

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/njoerd114/mohucal/internal/model"
)

// Column positions inside a result row.
const (
	dateCell   = 1
	markerCell = 2
)

var (
	// 2025.01.12. / 2025-01-12 / 2025/01/12, optionally followed by a weekday.
	numericDate = regexp.MustCompile(`(\d{4})\s*[./-]\s*(\d{1,2})\s*[./-]\s*(\d{1,2})`)
	// 2025. január 12.
	namedDate = regexp.MustCompile(`(\d{4})\.?\s*([\p{L}]+)\s+(\d{1,2})`)
)

var huMonths = map[string]time.Month{
	"január":     time.January,
	"február":    time.February,
	"március":    time.March,
	"április":    time.April,
	"május":      time.May,
	"június":     time.June,
	"július":     time.July,
	"augusztus":  time.August,
	"szeptember": time.September,
	"október":    time.October,
	"november":   time.November,
	"december":   time.December,
}

// Extract returns the collection dates of category listed in a result
// fragment, de-duplicated and sorted ascending.
//
// A fragment with a result table but no rows for the category yields an
// empty slice and a nil error. A fragment without any table, or a category
// row whose date cell cannot be read, yields a [*MalformedFragmentError].
func Extract(markup string, category model.Category) ([]model.CollectionDate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, &MalformedFragmentError{Reason: "parsing result markup", Err: err}
	}
	if doc.Find("table").Length() == 0 {
		return nil, &MalformedFragmentError{Reason: "result table not found"}
	}

	marker := "." + category.Marker()
	seen := make(map[model.Date]struct{})
	dates := []model.CollectionDate{}
	var rowErr error

	doc.Find("tbody tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		tds := tr.Find("td")
		if tds.Length() <= markerCell {
			return true
		}
		if tds.Eq(markerCell).Find(marker).Length() == 0 {
			return true
		}
		text := strings.TrimSpace(tds.Eq(dateCell).Text())
		d, err := ParseSiteDate(text)
		if err != nil {
			rowErr = &MalformedFragmentError{Reason: "unreadable date cell", Err: err}
			return false
		}
		if _, dup := seen[d]; dup {
			return true
		}
		seen[d] = struct{}{}
		dates = append(dates, model.CollectionDate{Date: d, Category: category})
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Date.Before(dates[j].Date) })
	return dates, nil
}

// ParseSiteDate reads a date as the site prints it, e.g. "2025.01.12.",
// "2025.01.12. vasárnap" or "2025. január 12.".
func ParseSiteDate(text string) (model.Date, error) {
	if m := numericDate.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[2])
		return buildDate(m[1], time.Month(month), m[3])
	}
	if m := namedDate.FindStringSubmatch(text); m != nil {
		month, ok := huMonths[strings.ToLower(m[2])]
		if !ok {
			return model.Date{}, fmt.Errorf("unknown month name %q in %q", m[2], text)
		}
		return buildDate(m[1], month, m[3])
	}
	return model.Date{}, fmt.Errorf("no date found in %q", text)
}

func buildDate(year string, month time.Month, day string) (model.Date, error) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return model.Date{}, fmt.Errorf("year %q: %w", year, err)
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return model.Date{}, fmt.Errorf("day %q: %w", day, err)
	}
	return model.NewDate(y, month, d)
}
