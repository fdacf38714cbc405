package source

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

var errNoTimestamp = errors.New("no timestamp path in image url")

// findElementAttr returns the attribute of the element with the given id.
func findElementAttr(r io.Reader, id string, attrs ...string) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("could not parse page: %w", err)
	}

	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && attr(n, "id") == id {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if found == nil {
		return "", fmt.Errorf("element #%s not found", id)
	}
	for _, name := range attrs {
		if v := strings.TrimSpace(attr(found, name)); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("element #%s has none of %v", id, attrs)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// firstCandidate returns the first URL of a srcset value ("a.jpg 1x, b.jpg 2x").
func firstCandidate(srcset string) string {
	first, _, _ := strings.Cut(srcset, ",")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// timestampFromURL reads the year/month/day/hour/minute path segments of an
// image url such as .../radar/2024/07/01/12/05/00/pref-15-large.jpg.
func timestampFromURL(raw string, loc *time.Location) (time.Time, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid image url %q: %w", raw, err)
	}

	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+5 <= len(segs); i++ {
		if len(segs[i]) != 4 {
			continue
		}
		var parts [5]int
		ok := true
		for j := range parts {
			n, err := strconv.Atoi(segs[i+j])
			if err != nil {
				ok = false
				break
			}
			parts[j] = n
		}
		if !ok || parts[1] < 1 || parts[1] > 12 || parts[2] < 1 || parts[2] > 31 || parts[3] > 23 || parts[4] > 59 {
			continue
		}
		return time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], 0, 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", errNoTimestamp, raw)
}
