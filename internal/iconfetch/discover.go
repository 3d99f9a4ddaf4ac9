package iconfetch

import (
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/runnerr0/backtrail/internal/storage"
)

// Candidate is one icon declared by a page.
type Candidate struct {
	URL      string
	IconType storage.IconType
	Size     int // declared pixel size, 0 when unspecified
}

// DiscoverIcons tokenizes page HTML and collects the icon links it declares:
// <link rel="icon">, "shortcut icon", "apple-touch-icon",
// "apple-touch-icon-precomposed", and "manifest". Relative hrefs resolve
// against base. Candidates come back sorted by declared size descending
// (unspecified sizes last), so the first entry is the best input for
// StoreFavicons. When a page declares nothing, the conventional
// /favicon.ico at the page's origin is returned as the sole candidate.
func DiscoverIcons(r io.Reader, base *url.URL) []Candidate {
	var found []Candidate

	z := html.NewTokenizer(r)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := z.TagName()
		if string(name) != "link" || !hasAttr {
			continue
		}

		var rel, href, sizes string
		for {
			k, v, more := z.TagAttr()
			switch string(k) {
			case "rel":
				rel = strings.ToLower(string(v))
			case "href":
				href = string(v)
			case "sizes":
				sizes = strings.ToLower(string(v))
			}
			if !more {
				break
			}
		}

		iconType, ok := relIconType(rel)
		if !ok || href == "" {
			continue
		}

		ref, err := url.Parse(href)
		if err != nil {
			continue
		}

		found = append(found, Candidate{
			URL:      base.ResolveReference(ref).String(),
			IconType: iconType,
			Size:     parseSizes(sizes),
		})
	}

	if len(found) == 0 {
		fallback := &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/favicon.ico"}
		return []Candidate{{URL: fallback.String(), IconType: storage.IconTypeFavicon}}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].Size > found[j].Size })
	return found
}

// URLs flattens candidates into the ordered URL list StoreFavicons expects.
func URLs(cands []Candidate) []string {
	urls := make([]string, len(cands))
	for i, c := range cands {
		urls[i] = c.URL
	}
	return urls
}

func relIconType(rel string) (storage.IconType, bool) {
	switch rel {
	case "icon", "shortcut icon":
		return storage.IconTypeFavicon, true
	case "apple-touch-icon":
		return storage.IconTypeTouch, true
	case "apple-touch-icon-precomposed":
		return storage.IconTypeTouchPrecomposed, true
	case "manifest":
		return storage.IconTypeWebManifest, true
	}
	return 0, false
}

// parseSizes reads the first dimension of a sizes attribute like "32x32" or
// "16x16 32x32". "any" and malformed values read as 0.
func parseSizes(sizes string) int {
	first := strings.Fields(sizes)
	if len(first) == 0 {
		return 0
	}
	parts := strings.SplitN(first[0], "x", 2)
	n, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	return n
}
