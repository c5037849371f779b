package page

import (
	"errors"
	"html"
	"mime"
	"net"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"
)

// Page is one fetched resource from the crawl feed.
type Page struct {
	URL         string    `json:"url"`
	Status      int       `json:"status"`
	ContentType string    `json:"content_type"`
	Body        string    `json:"body"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// ErrNotHTTP is returned by Normalize for URLs outside http and https.
var ErrNotHTTP = errors.New("page: not an http(s) url")

var linkRe = regexp.MustCompile(`(?i)\b(?:href|src)\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'<>]+))`)

// OK reports whether the page was fetched successfully.
func (p Page) OK() bool {
	return p.Status >= 200 && p.Status < 300
}

// IsHTML reports whether links should be extracted from the body.
func (p Page) IsHTML() bool {
	ct := p.ContentType
	if ct == "" {
		ct = GuessMIME(p.URL)
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}

// GuessMIME guesses MIME from the URL path extension.
func GuessMIME(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "application/octet-stream"
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case "", ".html", ".htm", ".php", ".asp", ".aspx", ".jsp":
		return "text/html"
	case ".xhtml":
		return "application/xhtml+xml"
	case ".txt":
		return "text/plain"
	case ".json":
		return "application/json"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Normalize canonicalizes an absolute http(s) URL so equivalent spellings map
// to one key: scheme and host lower-cased, default ports and fragments dropped,
// empty path set to "/".
func Normalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return normalize(u)
}

func normalize(u *url.URL) (string, error) {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", ErrNotHTTP
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", ErrNotHTTP
	}
	if port := u.Port(); port != "" && !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	n := *u
	n.Scheme = scheme
	n.Host = host
	n.Fragment = ""
	n.RawFragment = ""
	n.User = nil
	if n.Path == "" {
		n.Path = "/"
		n.RawPath = ""
	}
	return n.String(), nil
}

// ExtractLinks returns the normalized http(s) links in the page body, resolved
// against the page URL, in first-seen order without repeats.
func ExtractLinks(p Page) []string {
	base, err := url.Parse(p.URL)
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]struct{})
	for _, m := range linkRe.FindAllStringSubmatch(p.Body, -1) {
		ref := strings.TrimSpace(html.UnescapeString(m[1] + m[2] + m[3]))
		if ref == "" || strings.HasPrefix(ref, "#") {
			continue
		}
		u, err := base.Parse(ref)
		if err != nil {
			continue
		}
		key, err := normalize(u)
		if err != nil {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		links = append(links, key)
	}
	return links
}
