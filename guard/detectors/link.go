package detectors

import (
	"fmt"
	"regexp"
	"strings"
)

// URL-shaped patterns: schemed or bare domains, known shorteners, and
// platform invite links. Based on the usual stackoverflow-derived URL shape,
// with no trailing period allowed.
var (
	urlPattern = regexp.MustCompile(`(?i)(?:(?:https?|ftp)://)?[\w-]+(?:\.[\w-]+)+(?:/[\w/\-&?=%.~+]*)?`)

	shortenerHosts = []string{
		"bit.ly", "tinyurl.com", "goo.gl", "t.co", "is.gd", "cutt.ly",
		"rb.gy", "shorturl.at", "ow.ly",
	}
	inviteHosts = []string{
		"chat.whatsapp.com", "t.me", "discord.gg", "discord.com",
	}
)

// Link reports any URL-shaped text whose host is not on the allow-list.
// Binary: there is no severity gradation between kinds of links; the engine
// maps every hit through the same severity.
type Link struct {
	base
	allowed map[string]bool
}

var _ Detector = (*Link)(nil)

// NewLink builds the module with an allow-list of exact domains (lower-case,
// no scheme).
func NewLink(settings SettingsSource, allowedDomains []string) *Link {
	allowed := make(map[string]bool, len(allowedDomains))
	for _, d := range allowedDomains {
		allowed[strings.ToLower(d)] = true
	}
	return &Link{
		base:    base{name: ModuleLink, settings: settings},
		allowed: allowed,
	}
}

func (d *Link) Detect(input Input) Verdict {
	for _, m := range urlPattern.FindAllString(input.Text, -1) {
		host := extractHost(m)
		if host == "" || d.allowed[host] {
			continue
		}
		if !plausibleDomain(host) {
			continue
		}
		kind := "link"
		switch {
		case IsShortener(host):
			kind = "shortened link"
		case IsInvite(host):
			kind = "invite link"
		}
		return hit(d.name, SeverityMedium, fmt.Sprintf("%s to %s", kind, host))
	}
	return clean(d.name)
}

func extractHost(match string) string {
	s := strings.ToLower(match)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSuffix(s, ".")
}

// plausibleDomain filters out dotted non-domains ("v1.2", "e.g") that the
// broad pattern also catches: the last label must look like a TLD.
func plausibleDomain(host string) bool {
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return false
	}
	tld := labels[len(labels)-1]
	if len(tld) < 2 {
		return false
	}
	for _, r := range tld {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// IsShortener reports whether the host is a known URL shortener.
func IsShortener(host string) bool {
	for _, h := range shortenerHosts {
		if host == h {
			return true
		}
	}
	return false
}

// IsInvite reports whether the host is a platform invite link.
func IsInvite(host string) bool {
	for _, h := range inviteHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
