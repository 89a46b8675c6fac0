package model

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9._-]+`)
	dashRuns     = regexp.MustCompile(`-+`)
)

const maxChannelIDLength = 40

// GenerateChannelID derives a stable, URL-safe channel ID from the location
// of a content source. Remote sources become "host-path" slugs, local files
// their base name without extension. Long slugs are cut and suffixed with a
// hash of the full location.
func GenerateChannelID(source string) string {
	var slug string
	if IsRemoteSource(source) {
		if u, err := url.Parse(source); err == nil {
			slug = slugify(u.Host)
			if path := strings.Trim(u.Path, "/"); path != "" {
				slug += "-" + slugify(path)
			}
		}
	} else {
		base := filepath.Base(source)
		slug = slugify(strings.TrimSuffix(base, filepath.Ext(base)))
	}

	slug = strings.Trim(slug, "-")
	if slug == "" || slug == "." {
		return fmt.Sprintf("channel-%s", hashLocation(source))
	}
	if len(slug) > maxChannelIDLength {
		slug = slug[:32] + "-" + hashLocation(source)
	}
	return slug
}

func slugify(s string) string {
	s = nonSlugChars.ReplaceAllString(strings.ToLower(s), "-")
	return dashRuns.ReplaceAllString(s, "-")
}

func hashLocation(source string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(source)) // FNV hash Write never returns an error
	return fmt.Sprintf("%08x", h.Sum32())
}
