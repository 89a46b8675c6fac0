package mcpserver

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/richardwooding/feed-rss/model"
	"github.com/richardwooding/feed-rss/rss"
)

// maxLimit caps the limit parameter.
const maxLimit = 1000

// FilterParams represents parsed URI parameters for filtering channel items
type FilterParams struct {
	Since  *time.Time // Items published at or after this time
	Until  *time.Time // Items published at or before this time
	Limit  *int       // Maximum number of items
	Offset *int       // Number of newest items to skip
	Search string     // Substring of title, description or content
	Format string     // Output layout, "indented" or "compact"
}

// ParseURIParameters extracts and validates filter parameters from a resource URI
func ParseURIParameters(resourceURI string) (*FilterParams, error) {
	parsedURL, err := url.Parse(resourceURI)
	if err != nil {
		return nil, model.NewFeedErrorWithCause(model.ErrorTypeValidation, "Invalid URI format", err).
			WithURL(resourceURI).
			WithOperation("parse_uri_parameters").
			WithComponent("resource_filters")
	}

	params := &FilterParams{}
	query := parsedURL.Query()

	if err := parseTimeParameters(query, params, resourceURI); err != nil {
		return nil, err
	}
	if err := parseNumericParameters(query, params, resourceURI); err != nil {
		return nil, err
	}

	params.Search = query.Get("search")
	params.Format = query.Get("format")
	if _, err := rss.ParseFormat(params.Format); err != nil {
		return nil, model.NewFeedErrorWithCause(model.ErrorTypeValidation, fmt.Sprintf("Invalid 'format' value %q", params.Format), err).
			WithURL(resourceURI).
			WithOperation("parse_format_parameter").
			WithComponent("resource_filters")
	}

	if params.Since != nil && params.Until != nil && params.Since.After(*params.Until) {
		return nil, model.NewFeedError(model.ErrorTypeValidation, "'since' date must be before 'until' date").
			WithURL(resourceURI).
			WithOperation("validate_date_range").
			WithComponent("resource_filters")
	}

	return params, nil
}

func parseTimeParameters(query url.Values, params *FilterParams, resourceURI string) error {
	for _, name := range []string{"since", "until"} {
		value := query.Get(name)
		if value == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return model.NewFeedErrorWithCause(model.ErrorTypeValidation, fmt.Sprintf("Invalid '%s' date format", name), err).
				WithURL(resourceURI).
				WithOperation("parse_" + name + "_parameter").
				WithComponent("resource_filters")
		}
		if name == "since" {
			params.Since = &t
		} else {
			params.Until = &t
		}
	}
	return nil
}

func parseNumericParameters(query url.Values, params *FilterParams, resourceURI string) error {
	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			return model.NewFeedError(model.ErrorTypeValidation, "Invalid 'limit' value: must be non-negative integer").
				WithURL(resourceURI).
				WithOperation("parse_limit_parameter").
				WithComponent("resource_filters")
		}
		limit = min(limit, maxLimit)
		params.Limit = &limit
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return model.NewFeedError(model.ErrorTypeValidation, "Invalid 'offset' value: must be non-negative integer").
				WithURL(resourceURI).
				WithOperation("parse_offset_parameter").
				WithComponent("resource_filters")
		}
		params.Offset = &offset
	}

	return nil
}

// RenderFormat returns the requested layout, or fallback when none was given.
func (p *FilterParams) RenderFormat(fallback rss.Format) rss.Format {
	if p == nil || p.Format == "" {
		return fallback
	}
	format, _ := rss.ParseFormat(p.Format)
	return format
}

// ApplyFilters narrows the items of f in place. Pagination counts from the
// newest item.
func ApplyFilters(f *rss.Feed, filters *FilterParams) {
	if filters == nil {
		return
	}

	items := f.Items()
	filtered := make([]*rss.FeedItem, 0, len(items))
	for _, item := range items {
		if shouldIncludeItem(item, filters) {
			filtered = append(filtered, item)
		}
	}

	if filters.Offset != nil {
		offset := min(*filters.Offset, len(filtered))
		filtered = filtered[offset:]
	}
	if filters.Limit != nil && *filters.Limit < len(filtered) {
		filtered = filtered[:*filters.Limit]
	}

	f.SetItems(filtered)
}

func shouldIncludeItem(item *rss.FeedItem, filters *FilterParams) bool {
	if filters.Since != nil && item.PubDate.Before(*filters.Since) {
		return false
	}
	if filters.Until != nil && item.PubDate.After(*filters.Until) {
		return false
	}
	if filters.Search != "" && !matchesSearch(item, filters.Search) {
		return false
	}
	return true
}

func matchesSearch(item *rss.FeedItem, search string) bool {
	searchLower := strings.ToLower(search)
	for _, field := range []string{item.Title, item.Description, item.Content} {
		if strings.Contains(strings.ToLower(field), searchLower) {
			return true
		}
	}
	return false
}
