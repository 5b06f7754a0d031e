package common

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolveURL resolves target against baseURL. An empty target yields
// baseURL; absolute URLs are returned unchanged; anything else is joined
// onto the base path.
func ResolveURL(baseURL, target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		if baseURL == "" {
			return "", fmt.Errorf("no target URL and no base URL configured")
		}
		return baseURL, nil
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid target URL %q: %w", target, err)
	}
	if parsed.IsAbs() {
		return target, nil
	}

	if baseURL == "" {
		return "", fmt.Errorf("relative target %q requires a base URL", target)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	// Keep the query and fragment of the target, join only the path
	path, rest := target, ""
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		path, rest = target[:i], target[i:]
	}
	base.Path = joinPath(base.Path, path)
	base.RawQuery = ""
	base.Fragment = ""
	return base.String() + rest, nil
}

// joinPath safely joins path segments, preventing duplicate slashes
func joinPath(segments ...string) string {
	result := ""
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if result == "" {
			result = seg
		} else if result[len(result)-1] == '/' {
			if seg[0] == '/' {
				result += seg[1:]
			} else {
				result += seg
			}
		} else {
			if seg[0] == '/' {
				result += seg
			} else {
				result += "/" + seg
			}
		}
	}
	return result
}
