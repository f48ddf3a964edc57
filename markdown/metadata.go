package markdown

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// ExtractMetadata splits leading "key: value" lines off src. It stops at
// the first blank line or line without a colon. Later duplicates of a key
// replace earlier ones. The remaining text is returned trimmed.
func ExtractMetadata(src string) (map[string]string, string) {
	meta := make(map[string]string)
	rest := src
	for rest != "" {
		line, tail, found := strings.Cut(rest, "\n")
		if strings.TrimSpace(line) == "" {
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			break
		}
		meta[strings.TrimSpace(key)] = strings.TrimSpace(value)
		if !found {
			tail = ""
		}
		rest = tail
	}
	return meta, strings.TrimSpace(rest)
}

// Meta is the interpreted metadata of a document.
type Meta struct {
	PubDate   time.Time // zero for drafts
	Update    *UpdateInfo
	Resources []ResourceSpec
	Tags      []string
	IsMeta    bool
}

// IsDraft reports whether the document lacks a publication date.
func (m Meta) IsDraft() bool { return m.PubDate.IsZero() && !m.IsMeta }

// UpdateInfo is the value of an "update" key: a date and a free text note.
type UpdateInfo struct {
	Date time.Time
	Note string
}

// ResourceSpec names a file stored next to the markdown that should be
// published as an asset of the post.
type ResourceSpec struct {
	Name string
	Mime string
}

var resourceSpecRe = regexp.MustCompile(`^([\w_\.-]+)\s+(\{([\w-]+/[\w-]+)\})$`)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04Z07:00",
	"2006-01-02T15:04Z07:00",
}

// ParseDate accepts RFC 3339 timestamps and the space separated variants
// used in hand written metadata.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad date %q", s)
}

// ParseMeta interprets the known metadata keys. Unknown keys are logged
// and ignored.
func ParseMeta(raw map[string]string, logger *slog.Logger) (Meta, error) {
	var m Meta
	for key, value := range raw {
		switch key {
		case "pubdate":
			t, err := ParseDate(value)
			if err != nil {
				return Meta{}, metadataErr("pubdate", err)
			}
			m.PubDate = t
		case "update":
			u, err := parseUpdate(value)
			if err != nil {
				return Meta{}, metadataErr("update", err)
			}
			m.Update = u
		case "res":
			specs, err := parseResources(value)
			if err != nil {
				return Meta{}, metadataErr("res", err)
			}
			m.Resources = specs
		case "tags":
			// Non-nil even when empty: an empty key clears stored tags.
			m.Tags = append([]string{}, splitList(value)...)
		case "meta":
			m.IsMeta = true
		default:
			if logger != nil {
				logger.Warn("Ignoring unknown metadata key", "key", key, "value", value)
			}
		}
	}
	return m, nil
}

func parseUpdate(s string) (*UpdateInfo, error) {
	date, note, _ := strings.Cut(strings.TrimSpace(s), " ")
	t, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	return &UpdateInfo{Date: t, Note: strings.TrimSpace(note)}, nil
}

func parseResources(s string) ([]ResourceSpec, error) {
	var specs []ResourceSpec
	for _, item := range splitList(s) {
		m := resourceSpecRe.FindStringSubmatch(item)
		if m == nil {
			return nil, errors.New("bad asset spec " + item)
		}
		specs = append(specs, ResourceSpec{Name: m[1], Mime: m[3]})
	}
	return specs, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
