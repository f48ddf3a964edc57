package views

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"
)

// buildURL joins a site path onto a base URL.
func buildURL(base string, sitePath string) string {
	u, err := url.Parse(base)
	if err != nil || base == "" {
		return sitePath
	}
	u.Path = path.Join(u.Path, sitePath)
	return u.String()
}

// RelatedPosts returns up to limit posts that share at least one tag with
// the current post.
func RelatedPosts(current Post, posts []ListItem, limit int) []ListItem {
	tagSet := make(map[string]struct{})
	for _, t := range current.Tags {
		tag := strings.ToLower(strings.TrimSpace(t))
		if tag != "" {
			tagSet[tag] = struct{}{}
		}
	}
	var related []ListItem
	for _, p := range posts {
		if p.URL == current.URL {
			continue
		}
		for _, t := range p.Tags {
			tag := strings.ToLower(strings.TrimSpace(t))
			if _, ok := tagSet[tag]; ok {
				related = append(related, p)
				break
			}
		}
		if len(related) == limit {
			break
		}
	}
	return related
}

// TagClass returns CSS classes for a tag pill, with active variant.
func TagClass(active bool) string {
	if active {
		return "tag tag-active"
	}
	return "tag"
}

// WebsiteJsonLD produces a Schema.org WebSite JSON-LD block.
func WebsiteJsonLD(site Site) string {
	data := map[string]any{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     site.Name,
		"url":      buildURL(site.URL, "/"),
	}
	if site.Description != "" {
		data["description"] = site.Description
	}
	return marshalLD(data)
}

// BlogPostingJsonLD produces a Schema.org BlogPosting JSON-LD block for a post.
func BlogPostingJsonLD(site Site, post Post) string {
	postURL := buildURL(site.URL, post.URL)
	data := map[string]any{
		"@context":   "https://schema.org",
		"@type":      "BlogPosting",
		"headline":   post.Title,
		"inLanguage": post.Lang,
		"url":        postURL,
		"publisher": map[string]string{
			"@type": "Organization",
			"name":  site.Name,
		},
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
	}
	if post.Description != "" {
		data["description"] = post.Description
	}
	if post.Date != "" {
		data["datePublished"] = post.Date
	}
	if post.Updated != "" {
		data["dateModified"] = post.Updated
	}
	if post.FrontImage != "" {
		data["image"] = post.FrontImage
	}
	if len(post.Tags) > 0 {
		data["keywords"] = strings.Join(post.Tags, ", ")
	}
	return marshalLD(data)
}

func marshalLD(data map[string]any) string {
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
