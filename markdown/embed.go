package markdown

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// VideoEndpoints are the services consulted for "!embed" blocks. Empty
// fields mean the public YouTube endpoints.
type VideoEndpoints struct {
	OEmbed     string // e.g. https://www.youtube.com/oembed
	Thumbnails string // e.g. https://i.ytimg.com/vi/
}

const (
	defaultOEmbed     = "https://www.youtube.com/oembed"
	defaultThumbnails = "https://i.ytimg.com/vi/"
	maxThumbnailSize  = 8 << 20
)

var shortVideoRe = regexp.MustCompile(`^https://youtu\.be/([A-Za-z0-9_-]+)(?:\?[^\s]*)?$`)

type oembedInfo struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	HTML         string `json:"html"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// iframePolicy allows nothing but a video iframe.
var iframePolicy = sync.OnceValue(func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("iframe")
	p.AllowAttrs("width", "height", "title", "frameborder", "allow", "allowfullscreen", "referrerpolicy").OnElements("iframe")
	p.AllowAttrs("src").Matching(regexp.MustCompile(`^https://www\.youtube(-nocookie)?\.com/embed/`)).OnElements("iframe")
	p.AllowURLSchemes("https")
	p.RequireParseableURLs(true)
	return p
})

// embed renders a click to play placeholder for a video. The iframe is
// kept in an attribute and only inserted by a script once the visitor
// asks for it.
func (r *htmlRenderer) embed(code string) error {
	target := strings.TrimSpace(code)
	m := shortVideoRe.FindStringSubmatch(target)
	if m == nil {
		return authoringf(target, "embed target is not a short video url")
	}
	id := m[1]

	info, err := r.fetchOEmbed(target)
	if err != nil {
		return networkErr("oembed "+target, err)
	}
	thumb, err := r.fetchThumbnail(id, info.ThumbnailURL)
	if err != nil {
		return networkErr("thumbnail "+id, err)
	}
	if r.env.Assets == nil {
		return authoringf(target, "no asset store configured")
	}
	thumbURL, err := r.env.Assets.StoreAsset(r.ctx, r.page.Year, "yt-"+id+".jpg", "image/jpeg", thumb)
	if err != nil {
		return fmt.Errorf("store thumbnail for %s: %w", id, err)
	}

	iframe := iframePolicy().Sanitize(info.HTML)
	title := html.EscapeString(info.Title)
	fmt.Fprintf(&r.buf,
		"<figure class='embed video' data-embed='%s'><img src='%s' alt='%s'><button type='button' class='play' aria-label='%s'>▶</button><figcaption>%s</figcaption></figure>\n",
		html.EscapeString(iframe), thumbURL, title, title, joinNonEmpty(title, html.EscapeString(info.AuthorName)))
	return nil
}

func (r *htmlRenderer) fetchOEmbed(target string) (*oembedInfo, error) {
	endpoint := r.env.Video.OEmbed
	if endpoint == "" {
		endpoint = defaultOEmbed
	}
	u := endpoint + "?" + url.Values{"url": {target}, "format": {"json"}}.Encode()
	resp, err := get(r.ctx, r.env.client(), u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var info oembedInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode oembed: %w", err)
	}
	return &info, nil
}

// fetchThumbnail tries the high resolution thumbnail first and falls
// back to the one named by oembed.
func (r *htmlRenderer) fetchThumbnail(id, fallback string) ([]byte, error) {
	base := r.env.Video.Thumbnails
	if base == "" {
		base = defaultThumbnails
	}
	data, err := download(r.ctx, r.env.client(), base+id+"/maxresdefault.jpg")
	if err == nil {
		return data, nil
	}
	if fallback == "" {
		return nil, err
	}
	r.env.logger().Debug("No high resolution thumbnail", "video", id, "error", err)
	return download(r.ctx, r.env.client(), fallback)
}

func get(ctx context.Context, client *http.Client, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("get %s: %s", u, resp.Status)
	}
	return resp, nil
}

func download(ctx context.Context, client *http.Client, u string) ([]byte, error) {
	resp, err := get(ctx, client, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, maxThumbnailSize))
}
