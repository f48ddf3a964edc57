package markdown

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/eringen/pubmark/imgcli"
)

// fakeImages serves landscape images except for paths containing
// "tall", and private ones for paths containing "private".
type fakeImages struct {
	mu        sync.Mutex
	fetched   []string
	published []string
}

func (f *fakeImages) Fetch(_ context.Context, ref string) (*imgcli.ImageInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, ref)
	if ref == "missing.jpg" {
		return nil, errors.New("404 Not Found: no such image")
	}
	return fakeInfo(ref, !strings.Contains(ref, "private")), nil
}

func (f *fakeImages) MakePublic(_ context.Context, ref string) (*imgcli.ImageInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, ref)
	return fakeInfo(ref, true), nil
}

func fakeInfo(ref string, public bool) *imgcli.ImageInfo {
	info := &imgcli.ImageInfo{
		Small:  imgcli.ImgLink{URL: "https://img.test/s/" + ref, Width: 200, Height: 150},
		Medium: imgcli.ImgLink{URL: "https://img.test/m/" + ref, Width: 800, Height: 600},
		Public: public,
	}
	if strings.Contains(ref, "tall") {
		info.Small.Width, info.Small.Height = 150, 200
		info.Medium.Width, info.Medium.Height = 600, 800
	}
	return info
}

type storedAsset struct {
	Year int
	Name string
	Mime string
	Data []byte
}

type fakeAssets struct {
	mu     sync.Mutex
	stored []storedAsset
}

func (f *fakeAssets) StoreAsset(_ context.Context, year int, name, mime string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, storedAsset{year, name, mime, data})
	return fmt.Sprintf("/%d/%s", year, name), nil
}

func testEnv() (*Env, *fakeImages, *fakeAssets) {
	images := &fakeImages{}
	assets := &fakeAssets{}
	return &Env{Images: images, Assets: assets}, images, assets
}

var testPage = PageRef{Year: 2024, Slug: "test", Lang: "sv"}

// render parses md with a default resolver and renders it.
func render(env *Env, md string) (string, error) {
	events, err := Parse(md, &Resolver{Lang: testPage.Lang})
	if err != nil {
		return "", err
	}
	return RenderHTML(context.Background(), env, testPage, events)
}
