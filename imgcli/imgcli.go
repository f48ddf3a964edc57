// Package imgcli is a client for the image server that hosts the photos
// referenced from posts.
package imgcli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// ImageInfo describes an image on the server, in two sizes.
type ImageInfo struct {
	Small  ImgLink `json:"small"`
	Medium ImgLink `json:"medium"`
	Public bool    `json:"public"`
}

// ImgLink is one size variant of an image.
type ImgLink struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// IsPortrait reports whether the image is taller than it is wide.
func (i *ImageInfo) IsPortrait() bool {
	return i.Medium.Width < i.Medium.Height
}

// IsPublic reports whether anonymous visitors can see the image.
func (i *ImageInfo) IsPublic() bool {
	return i.Public
}

// Markup is the small image, linking to the medium one.
func (i *ImageInfo) Markup(alt string) string {
	return fmt.Sprintf("<a href='%s'><img src='%s' alt='%s' width='%d' height='%d'></a>",
		i.Medium.URL, i.Small.URL, html.EscapeString(alt), i.Small.Width, i.Small.Height)
}

// MarkupLarge is the medium image without a link.
func (i *ImageInfo) MarkupLarge(alt string) string {
	return fmt.Sprintf("<img src='%s' alt='%s' width='%d' height='%d'>",
		i.Medium.URL, html.EscapeString(alt), i.Medium.Width, i.Medium.Height)
}

func (i *ImageInfo) absolute(base string) {
	i.Small.URL = base + i.Small.URL
	i.Medium.URL = base + i.Medium.URL
}

// Session talks to one image server. The login token is acquired on the
// first request and reused for the lifetime of the session, so a session
// should be created once per batch run and shared by its renders.
type Session struct {
	base     string
	user     string
	password string
	client   *http.Client
	logger   *slog.Logger

	mu    sync.Mutex
	token string
}

// Option configures a Session.
type Option func(*Session)

// WithCredentials makes the session log in before its first request.
// Without credentials only public images are visible.
func WithCredentials(user, password string) Option {
	return func(s *Session) {
		s.user = user
		s.password = password
	}
}

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.client = c }
}

// WithLogger sets the logger used for login messages.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// NewSession creates a session against the server at base, e.g.
// "https://img.krats.se".
func NewSession(base string, opts ...Option) *Session {
	s := &Session{
		base:   strings.TrimRight(base, "/"),
		client: http.DefaultClient,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Fetch looks up an image by its server path.
func (s *Session) Fetch(ctx context.Context, ref string) (*ImageInfo, error) {
	u := s.base + "/api/image?" + url.Values{"path": {ref}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return s.imageRequest(req)
}

// MakePublic publishes an image and returns its updated info.
func (s *Session) MakePublic(ctx context.Context, ref string) (*ImageInfo, error) {
	body, err := json.Marshal(map[string]string{"path": ref})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/api/image/makepublic", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.imageRequest(req)
}

func (s *Session) imageRequest(req *http.Request) (*ImageInfo, error) {
	token, err := s.authToken(req.Context())
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	var info ImageInfo
	if err := s.do(req, &info); err != nil {
		return nil, err
	}
	info.absolute(s.base)
	return &info, nil
}

func (s *Session) authToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" || s.user == "" {
		return s.token, nil
	}
	token, err := s.login(ctx)
	if err != nil {
		return "", fmt.Errorf("login to %s as %s: %w", s.base, s.user, err)
	}
	s.token = token
	return token, nil
}

func (s *Session) login(ctx context.Context) (string, error) {
	s.logger.Info("Logging in to image server", "base", s.base, "user", s.user)
	body, err := json.Marshal(map[string]string{"user": s.user, "password": s.password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/api/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	var resp struct {
		Token string `json:"token"`
	}
	if err := s.do(req, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// StatusError is returned for non-2xx responses from the server.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Status)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
}

func (s *Session) do(req *http.Request, out any) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Err string `json:"err"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(data, &e)
		return &StatusError{Status: resp.StatusCode, Message: e.Err}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
