package plex

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"uhfremux/internal/config"
)

const userAgent = "uhfremux/0.1.0"

// NewService returns a Plex service when the configuration carries complete
// connection settings, or nil when the integration is disabled.
func NewService(cfg *config.Config) Service {
	if !cfg.PlexConfigured() {
		return nil
	}
	return &httpService{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.Plex.URL), "/"),
		token:   strings.TrimSpace(cfg.Plex.Token),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type httpService struct {
	baseURL string
	token   string
	client  *http.Client
}

type directory struct {
	Key      string `xml:"key,attr"`
	Title    string `xml:"title,attr"`
	Scanning string `xml:"scanning,attr"`
}

type part struct {
	File string `xml:"file,attr"`
}

type media struct {
	Parts []part `xml:"Part"`
}

type video struct {
	RatingKey string  `xml:"ratingKey,attr"`
	Media     []media `xml:"Media"`
}

type mediaContainer struct {
	Directories []directory `xml:"Directory"`
	Videos      []video     `xml:"Video"`
}

func (s *httpService) FindSection(ctx context.Context, name string) (string, error) {
	container, err := s.get(ctx, "/library/sections", nil)
	if err != nil {
		return "", err
	}
	for _, dir := range container.Directories {
		if dir.Title == name {
			return dir.Key, nil
		}
	}
	return "", fmt.Errorf("plex library %q not found", name)
}

func (s *httpService) SectionScanning(ctx context.Context, sectionKey string) (bool, error) {
	container, err := s.get(ctx, "/library/sections/"+sectionKey, nil)
	if err != nil {
		return false, err
	}
	for _, dir := range container.Directories {
		return dir.Scanning == "1", nil
	}
	return false, nil
}

func (s *httpService) RefreshPath(ctx context.Context, sectionKey, path string) error {
	params := url.Values{}
	params.Set("path", path)
	_, err := s.get(ctx, "/library/sections/"+sectionKey+"/refresh", params)
	return err
}

func (s *httpService) FindItemByFile(ctx context.Context, sectionKey, file string) (string, error) {
	container, err := s.get(ctx, "/library/sections/"+sectionKey+"/all", nil)
	if err != nil {
		return "", err
	}
	for _, vid := range container.Videos {
		for _, m := range vid.Media {
			for _, p := range m.Parts {
				if p.File == file {
					return vid.RatingKey, nil
				}
			}
		}
	}
	return "", fmt.Errorf("no plex item matches %q", file)
}

func (s *httpService) UpdateItemMetadata(ctx context.Context, ratingKey string, fields url.Values) error {
	endpoint := s.baseURL + "/library/metadata/" + ratingKey + "?" + fields.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build plex metadata request: %w", err)
	}
	s.decorate(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("update plex metadata: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return responseError("plex metadata update", resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (s *httpService) get(ctx context.Context, path string, params url.Values) (*mediaContainer, error) {
	endpoint := s.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build plex request: %w", err)
	}
	s.decorate(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plex request %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, responseError("plex request "+path, resp)
	}

	var container mediaContainer
	if err := xml.NewDecoder(resp.Body).Decode(&container); err != nil {
		return nil, fmt.Errorf("decode plex response %s: %w", path, err)
	}
	return &container, nil
}

func (s *httpService) decorate(req *http.Request) {
	req.Header.Set("X-Plex-Token", s.token)
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("User-Agent", userAgent)
}

func responseError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return fmt.Errorf("%s returned %d: %s", operation, resp.StatusCode, strings.TrimSpace(string(body)))
}
