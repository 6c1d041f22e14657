// Contentful content store client.
// Photos are entries of content type photoShare with fields name,
// description, image (asset link) and like.
//
// Environment:
//   - CONTENTFUL_SPACE_ID
//   - CONTENTFUL_ENVIRONMENT_ID (default: master)
//   - CONTENTFUL_DELIVERY_TOKEN: read access (CDN)
//   - CONTENTFUL_MANAGEMENT_TOKEN: write access (CMA, uploads)

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PeraltaFrian/photo-sharing/internal/config"
	"github.com/PeraltaFrian/photo-sharing/internal/model"
	"github.com/cenkalti/backoff/v4"
)

const (
	photoContentType = "photoShare"
	defaultLocale    = "en-US"
	untitledPhoto    = "Untitled"

	contentfulDeliveryURL   = "https://cdn.contentful.com"
	contentfulManagementURL = "https://api.contentful.com"
	contentfulUploadURL     = "https://upload.contentful.com"

	managementMediaType = "application/vnd.contentful.management.v1+json"
)

var (
	ErrContentNotFound = errors.New("content not found")
	errAssetNotReady   = errors.New("asset still processing")
)

// APIError is a non-2xx answer from Contentful.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("contentful api error: status=%d body=%s", e.StatusCode, e.Body)
}

type ContentfulClient struct {
	spaceID         string
	environmentID   string
	deliveryToken   string
	managementToken string
	deliveryURL     string
	managementURL   string
	uploadURL       string
	httpClient      *http.Client
	newBackoff      func() backoff.BackOff
}

func NewContentfulClient(cfg config.ContentfulConfig) *ContentfulClient {
	env := cfg.EnvironmentID
	if env == "" {
		env = "master"
	}
	return &ContentfulClient{
		spaceID:         cfg.SpaceID,
		environmentID:   env,
		deliveryToken:   cfg.DeliveryToken,
		managementToken: cfg.ManagementToken,
		deliveryURL:     contentfulDeliveryURL,
		managementURL:   contentfulManagementURL,
		uploadURL:       contentfulUploadURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		newBackoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 3 * time.Second
			b.MaxElapsedTime = 30 * time.Second
			return b
		},
	}
}

// WithBaseURLs points the client at other hosts (tests, proxies).
func (c *ContentfulClient) WithBaseURLs(delivery, management, upload string) *ContentfulClient {
	c.deliveryURL = strings.TrimRight(delivery, "/")
	c.managementURL = strings.TrimRight(management, "/")
	c.uploadURL = strings.TrimRight(upload, "/")
	return c
}

func (c *ContentfulClient) IsConfigured() bool {
	return c.spaceID != "" && c.deliveryToken != "" && c.managementToken != ""
}

type sys struct {
	ID               string `json:"id"`
	Type             string `json:"type,omitempty"`
	LinkType         string `json:"linkType,omitempty"`
	Version          int    `json:"version,omitempty"`
	PublishedVersion int    `json:"publishedVersion,omitempty"`
	CreatedAt        string `json:"createdAt,omitempty"`
}

type link struct {
	Sys sys `json:"sys"`
}

type assetFile struct {
	URL         string `json:"url,omitempty"`
	FileName    string `json:"fileName,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	UploadFrom  *link  `json:"uploadFrom,omitempty"`
}

type deliveryEntries struct {
	Items []struct {
		Sys    sys `json:"sys"`
		Fields struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Like        int    `json:"like"`
			Image       *struct {
				Sys    sys `json:"sys"`
				Fields *struct {
					File *assetFile `json:"file"`
				} `json:"fields"`
			} `json:"image"`
		} `json:"fields"`
	} `json:"items"`
	Includes struct {
		Asset []struct {
			Sys    sys `json:"sys"`
			Fields struct {
				File *assetFile `json:"file"`
			} `json:"fields"`
		} `json:"Asset"`
	} `json:"includes"`
}

// management documents carry localized fields
type managedAsset struct {
	Sys    sys `json:"sys"`
	Fields struct {
		Title map[string]string     `json:"title,omitempty"`
		File  map[string]*assetFile `json:"file,omitempty"`
	} `json:"fields"`
}

type managedEntry struct {
	Sys    sys                               `json:"sys"`
	Fields map[string]map[string]interface{} `json:"fields"`
}

// ListPhotos returns published photos newest first.
func (c *ContentfulClient) ListPhotos(ctx context.Context) ([]model.Photo, error) {
	q := url.Values{}
	q.Set("content_type", photoContentType)
	q.Set("order", "-sys.createdAt")
	q.Set("include", "2")
	endpoint := fmt.Sprintf("%s/spaces/%s/environments/%s/entries?%s",
		c.deliveryURL, url.PathEscape(c.spaceID), url.PathEscape(c.environmentID), q.Encode())

	var payload deliveryEntries
	if _, err := c.do(ctx, http.MethodGet, endpoint, c.deliveryToken, nil, "", nil, &payload); err != nil {
		return nil, err
	}

	assets := make(map[string]string, len(payload.Includes.Asset))
	for _, asset := range payload.Includes.Asset {
		if asset.Fields.File != nil {
			assets[asset.Sys.ID] = asset.Fields.File.URL
		}
	}

	photos := make([]model.Photo, 0, len(payload.Items))
	for _, item := range payload.Items {
		photo := model.Photo{
			ID:          item.Sys.ID,
			Name:        item.Fields.Name,
			Description: item.Fields.Description,
			Likes:       item.Fields.Like,
		}
		if photo.Name == "" {
			photo.Name = untitledPhoto
		}
		if img := item.Fields.Image; img != nil {
			if img.Fields != nil && img.Fields.File != nil && img.Fields.File.URL != "" {
				photo.ImageURL = absoluteURL(img.Fields.File.URL)
			} else if u, ok := assets[img.Sys.ID]; ok && u != "" {
				photo.ImageURL = absoluteURL(u)
			}
		}
		photos = append(photos, photo)
	}
	return photos, nil
}

// UploadPhoto uploads the file, turns it into a published asset and links it
// from a new published entry with zero likes. Returns the entry id.
func (c *ContentfulClient) UploadPhoto(ctx context.Context, p model.NewPhoto) (string, error) {
	uploadID, err := c.createUpload(ctx, p.Data)
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}

	asset, err := c.createAsset(ctx, p, uploadID)
	if err != nil {
		return "", fmt.Errorf("create asset: %w", err)
	}

	if err := c.processAsset(ctx, asset.Sys.ID, asset.Sys.Version); err != nil {
		return "", fmt.Errorf("process asset: %w", err)
	}

	processed, err := c.waitForAsset(ctx, asset.Sys.ID)
	if err != nil {
		return "", fmt.Errorf("wait for asset: %w", err)
	}

	if _, err := c.publish(ctx, "assets", processed.Sys.ID, processed.Sys.Version); err != nil {
		return "", fmt.Errorf("publish asset: %w", err)
	}

	entry, err := c.createEntry(ctx, p, processed.Sys.ID)
	if err != nil {
		return "", fmt.Errorf("create entry: %w", err)
	}

	if _, err := c.publish(ctx, "entries", entry.Sys.ID, entry.Sys.Version); err != nil {
		return "", fmt.Errorf("publish entry: %w", err)
	}

	return entry.Sys.ID, nil
}

// DeletePhoto unpublishes the entry when needed, then deletes it.
func (c *ContentfulClient) DeletePhoto(ctx context.Context, id string) error {
	entry, err := c.getEntry(ctx, id)
	if err != nil {
		return err
	}

	version := entry.Sys.Version
	if entry.Sys.PublishedVersion > 0 {
		var unpublished managedEntry
		if _, err := c.do(ctx, http.MethodDelete, c.entryURL(id)+"/published", c.managementToken, nil, "",
			versionHeader(version), &unpublished); err != nil {
			return fmt.Errorf("unpublish entry: %w", err)
		}
		version = unpublished.Sys.Version
	}

	if _, err := c.do(ctx, http.MethodDelete, c.entryURL(id), c.managementToken, nil, "", versionHeader(version), nil); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// UpdateLikes writes the like field and republishes the entry.
func (c *ContentfulClient) UpdateLikes(ctx context.Context, id string, likes int) error {
	entry, err := c.getEntry(ctx, id)
	if err != nil {
		return err
	}
	if entry.Fields == nil {
		entry.Fields = map[string]map[string]interface{}{}
	}
	entry.Fields["like"] = map[string]interface{}{defaultLocale: likes}

	body, err := json.Marshal(map[string]interface{}{"fields": entry.Fields})
	if err != nil {
		return err
	}

	var updated managedEntry
	if _, err := c.do(ctx, http.MethodPut, c.entryURL(id), c.managementToken, bytes.NewReader(body), managementMediaType,
		versionHeader(entry.Sys.Version), &updated); err != nil {
		return fmt.Errorf("update entry: %w", err)
	}

	if _, err := c.publish(ctx, "entries", id, updated.Sys.Version); err != nil {
		return fmt.Errorf("publish entry: %w", err)
	}
	return nil
}

func (c *ContentfulClient) createUpload(ctx context.Context, data []byte) (string, error) {
	endpoint := fmt.Sprintf("%s/spaces/%s/uploads", c.uploadURL, url.PathEscape(c.spaceID))
	var out struct {
		Sys sys `json:"sys"`
	}
	if _, err := c.do(ctx, http.MethodPost, endpoint, c.managementToken, bytes.NewReader(data), "application/octet-stream", nil, &out); err != nil {
		return "", err
	}
	if out.Sys.ID == "" {
		return "", fmt.Errorf("upload response has no id")
	}
	return out.Sys.ID, nil
}

func (c *ContentfulClient) createAsset(ctx context.Context, p model.NewPhoto, uploadID string) (*managedAsset, error) {
	var asset managedAsset
	asset.Fields.Title = map[string]string{defaultLocale: p.Name}
	asset.Fields.File = map[string]*assetFile{
		defaultLocale: {
			FileName:    p.FileName,
			ContentType: p.ContentType,
			UploadFrom:  &link{Sys: sys{Type: "Link", LinkType: "Upload", ID: uploadID}},
		},
	}

	body, err := json.Marshal(map[string]interface{}{"fields": asset.Fields})
	if err != nil {
		return nil, err
	}

	var out managedAsset
	if _, err := c.do(ctx, http.MethodPost, c.envURL()+"/assets", c.managementToken, bytes.NewReader(body), managementMediaType, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ContentfulClient) processAsset(ctx context.Context, id string, version int) error {
	endpoint := fmt.Sprintf("%s/assets/%s/files/%s/process", c.envURL(), url.PathEscape(id), defaultLocale)
	_, err := c.do(ctx, http.MethodPut, endpoint, c.managementToken, nil, "", versionHeader(version), nil)
	return err
}

// waitForAsset polls until processing has produced a file url.
func (c *ContentfulClient) waitForAsset(ctx context.Context, id string) (*managedAsset, error) {
	var asset managedAsset
	operation := func() error {
		var current managedAsset
		if _, err := c.do(ctx, http.MethodGet, c.envURL()+"/assets/"+url.PathEscape(id), c.managementToken, nil, "", nil, &current); err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		file := current.Fields.File[defaultLocale]
		if file == nil || file.URL == "" {
			return errAssetNotReady
		}
		asset = current
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.newBackoff(), ctx)); err != nil {
		return nil, err
	}
	return &asset, nil
}

func (c *ContentfulClient) createEntry(ctx context.Context, p model.NewPhoto, assetID string) (*managedEntry, error) {
	fields := map[string]map[string]interface{}{
		"name":        {defaultLocale: p.Name},
		"description": {defaultLocale: p.Description},
		"image":       {defaultLocale: link{Sys: sys{Type: "Link", LinkType: "Asset", ID: assetID}}},
		"like":        {defaultLocale: 0},
	}
	body, err := json.Marshal(map[string]interface{}{"fields": fields})
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("X-Contentful-Content-Type", photoContentType)

	var out managedEntry
	if _, err := c.do(ctx, http.MethodPost, c.envURL()+"/entries", c.managementToken, bytes.NewReader(body), managementMediaType, header, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ContentfulClient) getEntry(ctx context.Context, id string) (*managedEntry, error) {
	var entry managedEntry
	if _, err := c.do(ctx, http.MethodGet, c.entryURL(id), c.managementToken, nil, "", nil, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *ContentfulClient) publish(ctx context.Context, collection, id string, version int) (int, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/published", c.envURL(), collection, url.PathEscape(id))
	var out struct {
		Sys sys `json:"sys"`
	}
	if _, err := c.do(ctx, http.MethodPut, endpoint, c.managementToken, nil, "", versionHeader(version), &out); err != nil {
		return 0, err
	}
	return out.Sys.Version, nil
}

func (c *ContentfulClient) envURL() string {
	return fmt.Sprintf("%s/spaces/%s/environments/%s", c.managementURL, url.PathEscape(c.spaceID), url.PathEscape(c.environmentID))
}

func (c *ContentfulClient) entryURL(id string) string {
	return c.envURL() + "/entries/" + url.PathEscape(id)
}

// do sends one request and decodes a JSON answer into out when out is non-nil.
// A 404 is reported as ErrContentNotFound.
func (c *ContentfulClient) do(ctx context.Context, method, endpoint, token string, body io.Reader, contentType string, header http.Header, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, err
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, fmt.Errorf("%w: %s", ErrContentNotFound, endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode contentful response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func versionHeader(version int) http.Header {
	h := http.Header{}
	h.Set("X-Contentful-Version", strconv.Itoa(version))
	return h
}

func absoluteURL(u string) string {
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}
