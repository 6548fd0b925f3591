package frameio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/LukeVan/frame-io-max-activation/internal/config"
)

const (
	userAgent       = "fiomax/0.1.0"
	jsonCallTimeout = 30 * time.Second
)

// REST is the bearer-token HTTP implementation of Client. Authentication
// beyond a pre-acquired token (refresh flows, signing) is out of scope; the
// token comes fully resolved from configuration.
type REST struct {
	baseURL   string
	accountID string
	token     string
	client    *http.Client
}

// NewREST builds a client from configuration. The underlying http.Client has
// no global timeout; byte transfers are bounded by the caller's context.
func NewREST(cfg *config.Config) *REST {
	return &REST{
		baseURL:   cfg.FrameIO.BaseURL,
		accountID: cfg.FrameIO.AccountID,
		token:     cfg.FrameIO.Token,
		client:    &http.Client{},
	}
}

type assetPayload struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Status    string          `json:"status"`
	FileSize  int64           `json:"file_size"`
	UpdatedAt time.Time       `json:"updated_at"`
	Metadata  []metadataField `json:"metadata"`
	MediaLinks struct {
		Original struct {
			DownloadURL string `json:"download_url"`
		} `json:"original"`
	} `json:"media_links"`
	UploadURLs []struct {
		URL string `json:"url"`
	} `json:"upload_urls"`
}

type metadataField struct {
	FieldDefinitionID   string          `json:"field_definition_id"`
	FieldDefinitionName string          `json:"field_definition_name"`
	Value               json.RawMessage `json:"value"`
}

func (c *REST) CreateAsset(ctx context.Context, folderID, name string, size int64) (UploadTarget, error) {
	url := fmt.Sprintf("%s/accounts/%s/folders/%s/files/local_upload", c.baseURL, c.accountID, folderID)
	body := map[string]any{
		"data": map[string]any{
			"name":      name,
			"file_size": size,
		},
	}
	var resp struct {
		Data assetPayload `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodPost, url, body, &resp, "create asset"); err != nil {
		return UploadTarget{}, err
	}
	target := UploadTarget{AssetID: resp.Data.ID}
	if len(resp.Data.UploadURLs) > 0 {
		target.UploadURL = resp.Data.UploadURLs[0].URL
	}
	if target.AssetID == "" || target.UploadURL == "" {
		return UploadTarget{}, &APIError{StatusCode: 502, Operation: "create asset", Body: "response missing upload destination"}
	}
	return target, nil
}

func (c *REST) PutBytes(ctx context.Context, target UploadTarget, body io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.UploadURL, body)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("x-amz-acl", "private")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("transfer bytes: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Operation: "transfer bytes", Body: readErrorBody(resp.Body)}
	}
	return nil
}

func (c *REST) GetAsset(ctx context.Context, assetID string) (Asset, error) {
	url := fmt.Sprintf("%s/accounts/%s/files/%s?include=metadata,media_links.original", c.baseURL, c.accountID, assetID)
	var resp struct {
		Data assetPayload `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &resp, "get asset"); err != nil {
		return Asset{}, err
	}
	return toAsset(resp.Data), nil
}

func (c *REST) ListAssets(ctx context.Context, folderID string) ([]Asset, error) {
	url := fmt.Sprintf("%s/accounts/%s/folders/%s/children?include=metadata,media_links.original&type=file", c.baseURL, c.accountID, folderID)
	var resp struct {
		Data []assetPayload `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &resp, "list assets"); err != nil {
		return nil, err
	}
	assets := make([]Asset, 0, len(resp.Data))
	for _, item := range resp.Data {
		if item.Type != "" && item.Type != "file" {
			continue
		}
		assets = append(assets, toAsset(item))
	}
	return assets, nil
}

func (c *REST) SetField(ctx context.Context, assetID, fieldDefinitionID, value string) error {
	url := fmt.Sprintf("%s/accounts/%s/files/%s/metadata", c.baseURL, c.accountID, assetID)
	body := map[string]any{
		"data": map[string]any{
			"values": []map[string]any{
				{"field_definition_id": fieldDefinitionID, "value": value},
			},
		},
	}
	return c.doJSON(ctx, http.MethodPatch, url, body, nil, "set field")
}

func (c *REST) Download(ctx context.Context, assetID string) (io.ReadCloser, error) {
	asset, err := c.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	downloadURL := asset.downloadURL
	if downloadURL == "" {
		return nil, &APIError{StatusCode: 502, Operation: "download", Body: "asset has no download link"}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open download stream: %w", err)
	}
	if resp.StatusCode >= 300 {
		body := readErrorBody(resp.Body)
		resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode, Operation: "download", Body: body}
	}
	return resp.Body, nil
}

func (c *REST) doJSON(ctx context.Context, method, url string, body any, out any, operation string) error {
	ctx, cancel := context.WithTimeout(ctx, jsonCallTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", operation, err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Operation: operation, Body: readErrorBody(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", operation, err)
	}
	return nil
}

func toAsset(payload assetPayload) Asset {
	asset := Asset{
		ID:          payload.ID,
		Name:        payload.Name,
		Status:      payload.Status,
		Size:        payload.FileSize,
		UpdatedAt:   payload.UpdatedAt,
		Fields:      make(map[string]string, len(payload.Metadata)),
		downloadURL: payload.MediaLinks.Original.DownloadURL,
	}
	for _, field := range payload.Metadata {
		name := field.FieldDefinitionName
		if name == "" {
			name = field.FieldDefinitionID
		}
		if value := decodeFieldValue(field.Value); value != "" {
			asset.Fields[name] = value
		}
	}
	return asset
}

// decodeFieldValue flattens the metadata value shapes the API produces:
// plain strings, numbers, and option lists of {display_name} objects.
func decodeFieldValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var asOptions []struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.Unmarshal(raw, &asOptions); err == nil && len(asOptions) > 0 {
		names := make([]string, 0, len(asOptions))
		for _, option := range asOptions {
			if option.DisplayName != "" {
				names = append(names, option.DisplayName)
			}
		}
		return strings.Join(names, ", ")
	}
	var asAny any
	if err := json.Unmarshal(raw, &asAny); err == nil && asAny != nil {
		return fmt.Sprintf("%v", asAny)
	}
	return ""
}

func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
