package frameio

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/LukeVan/frame-io-max-activation/internal/config"
	"github.com/LukeVan/frame-io-max-activation/internal/services"
)

func newTestREST(baseURL string) *REST {
	cfg := &config.Config{}
	cfg.FrameIO.BaseURL = baseURL
	cfg.FrameIO.AccountID = "acct-1"
	cfg.FrameIO.Token = "secret-token"
	return NewREST(cfg)
}

func TestCreateAssetRoundTrip(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		io.WriteString(w, `{"data":{"id":"asset-1","upload_urls":[{"url":"https://storage.example/put-here"}]}}`)
	}))
	defer srv.Close()

	client := newTestREST(srv.URL)
	target, err := client.CreateAsset(context.Background(), "folder-1", "clip.mov", 2048)
	if err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	if target.AssetID != "asset-1" || target.UploadURL != "https://storage.example/put-here" {
		t.Fatalf("unexpected target: %+v", target)
	}
	if gotPath != "/accounts/acct-1/folders/folder-1/files/local_upload" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	data, ok := gotBody["data"].(map[string]any)
	if !ok || data["name"] != "clip.mov" || data["file_size"] != float64(2048) {
		t.Fatalf("unexpected request body: %v", gotBody)
	}
}

func TestCreateAssetMissingUploadURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":{"id":"asset-1"}}`)
	}))
	defer srv.Close()

	_, err := newTestREST(srv.URL).CreateAsset(context.Background(), "folder-1", "clip.mov", 1)
	if err == nil {
		t.Fatal("expected error for missing upload url")
	}
	if !services.IsTransient(err) {
		t.Fatalf("expected transient classification, got %v", err)
	}
}

func TestErrorClassificationByStatus(t *testing.T) {
	cases := []struct {
		status    int
		transient bool
	}{
		{429, true},
		{500, true},
		{503, true},
		{404, false},
		{422, false},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tc.status)
		}))
		_, err := newTestREST(srv.URL).GetAsset(context.Background(), "asset-1")
		srv.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if services.IsTransient(err) != tc.transient {
			t.Fatalf("status %d: transient = %v, want %v (%v)", tc.status, !tc.transient, tc.transient, err)
		}
		if !tc.transient && !errors.Is(err, services.ErrPermanentRequest) {
			t.Fatalf("status %d: expected permanent marker, got %v", tc.status, err)
		}
		if StatusOf(err) != tc.status {
			t.Fatalf("StatusOf = %d, want %d", StatusOf(err), tc.status)
		}
	}
}

func TestGetAssetDecodesMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":{
			"id":"asset-1","name":"clip.mov","type":"file","status":"transcoded","file_size":2048,
			"metadata":[
				{"field_definition_id":"fd-1","field_definition_name":"Status","value":"Approved"},
				{"field_definition_id":"fd-2","field_definition_name":"Tags","value":[{"display_name":"Hero"},{"display_name":"Final"}]},
				{"field_definition_id":"fd-3","value":42},
				{"field_definition_id":"fd-4","field_definition_name":"Empty","value":null}
			]}}`)
	}))
	defer srv.Close()

	asset, err := newTestREST(srv.URL).GetAsset(context.Background(), "asset-1")
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if asset.ID != "asset-1" || asset.Status != "transcoded" || asset.Size != 2048 {
		t.Fatalf("unexpected asset: %+v", asset)
	}
	if asset.Fields["Status"] != "Approved" {
		t.Fatalf("string field = %q", asset.Fields["Status"])
	}
	if asset.Fields["Tags"] != "Hero, Final" {
		t.Fatalf("option list field = %q", asset.Fields["Tags"])
	}
	if asset.Fields["fd-3"] != "42" {
		t.Fatalf("numeric field keyed by definition id = %q", asset.Fields["fd-3"])
	}
	if _, ok := asset.Fields["Empty"]; ok {
		t.Fatal("null field should be omitted")
	}
}

func TestListAssetsSkipsFolders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[
			{"id":"asset-1","name":"clip.mov","type":"file","status":"transcoded"},
			{"id":"folder-2","name":"dailies","type":"folder"},
			{"id":"asset-3","name":"reel.mp4","type":"file","status":"transcoding"}
		]}`)
	}))
	defer srv.Close()

	assets, err := newTestREST(srv.URL).ListAssets(context.Background(), "folder-1")
	if err != nil {
		t.Fatalf("ListAssets: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("expected 2 file assets, got %d", len(assets))
	}
	if assets[0].ID != "asset-1" || assets[1].ID != "asset-3" {
		t.Fatalf("unexpected assets: %+v", assets)
	}
}

func TestPutBytes(t *testing.T) {
	var received []byte
	var contentType string
	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s", r.Method)
		}
		contentType = r.Header.Get("Content-Type")
		received, _ = io.ReadAll(r.Body)
	}))
	defer storage.Close()

	client := newTestREST("http://unused.example")
	target := UploadTarget{AssetID: "asset-1", UploadURL: storage.URL}
	if err := client.PutBytes(context.Background(), target, strings.NewReader("payload"), 7); err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	if string(received) != "payload" {
		t.Fatalf("received %q", received)
	}
	if contentType != "application/octet-stream" {
		t.Fatalf("content type %q", contentType)
	}
}

func TestDownloadFollowsMediaLink(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/bytes", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "original bytes")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":{"id":"asset-1","type":"file","status":"transcoded",
			"media_links":{"original":{"download_url":"`+srv.URL+`/bytes"}}}}`)
	})

	body, err := newTestREST(srv.URL).Download(context.Background(), "asset-1")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read download stream: %v", err)
	}
	if string(data) != "original bytes" {
		t.Fatalf("downloaded %q", data)
	}
}

func TestDownloadWithoutMediaLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":{"id":"asset-1","type":"file","status":"transcoded"}}`)
	}))
	defer srv.Close()

	_, err := newTestREST(srv.URL).Download(context.Background(), "asset-1")
	if err == nil {
		t.Fatal("expected error for missing download link")
	}
	if !services.IsTransient(err) {
		t.Fatalf("expected transient classification, got %v", err)
	}
}

func TestReadyAndTerminal(t *testing.T) {
	if !Ready(StatusTranscoded) || Ready(StatusTranscoding) || Ready(StatusFailed) {
		t.Fatal("Ready misclassifies statuses")
	}
	if !Terminal(StatusFailed) || Terminal(StatusTranscoding) || Terminal(StatusTranscoded) {
		t.Fatal("Terminal misclassifies statuses")
	}
}
