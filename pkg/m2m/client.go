// Package m2m provides a client for the USGS M2M imagery archive API:
// token login, scene search over a bounding box, download-option
// expansion and bulk file retrieval.
package m2m

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"
)

// bandNames lists the per-scene files worth downloading: the thermal
// band of either instrument generation plus the pixel QA band.
var bandNames = []string{"QA_PIXEL", "ST_B10", "ST_B6"}

// filenameRe extracts the filename from a content-disposition header.
var filenameRe = regexp.MustCompile(`filename=(.+)`)

// Client defines the archive operations used by the fetch command.
type Client interface {
	// Login exchanges the username/token pair for an API key.
	Login(ctx context.Context) error
	// SearchScenes finds scenes of one dataset intersecting the bounding
	// box within the date range.
	SearchScenes(ctx context.Context, dataset string, p SearchParams) ([]Scene, error)
	// DownloadOptions expands scenes into downloadable band files.
	DownloadOptions(ctx context.Context, dataset string, entityIDs []string) ([]Download, error)
	// RequestDownloads stages the files and returns ready URLs.
	RequestDownloads(ctx context.Context, downloads []Download, label string) ([]Available, error)
	// FetchScenes runs the whole flow across every dataset whose mission
	// window overlaps the date range and saves files into outDir.
	FetchScenes(ctx context.Context, p SearchParams, outDir string) ([]string, error)
}

// SearchParams describes one archive query.
type SearchParams struct {
	BBox          [4]float64 // xmin, ymin, xmax, ymax
	Start         time.Time
	End           time.Time
	MaxCloudCover int
}

// Scene is one search hit.
type Scene struct {
	EntityID  string `json:"entityId"`
	DisplayID string `json:"displayId"`
}

// Download identifies one stageable band file.
type Download struct {
	EntityID  string `json:"entityId"`
	ProductID string `json:"productId"`
}

// Available is one staged file ready for retrieval.
type Available struct {
	URL string `json:"url"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps API requests per second. Zero or negative disables
// the limiter.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = nil
		}
	}
}

// WithProgress enables a byte progress bar on downloads.
func WithProgress(enabled bool) Option {
	return func(c *httpClient) {
		c.progress = enabled
	}
}

type httpClient struct {
	username string
	token    string
	baseURL  string
	apiKey   string
	progress bool
	limiter  *rate.Limiter
	http     *http.Client
	now      func() time.Time
}

// NewClient creates an archive client with ERS credentials.
func NewClient(username, token string, opts ...Option) Client {
	c := &httpClient{
		username: username,
		token:    token,
		baseURL:  "https://m2m.cr.usgs.gov/api/api/json/stable",
		limiter:  rate.NewLimiter(rate.Limit(2), 1),
		http: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiEnvelope is the uniform M2M response wrapper.
type apiEnvelope struct {
	Data         json.RawMessage `json:"data"`
	ErrorCode    *string         `json:"errorCode"`
	ErrorMessage *string         `json:"errorMessage"`
}

// send posts a JSON payload to an API endpoint and unwraps the data
// field.
func (c *httpClient) send(ctx context.Context, endpoint string, payload any) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "m2m: rate limit wait")
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrapf(err, "m2m: marshal %s payload", endpoint)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrapf(err, "m2m: create %s request", endpoint)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Auth-Token", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "m2m: %s request failed", endpoint)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "m2m: read %s response", endpoint)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("m2m: %s status %d: %s", endpoint, resp.StatusCode, string(respBody))
	}

	var env apiEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, eris.Wrapf(err, "m2m: unmarshal %s response", endpoint)
	}
	if env.ErrorCode != nil && *env.ErrorCode != "" {
		msg := ""
		if env.ErrorMessage != nil {
			msg = *env.ErrorMessage
		}
		return nil, eris.Errorf("m2m: %s error %s: %s", endpoint, *env.ErrorCode, msg)
	}
	return env.Data, nil
}

func (c *httpClient) Login(ctx context.Context) error {
	data, err := c.send(ctx, "login-token", map[string]string{
		"username": c.username,
		"token":    c.token,
	})
	if err != nil {
		return err
	}

	var key string
	if err := json.Unmarshal(data, &key); err != nil {
		return eris.Wrap(err, "m2m: unmarshal api key")
	}
	if key == "" {
		return eris.New("m2m: login returned empty api key")
	}
	c.apiKey = key
	return nil
}

func (c *httpClient) SearchScenes(ctx context.Context, dataset string, p SearchParams) ([]Scene, error) {
	maxCloud := p.MaxCloudCover
	if maxCloud <= 0 {
		maxCloud = 70
	}

	payload := map[string]any{
		"datasetName": dataset,
		"sceneFilter": map[string]any{
			"acquisitionFilter": map[string]string{
				"start": p.Start.Format("2006-01-02"),
				"end":   p.End.Format("2006-01-02"),
			},
			"spatialFilter": map[string]any{
				"filterType": "mbr",
				"lowerLeft":  map[string]float64{"latitude": p.BBox[1], "longitude": p.BBox[0]},
				"upperRight": map[string]float64{"latitude": p.BBox[3], "longitude": p.BBox[2]},
			},
			"cloudCoverFilter": map[string]int{"max": maxCloud},
		},
	}

	data, err := c.send(ctx, "scene-search", payload)
	if err != nil {
		return nil, err
	}

	var result struct {
		Results []Scene `json:"results"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, eris.Wrap(err, "m2m: unmarshal scene results")
	}
	return result.Results, nil
}

func (c *httpClient) DownloadOptions(ctx context.Context, dataset string, entityIDs []string) ([]Download, error) {
	data, err := c.send(ctx, "download-options", map[string]any{
		"datasetName":                dataset,
		"entityIds":                  entityIDs,
		"includeSecondaryFileGroups": true,
	})
	if err != nil {
		return nil, err
	}

	var options []struct {
		SecondaryDownloads []struct {
			ID            string `json:"id"`
			EntityID      string `json:"entityId"`
			DisplayID     string `json:"displayId"`
			BulkAvailable bool   `json:"bulkAvailable"`
		} `json:"secondaryDownloads"`
	}
	if err := json.Unmarshal(data, &options); err != nil {
		return nil, eris.Wrap(err, "m2m: unmarshal download options")
	}

	var downloads []Download
	for _, opt := range options {
		for _, item := range opt.SecondaryDownloads {
			if !item.BulkAvailable || !wantedBand(item.DisplayID) {
				continue
			}
			downloads = append(downloads, Download{EntityID: item.EntityID, ProductID: item.ID})
		}
	}
	return downloads, nil
}

func (c *httpClient) RequestDownloads(ctx context.Context, downloads []Download, label string) ([]Available, error) {
	data, err := c.send(ctx, "download-request", map[string]any{
		"downloads": downloads,
		"label":     label,
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		AvailableDownloads []Available `json:"availableDownloads"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, eris.Wrap(err, "m2m: unmarshal download request")
	}
	return result.AvailableDownloads, nil
}

func (c *httpClient) FetchScenes(ctx context.Context, p SearchParams, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "m2m: create %s", outDir)
	}

	var all []Download
	for _, dataset := range DatasetsFor(p.Start, p.End, c.now()) {
		scenes, err := c.SearchScenes(ctx, dataset, p)
		if err != nil {
			return nil, err
		}
		if len(scenes) == 0 {
			continue
		}

		ids := make([]string, len(scenes))
		for i, s := range scenes {
			ids[i] = s.EntityID
		}
		downloads, err := c.DownloadOptions(ctx, dataset, ids)
		if err != nil {
			return nil, err
		}
		all = append(all, downloads...)
	}
	if len(all) == 0 {
		return nil, nil
	}

	label := c.now().Format("20060102_150405")
	available, err := c.RequestDownloads(ctx, all, label)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, item := range available {
		path, err := c.downloadFile(ctx, item.URL, outDir)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// downloadFile retrieves one staged file, naming it from the
// content-disposition header and lowering a .TIF extension to .tif.
func (c *httpClient) downloadFile(ctx context.Context, url, outDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", eris.Wrap(err, "m2m: create download request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "m2m: download request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("m2m: download status %d", resp.StatusCode)
	}

	name, err := dispositionFilename(resp.Header.Get("Content-Disposition"))
	if err != nil {
		return "", err
	}
	if strings.EqualFold(filepath.Ext(name), ".tif") {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + ".tif"
	}

	path := filepath.Join(outDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "m2m: create %s", path)
	}
	defer f.Close()

	var dst io.Writer = f
	if c.progress {
		bar := progressbar.DefaultBytes(resp.ContentLength, name)
		dst = io.MultiWriter(f, bar)
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		return "", eris.Wrapf(err, "m2m: write %s", path)
	}
	return path, nil
}

// dispositionFilename parses the filename out of a content-disposition
// header value.
func dispositionFilename(disposition string) (string, error) {
	m := filenameRe.FindStringSubmatch(disposition)
	if len(m) < 2 {
		return "", eris.Errorf("m2m: no filename in content-disposition %q", disposition)
	}
	return strings.Trim(m[1], `"`), nil
}

// wantedBand reports whether a display ID names one of the band files
// the pipeline consumes.
func wantedBand(displayID string) bool {
	for _, band := range bandNames {
		if strings.Contains(displayID, band) {
			return true
		}
	}
	return false
}

// Mission windows per dataset. The OLI/TIRS collection is still growing,
// so its window is open ended.
var (
	tmFrom  = time.Date(1982, 7, 16, 0, 0, 0, 0, time.UTC)
	tmTo    = time.Date(2011, 6, 5, 0, 0, 0, 0, time.UTC)
	etmFrom = time.Date(1999, 4, 15, 0, 0, 0, 0, time.UTC)
	etmTo   = time.Date(2022, 4, 6, 0, 0, 0, 0, time.UTC)
	otFrom  = time.Date(2013, 2, 11, 0, 0, 0, 0, time.UTC)
)

// DatasetsFor selects every archive dataset whose mission window
// overlaps the requested date range.
func DatasetsFor(start, end, now time.Time) []string {
	overlaps := func(from, to time.Time) bool {
		return !start.After(to) && !end.Before(from)
	}

	var datasets []string
	if overlaps(tmFrom, tmTo) {
		datasets = append(datasets, "landsat_tm_c2_l2")
	}
	if overlaps(etmFrom, etmTo) {
		datasets = append(datasets, "landsat_etm_c2_l2")
	}
	if overlaps(otFrom, now) {
		datasets = append(datasets, "landsat_ot_c2_l2")
	}
	return datasets
}
