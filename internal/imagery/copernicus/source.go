// Package copernicus fetches scenes from the Copernicus Data Space Ecosystem: the
// catalog API lists acquisitions in a window and the process API renders one GeoTIFF
// per acquisition day over the AOI.
package copernicus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/forest-guardian/burnsev/internal/cache"
	"github.com/forest-guardian/burnsev/internal/geo"
	"github.com/forest-guardian/burnsev/internal/geotiff"
	"github.com/forest-guardian/burnsev/internal/imagery"
	"github.com/forest-guardian/burnsev/internal/log"
	"github.com/forest-guardian/burnsev/internal/period"
	"github.com/forest-guardian/burnsev/internal/raster"
	"github.com/forest-guardian/burnsev/internal/sensor"
	"github.com/forest-guardian/burnsev/internal/utils"
)

const (
	DefaultProcessURL = "https://sh.dataspace.copernicus.eu/api/v1/process"
	DefaultCatalogURL = "https://sh.dataspace.copernicus.eu/api/v1/catalog/1.0.0/search"

	maxPixels = 2500
)

var (
	ErrMissingCredentials = errors.New("missing Copernicus credentials")
	ErrUnauthorized       = errors.New("unauthorized access, check your client ID and secret")
)

type Options struct {
	ClientIDs     []string
	ClientSecrets []string
	TokenURL      string
	ProcessURL    string
	CatalogURL    string
	// Channels are the sensor channels requested from the process API. The QA
	// channel is always appended.
	Channels  []string
	Retries   int
	RetryWait time.Duration
	// Cache remembers catalog searches. Optional.
	Cache cache.CacheService[[]time.Time]
	// Decode turns a process API response into a raster, geotiff.Decode by default.
	Decode func([]byte, geotiff.ReadOptions) (*raster.Raster, error)
}

type Source struct {
	profile *sensor.Profile
	opts    Options
}

var _ imagery.Source = (*Source)(nil)

func New(profile *sensor.Profile, opts Options) (*Source, error) {
	if len(opts.ClientIDs) == 0 || opts.ClientIDs[0] == "" || len(opts.ClientSecrets) == 0 || opts.TokenURL == "" {
		return nil, fmt.Errorf("%w: COPERNICUS_CLIENT_ID, COPERNICUS_CLIENT_SECRET and COPERNICUS_TOKEN_URL are required", ErrMissingCredentials)
	}
	if len(opts.ClientIDs) != len(opts.ClientSecrets) {
		return nil, fmt.Errorf("%w: mismatched number of client IDs and secrets", ErrMissingCredentials)
	}
	if _, ok := datasets[profile.ID]; !ok {
		return nil, fmt.Errorf("%w: %s", sensor.ErrUnknownSensor, profile.ID)
	}
	if opts.ProcessURL == "" {
		opts.ProcessURL = DefaultProcessURL
	}
	if opts.CatalogURL == "" {
		opts.CatalogURL = DefaultCatalogURL
	}
	if len(opts.Channels) == 0 {
		opts.Channels = profile.Channels()
	}
	if opts.Retries <= 0 {
		opts.Retries = 10
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 5 * time.Second
	}
	if opts.Decode == nil {
		opts.Decode = geotiff.Decode
	}
	return &Source{profile: profile, opts: opts}, nil
}

// Query asks the catalog for acquisitions in window and renders one scene per day.
func (s *Source) Query(ctx context.Context, collection string, window period.DateRange, aoi *geo.AreaOfInterest) ([]*raster.Raster, error) {
	if collection != s.profile.Collection {
		return nil, fmt.Errorf("%w: source serves %s, not %s", sensor.ErrUnknownSensor, s.profile.Collection, collection)
	}
	if aoi == nil {
		return nil, errors.New("the process API needs an area of interest")
	}

	acquisitions, err := s.search(ctx, window, aoi)
	if err != nil {
		return nil, imagery.TimeoutError(err)
	}

	days := map[time.Time]time.Time{}
	for _, a := range acquisitions {
		day := a.UTC().Truncate(24 * time.Hour)
		if first, ok := days[day]; !ok || a.Before(first) {
			days[day] = a
		}
	}

	var scenes []*raster.Raster
	for _, day := range utils.GetSortedKeys(days, true) {
		data, err := s.process(ctx, day, day.Add(24*time.Hour-time.Second), aoi)
		if err != nil {
			return nil, imagery.TimeoutError(err)
		}
		scene, err := s.opts.Decode(data, geotiff.ReadOptions{
			BandNames: append(append([]string(nil), s.opts.Channels...), s.profile.QABand),
			QABand:    s.profile.QABand,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to decode scene of %s: %w", day.Format(period.DateLayout), err)
		}
		scene.ID = fmt.Sprintf("%s_%s", datasets[s.profile.ID].Type, day.Format(period.DateLayout))
		scene.Acquired = days[day]
		scenes = append(scenes, scene)
	}
	return scenes, nil
}

type searchResponse struct {
	Features []struct {
		ID         string `json:"id"`
		Properties struct {
			Datetime time.Time `json:"datetime"`
		} `json:"properties"`
	} `json:"features"`
	Context struct {
		Next *int `json:"next"`
	} `json:"context"`
}

func (s *Source) search(ctx context.Context, window period.DateRange, aoi *geo.AreaOfInterest) ([]time.Time, error) {
	b := aoi.Bound()
	bbox := []float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()}

	var key string
	if s.opts.Cache != nil {
		key = s.opts.Cache.GenerateKey(s.profile.ID, window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339), bbox)
		if dates, ok := s.opts.Cache.Get(key); ok {
			return dates, nil
		}
	}

	var (
		dates []time.Time
		next  *int
	)
	for {
		payload := map[string]interface{}{
			"bbox":        bbox,
			"datetime":    window.Start.Format(time.RFC3339) + "/" + window.End.Add(-time.Second).Format(time.RFC3339),
			"collections": []string{datasets[s.profile.ID].Type},
			"limit":       100,
			"fields": map[string]interface{}{
				"include": []string{"id", "properties.datetime"},
			},
		}
		if next != nil {
			payload["next"] = *next
		}

		body, err := s.post(ctx, s.opts.CatalogURL, payload)
		if err != nil {
			return nil, fmt.Errorf("catalog search failed: %w", err)
		}
		var resp searchResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse catalog response: %w", err)
		}
		for _, f := range resp.Features {
			if window.Contains(f.Properties.Datetime) {
				dates = append(dates, f.Properties.Datetime)
			}
		}
		if resp.Context.Next == nil || len(resp.Features) == 0 {
			break
		}
		next = resp.Context.Next
	}

	dates = utils.Dedupe(utils.SortDates(dates, true))
	if s.opts.Cache != nil {
		if err := s.opts.Cache.Set(key, dates); err != nil {
			log.Warnw("failed to cache catalog search", "error", err)
		}
	}
	return dates, nil
}

func calculatePixels(distance float64, resolution float64) int {
	pixels := int(math.Round(distance * (111_000.0 / resolution)))
	if pixels < 1 {
		return 1
	}
	if pixels > maxPixels {
		return maxPixels
	}
	return pixels
}

func (s *Source) process(ctx context.Context, from, to time.Time, aoi *geo.AreaOfInterest) ([]byte, error) {
	script, err := evalscript(s.profile.ID, s.opts.Channels)
	if err != nil {
		return nil, err
	}
	geometry, err := aoi.GeoJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to export geometry to GeoJSON: %w", err)
	}
	b := aoi.Bound()

	payload := map[string]interface{}{
		"input": map[string]interface{}{
			"bounds": map[string]interface{}{
				"bbox": []float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()},
				"properties": map[string]string{
					"crs": "http://www.opengis.net/def/crs/EPSG/0/4326",
				},
			},
			"data": []map[string]interface{}{
				{
					"type": datasets[s.profile.ID].Type,
					"dataFilter": map[string]interface{}{
						"timeRange": map[string]string{
							"from": from.Format(time.RFC3339),
							"to":   to.Format(time.RFC3339),
						},
						"mosaickingOrder": "mostRecent",
					},
				},
			},
		},
		"output": map[string]interface{}{
			"width":  calculatePixels(b.Max.X()-b.Min.X(), s.profile.ExportScale),
			"height": calculatePixels(b.Max.Y()-b.Min.Y(), s.profile.ExportScale),
			"responses": []map[string]interface{}{
				{
					"identifier": "default",
					"format":     map[string]string{"type": "image/tiff"},
				},
			},
		},
		"evalscript": script,
	}
	log.Debugw("requesting scene", "sensor", s.profile.ID, "from", from, "geometry", string(geometry))
	return s.post(ctx, s.opts.ProcessURL, payload)
}

// post tries each client credential in turn, retrying transient failures.
func (s *Source) post(ctx context.Context, url string, payload interface{}) ([]byte, error) {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	var lastErr error
	for i, clientID := range s.opts.ClientIDs {
		config := &clientcredentials.Config{
			ClientID:     strings.TrimSpace(clientID),
			ClientSecret: strings.TrimSpace(s.opts.ClientSecrets[i]),
			TokenURL:     s.opts.TokenURL,
		}
		httpClient := config.Client(ctx)

		body, err := s.postWithRetry(ctx, httpClient, url, requestBody)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *Source) postWithRetry(ctx context.Context, httpClient *http.Client, url string, requestBody []byte) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= s.opts.Retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		response, err := httpClient.Do(req)
		if err == nil {
			body, readErr := io.ReadAll(response.Body)
			response.Body.Close()
			switch {
			case readErr != nil:
				err = fmt.Errorf("failed to read response body: %w", readErr)
			case response.StatusCode == http.StatusOK:
				return body, nil
			case response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden:
				return nil, ErrUnauthorized
			case response.StatusCode == http.StatusBadRequest:
				return nil, fmt.Errorf("request rejected: %s", string(body))
			default:
				err = fmt.Errorf("status %d: %s", response.StatusCode, string(body))
			}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		log.Debugw("copernicus request failed", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.opts.RetryWait):
		}
	}
	return nil, fmt.Errorf("failed to request %s after %d attempts: %w", url, s.opts.Retries, lastErr)
}
