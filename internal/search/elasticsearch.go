// Package search indexes bookings in Elasticsearch for fuzzy guest lookup.
// The client degrades to disabled when no URL is configured; callers fall
// back to SQL substring search.
package search

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jafarov01/property-management-bot/config"
	"github.com/jafarov01/property-management-bot/internal/models"
)

// BookingHit is one search result.
type BookingHit struct {
	BookingID    string `json:"booking_id"`
	GuestName    string `json:"guest_name"`
	PropertyCode string `json:"property_code"`
	Platform     string `json:"platform"`
	Status       string `json:"status"`
	CheckinDate  string `json:"checkin_date"`
}

// ElasticClient indexes and searches bookings.
type ElasticClient struct {
	client  *elasticsearch.Client
	config  config.ElasticConfig
	enabled bool
}

// NewElasticClient creates an Elasticsearch client. A disabled or
// URL-less config yields a disabled client rather than an error.
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	if !cfg.Enabled || cfg.URL == "" {
		log.Warn().Msg("Elasticsearch URL not provided, guest search falls back to the database")
		return &ElasticClient{enabled: false}, nil
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{
		client:  client,
		config:  cfg,
		enabled: true,
	}, nil
}

// Enabled reports whether search is backed by a live cluster.
func (c *ElasticClient) Enabled() bool {
	return c.enabled
}

// IndexBooking upserts a booking document keyed by booking ID.
func (c *ElasticClient) IndexBooking(ctx context.Context, booking *models.Booking) error {
	if !c.enabled {
		return nil
	}

	doc := BookingHit{
		BookingID:    booking.ID.String(),
		GuestName:    booking.GuestName,
		PropertyCode: booking.PropertyCode,
		Platform:     booking.Platform,
		Status:       string(booking.Status),
		CheckinDate:  booking.CheckinDate.Format("2006-01-02"),
	}
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal booking document")
	}

	req := esapi.IndexRequest{
		Index:      config.FormatIndex(c.config, c.config.Index),
		DocumentID: booking.ID.String(),
		Body:       bytes.NewReader(docJSON),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return errors.Errorf("Elasticsearch index error: %v", e)
	}

	log.Debug().Str("booking_id", booking.ID.String()).Msg("booking indexed")
	return nil
}

// SearchGuests runs a fuzzy match on guest names and returns the hits.
func (c *ElasticClient) SearchGuests(ctx context.Context, guestName string) ([]BookingHit, error) {
	if !c.enabled {
		return nil, errors.New("search is disabled")
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				"guest_name": map[string]interface{}{
					"query":     guestName,
					"fuzziness": "AUTO",
				},
			},
		},
	}
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	req := esapi.SearchRequest{
		Index: []string{config.FormatIndex(c.config, c.config.Index)},
		Body:  bytes.NewReader(queryJSON),
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return nil, errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return nil, errors.Errorf("Elasticsearch search error: %v", e)
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source BookingHit `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	hits := make([]BookingHit, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		hits = append(hits, hit.Source)
	}
	return hits, nil
}
