// Package search maintains the consultant directory index. The document
// store stays authoritative; the index only returns matching ids.
package search

import (
	"context"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"booking-service/internal/client"
	"booking-service/internal/models"
)

const consultantMapping = `{
  "mappings": {
    "properties": {
      "name":       {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "specialty":  {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "experience": {"type": "keyword"},
      "rating":     {"type": "float"},
      "centerId":   {"type": "keyword"},
      "isActive":   {"type": "boolean"}
    }
  }
}`

const syncConcurrency = 8

type esAPI interface {
	EnsureIndex(ctx context.Context, index, mapping string) error
	Search(ctx context.Context, index string, query map[string]interface{}) (*esapi.Response, error)
	IndexDocument(ctx context.Context, index, id string, document interface{}) (*esapi.Response, error)
	ParseResponse(res *esapi.Response, target interface{}) error
}

var _ esAPI = (*client.ESClient)(nil)

type consultantDoc struct {
	Name       string  `json:"name"`
	Specialty  string  `json:"specialty"`
	Experience string  `json:"experience"`
	Rating     float64 `json:"rating"`
	CenterID   string  `json:"centerId"`
	IsActive   bool    `json:"isActive"`
}

type ConsultantIndex struct {
	es     esAPI
	index  string
	logger *zap.Logger
}

func NewConsultantIndex(es esAPI, index string, logger *zap.Logger) *ConsultantIndex {
	return &ConsultantIndex{es: es, index: index, logger: logger}
}

func (ci *ConsultantIndex) EnsureIndex(ctx context.Context) error {
	return ci.es.EnsureIndex(ctx, ci.index, consultantMapping)
}

func (ci *ConsultantIndex) Index(ctx context.Context, c *models.Consultant) error {
	doc := consultantDoc{
		Name:       c.Name,
		Specialty:  c.Specialty,
		Experience: c.Experience,
		Rating:     c.Rating,
		CenterID:   c.CenterID.Hex(),
		IsActive:   c.IsActive,
	}
	res, err := ci.es.IndexDocument(ctx, ci.index, c.ID.Hex(), doc)
	if err != nil {
		return err
	}
	return ci.es.ParseResponse(res, nil)
}

// Sync indexes every consultant, a few at a time.
func (ci *ConsultantIndex) Sync(ctx context.Context, consultants []*models.Consultant) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(syncConcurrency)
	for _, c := range consultants {
		c := c
		g.Go(func() error {
			if err := ci.Index(ctx, c); err != nil {
				return fmt.Errorf("index consultant %s: %w", c.ID.Hex(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	ci.logger.Info("Consultant index synced", zap.Int("count", len(consultants)))
	return nil
}

func searchQuery(text string, limit int) map[string]interface{} {
	return map[string]interface{}{
		"size":    limit,
		"_source": false,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":     text,
						"fields":    []string{"name^2", "specialty"},
						"fuzziness": "AUTO",
					},
				},
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"isActive": true}},
				},
			},
		},
	}
}

// Search returns ids of active consultants matching text, best match first.
func (ci *ConsultantIndex) Search(ctx context.Context, text string, limit int) ([]primitive.ObjectID, error) {
	res, err := ci.es.Search(ctx, ci.index, searchQuery(text, limit))
	if err != nil {
		return nil, err
	}
	var body struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := ci.es.ParseResponse(res, &body); err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(body.Hits.Hits))
	for _, h := range body.Hits.Hits {
		id, err := primitive.ObjectIDFromHex(h.ID)
		if err != nil {
			ci.logger.Warn("Skipping consultant hit with bad id", zap.String("id", h.ID))
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
