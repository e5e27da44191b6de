package mongo

import (
	"context"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"booking-service/internal/models"
)

type directoryRepository struct {
	centers     *mongo.Collection
	consultants *mongo.Collection
}

var byName = options.Find().SetSort(bson.D{{Key: "name", Value: 1}})

func centerFilter(city string) bson.M {
	f := bson.M{"isActive": true}
	if city != "" {
		f["city"] = city
	}
	return f
}

func consultantFilter(filter models.ConsultantFilter) bson.M {
	f := bson.M{"isActive": true}
	if !filter.CenterID.IsZero() {
		f["centerId"] = filter.CenterID
	}
	if filter.Specialty != "" {
		f["specialty"] = filter.Specialty
	}
	return f
}

// consultantSearchFilter matches text as a literal, case-insensitive
// substring of name or specialty.
func consultantSearchFilter(text string) bson.M {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(strings.TrimSpace(text)), Options: "i"}
	return bson.M{
		"isActive": true,
		"$or": bson.A{
			bson.M{"name": pattern},
			bson.M{"specialty": pattern},
		},
	}
}

func (r *directoryRepository) ListCenters(ctx context.Context, city string) ([]*models.Center, error) {
	cur, err := r.centers.Find(ctx, centerFilter(city), byName)
	if err != nil {
		return nil, err
	}
	var out []*models.Center
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *directoryRepository) FindCenter(ctx context.Context, id primitive.ObjectID) (*models.Center, error) {
	var c models.Center
	if err := r.centers.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (r *directoryRepository) ListConsultants(ctx context.Context, filter models.ConsultantFilter) ([]*models.Consultant, error) {
	return r.findConsultants(ctx, consultantFilter(filter), byName)
}

func (r *directoryRepository) FindConsultant(ctx context.Context, id primitive.ObjectID) (*models.Consultant, error) {
	var c models.Consultant
	if err := r.consultants.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (r *directoryRepository) SearchConsultants(ctx context.Context, text string, limit int) ([]*models.Consultant, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.findConsultants(ctx, consultantSearchFilter(text), opts)
}

func (r *directoryRepository) findConsultants(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Consultant, error) {
	cur, err := r.consultants.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var out []*models.Consultant
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *directoryRepository) SaveCenter(ctx context.Context, c *models.Center) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	_, err := r.centers.ReplaceOne(ctx, bson.M{"_id": c.ID}, c, options.Replace().SetUpsert(true))
	return mapErr(err)
}

func (r *directoryRepository) SaveConsultant(ctx context.Context, c *models.Consultant) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	_, err := r.consultants.ReplaceOne(ctx, bson.M{"_id": c.ID}, c, options.Replace().SetUpsert(true))
	return mapErr(err)
}
