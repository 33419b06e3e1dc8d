package repo

import (
	"context"
	"errors"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	errx "github.com/brscn2/aesthetiq-sub001/internal/core/error"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
	logx "github.com/brscn2/aesthetiq-sub001/pkg/logger"
)

const defaultPoolCap = 200

// MongoCatalogRepository serves the filtered candidate pool and user style
// profiles. Similarity scoring happens in-process, so the store only
// applies structural filters; no vector index is required.
type MongoCatalogRepository struct {
	items    *mongo.Collection
	profiles *mongo.Collection
	poolCap  int64
}

func NewMongoCatalogRepository(db *mongo.Database, itemsCol, profilesCol string, poolCap int) *MongoCatalogRepository {
	cap := int64(poolCap)
	if cap <= 0 {
		cap = defaultPoolCap
	}
	return &MongoCatalogRepository{
		items:    db.Collection(itemsCol),
		profiles: db.Collection(profilesCol),
		poolCap:  cap,
	}
}

// FindCandidates returns items matching the ANDed structural filters. An
// empty filter set returns an unrestricted pool; either way the result is
// capped so one query can never drag the whole catalog into memory.
func (r *MongoCatalogRepository) FindCandidates(ctx context.Context, filters model.SearchFilters, limit int) ([]model.CatalogItem, error) {
	lim := int64(limit)
	if lim <= 0 || lim > r.poolCap {
		lim = r.poolCap
	}

	cur, err := r.items.Find(ctx, buildCandidateFilter(filters), options.Find().SetLimit(lim))
	if err != nil {
		logx.Error().Err(err).Msg("catalog candidate query failed")
		return nil, errx.WrapStore(err)
	}

	var out []model.CatalogItem
	if err := cur.All(ctx, &out); err != nil {
		logx.Error().Err(err).Msg("catalog cursor drain failed")
		return nil, errx.WrapStore(err)
	}
	return out, nil
}

// FindByIDs resolves previously surfaced items for outfit analysis.
func (r *MongoCatalogRepository) FindByIDs(ctx context.Context, ids []string) ([]model.CatalogItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cur, err := r.items.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		logx.Error().Err(err).Msg("catalog id lookup failed")
		return nil, errx.WrapStore(err)
	}

	var out []model.CatalogItem
	if err := cur.All(ctx, &out); err != nil {
		logx.Error().Err(err).Msg("catalog cursor drain failed")
		return nil, errx.WrapStore(err)
	}
	return out, nil
}

// GetProfile returns the stored style profile, or (nil, nil) when the user
// has none.
func (r *MongoCatalogRepository) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	var p model.UserProfile
	err := r.profiles.FindOne(ctx, bson.M{"_id": userID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		logx.Error().Err(err).Str("userID", userID).Msg("profile lookup failed")
		return nil, errx.WrapStore(err)
	}
	return &p, nil
}

// buildCandidateFilter renders the ANDed structural filters. Brand is a
// case-insensitive substring match with the pattern escaped, so user text
// can never smuggle regex syntax into the query.
func buildCandidateFilter(f model.SearchFilters) bson.M {
	q := bson.M{}
	if f.Category != "" {
		q["category"] = f.Category
	}
	if f.SubCategory != "" {
		q["subCategory"] = f.SubCategory
	}
	if f.ColorHex != "" {
		q["colorHex"] = f.ColorHex
	}
	if f.Brand != "" {
		q["brand"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Brand), Options: "i"}
	}
	return q
}

var (
	_ model.CatalogRepository = (*MongoCatalogRepository)(nil)
	_ model.ProfileRepository = (*MongoCatalogRepository)(nil)
)
