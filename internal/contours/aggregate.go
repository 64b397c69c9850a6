package contours

import (
	"context"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"golang.org/x/sync/errgroup"
)

// UnionFunc dissolves geometries into one.
type UnionFunc func([]*geom.MultiPolygon) (*geom.MultiPolygon, error)

// ResolveFunc returns the attributes of a group from its key.
type ResolveFunc func(key string) (Properties, error)

// Aggregator dissolves features sharing an attribute value.
type Aggregator struct {
	union       UnionFunc
	concurrency int
}

// NewAggregator returns an aggregator dissolving up to concurrency groups at
// once.
func NewAggregator(union UnionFunc, concurrency int) *Aggregator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Aggregator{union: union, concurrency: concurrency}
}

type group struct {
	key     string
	members []Feature
}

// Aggregate partitions features by attr and returns one feature per group,
// sorted by key. Features without attr belong to no group. Group attributes
// come from resolve alone. Members are unioned in code order so the result
// does not depend on the order of features.
func (a *Aggregator) Aggregate(ctx context.Context, features []Feature, attr Attribute, resolve ResolveFunc) ([]Feature, error) {
	groups := partition(features, attr)

	out := make([]Feature, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, grp := range groups {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			props, err := resolve(grp.key)
			if err != nil {
				return eris.Wrapf(err, "contours: resolve %s %s", attr, grp.key)
			}

			geoms := make([]*geom.MultiPolygon, len(grp.members))
			for j, m := range grp.members {
				geoms[j] = m.Geometry
			}
			merged, err := a.union(geoms)
			if err != nil {
				return eris.Wrapf(err, "contours: dissolve %s %s", attr, grp.key)
			}

			out[i] = Feature{Geometry: merged, Properties: props}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func partition(features []Feature, attr Attribute) []group {
	byKey := make(map[string][]Feature)
	for _, f := range features {
		key, ok := f.Properties.Value(attr)
		if !ok {
			continue
		}
		byKey[key] = append(byKey[key], f)
	}

	groups := make([]group, 0, len(byKey))
	for key, members := range byKey {
		slices.SortStableFunc(members, func(x, y Feature) int {
			return strings.Compare(x.Properties.Code, y.Properties.Code)
		})
		groups = append(groups, group{key: key, members: members})
	}
	slices.SortFunc(groups, func(x, y group) int {
		return strings.Compare(x.key, y.key)
	})
	return groups
}
