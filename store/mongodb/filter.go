package mongodb

import (
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/jacentio/docbase/store"
)

var compareOps = map[store.CompareOp]string{
	store.OpNe: "$ne",
	store.OpLt: "$lt",
	store.OpLe: "$lte",
	store.OpGt: "$gt",
	store.OpGe: "$gte",
}

// translate converts f into a MongoDB query document. A nil filter matches everything.
func translate(f store.Filter) (bson.M, error) {
	switch n := f.(type) {
	case nil:
		return bson.M{}, nil
	case store.Comparison:
		path := fieldPath(n.Path)
		if n.Op == store.OpEq {
			return bson.M{path: n.Value}, nil
		}
		op, ok := compareOps[n.Op]
		if !ok {
			return nil, fmt.Errorf("%w: comparison operator %q", store.ErrUnsupported, n.Op)
		}
		return bson.M{path: bson.M{op: n.Value}}, nil
	case store.PrefixMatch:
		return bson.M{fieldPath(n.Path): bson.M{"$regex": "^" + regexp.QuoteMeta(n.Prefix)}}, nil
	case store.ContainsMatch:
		if s, ok := n.Value.(string); ok {
			return bson.M{fieldPath(n.Path): bson.M{"$regex": regexp.QuoteMeta(s)}}, nil
		}
		// Equality on an array field matches any element.
		return bson.M{fieldPath(n.Path): n.Value}, nil
	case store.Presence:
		return bson.M{fieldPath(n.Path): bson.M{"$exists": n.Present}}, nil
	case store.Membership:
		values := bson.A{}
		for _, v := range n.Values {
			values = append(values, v)
		}
		return bson.M{fieldPath(n.Path): bson.M{"$in": values}}, nil
	case store.AndFilter:
		parts, err := translateAll(n.Filters)
		if err != nil {
			return nil, err
		}
		if len(parts) == 0 {
			return bson.M{}, nil
		}
		return bson.M{"$and": parts}, nil
	case store.OrFilter:
		parts, err := translateAll(n.Filters)
		if err != nil {
			return nil, err
		}
		if len(parts) == 0 {
			return bson.M{"_id": bson.M{"$exists": false}}, nil
		}
		return bson.M{"$or": parts}, nil
	case store.NotFilter:
		inner, err := translate(n.Filter)
		if err != nil {
			return nil, err
		}
		return bson.M{"$nor": bson.A{inner}}, nil
	}
	return nil, fmt.Errorf("%w: filter %T", store.ErrUnsupported, f)
}

func translateAll(filters []store.Filter) (bson.A, error) {
	parts := bson.A{}
	for _, f := range filters {
		if f == nil {
			continue
		}
		m, err := translate(f)
		if err != nil {
			return nil, err
		}
		parts = append(parts, m)
	}
	return parts, nil
}

// fieldPath maps a document path to its stored field path. The document id
// lives in _id; list indexes are already valid dot notation.
func fieldPath(path string) string {
	if path == store.IDAttr {
		return "_id"
	}
	if rest, ok := strings.CutPrefix(path, store.IDAttr+"."); ok {
		return "_id." + rest
	}
	return path
}
