package mongodb

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/jacentio/docbase/store"
)

// parseStatement reads a query document written in relaxed extended JSON
// and binds its named parameters. Any string value of the form "@name" is
// replaced by params["name"].
func parseStatement(statement string, params store.Params) (bson.M, error) {
	var filter bson.M
	if err := bson.UnmarshalExtJSON([]byte(statement), false, &filter); err != nil {
		return nil, fmt.Errorf("%w: statement is not an extended JSON document: %w", store.ErrConfiguration, err)
	}
	bound, err := bindParams(filter, params)
	if err != nil {
		return nil, err
	}
	return bound.(bson.M), nil
}

func bindParams(v any, params store.Params) (any, error) {
	switch x := v.(type) {
	case string:
		name, ok := strings.CutPrefix(x, "@")
		if !ok || name == "" {
			return x, nil
		}
		value, ok := params[name]
		if !ok {
			return nil, fmt.Errorf("%w: statement parameter @%s has no value", store.ErrConfiguration, name)
		}
		return value, nil
	case bson.M:
		out := make(bson.M, len(x))
		for k, elem := range x {
			bound, err := bindParams(elem, params)
			if err != nil {
				return nil, err
			}
			out[k] = bound
		}
		return out, nil
	case bson.A:
		out := make(bson.A, len(x))
		for i, elem := range x {
			bound, err := bindParams(elem, params)
			if err != nil {
				return nil, err
			}
			out[i] = bound
		}
		return out, nil
	case bson.D:
		out := make(bson.D, len(x))
		for i, elem := range x {
			bound, err := bindParams(elem.Value, params)
			if err != nil {
				return nil, err
			}
			out[i] = bson.E{Key: elem.Key, Value: bound}
		}
		return out, nil
	}
	return v, nil
}
