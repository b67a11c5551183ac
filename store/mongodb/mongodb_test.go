package mongodb

import (
	"context"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/jacentio/docbase/store"
)

// fakeExecutor keeps documents in insertion order and evaluates the subset
// of query operators the adapter emits for equality, presence and logic.
type fakeExecutor struct {
	mu      sync.Mutex
	docs    []bson.M
	filters []bson.M
}

func (f *fakeExecutor) InsertOne(ctx context.Context, doc bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d["_id"] == doc["_id"] {
			return mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}}}
		}
	}
	f.docs = append(f.docs, doc)
	return nil
}

func (f *fakeExecutor) FindOne(ctx context.Context, filter bson.M) (bson.M, bool, error) {
	docs, err := f.Find(ctx, filter, 1)
	if err != nil || len(docs) == 0 {
		return nil, false, err
	}
	return docs[0], true, nil
}

func (f *fakeExecutor) Find(ctx context.Context, filter bson.M, limit int64) ([]bson.M, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	var out []bson.M
	for _, d := range f.docs {
		if matchDoc(filter, d) {
			out = append(out, d)
			if limit > 0 && int64(len(out)) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeExecutor) ReplaceOne(ctx context.Context, filter, doc bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, d := range f.docs {
		if matchDoc(filter, d) {
			f.docs[i] = doc
			return nil
		}
	}
	f.docs = append(f.docs, doc)
	return nil
}

func (f *fakeExecutor) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, d := range f.docs {
		if matchDoc(filter, d) {
			f.docs = append(f.docs[:i], f.docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func matchDoc(filter bson.M, doc bson.M) bool {
	for k, want := range filter {
		switch k {
		case "$and":
			for _, sub := range want.(bson.A) {
				if !matchDoc(sub.(bson.M), doc) {
					return false
				}
			}
			continue
		case "$or":
			matched := false
			for _, sub := range want.(bson.A) {
				matched = matched || matchDoc(sub.(bson.M), doc)
			}
			if !matched {
				return false
			}
			continue
		case "$nor":
			for _, sub := range want.(bson.A) {
				if matchDoc(sub.(bson.M), doc) {
					return false
				}
			}
			continue
		}
		got, present := doc[k]
		if ops, ok := want.(bson.M); ok {
			for op, arg := range ops {
				switch op {
				case "$exists":
					if present != arg.(bool) {
						return false
					}
				case "$ne":
					if present && reflect.DeepEqual(got, arg) {
						return false
					}
				case "$in":
					in := false
					for _, v := range arg.(bson.A) {
						in = in || reflect.DeepEqual(got, v)
					}
					if !in {
						return false
					}
				default:
					return false
				}
			}
			continue
		}
		if !present || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

type contact struct {
	ID        string `json:"id"`
	DocType   string `json:"_docType"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Region    string `json:"region,omitempty"`
}

func newAdapter(t *testing.T, shardKey string) (*Adapter, *fakeExecutor) {
	t.Helper()
	exec := &fakeExecutor{}
	a, err := New(exec, Config{Collection: "Accounts", ShardKey: shardKey}, nil)
	require.NoError(t, err)
	return a, exec
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, Config{Collection: "Accounts"}, nil)
	assert.ErrorIs(t, err, store.ErrConfiguration)

	_, err = New(&fakeExecutor{}, Config{}, nil)
	assert.ErrorIs(t, err, store.ErrConfiguration)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.ErrorIs(t, cfg.validate(), store.ErrConfiguration)

	cfg = Config{URI: "mongodb://localhost:27017", Database: "app", Collection: "Accounts"}
	require.NoError(t, cfg.validate())
	assert.Equal(t, DefaultConfig().OperationTimeout, cfg.OperationTimeout)
}

func TestCreateGet(t *testing.T) {
	ctx := context.Background()
	a, exec := newAdapter(t, "")

	id, err := a.Create(ctx, &contact{DocType: "contact", FirstName: "John", LastName: "Doe"})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, id, exec.docs[0]["_id"])
	assert.NotContains(t, exec.docs[0], "id")

	var got contact
	require.NoError(t, a.Get(ctx, store.ID(id), &got))
	assert.Equal(t, contact{ID: id, DocType: "contact", FirstName: "John", LastName: "Doe"}, got)
}

func TestCreate_Duplicate(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t, "")

	_, err := a.Create(ctx, &contact{ID: "c1"})
	require.NoError(t, err)
	_, err = a.Create(ctx, &contact{ID: "c1"})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
	assert.True(t, mongo.IsDuplicateKeyError(err))
}

func TestGet_NotFound(t *testing.T) {
	a, _ := newAdapter(t, "")
	var got contact
	assert.ErrorIs(t, a.Get(context.Background(), store.ID("missing"), &got), store.ErrNotFound)
}

func TestSharded(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t, "region")
	assert.True(t, a.IsPartitioned())
	assert.Equal(t, "region", a.PartitionPath())

	_, err := a.Create(ctx, &contact{ID: "c1"})
	assert.ErrorIs(t, err, store.ErrPartitionKeyRequired)

	_, err = a.Upsert(ctx, store.PartitionedID("c1", "eu"), &contact{FirstName: "John"})
	require.NoError(t, err)

	var got contact
	assert.ErrorIs(t, a.Get(ctx, store.ID("c1"), &got), store.ErrPartitionKeyRequired)
	require.NoError(t, a.Get(ctx, store.PartitionedID("c1", "eu"), &got))
	assert.Equal(t, "eu", got.Region)
	assert.ErrorIs(t, a.Get(ctx, store.PartitionedID("c1", "us"), &got), store.ErrNotFound)
}

func TestUpsert_Replaces(t *testing.T) {
	ctx := context.Background()
	a, exec := newAdapter(t, "")

	id, err := a.Upsert(ctx, store.Key{}, &contact{FirstName: "Jane"})
	require.NoError(t, err)
	_, err = a.Upsert(ctx, store.ID(id), &contact{FirstName: "Janet"})
	require.NoError(t, err)

	require.Len(t, exec.docs, 1)
	var got contact
	require.NoError(t, a.Get(ctx, store.ID(id), &got))
	assert.Equal(t, "Janet", got.FirstName)
}

func TestWhereTakeFirst(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t, "")
	for _, c := range []contact{
		{ID: "1", LastName: "Doe"},
		{ID: "2", LastName: "Roe"},
		{ID: "3", LastName: "Doe"},
	} {
		_, err := a.Create(ctx, &c)
		require.NoError(t, err)
	}

	var all []contact
	require.NoError(t, a.Where(ctx, store.Eq("lastName", "Doe"), &all))
	assert.Len(t, all, 2)

	var some []contact
	require.NoError(t, a.Take(ctx, nil, 2, &some))
	assert.Len(t, some, 2)
	require.NoError(t, a.Take(ctx, nil, -1, &some))
	assert.NotNil(t, some)
	assert.Empty(t, some)

	var first contact
	require.NoError(t, a.First(ctx, store.Eq("id", "2"), &first))
	assert.Equal(t, "Roe", first.LastName)

	found, err := a.FirstOrDefault(ctx, store.Eq("lastName", "Poe"), &first)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	a, exec := newAdapter(t, "")
	_, err := a.Create(ctx, &contact{ID: "c1", DocType: "contact"})
	require.NoError(t, err)

	err = a.Remove(ctx, store.ID("c1"), store.Eq(store.DocTypeAttr, "order"))
	assert.ErrorIs(t, err, store.ErrGuardFailed)
	assert.Len(t, exec.docs, 1)

	require.NoError(t, a.Remove(ctx, store.ID("c1"), store.Eq(store.DocTypeAttr, "contact")))
	assert.Empty(t, exec.docs)

	require.NoError(t, a.Remove(ctx, store.ID("c1"), store.Eq(store.DocTypeAttr, "contact")), "absent ids are not an error")
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	a, exec := newAdapter(t, "")
	for _, c := range []contact{{ID: "1", LastName: "Doe"}, {ID: "2", LastName: "Roe"}} {
		_, err := a.Create(ctx, &c)
		require.NoError(t, err)
	}

	var got []contact
	require.NoError(t, a.Query(ctx, `{"lastName": "@last"}`, store.Params{"last": "Roe"}, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)
	assert.Equal(t, bson.M{"lastName": "Roe"}, exec.filters[len(exec.filters)-1])

	rows, err := a.QueryRows(ctx, `{}`, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0]["id"])

	err = a.Query(ctx, `{"lastName": "@missing"}`, nil, &got)
	assert.ErrorIs(t, err, store.ErrConfiguration)

	err = a.Query(ctx, `not json`, nil, &got)
	assert.ErrorIs(t, err, store.ErrConfiguration)
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name   string
		filter store.Filter
		want   bson.M
	}{
		{name: "nil", filter: nil, want: bson.M{}},
		{name: "eq id", filter: store.Eq("id", "c1"), want: bson.M{"_id": "c1"}},
		{name: "ne", filter: store.Ne("lastName", "Doe"), want: bson.M{"lastName": bson.M{"$ne": "Doe"}}},
		{name: "lt", filter: store.Lt("age", 30), want: bson.M{"age": bson.M{"$lt": 30}}},
		{name: "ge", filter: store.Ge("age", 30), want: bson.M{"age": bson.M{"$gte": 30}}},
		{name: "prefix", filter: store.BeginsWith("lastName", "D.o"), want: bson.M{"lastName": bson.M{"$regex": `^D\.o`}}},
		{name: "contains string", filter: store.Contains("lastName", "o"), want: bson.M{"lastName": bson.M{"$regex": "o"}}},
		{name: "contains element", filter: store.Contains("tags", 3), want: bson.M{"tags": 3}},
		{name: "not exists", filter: store.NotExists("deletedAt"), want: bson.M{"deletedAt": bson.M{"$exists": false}}},
		{name: "in", filter: store.In("lastName", "Doe", "Roe"), want: bson.M{"lastName": bson.M{"$in": bson.A{"Doe", "Roe"}}}},
		{name: "list index", filter: store.Eq("addresses.0.postalCode", "98052"), want: bson.M{"addresses.0.postalCode": "98052"}},
		{
			name:   "and",
			filter: store.And(store.Eq("a", 1), store.Eq("b", 2)),
			want:   bson.M{"$and": bson.A{bson.M{"a": 1}, bson.M{"b": 2}}},
		},
		{
			name:   "or",
			filter: store.Or(store.Eq("a", 1), store.Eq("b", 2)),
			want:   bson.M{"$or": bson.A{bson.M{"a": 1}, bson.M{"b": 2}}},
		},
		{name: "not", filter: store.Not(store.Eq("a", 1)), want: bson.M{"$nor": bson.A{bson.M{"a": 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := translate(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
