package mongodb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/jacentio/docbase/store"
)

// Adapter is a store.Repository over one MongoDB collection.
type Adapter struct {
	exec       Executor
	collection string
	shardKey   string
	logger     *zap.Logger
}

var _ store.Repository = (*Adapter)(nil)

// New creates an adapter running its operations through exec.
func New(exec Executor, cfg Config, logger *zap.Logger) (*Adapter, error) {
	if exec == nil {
		return nil, fmt.Errorf("%w: mongodb executor is required", store.ErrConfiguration)
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("%w: mongodb collection is required", store.ErrConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		exec:       exec,
		collection: cfg.Collection,
		shardKey:   cfg.ShardKey,
		logger:     logger.With(zap.String("collection", cfg.Collection)),
	}, nil
}

// Collection implements store.Repository.
func (a *Adapter) Collection() string { return a.collection }

// IsPartitioned implements store.Repository.
func (a *Adapter) IsPartitioned() bool { return a.shardKey != "" }

// PartitionPath implements store.Repository.
func (a *Adapter) PartitionPath() string { return a.shardKey }

// Create implements store.Repository.
func (a *Adapter) Create(ctx context.Context, doc any) (string, error) {
	m, err := toBSON(doc)
	if err != nil {
		return "", err
	}
	id, _ := m["_id"].(string)
	if id == "" {
		id = uuid.NewString()
		m["_id"] = id
	}
	if err := a.reconcilePartition(m, ""); err != nil {
		return "", err
	}
	if err := a.exec.InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("%w: %w", store.ErrAlreadyExists, err)
		}
		return "", fmt.Errorf("insert document: %w", err)
	}
	a.logger.Debug("created document", zap.String("id", id))
	return id, nil
}

// Get implements store.Repository.
func (a *Adapter) Get(ctx context.Context, key store.Key, out any) error {
	if err := store.CheckKey(key, a.IsPartitioned()); err != nil {
		return err
	}
	if err := store.CheckPointer(out); err != nil {
		return err
	}
	m, found, err := a.exec.FindOne(ctx, a.keyFilter(key))
	if err != nil {
		return fmt.Errorf("find document: %w", err)
	}
	if !found {
		return store.ErrNotFound
	}
	return fromBSON(m, out)
}

// Where implements store.Repository.
func (a *Adapter) Where(ctx context.Context, f store.Filter, out any) error {
	return a.find(ctx, f, 0, out)
}

// Take implements store.Repository.
func (a *Adapter) Take(ctx context.Context, f store.Filter, n int, out any) error {
	if n <= 0 {
		return store.ResetSlice(out)
	}
	return a.find(ctx, f, int64(n), out)
}

func (a *Adapter) find(ctx context.Context, f store.Filter, limit int64, out any) error {
	if err := store.ResetSlice(out); err != nil {
		return err
	}
	filter, err := translate(f)
	if err != nil {
		return err
	}
	docs, err := a.exec.Find(ctx, filter, limit)
	if err != nil {
		return fmt.Errorf("find documents: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}
	return fromBSON(docs, out)
}

// First implements store.Repository.
func (a *Adapter) First(ctx context.Context, f store.Filter, out any) error {
	found, err := a.FirstOrDefault(ctx, f, out)
	if err != nil {
		return err
	}
	if !found {
		return store.ErrNotFound
	}
	return nil
}

// FirstOrDefault implements store.Repository.
func (a *Adapter) FirstOrDefault(ctx context.Context, f store.Filter, out any) (bool, error) {
	if err := store.CheckPointer(out); err != nil {
		return false, err
	}
	filter, err := translate(f)
	if err != nil {
		return false, err
	}
	m, found, err := a.exec.FindOne(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("find document: %w", err)
	}
	if !found {
		return false, nil
	}
	return true, fromBSON(m, out)
}

// Upsert implements store.Repository.
func (a *Adapter) Upsert(ctx context.Context, key store.Key, doc any) (string, error) {
	m, err := toBSON(doc)
	if err != nil {
		return "", err
	}
	id := key.ID
	if id == "" {
		id, _ = m["_id"].(string)
	}
	if id == "" {
		id = uuid.NewString()
	}
	m["_id"] = id
	if err := a.reconcilePartition(m, key.PartitionKey); err != nil {
		return "", err
	}
	key = store.PartitionedID(id, partitionValue(m, a.shardKey))

	if err := a.exec.ReplaceOne(ctx, a.keyFilter(key), m); err != nil {
		return "", fmt.Errorf("replace document: %w", err)
	}
	a.logger.Debug("upserted document", zap.String("id", id))
	return id, nil
}

// Remove implements store.Repository. A guarded delete that removes nothing
// while the document still exists reports store.ErrGuardFailed.
func (a *Adapter) Remove(ctx context.Context, key store.Key, guard store.Filter) error {
	if err := store.CheckKey(key, a.IsPartitioned()); err != nil {
		return err
	}
	filter := a.keyFilter(key)
	if guard != nil {
		g, err := translate(guard)
		if err != nil {
			return err
		}
		filter = bson.M{"$and": bson.A{filter, g}}
	}

	deleted, err := a.exec.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if deleted == 0 && guard != nil {
		_, exists, err := a.exec.FindOne(ctx, a.keyFilter(key))
		if err != nil {
			return fmt.Errorf("find document: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: %s", store.ErrGuardFailed, key.ID)
		}
	}
	a.logger.Debug("removed document", zap.String("id", key.ID))
	return nil
}

// Query implements store.Repository. The statement is a query document in
// relaxed extended JSON, e.g. {"lastName": "@last"}.
func (a *Adapter) Query(ctx context.Context, statement string, params store.Params, out any) error {
	if err := store.ResetSlice(out); err != nil {
		return err
	}
	docs, err := a.execute(ctx, statement, params)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	return fromBSON(docs, out)
}

// QueryRows implements store.Repository.
func (a *Adapter) QueryRows(ctx context.Context, statement string, params store.Params) ([]store.Row, error) {
	docs, err := a.execute(ctx, statement, params)
	if err != nil {
		return nil, err
	}
	rows := make([]store.Row, 0, len(docs))
	for _, d := range docs {
		var row store.Row
		if err := fromBSON(d, &row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (a *Adapter) execute(ctx context.Context, statement string, params store.Params) ([]bson.M, error) {
	filter, err := parseStatement(statement, params)
	if err != nil {
		return nil, err
	}
	docs, err := a.exec.Find(ctx, filter, 0)
	if err != nil {
		return nil, fmt.Errorf("find documents: %w", err)
	}
	return docs, nil
}

func (a *Adapter) reconcilePartition(m bson.M, pk string) error {
	if !a.IsPartitioned() {
		return nil
	}
	if partitionValue(m, a.shardKey) != "" {
		return nil
	}
	if pk == "" {
		return store.ErrPartitionKeyRequired
	}
	m[a.shardKey] = pk
	return nil
}

func (a *Adapter) keyFilter(key store.Key) bson.M {
	filter := bson.M{"_id": key.ID}
	if a.IsPartitioned() {
		filter[a.shardKey] = key.PartitionKey
	}
	return filter
}

func partitionValue(m bson.M, path string) string {
	if path == "" {
		return ""
	}
	s, _ := m[path].(string)
	return s
}

// toBSON encodes doc through its json tags and moves the id to _id.
func toBSON(doc any) (bson.M, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var m bson.M
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("encode document: %T is not an object", doc)
	}
	if id, ok := m[store.IDAttr]; ok {
		m["_id"] = id
		delete(m, store.IDAttr)
	}
	return m, nil
}

// fromBSON decodes stored documents (a bson.M or a []bson.M) into out.
func fromBSON(src any, out any) error {
	switch x := src.(type) {
	case bson.M:
		src = withID(x)
	case []bson.M:
		docs := make([]map[string]any, len(x))
		for i, d := range x {
			docs[i] = withID(d)
		}
		src = docs
	}
	raw, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

func withID(m bson.M) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k == "_id" {
			k = store.IDAttr
		}
		out[k] = v
	}
	return out
}
