package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jacentio/docbase/store"
)

// Documents are encoded with their json tags so the same struct serves every adapter.
func encoderOptions(o *attributevalue.EncoderOptions) { o.TagKey = "json" }

func decoderOptions(o *attributevalue.DecoderOptions) { o.TagKey = "json" }

// Adapter is a store.Repository over one DynamoDB table.
type Adapter struct {
	client         API
	table          string
	collection     string
	partition      string
	consistentRead bool
	segments       int
	logger         *zap.Logger
}

var _ store.Repository = (*Adapter)(nil)

// Open describes cfg's table and returns an adapter for it.
//
// A table keyed on "id" alone is unpartitioned. A table with hash key X and
// range key "id" is partitioned on X. Any other key schema is rejected with
// store.ErrConfiguration.
func Open(ctx context.Context, client API, cfg Config, logger *zap.Logger) (*Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	table := cfg.TableName()

	out, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: table %q does not exist", store.ErrConfiguration, table)
		}
		return nil, fmt.Errorf("describe table %s: %w", table, err)
	}
	partition, err := partitionOf(out.Table)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", table, err)
	}

	a := &Adapter{
		client:         client,
		table:          table,
		collection:     cfg.Collection,
		partition:      partition,
		consistentRead: cfg.ConsistentRead,
		segments:       cfg.ScanSegments,
		logger:         logger.With(zap.String("collection", cfg.Collection), zap.String("table", table)),
	}
	a.logger.Debug("opened table", zap.String("partitionKey", partition))
	return a, nil
}

// partitionOf derives the partition attribute from a table's key schema.
func partitionOf(desc *types.TableDescription) (string, error) {
	if desc == nil {
		return "", fmt.Errorf("%w: empty table description", store.ErrConfiguration)
	}
	var hash, rng string
	for _, k := range desc.KeySchema {
		switch k.KeyType {
		case types.KeyTypeHash:
			hash = aws.ToString(k.AttributeName)
		case types.KeyTypeRange:
			rng = aws.ToString(k.AttributeName)
		}
	}
	for _, def := range desc.AttributeDefinitions {
		name := aws.ToString(def.AttributeName)
		if (name == hash || name == rng) && def.AttributeType != types.ScalarAttributeTypeS {
			return "", fmt.Errorf("%w: key attribute %q must be a string", store.ErrConfiguration, name)
		}
	}
	switch {
	case hash == store.IDAttr && rng == "":
		return "", nil
	case hash != "" && hash != store.IDAttr && rng == store.IDAttr:
		return hash, nil
	}
	return "", fmt.Errorf("%w: key schema (hash %q, range %q) must be keyed on %q",
		store.ErrConfiguration, hash, rng, store.IDAttr)
}

// Collection implements store.Repository.
func (a *Adapter) Collection() string { return a.collection }

// IsPartitioned implements store.Repository.
func (a *Adapter) IsPartitioned() bool { return a.partition != "" }

// PartitionPath implements store.Repository.
func (a *Adapter) PartitionPath() string { return a.partition }

// Table returns the physical table name.
func (a *Adapter) Table() string { return a.table }

// Create implements store.Repository. It fails with store.ErrAlreadyExists
// when an item with the same key is present.
func (a *Adapter) Create(ctx context.Context, doc any) (string, error) {
	item, err := encode(doc)
	if err != nil {
		return "", err
	}
	id := stringAttr(item, store.IDAttr)
	if id == "" {
		id = uuid.NewString()
		item[store.IDAttr] = &types.AttributeValueMemberS{Value: id}
	}
	if err := a.reconcilePartition(item, ""); err != nil {
		return "", err
	}

	cond := expression.AttributeNotExists(expression.Name(store.IDAttr))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return "", fmt.Errorf("build condition: %w", err)
	}

	_, err = a.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(a.table),
		Item:                     item,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return "", fmt.Errorf("%w: %w", store.ErrAlreadyExists, err)
		}
		return "", fmt.Errorf("put item: %w", err)
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

	res, err := a.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(a.table),
		Key:            a.keyItem(key),
		ConsistentRead: aws.Bool(a.consistentRead),
	})
	if err != nil {
		return fmt.Errorf("get item: %w", err)
	}
	if len(res.Item) == 0 {
		return store.ErrNotFound
	}
	if err := attributevalue.UnmarshalMapWithOptions(res.Item, out, decoderOptions); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// Where implements store.Repository.
func (a *Adapter) Where(ctx context.Context, f store.Filter, out any) error {
	return a.find(ctx, f, -1, out)
}

// Take implements store.Repository.
func (a *Adapter) Take(ctx context.Context, f store.Filter, n int, out any) error {
	if n <= 0 {
		return store.ResetSlice(out)
	}
	return a.find(ctx, f, n, out)
}

func (a *Adapter) find(ctx context.Context, f store.Filter, limit int, out any) error {
	if err := store.ResetSlice(out); err != nil {
		return err
	}
	items, err := a.scan(ctx, f, limit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	if err := attributevalue.UnmarshalListOfMapsWithOptions(items, out, decoderOptions); err != nil {
		return fmt.Errorf("decode documents: %w", err)
	}
	return nil
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
	items, err := a.scan(ctx, f, 1)
	if err != nil {
		return false, err
	}
	if len(items) == 0 {
		return false, nil
	}
	if err := attributevalue.UnmarshalMapWithOptions(items[0], out, decoderOptions); err != nil {
		return false, fmt.Errorf("decode document: %w", err)
	}
	return true, nil
}

// scan reads matching items page by page, stopping once limit items are
// collected. A negative limit reads every page.
func (a *Adapter) scan(ctx context.Context, f store.Filter, limit int) ([]map[string]types.AttributeValue, error) {
	input := &dynamodb.ScanInput{
		TableName:      aws.String(a.table),
		ConsistentRead: aws.Bool(a.consistentRead),
	}
	if f != nil {
		cond, err := condition(f)
		if err != nil {
			return nil, err
		}
		expr, err := expression.NewBuilder().WithFilter(cond).Build()
		if err != nil {
			return nil, fmt.Errorf("build filter: %w", err)
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	if a.segments <= 1 {
		return a.scanSegment(ctx, input, limit)
	}

	// Fan out one paginated scan per segment.
	results := make([][]map[string]types.AttributeValue, a.segments)
	g, gctx := errgroup.WithContext(ctx)
	for segment := range a.segments {
		in := *input
		in.Segment = aws.Int32(int32(segment))
		in.TotalSegments = aws.Int32(int32(a.segments))
		g.Go(func() error {
			items, err := a.scanSegment(gctx, &in, limit)
			if err != nil {
				return fmt.Errorf("segment %d: %w", segment, err)
			}
			results[segment] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var items []map[string]types.AttributeValue
	for _, part := range results {
		items = append(items, part...)
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// scanSegment runs one paginated scan, stopping once limit items are read.
func (a *Adapter) scanSegment(ctx context.Context, input *dynamodb.ScanInput, limit int) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewScanPaginator(a.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		items = append(items, page.Items...)
		if limit > 0 && len(items) >= limit {
			return items[:limit], nil
		}
	}
	return items, nil
}

// Upsert implements store.Repository.
func (a *Adapter) Upsert(ctx context.Context, key store.Key, doc any) (string, error) {
	item, err := encode(doc)
	if err != nil {
		return "", err
	}
	id := key.ID
	if id == "" {
		id = stringAttr(item, store.IDAttr)
	}
	if id == "" {
		id = uuid.NewString()
	}
	item[store.IDAttr] = &types.AttributeValueMemberS{Value: id}
	if err := a.reconcilePartition(item, key.PartitionKey); err != nil {
		return "", err
	}

	_, err = a.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(a.table),
		Item:      item,
	})
	if err != nil {
		return "", fmt.Errorf("put item: %w", err)
	}

	a.logger.Debug("upserted document", zap.String("id", id))
	return id, nil
}

// Remove implements store.Repository. With a guard, the delete is
// conditioned on the item being absent or matching the guard.
func (a *Adapter) Remove(ctx context.Context, key store.Key, guard store.Filter) error {
	if err := store.CheckKey(key, a.IsPartitioned()); err != nil {
		return err
	}
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(a.table),
		Key:       a.keyItem(key),
	}
	if guard != nil {
		cond, err := condition(guard)
		if err != nil {
			return err
		}
		cond = expression.Or(expression.Name(store.IDAttr).AttributeNotExists(), cond)
		expr, err := expression.NewBuilder().WithCondition(cond).Build()
		if err != nil {
			return fmt.Errorf("build condition: %w", err)
		}
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	if _, err := a.client.DeleteItem(ctx, input); err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w: %s", store.ErrGuardFailed, key.ID)
		}
		return fmt.Errorf("delete item: %w", err)
	}

	a.logger.Debug("removed document", zap.String("id", key.ID))
	return nil
}

// Query implements store.Repository. The statement is PartiQL; named
// parameters (@name) are bound from params. All result pages are decoded into out.
func (a *Adapter) Query(ctx context.Context, statement string, params store.Params, out any) error {
	if err := store.ResetSlice(out); err != nil {
		return err
	}
	items, err := a.execute(ctx, statement, params)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	if err := attributevalue.UnmarshalListOfMapsWithOptions(items, out, decoderOptions); err != nil {
		return fmt.Errorf("decode documents: %w", err)
	}
	return nil
}

// QueryRows implements store.Repository.
func (a *Adapter) QueryRows(ctx context.Context, statement string, params store.Params) ([]store.Row, error) {
	items, err := a.execute(ctx, statement, params)
	if err != nil {
		return nil, err
	}
	rows := make([]store.Row, 0, len(items))
	for _, item := range items {
		var row map[string]any
		if err := attributevalue.UnmarshalMapWithOptions(item, &row, decoderOptions); err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (a *Adapter) execute(ctx context.Context, statement string, params store.Params) ([]map[string]types.AttributeValue, error) {
	bound, values, err := bindStatement(statement, params)
	if err != nil {
		return nil, err
	}

	var (
		items     []map[string]types.AttributeValue
		nextToken *string
	)
	for {
		res, err := a.client.ExecuteStatement(ctx, &dynamodb.ExecuteStatementInput{
			Statement:      aws.String(bound),
			Parameters:     values,
			ConsistentRead: aws.Bool(a.consistentRead),
			NextToken:      nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("execute statement: %w", err)
		}
		items = append(items, res.Items...)
		if res.NextToken == nil || *res.NextToken == "" {
			break
		}
		nextToken = res.NextToken
	}

	a.logger.Debug("executed statement", zap.Int("items", len(items)))
	return items, nil
}

// reconcilePartition makes sure a partitioned item carries its partition
// value, taking it from pk when the document leaves it unset.
func (a *Adapter) reconcilePartition(item map[string]types.AttributeValue, pk string) error {
	if !a.IsPartitioned() {
		return nil
	}
	if stringAttr(item, a.partition) != "" {
		return nil
	}
	if pk == "" {
		return store.ErrPartitionKeyRequired
	}
	item[a.partition] = &types.AttributeValueMemberS{Value: pk}
	return nil
}

func (a *Adapter) keyItem(key store.Key) map[string]types.AttributeValue {
	k := map[string]types.AttributeValue{
		store.IDAttr: &types.AttributeValueMemberS{Value: key.ID},
	}
	if a.IsPartitioned() {
		k[a.partition] = &types.AttributeValueMemberS{Value: key.PartitionKey}
	}
	return k
}

func encode(doc any) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMapWithOptions(doc, encoderOptions)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if item == nil {
		return nil, fmt.Errorf("encode document: %T is not an object", doc)
	}
	return item, nil
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if s, ok := item[name].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}
