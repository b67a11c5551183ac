package dynamo

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeAPI is an in-memory stand-in for the DynamoDB client. Scans return
// every item in id order, pageSize items per page; filter expressions are
// recorded but not evaluated.
type fakeAPI struct {
	mu        sync.Mutex
	table     *types.TableDescription
	items     map[string]map[string]types.AttributeValue
	pageSize  int
	scans     []*dynamodb.ScanInput
	deletes   []*dynamodb.DeleteItemInput
	deleteErr error
	pages     []*dynamodb.ExecuteStatementOutput
	stmts     []*dynamodb.ExecuteStatementInput
}

func newFakeAPI(partition string) *fakeAPI {
	desc := &types.TableDescription{
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
		},
	}
	if partition != "" {
		desc.KeySchema = []types.KeySchemaElement{
			{AttributeName: aws.String(partition), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeRange},
		}
		desc.AttributeDefinitions = append(desc.AttributeDefinitions,
			types.AttributeDefinition{AttributeName: aws.String(partition), AttributeType: types.ScalarAttributeTypeS})
	}
	return &fakeAPI{
		table:    desc,
		items:    make(map[string]map[string]types.AttributeValue),
		pageSize: 100,
	}
}

func (f *fakeAPI) keyOf(item map[string]types.AttributeValue) string {
	k := stringAttr(item, "id")
	for _, ks := range f.table.KeySchema {
		if ks.KeyType == types.KeyTypeHash && aws.ToString(ks.AttributeName) != "id" {
			k = stringAttr(item, aws.ToString(ks.AttributeName)) + "/" + k
		}
	}
	return k
}

func (f *fakeAPI) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if f.table == nil {
		return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
	}
	desc := *f.table
	desc.TableName = in.TableName
	return &dynamodb.DescribeTableOutput{Table: &desc}, nil
}

func (f *fakeAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[f.keyOf(in.Key)]}, nil
}

func (f *fakeAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.keyOf(in.Item)
	if in.ConditionExpression != nil {
		if _, exists := f.items[k]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("conditional request failed")}
		}
	}
	f.items[k] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeAPI) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, in)
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.items, f.keyOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeAPI) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans = append(f.scans, in)

	keys := make([]string, 0, len(f.items))
	for k := range f.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if in.TotalSegments != nil {
		total, segment := int(*in.TotalSegments), int(aws.ToInt32(in.Segment))
		var own []string
		for i, k := range keys {
			if i%total == segment {
				own = append(own, k)
			}
		}
		keys = own
	}

	start := 0
	if in.ExclusiveStartKey != nil {
		start, _ = strconv.Atoi(stringAttr(in.ExclusiveStartKey, "offset"))
	}
	end := min(start+f.pageSize, len(keys))

	out := &dynamodb.ScanOutput{}
	for _, k := range keys[start:end] {
		out.Items = append(out.Items, f.items[k])
	}
	if end < len(keys) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"offset": &types.AttributeValueMemberS{Value: strconv.Itoa(end)},
		}
	}
	return out, nil
}

func (f *fakeAPI) ExecuteStatement(ctx context.Context, in *dynamodb.ExecuteStatementInput, _ ...func(*dynamodb.Options)) (*dynamodb.ExecuteStatementOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stmts = append(f.stmts, in)
	if len(f.pages) == 0 {
		return &dynamodb.ExecuteStatementOutput{}, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}
