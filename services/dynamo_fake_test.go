package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"dockline_server/models"
	"dockline_server/utils"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo is an in-memory DynamoAPI covering the access patterns the
// services actually issue, so service logic runs against real marshalling
// without a DynamoDB endpoint.
type fakeDynamo struct {
	mu     sync.Mutex
	tables map[string]*fakeTable
}

type fakeTable struct {
	partitionKey string
	sortKey      string
	items        map[string]map[string]types.AttributeValue
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{
		tables: map[string]*fakeTable{
			models.ConversationsTable: {
				partitionKey: "conversationId",
				items:        make(map[string]map[string]types.AttributeValue),
			},
			models.MessagesTable: {
				partitionKey: "conversationId",
				sortKey:      "createdAt",
				items:        make(map[string]map[string]types.AttributeValue),
			},
		},
	}
}

var _ DynamoAPI = (*fakeDynamo)(nil)

func (f *fakeDynamo) table(name string) (*fakeTable, error) {
	table, ok := f.tables[name]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", name)
	}
	return table, nil
}

func (t *fakeTable) keyOf(item map[string]types.AttributeValue) string {
	key := utils.ExtractString(item, t.partitionKey)
	if t.sortKey != "" {
		key += "|" + utils.ExtractString(item, t.sortKey)
	}
	return key
}

func (f *fakeDynamo) PutItem(ctx context.Context, tableName string, item interface{}) error {
	marshaled, err := attributevalue.MarshalMap(item)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	table, err := f.table(tableName)
	if err != nil {
		return err
	}
	table.items[table.keyOf(marshaled)] = marshaled
	return nil
}

func (f *fakeDynamo) PutItemIfAbsent(ctx context.Context, tableName string, item interface{}, keyAttribute string) error {
	marshaled, err := attributevalue.MarshalMap(item)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	table, err := f.table(tableName)
	if err != nil {
		return err
	}
	key := table.keyOf(marshaled)
	if _, exists := table.items[key]; exists {
		return ErrConditionalCheckFailed
	}
	table.items[key] = marshaled
	return nil
}

func (f *fakeDynamo) GetItem(ctx context.Context, tableName string, key map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table, err := f.table(tableName)
	if err != nil {
		return nil, err
	}
	item, ok := table.items[table.keyOf(key)]
	if !ok {
		return nil, ErrItemNotFound
	}
	return item, nil
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, tableName string, updateExpression string, key map[string]types.AttributeValue, expressionAttributeValues map[string]types.AttributeValue, expressionAttributeNames map[string]string) (map[string]types.AttributeValue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table, err := f.table(tableName)
	if err != nil {
		return nil, err
	}
	item, ok := table.items[table.keyOf(key)]
	if !ok {
		return nil, ErrItemNotFound
	}

	switch {
	case strings.HasPrefix(updateExpression, "SET readBy.#userId"):
		userID := expressionAttributeNames["#userId"]
		readBy, ok := item["readBy"].(*types.AttributeValueMemberM)
		if !ok {
			readBy = &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{}}
			item["readBy"] = readBy
		}
		readBy.Value[userID] = expressionAttributeValues[":true"]
	case updateExpression == "REMOVE attachments SET deleted = :true":
		delete(item, "attachments")
		item["deleted"] = expressionAttributeValues[":true"]
	case updateExpression == "SET attachments = :attachments":
		item["attachments"] = expressionAttributeValues[":attachments"]
	default:
		return nil, fmt.Errorf("fakeDynamo: unsupported update expression %q", updateExpression)
	}
	return item, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, tableName string, key map[string]types.AttributeValue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	table, err := f.table(tableName)
	if err != nil {
		return err
	}
	delete(table.items, table.keyOf(key))
	return nil
}

func (f *fakeDynamo) QueryItemsWithOptions(ctx context.Context, tableName string, keyConditionExpression string, expressionAttributeValues map[string]types.AttributeValue, expressionAttributeNames map[string]string, limit int32, latestFirst bool) ([]map[string]types.AttributeValue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table, err := f.table(tableName)
	if err != nil {
		return nil, err
	}

	partitionValue := ""
	if attr, ok := expressionAttributeValues[":"+table.partitionKey].(*types.AttributeValueMemberS); ok {
		partitionValue = attr.Value
	}

	cursor := ""
	cursorAfter := strings.Contains(keyConditionExpression, ">")
	if attr, ok := expressionAttributeValues[":cursor"].(*types.AttributeValueMemberS); ok {
		cursor = attr.Value
	}

	var matches []map[string]types.AttributeValue
	for _, item := range table.items {
		if utils.ExtractString(item, table.partitionKey) != partitionValue {
			continue
		}
		if cursor != "" {
			sortValue := utils.ExtractString(item, table.sortKey)
			if cursorAfter && sortValue <= cursor {
				continue
			}
			if !cursorAfter && sortValue >= cursor {
				continue
			}
		}
		matches = append(matches, item)
	}

	sort.Slice(matches, func(i, j int) bool {
		less := utils.ExtractString(matches[i], table.sortKey) < utils.ExtractString(matches[j], table.sortKey)
		if latestFirst {
			return !less
		}
		return less
	})

	if limit > 0 && int32(len(matches)) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (f *fakeDynamo) ScanWithFilter(ctx context.Context, tableName string, filterFunc func(map[string]types.AttributeValue) bool, excludeFields map[string]string, result interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	table, err := f.table(tableName)
	if err != nil {
		return err
	}

	var filtered []map[string]types.AttributeValue
	for _, item := range table.items {
		if filterFunc == nil || filterFunc(item) {
			filtered = append(filtered, item)
		}
	}
	return attributevalue.UnmarshalListOfMaps(filtered, result)
}

// itemCount reports how many items a table holds, for uniqueness checks.
func (f *fakeDynamo) itemCount(tableName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[tableName].items)
}
