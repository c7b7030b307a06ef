package snapshot

import (
	"context"
	"errors"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is a small in-memory DynamoDB keyed by "id", enough for the
// snapshot backend. Scan pages hold at most pageSize items.
type mockDynamo struct {
	mu       sync.Mutex
	table    string
	items    map[string]map[string]types.AttributeValue
	order    []string
	pageSize int

	// unprocessedOnce makes the first BatchWriteItem call hand back its last item.
	unprocessedOnce bool

	batchCalls int
	scanCalls  int
}

func newMockDynamo(table string) *mockDynamo {
	return &mockDynamo{
		table:    table,
		items:    map[string]map[string]types.AttributeValue{},
		pageSize: 2,
	}
}

func (m *mockDynamo) put(item map[string]types.AttributeValue) error {
	k, ok := item["id"].(*types.AttributeValueMemberS)
	if !ok {
		return errors.New("missing id")
	}
	if _, exists := m.items[k.Value]; !exists {
		m.order = append(m.order, k.Value)
	}
	m.items[k.Value] = item
	return nil
}

func (m *mockDynamo) checkTable(name *string) error {
	if name == nil || *name != m.table {
		return &types.ResourceNotFoundException{Message: strPtr("table not found")}
	}
	return nil
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkTable(params.TableName); err != nil {
		return nil, err
	}
	return &dyn.PutItemOutput{}, m.put(params.Item)
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkTable(params.TableName); err != nil {
		return nil, err
	}
	k := params.Key["id"].(*types.AttributeValueMemberS).Value
	return &dyn.GetItemOutput{Item: m.items[k]}, nil
}

func (m *mockDynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanCalls++
	if err := m.checkTable(params.TableName); err != nil {
		return nil, err
	}

	start := 0
	if params.ExclusiveStartKey != nil {
		last := params.ExclusiveStartKey["id"].(*types.AttributeValueMemberS).Value
		for i, k := range m.order {
			if k == last {
				start = i + 1
				break
			}
		}
	}
	end := min(start+m.pageSize, len(m.order))
	out := &dyn.ScanOutput{}
	for _, k := range m.order[start:end] {
		out.Items = append(out.Items, m.items[k])
	}
	if end < len(m.order) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: m.order[end-1]},
		}
	}
	return out, nil
}

func (m *mockDynamo) BatchWriteItem(ctx context.Context, params *dyn.BatchWriteItemInput, optFns ...func(*dyn.Options)) (*dyn.BatchWriteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++

	out := &dyn.BatchWriteItemOutput{}
	for table, reqs := range params.RequestItems {
		if err := m.checkTable(&table); err != nil {
			return nil, err
		}
		if len(reqs) > 25 {
			return nil, errors.New("too many items in batch")
		}
		if m.unprocessedOnce && len(reqs) > 0 {
			m.unprocessedOnce = false
			out.UnprocessedItems = map[string][]types.WriteRequest{table: reqs[len(reqs)-1:]}
			reqs = reqs[:len(reqs)-1]
		}
		for _, r := range reqs {
			if err := m.put(r.PutRequest.Item); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func strPtr(s string) *string { return &s }
