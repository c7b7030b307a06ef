package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-product-importflow/internal/aws"
	"github.com/imrishuroy/go-product-importflow/internal/catalog"
)

// ErrTableNotFound is returned when the snapshot table does not exist.
var ErrTableNotFound = errors.New("snapshot table not found")

const (
	batchWriteLimit   = 25
	batchWriteRetries = 5
)

// item is one identity as stored in DynamoDB. Product and result are kept as
// JSON documents so attribute values keep their string/boolean distinction.
type item struct {
	ID      string    `dynamodbav:"id"` // PK
	Code    string    `dynamodbav:"code"`
	Status  string    `dynamodbav:"status"`
	SKU     string    `dynamodbav:"sku,omitempty"`
	Product string    `dynamodbav:"product"`
	Result  string    `dynamodbav:"result,omitempty"`
	SavedAt time.Time `dynamodbav:"saved_at"`
}

// DynamoBackend keeps one item per identity in a DynamoDB table keyed by id.
// Identities are never deleted, so a save overwrites every item it writes.
type DynamoBackend struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
	backoff   time.Duration
}

// NewDynamoBackend returns a backend writing to tableName.
func NewDynamoBackend(client aws.DynamoDBAPI, tableName string) *DynamoBackend {
	return &DynamoBackend{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
		backoff:   50 * time.Millisecond,
	}
}

func (b *DynamoBackend) Load(ctx context.Context) ([]Record, error) {
	p := dyn.NewScanPaginator(b.client, &dyn.ScanInput{TableName: &b.tableName})

	var records []Record
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, b.classify("scan", err)
		}
		for _, av := range page.Items {
			var it item
			if err := attributevalue.UnmarshalMap(av, &it); err != nil {
				records = append(records, Record{ID: itemID(av), Invalid: fmt.Errorf("unmarshal item: %w", err)})
				continue
			}
			rec, err := it.record()
			if err != nil {
				rec = Record{ID: it.ID, Code: it.Code, Status: it.Status, Invalid: err}
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

func (b *DynamoBackend) Save(ctx context.Context, records []Record) error {
	now := b.nowFunc().UTC()
	writes := make([]types.WriteRequest, 0, len(records))
	for _, rec := range records {
		it, err := newItem(rec, now)
		if err != nil {
			return err
		}
		av, err := attributevalue.MarshalMap(it)
		if err != nil {
			return fmt.Errorf("marshal item %s: %w", rec.ID, err)
		}
		writes = append(writes, types.WriteRequest{PutRequest: &types.PutRequest{Item: av}})
	}

	for start := 0; start < len(writes); start += batchWriteLimit {
		end := min(start+batchWriteLimit, len(writes))
		if err := b.writeBatch(ctx, writes[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// writeBatch sends one BatchWriteItem call and resubmits unprocessed items.
func (b *DynamoBackend) writeBatch(ctx context.Context, batch []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{b.tableName: batch}
	for attempt := 0; attempt < batchWriteRetries; attempt++ {
		out, err := b.client.BatchWriteItem(ctx, &dyn.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return b.classify("batch write", err)
		}
		if len(out.UnprocessedItems[b.tableName]) == 0 {
			return nil
		}
		pending = out.UnprocessedItems

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.backoff * time.Duration(attempt+1)):
		}
	}
	return fmt.Errorf("batch write: %d items still unprocessed after %d attempts",
		len(pending[b.tableName]), batchWriteRetries)
}

func (b *DynamoBackend) classify(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException" {
		return fmt.Errorf("%s %s: %w", op, b.tableName, ErrTableNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, b.tableName, err)
}

func newItem(rec Record, now time.Time) (item, error) {
	product, err := json.Marshal(rec.Product)
	if err != nil {
		return item{}, fmt.Errorf("marshal product %s: %w", rec.ID, err)
	}
	it := item{
		ID:      rec.ID,
		Code:    rec.Code,
		Status:  rec.Status,
		SKU:     rec.Product.SKU,
		Product: string(product),
		SavedAt: now,
	}
	if rec.Result != nil {
		result, err := json.Marshal(rec.Result)
		if err != nil {
			return item{}, fmt.Errorf("marshal result %s: %w", rec.ID, err)
		}
		it.Result = string(result)
	}
	return it, nil
}

func itemID(av map[string]types.AttributeValue) string {
	if s, ok := av["id"].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (it item) record() (Record, error) {
	rec := Record{ID: it.ID, Code: it.Code, Status: it.Status}
	if err := json.Unmarshal([]byte(it.Product), &rec.Product); err != nil {
		return Record{}, fmt.Errorf("decode product %s: %w", it.ID, err)
	}
	if it.Result != "" {
		var r catalog.UploadResult
		if err := json.Unmarshal([]byte(it.Result), &r); err != nil {
			return Record{}, fmt.Errorf("decode result %s: %w", it.ID, err)
		}
		rec.Result = &r
	}
	return rec, nil
}
