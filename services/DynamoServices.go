package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"pulse_server/logging"
)

// errConditionFailed is returned when an update's ConditionExpression does not hold
var errConditionFailed = errors.New("condition failed")

// DynamoAPI is the subset of the DynamoDB client the store uses
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type DynamoService struct {
	Client DynamoAPI
}

// InitializeDynamoDBClient loads the default AWS credential chain for region
func InitializeDynamoDBClient(ctx context.Context, region string) (*dynamodb.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}

// unavailable tags client errors as transient store failures
func unavailable(op, table string, err error) error {
	return fmt.Errorf("failed to %s on table '%s': %w: %w", op, table, ErrStoreUnavailable, err)
}

// GetItem loads one item into out. A missing item yields ErrNotFound.
func (ds *DynamoService) GetItem(ctx context.Context, tableName string, key map[string]types.AttributeValue, out any) error {
	output, err := ds.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &tableName,
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return unavailable("get item", tableName, err)
	}
	if output.Item == nil {
		return fmt.Errorf("item in table '%s': %w", tableName, ErrNotFound)
	}
	if err := attributevalue.UnmarshalMap(output.Item, out); err != nil {
		return fmt.Errorf("failed to unmarshal item from table '%s': %w", tableName, err)
	}
	return nil
}

func (ds *DynamoService) PutItem(ctx context.Context, tableName string, item any) error {
	marshaledItem, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	_, err = ds.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &tableName,
		Item:      marshaledItem,
	})
	if err != nil {
		return unavailable("put item", tableName, err)
	}
	return nil
}

// UpdateRequest is one UpdateItem call; Condition is optional
type UpdateRequest struct {
	Table      string
	Key        map[string]types.AttributeValue
	Update     string
	Condition  string
	Names      map[string]string
	Values     map[string]types.AttributeValue
	ReturnNone bool
}

// UpdateItem applies req and unmarshals the updated item into out (when non-nil).
// A failed condition yields errConditionFailed.
func (ds *DynamoService) UpdateItem(ctx context.Context, req UpdateRequest, out any) error {
	if len(req.Key) == 0 {
		return errors.New("update failed: key cannot be empty")
	}
	if req.Update == "" {
		return errors.New("update failed: updateExpression cannot be empty")
	}

	input := &dynamodb.UpdateItemInput{
		TableName:        &req.Table,
		Key:              req.Key,
		UpdateExpression: &req.Update,
		ReturnValues:     types.ReturnValueAllNew,
	}
	if req.ReturnNone {
		input.ReturnValues = types.ReturnValueNone
	}
	if req.Condition != "" {
		input.ConditionExpression = &req.Condition
	}
	if len(req.Names) > 0 {
		input.ExpressionAttributeNames = req.Names
	}
	if len(req.Values) > 0 {
		input.ExpressionAttributeValues = req.Values
	}

	output, err := ds.Client.UpdateItem(ctx, input)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return errConditionFailed
		}
		logging.Warn().Err(err).Str("table", req.Table).Str("update", req.Update).Msg("dynamodb update failed")
		return unavailable("update item", req.Table, err)
	}

	if out == nil || output.Attributes == nil {
		return nil
	}
	if err := attributevalue.UnmarshalMap(output.Attributes, out); err != nil {
		return fmt.Errorf("failed to unmarshal updated item from table '%s': %w", req.Table, err)
	}
	return nil
}

// DeleteItem removes an item; Condition is optional
func (ds *DynamoService) DeleteItem(ctx context.Context, tableName string, key map[string]types.AttributeValue, condition string, values map[string]types.AttributeValue) error {
	input := &dynamodb.DeleteItemInput{
		TableName: &tableName,
		Key:       key,
	}
	if condition != "" {
		input.ConditionExpression = &condition
		input.ExpressionAttributeValues = values
	}
	if _, err := ds.Client.DeleteItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return errConditionFailed
		}
		return unavailable("delete item", tableName, err)
	}
	return nil
}

// QueryAll follows LastEvaluatedKey until limit items were collected (limit <= 0: all)
func (ds *DynamoService) QueryAll(ctx context.Context, input *dynamodb.QueryInput, limit int, out any) error {
	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewQueryPaginator(ds.Client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return unavailable("query", aws.ToString(input.TableName), err)
		}
		items = append(items, page.Items...)
		if limit > 0 && len(items) >= limit {
			items = items[:limit]
			break
		}
	}
	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("failed to unmarshal query result: %w", err)
	}
	return nil
}

// CountQuery returns the number of items matching input without reading them
func (ds *DynamoService) CountQuery(ctx context.Context, input *dynamodb.QueryInput) (int, error) {
	input.Select = types.SelectCount
	total := 0
	paginator := dynamodb.NewQueryPaginator(ds.Client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, unavailable("count", aws.ToString(input.TableName), err)
		}
		total += int(page.Count)
	}
	return total, nil
}

// ScanAll scans the full table honouring any filter on input
func (ds *DynamoService) ScanAll(ctx context.Context, input *dynamodb.ScanInput, out any) error {
	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewScanPaginator(ds.Client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return unavailable("scan", aws.ToString(input.TableName), err)
		}
		items = append(items, page.Items...)
	}
	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("failed to unmarshal scan result: %w", err)
	}
	return nil
}
