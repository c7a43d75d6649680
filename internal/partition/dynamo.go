package partition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// dynamodbAPI is the subset of the DynamoDB client used by DynamoStore.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoStore is a single-table layout: PK (string) is "<table>#<partition>",
// SK (binary) is the clustering key and "v" (binary) holds the row.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
}

const (
	attrPK    = "PK"
	attrSK    = "SK"
	attrValue = "v"
)

func NewDynamo(api dynamodbAPI, tableName string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("partition: dynamodb api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("partition: dynamodb table name must not be empty")
	}
	return &DynamoStore{api: api, tableName: tableName}, nil
}

type DynamoOptions struct {
	Table  string
	Region string
	// Endpoint overrides the service endpoint, e.g. DynamoDB Local.
	Endpoint string
}

func OpenDynamo(ctx context.Context, opts DynamoOptions) (*DynamoStore, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return NewDynamo(client, opts.Table)
}

func dynamoPK(table, partitionKey string) string {
	return table + "#" + partitionKey
}

func (s *DynamoStore) key(table, partitionKey string, clustering []byte) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: dynamoPK(table, partitionKey)},
		attrSK: &types.AttributeValueMemberB{Value: clustering},
	}
}

func consistentRead(c Consistency) *bool {
	return aws.Bool(c == ConsistencyQuorum || c == ConsistencyAll)
}

func (s *DynamoStore) Put(ctx context.Context, table, partitionKey string, clustering, value []byte, _ Consistency) error {
	if err := validateKey(table, partitionKey); err != nil {
		return err
	}
	item := s.key(table, partitionKey, clustering)
	item[attrValue] = &types.AttributeValueMemberB{Value: value}

	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	return classify(ctx, "put", err)
}

func (s *DynamoStore) Delete(ctx context.Context, table, partitionKey string, clustering []byte, _ Consistency) error {
	if err := validateKey(table, partitionKey); err != nil {
		return err
	}
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.key(table, partitionKey, clustering),
	})
	return classify(ctx, "delete", err)
}

func (s *DynamoStore) Get(ctx context.Context, table, partitionKey string, clustering []byte, c Consistency) ([]byte, error) {
	if err := validateKey(table, partitionKey); err != nil {
		return nil, err
	}
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(table, partitionKey, clustering),
		ConsistentRead: consistentRead(c),
	})
	if err != nil {
		return nil, classify(ctx, "get", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	return itemValue(out.Item)
}

func itemValue(item map[string]types.AttributeValue) ([]byte, error) {
	v, ok := item[attrValue].(*types.AttributeValueMemberB)
	if !ok {
		return nil, fmt.Errorf("partition: item has no binary %q attribute", attrValue)
	}
	return v.Value, nil
}

// GetRange pages through Query results. DynamoDB has no exclusive upper key
// condition combined with a lower one, so that case is queried inclusively and
// the boundary row is dropped here.
func (s *DynamoStore) GetRange(ctx context.Context, table, partitionKey string, q RangeQuery) ([]Row, error) {
	if err := validateKey(table, partitionKey); err != nil {
		return nil, err
	}
	q = q.normalized()
	if q.Lower != nil && len(q.Lower.Key) == 0 {
		q.Lower = nil
	}

	cond := "#pk = :pk"
	values := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: dynamoPK(table, partitionKey)},
	}
	var dropUpper []byte
	switch {
	case q.Lower != nil && q.Upper != nil:
		cond += " AND #sk BETWEEN :lo AND :hi"
		values[":lo"] = &types.AttributeValueMemberB{Value: q.Lower.Key}
		values[":hi"] = &types.AttributeValueMemberB{Value: q.Upper.Key}
		if !q.Upper.Inclusive {
			dropUpper = q.Upper.Key
		}
		if bytes.Compare(q.Lower.Key, q.Upper.Key) > 0 {
			return nil, nil
		}
	case q.Lower != nil:
		cond += " AND #sk >= :lo"
		values[":lo"] = &types.AttributeValueMemberB{Value: q.Lower.Key}
	case q.Upper != nil:
		op := "<"
		if q.Upper.Inclusive {
			op = "<="
		}
		cond += " AND #sk " + op + " :hi"
		values[":hi"] = &types.AttributeValueMemberB{Value: q.Upper.Key}
	}

	in := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    aws.String(cond),
		ExpressionAttributeNames:  map[string]string{"#pk": attrPK, "#sk": attrSK},
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(q.Order == Ascending),
		ConsistentRead:            consistentRead(q.Consistency),
	}

	var rows []Row
	for {
		if q.Limit > 0 {
			remaining := q.Limit - len(rows)
			if dropUpper != nil {
				remaining++
			}
			in.Limit = aws.Int32(int32(remaining))
		}

		out, err := s.api.Query(ctx, in)
		if err != nil {
			return nil, classify(ctx, "get_range", err)
		}
		for _, item := range out.Items {
			sk, ok := item[attrSK].(*types.AttributeValueMemberB)
			if !ok {
				return nil, fmt.Errorf("partition: item has no binary %q attribute", attrSK)
			}
			if dropUpper != nil && bytes.Equal(sk.Value, dropUpper) {
				continue
			}
			v, err := itemValue(item)
			if err != nil {
				return nil, err
			}
			rows = append(rows, Row{Clustering: sk.Value, Value: v})
			if q.Limit > 0 && len(rows) >= q.Limit {
				return rows, nil
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			return rows, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (s *DynamoStore) Ping(ctx context.Context) error {
	_, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tableName)})
	return classify(ctx, "ping", err)
}

func (s *DynamoStore) Close() error { return nil }
