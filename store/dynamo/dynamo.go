package dynamo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"mealrecal/store"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// timeLayout sorts lexically in the same order as the instants it encodes.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type dynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type item struct {
	ID        string `dynamodbav:"id"`
	Type      string `dynamodbav:"doc_type"`
	OwnerID   string `dynamodbav:"owner_id"`
	CreatedAt string `dynamodbav:"created_at"`
	Body      string `dynamodbav:"body"`
}

// Store keeps documents in one table keyed by "id", with a global secondary index on
// (owner_id, created_at) serving owner scans.
type Store struct {
	client     dynamoAPI
	table      string
	ownerIndex string
}

func New(client dynamoAPI, table, ownerIndex string) *Store {
	return &Store{client: client, table: table, ownerIndex: ownerIndex}
}

func (s *Store) Get(ctx context.Context, id string) (store.Document, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return store.Document{}, fmt.Errorf("get item %s: %w", id, err)
	}
	if out.Item == nil {
		return store.Document{}, fmt.Errorf("%s: %w", id, store.ErrNotFound)
	}
	return decode(out.Item)
}

func (s *Store) Upsert(ctx context.Context, d store.Document) error {
	if d.ID == "" || d.Type == "" || d.OwnerID == "" {
		return fmt.Errorf("document id, type and owner are required")
	}
	av, err := attributevalue.MarshalMap(item{
		ID:        d.ID,
		Type:      d.Type,
		OwnerID:   d.OwnerID,
		CreatedAt: d.CreatedAt.UTC().Format(timeLayout),
		Body:      string(d.Body),
	})
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("put item %s: %w", d.ID, err)
	}
	return nil
}

// Scan queries the owner index newest first when an owner is given, otherwise it falls back
// to a filtered table scan.
func (s *Store) Scan(ctx context.Context, q store.Query) ([]store.Document, error) {
	if q.OwnerID == "" {
		return s.scanTable(ctx, q)
	}

	names := map[string]string{"#owner": "owner_id"}
	values := map[string]types.AttributeValue{
		":owner": &types.AttributeValueMemberS{Value: q.OwnerID},
	}
	keyCond := "#owner = :owner"
	if !q.Since.IsZero() {
		names["#created"] = "created_at"
		values[":since"] = &types.AttributeValueMemberS{Value: q.Since.UTC().Format(timeLayout)}
		keyCond += " AND #created >= :since"
	}

	in := &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		IndexName:                 aws.String(s.ownerIndex),
		KeyConditionExpression:    aws.String(keyCond),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(false),
	}
	if q.Type != "" {
		names["#type"] = "doc_type"
		values[":type"] = &types.AttributeValueMemberS{Value: q.Type}
		in.FilterExpression = aws.String("#type = :type")
	}

	var docs []store.Document
	for {
		out, err := s.client.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", s.ownerIndex, err)
		}
		for _, av := range out.Items {
			d, err := decode(av)
			if err != nil {
				return nil, err
			}
			docs = append(docs, d)
			if q.Limit > 0 && len(docs) == q.Limit {
				return docs, nil
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			return docs, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (s *Store) scanTable(ctx context.Context, q store.Query) ([]store.Document, error) {
	in := &dynamodb.ScanInput{TableName: aws.String(s.table)}
	if q.Type != "" {
		in.FilterExpression = aws.String("#type = :type")
		in.ExpressionAttributeNames = map[string]string{"#type": "doc_type"}
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":type": &types.AttributeValueMemberS{Value: q.Type},
		}
	}

	var docs []store.Document
	for {
		out, err := s.client.Scan(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table, err)
		}
		for _, av := range out.Items {
			d, err := decode(av)
			if err != nil {
				return nil, err
			}
			if q.Matches(d) {
				docs = append(docs, d)
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

func decode(av map[string]types.AttributeValue) (store.Document, error) {
	var it item
	if err := attributevalue.UnmarshalMap(av, &it); err != nil {
		return store.Document{}, fmt.Errorf("unmarshal item: %w", err)
	}
	created, err := time.Parse(time.RFC3339Nano, it.CreatedAt)
	if err != nil {
		return store.Document{}, fmt.Errorf("item %s: bad created_at %q: %w", it.ID, it.CreatedAt, err)
	}
	return store.Document{
		ID:        it.ID,
		Type:      it.Type,
		OwnerID:   it.OwnerID,
		CreatedAt: created,
		Body:      json.RawMessage(it.Body),
	}, nil
}
