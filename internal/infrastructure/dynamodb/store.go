// Package dynamodb implements the repository interfaces on a single DynamoDB
// table. Items share the partition key USER#{ownerId}; the sort key prefix
// determines the item kind (FRAGMENT#, REL#, EVENT#, VEC#).
package dynamodb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"promptvault-backend/internal/domain"
	"promptvault-backend/internal/repository"
	appErrors "promptvault-backend/pkg/errors"
)

// ddbFragment represents a fragment item.
type ddbFragment struct {
	PK         string   `dynamodbav:"PK"`
	SK         string   `dynamodbav:"SK"`
	FragmentID string   `dynamodbav:"FragmentID"`
	OwnerID    string   `dynamodbav:"OwnerID"`
	Type       string   `dynamodbav:"Type"`
	Name       string   `dynamodbav:"Name"`
	Text       string   `dynamodbav:"Text"`
	TokenCount int      `dynamodbav:"TokenCount"`
	Tags       []string `dynamodbav:"Tags"`
	Priority   int      `dynamodbav:"Priority"`
	UsageCount int      `dynamodbav:"UsageCount"`
	LastUsedAt string   `dynamodbav:"LastUsedAt,omitempty"`
	CreatedAt  string   `dynamodbav:"CreatedAt"`
	GSI1PK     string   `dynamodbav:"GSI1PK"` // USER#{ownerId}#TYPE#{type}
	GSI1SK     string   `dynamodbav:"GSI1SK"` // FRAGMENT#{fragmentId}
}

// ddbRelationship represents a typed edge item.
type ddbRelationship struct {
	PK       string            `dynamodbav:"PK"`
	SK       string            `dynamodbav:"SK"` // REL#{sourceId}#{targetId}#{type}
	SourceID string            `dynamodbav:"SourceID"`
	TargetID string            `dynamodbav:"TargetID"`
	Type     string            `dynamodbav:"Type"`
	Metadata map[string]string `dynamodbav:"Metadata,omitempty"`
}

// ddbUsageEvent represents one append-only usage event item.
type ddbUsageEvent struct {
	PK                 string   `dynamodbav:"PK"`
	SK                 string   `dynamodbav:"SK"` // EVENT#{rfc3339nano}#{fragmentId}
	UserID             string   `dynamodbav:"UserID"`
	FragmentID         string   `dynamodbav:"FragmentID"`
	ActivityType       string   `dynamodbav:"ActivityType,omitempty"`
	Timestamp          string   `dynamodbav:"Timestamp"`
	Success            bool     `dynamodbav:"Success"`
	DurationS          float64  `dynamodbav:"DurationS"`
	RelatedFragmentIDs []string `dynamodbav:"RelatedFragmentIDs,omitempty"`
}

// ddbVector represents a stored embedding vector item.
type ddbVector struct {
	PK         string    `dynamodbav:"PK"`
	SK         string    `dynamodbav:"SK"` // VEC#{fragmentId}
	FragmentID string    `dynamodbav:"FragmentID"`
	OwnerID    string    `dynamodbav:"OwnerID"`
	Vector     []float32 `dynamodbav:"Vector"`
	ComputedAt string    `dynamodbav:"ComputedAt"`
}

// Store is the single-table DynamoDB implementation of the repository
// interfaces.
type Store struct {
	client        *dynamodb.Client
	tableName     string
	typeIndexName string
	logger        *zap.Logger
}

// NewStore creates a DynamoDB-backed store.
func NewStore(client *dynamodb.Client, tableName, typeIndexName string, logger *zap.Logger) *Store {
	return &Store{
		client:        client,
		tableName:     tableName,
		typeIndexName: typeIndexName,
		logger:        logger,
	}
}

func userPK(ownerID string) string {
	return fmt.Sprintf("USER#%s", ownerID)
}

// eventKeyFormat is fixed width, unlike RFC3339Nano which trims trailing
// fractional zeros, so lexicographic SK order stays chronological at
// sub-second granularity.
const eventKeyFormat = "2006-01-02T15:04:05.000000000Z07:00"

func eventSK(timestamp time.Time, fragmentID string) string {
	return fmt.Sprintf("EVENT#%s#%s", timestamp.UTC().Format(eventKeyFormat), fragmentID)
}

// FindFragmentByID implements repository.FragmentReader.
func (s *Store) FindFragmentByID(ctx context.Context, ownerID, fragmentID string) (*domain.Fragment, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userPK(ownerID)},
			"SK": &types.AttributeValueMemberS{Value: "FRAGMENT#" + fragmentID},
		},
	})
	if err != nil {
		return nil, storeError(err, "get fragment")
	}
	if out.Item == nil {
		return nil, repository.ErrFragmentNotFound
	}

	var item ddbFragment
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, appErrors.Wrap(err, "failed to unmarshal fragment item")
	}
	fragment := toFragment(item)
	return &fragment, nil
}

// FindFragments implements repository.FragmentReader. A type filter is
// served from the type GSI; otherwise the owner partition is queried by SK
// prefix.
func (s *Store) FindFragments(ctx context.Context, query repository.FragmentQuery) ([]domain.Fragment, error) {
	var keyCond expression.KeyConditionBuilder
	indexName := ""
	if query.Type != "" {
		indexName = s.typeIndexName
		keyCond = expression.Key("GSI1PK").Equal(expression.Value(
			fmt.Sprintf("USER#%s#TYPE#%s", query.OwnerID, query.Type)))
	} else {
		keyCond = expression.Key("PK").Equal(expression.Value(userPK(query.OwnerID))).
			And(expression.Key("SK").BeginsWith("FRAGMENT#"))
	}

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to build fragment query")
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if indexName != "" {
		input.IndexName = aws.String(indexName)
	}

	wanted := make(map[string]bool, len(query.IDs))
	for _, id := range query.IDs {
		wanted[id] = true
	}

	fragments := make([]domain.Fragment, 0)
	var lastKey map[string]types.AttributeValue
	for {
		input.ExclusiveStartKey = lastKey
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, storeError(err, "query fragments")
		}

		for _, raw := range out.Items {
			var item ddbFragment
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, appErrors.Wrap(err, "failed to unmarshal fragment item")
			}
			if len(wanted) > 0 && !wanted[item.FragmentID] {
				continue
			}
			fragments = append(fragments, toFragment(item))
			if query.Limit > 0 && len(fragments) >= query.Limit {
				return fragments, nil
			}
		}

		lastKey = out.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	return fragments, nil
}

// FindRelationships implements repository.RelationshipReader.
func (s *Store) FindRelationships(ctx context.Context, ownerID, fragmentID string) ([]domain.Relationship, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(userPK(ownerID))).
		And(expression.Key("SK").BeginsWith("REL#" + fragmentID + "#"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to build relationship query")
	}

	relationships := make([]domain.Relationship, 0)
	var lastKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, storeError(err, "query relationships")
		}

		for _, raw := range out.Items {
			var item ddbRelationship
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, appErrors.Wrap(err, "failed to unmarshal relationship item")
			}
			relationships = append(relationships, domain.Relationship{
				SourceID: item.SourceID,
				TargetID: item.TargetID,
				Type:     domain.RelationshipType(item.Type),
				Metadata: item.Metadata,
			})
		}

		lastKey = out.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	return relationships, nil
}

// FindRelationshipsForSet implements repository.RelationshipReader with one
// parallel query per fragment.
func (s *Store) FindRelationshipsForSet(ctx context.Context, ownerID string, fragmentIDs []string) (map[string][]domain.Relationship, error) {
	results := make([][]domain.Relationship, len(fragmentIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, fragmentID := range fragmentIDs {
		i, fragmentID := i, fragmentID
		g.Go(func() error {
			edges, err := s.FindRelationships(gctx, ownerID, fragmentID)
			if err != nil {
				return err
			}
			results[i] = edges
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byFragment := make(map[string][]domain.Relationship, len(fragmentIDs))
	for i, fragmentID := range fragmentIDs {
		byFragment[fragmentID] = results[i]
	}
	return byFragment, nil
}

// AppendEvent implements repository.UsageEventStore. The sort key embeds the
// timestamp and fragment id, so duplicate appends of the same event are
// idempotent at the item level.
func (s *Store) AppendEvent(ctx context.Context, event domain.UsageEvent) error {
	item, err := attributevalue.MarshalMap(ddbUsageEvent{
		PK:                 userPK(event.UserID),
		SK:                 eventSK(event.Timestamp, event.FragmentID),
		UserID:             event.UserID,
		FragmentID:         event.FragmentID,
		ActivityType:       event.ActivityType,
		Timestamp:          event.Timestamp.UTC().Format(time.RFC3339Nano),
		Success:            event.Success,
		DurationS:          event.Duration.Seconds(),
		RelatedFragmentIDs: event.RelatedFragmentIDs,
	})
	if err != nil {
		return appErrors.Wrap(err, "failed to marshal usage event")
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return storeError(err, "put usage event")
	}
	return nil
}

// FindEvents implements repository.UsageEventStore. Events are keyed by
// fixed-width timestamps, so a lexicographic SK range is also a time range.
func (s *Store) FindEvents(ctx context.Context, query repository.EventQuery) ([]domain.UsageEvent, error) {
	until := query.Until
	if until.IsZero() {
		until = time.Now()
	}

	keyCond := expression.Key("PK").Equal(expression.Value(userPK(query.OwnerID))).
		And(expression.Key("SK").Between(
			expression.Value("EVENT#"+query.Since.UTC().Format(eventKeyFormat)),
			expression.Value("EVENT#"+until.UTC().Format(eventKeyFormat)+"#~"),
		))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to build event query")
	}

	events := make([]domain.UsageEvent, 0)
	var lastKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, storeError(err, "query usage events")
		}

		for _, raw := range out.Items {
			var item ddbUsageEvent
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, appErrors.Wrap(err, "failed to unmarshal usage event item")
			}
			timestamp, err := time.Parse(time.RFC3339Nano, item.Timestamp)
			if err != nil {
				s.logger.Warn("skipping usage event with malformed timestamp",
					zap.String("sk", item.SK), zap.Error(err))
				continue
			}
			events = append(events, domain.UsageEvent{
				UserID:             item.UserID,
				FragmentID:         item.FragmentID,
				ActivityType:       item.ActivityType,
				Timestamp:          timestamp,
				Success:            item.Success,
				Duration:           time.Duration(item.DurationS * float64(time.Second)),
				RelatedFragmentIDs: item.RelatedFragmentIDs,
			})
		}

		lastKey = out.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}

	sort.Slice(events, func(i, j int) bool { return events[i].Timestamp.Before(events[j].Timestamp) })
	return events, nil
}

// FindVectors implements repository.EmbeddingReader.
func (s *Store) FindVectors(ctx context.Context, ownerID string, fragmentIDs []string) ([]domain.EmbeddingVector, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(userPK(ownerID))).
		And(expression.Key("SK").BeginsWith("VEC#"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to build vector query")
	}

	wanted := make(map[string]bool, len(fragmentIDs))
	for _, id := range fragmentIDs {
		wanted[id] = true
	}

	vectors := make([]domain.EmbeddingVector, 0)
	var lastKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, storeError(err, "query vectors")
		}

		for _, raw := range out.Items {
			var item ddbVector
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, appErrors.Wrap(err, "failed to unmarshal vector item")
			}
			if len(wanted) > 0 && !wanted[item.FragmentID] {
				continue
			}
			computedAt, _ := time.Parse(time.RFC3339, item.ComputedAt)
			vectors = append(vectors, domain.EmbeddingVector{
				FragmentID: item.FragmentID,
				OwnerID:    item.OwnerID,
				Vector:     item.Vector,
				ComputedAt: computedAt,
			})
		}

		lastKey = out.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}

	sort.Slice(vectors, func(i, j int) bool { return vectors[i].FragmentID < vectors[j].FragmentID })
	return vectors, nil
}

func toFragment(item ddbFragment) domain.Fragment {
	fragment := domain.Fragment{
		ID:         item.FragmentID,
		OwnerID:    item.OwnerID,
		Type:       domain.FragmentType(item.Type),
		Name:       item.Name,
		Text:       item.Text,
		TokenCount: item.TokenCount,
		Tags:       item.Tags,
		Priority:   item.Priority,
		UsageCount: item.UsageCount,
	}
	if item.LastUsedAt != "" {
		if t, err := time.Parse(time.RFC3339, item.LastUsedAt); err == nil {
			fragment.LastUsedAt = &t
		}
	}
	if t, err := time.Parse(time.RFC3339, item.CreatedAt); err == nil {
		fragment.CreatedAt = t
	}
	return fragment
}
