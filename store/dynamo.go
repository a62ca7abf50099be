package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"lovelink_client/config"
	apperr "lovelink_client/errors"
	"lovelink_client/models"
	"lovelink_client/realtime"
	"lovelink_client/utils"
)

// dynamoKeys overrides the generic key registry where the DynamoDB table is
// keyed by the natural unique attributes instead of the surrogate id, so
// conditional puts enforce the same uniqueness the SQL schema gets from its
// indexes.
var dynamoKeys = map[string][]string{
	models.MatchesTable:             {"user1_id", "user2_id"},
	models.SeriousProfilesTable:     {"user_id"},
	models.InterestExpressionsTable: {"sender_id", "receiver_id"},
}

func dynamoKey(collection string) []string {
	if fields, ok := dynamoKeys[collection]; ok {
		return fields
	}
	return keyFields[collection]
}

// NewDynamoClient loads the default AWS config for the configured region.
func NewDynamoClient(ctx context.Context, cfg *config.Config) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg), nil
}

// DynamoStore implements DataService on DynamoDB. Collections map to tables
// (with an optional prefix); reads use GetItem where the caller's key matches
// the table key and fall back to a filtered scan otherwise. Conditional
// writes use ConditionExpressions so races lose cleanly with ErrConflict.
type DynamoStore struct {
	Client *dynamodb.Client
	prefix string
	pub    realtime.Publisher
	policy Policy
}

func NewDynamoStore(client *dynamodb.Client, prefix string, pub realtime.Publisher, policy Policy) *DynamoStore {
	return &DynamoStore{Client: client, prefix: prefix, pub: pub, policy: policy}
}

func (ds *DynamoStore) table(collection string) string {
	return ds.prefix + collection
}

func (ds *DynamoStore) Query(ctx context.Context, collection string, q Query, dest any) error {
	return ds.policy.Do(ctx, "query", func(ctx context.Context) error {
		items, err := ds.scan(ctx, collection, q.Eq, q.Neq)
		if err != nil {
			return err
		}
		items = filterItems(items, q)
		if q.OrderBy != "" {
			sort.SliceStable(items, func(i, j int) bool {
				if q.Desc {
					return utils.AttrLess(items[j], items[i], q.OrderBy)
				}
				return utils.AttrLess(items[i], items[j], q.OrderBy)
			})
		}
		if q.Limit > 0 && len(items) > q.Limit {
			items = items[:q.Limit]
		}
		if err := attributevalue.UnmarshalListOfMaps(items, dest); err != nil {
			return apperr.Backend("query", collection, err)
		}
		return nil
	})
}

func (ds *DynamoStore) Get(ctx context.Context, collection string, key Key, dest any) error {
	return ds.policy.Do(ctx, "get", func(ctx context.Context) error {
		item, err := ds.getItem(ctx, collection, key)
		if err != nil {
			return err
		}
		if err := attributevalue.UnmarshalMap(item, dest); err != nil {
			return apperr.Backend("get", collection, err)
		}
		return nil
	})
}

func (ds *DynamoStore) Insert(ctx context.Context, collection string, record any) error {
	if err := models.Validate(record); err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return apperr.Backend("insert", collection, err)
	}
	table := ds.table(collection)
	cond := notExistsExpression(dynamoKey(collection))
	err = ds.policy.Do(ctx, "insert", func(ctx context.Context) error {
		_, err := ds.Client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           &table,
			Item:                item,
			ConditionExpression: &cond,
		})
		if isConditionalCheckFailed(err) {
			return apperr.ErrDuplicate
		}
		if err != nil {
			return apperr.Backend("insert", collection, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	ds.publish(ctx, realtime.EventInsert, collection, item, nil)
	return nil
}

func (ds *DynamoStore) Update(ctx context.Context, collection string, key Key, upd Update) error {
	var newItem map[string]types.AttributeValue
	err := ds.policy.Do(ctx, "update", func(ctx context.Context) error {
		item, err := ds.getItem(ctx, collection, key)
		if err != nil {
			return err
		}
		newItem, err = ds.updateItem(ctx, collection, itemKey(collection, item), upd, nil)
		return err
	})
	if err != nil {
		return err
	}
	ds.publish(ctx, realtime.EventUpdate, collection, newItem, nil)
	return nil
}

func (ds *DynamoStore) Upsert(ctx context.Context, collection string, record any) error {
	if err := models.Validate(record); err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return apperr.Backend("upsert", collection, err)
	}
	table := ds.table(collection)
	existed := false
	err = ds.policy.Do(ctx, "upsert", func(ctx context.Context) error {
		out, err := ds.Client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:    &table,
			Item:         item,
			ReturnValues: types.ReturnValueAllOld,
		})
		if err != nil {
			return apperr.Backend("upsert", collection, err)
		}
		existed = len(out.Attributes) > 0
		return nil
	})
	if err != nil {
		return err
	}
	if existed {
		ds.publish(ctx, realtime.EventUpdate, collection, item, nil)
	} else {
		ds.publish(ctx, realtime.EventInsert, collection, item, nil)
	}
	return nil
}

func (ds *DynamoStore) Delete(ctx context.Context, collection string, key Key) error {
	table := ds.table(collection)
	var old map[string]types.AttributeValue
	err := ds.policy.Do(ctx, "delete", func(ctx context.Context) error {
		item, err := ds.getItem(ctx, collection, key)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		avKey, err := attributevalue.MarshalMap(map[string]any(itemKey(collection, item)))
		if err != nil {
			return apperr.Backend("delete", collection, err)
		}
		out, err := ds.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:    &table,
			Key:          avKey,
			ReturnValues: types.ReturnValueAllOld,
		})
		if err != nil {
			return apperr.Backend("delete", collection, err)
		}
		old = out.Attributes
		return nil
	})
	if err != nil {
		return err
	}
	if len(old) > 0 {
		ds.publish(ctx, realtime.EventDelete, collection, nil, old)
	}
	return nil
}

func (ds *DynamoStore) DeleteWhere(ctx context.Context, collection string, cond map[string]any) error {
	table := ds.table(collection)
	var deleted []map[string]types.AttributeValue
	err := ds.policy.Do(ctx, "delete_where", func(ctx context.Context) error {
		items, err := ds.scan(ctx, collection, cond, nil)
		if err != nil {
			return err
		}
		deleted = deleted[:0]
		for _, item := range items {
			avKey, err := attributevalue.MarshalMap(map[string]any(itemKey(collection, item)))
			if err != nil {
				return apperr.Backend("delete_where", collection, err)
			}
			expr, names, values, err := condExpression(cond)
			if err != nil {
				return apperr.Backend("delete_where", collection, err)
			}
			out, err := ds.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName:                 &table,
				Key:                       avKey,
				ConditionExpression:       &expr,
				ExpressionAttributeNames:  names,
				ExpressionAttributeValues: values,
				ReturnValues:              types.ReturnValueAllOld,
			})
			if isConditionalCheckFailed(err) {
				continue // someone else got there first
			}
			if err != nil {
				return apperr.Backend("delete_where", collection, err)
			}
			if len(out.Attributes) > 0 {
				deleted = append(deleted, out.Attributes)
			}
		}
		if len(deleted) == 0 {
			return apperr.ErrConflict
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, old := range deleted {
		ds.publish(ctx, realtime.EventDelete, collection, nil, old)
	}
	return nil
}

func (ds *DynamoStore) UpdateWhere(ctx context.Context, collection string, cond map[string]any, upd Update) error {
	var updated []map[string]types.AttributeValue
	err := ds.policy.Do(ctx, "update_where", func(ctx context.Context) error {
		items, err := ds.scan(ctx, collection, cond, nil)
		if err != nil {
			return err
		}
		updated = updated[:0]
		for _, item := range items {
			newItem, err := ds.updateItem(ctx, collection, itemKey(collection, item), upd, cond)
			if errors.Is(err, apperr.ErrConflict) {
				continue
			}
			if err != nil {
				return err
			}
			updated = append(updated, newItem)
		}
		if len(updated) == 0 {
			return apperr.ErrConflict
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, newItem := range updated {
		ds.publish(ctx, realtime.EventUpdate, collection, newItem, nil)
	}
	return nil
}

// getItem fetches one item, via GetItem when the caller's key matches the
// table key schema and via a filtered scan otherwise.
func (ds *DynamoStore) getItem(ctx context.Context, collection string, key Key) (map[string]types.AttributeValue, error) {
	table := ds.table(collection)
	if keyMatchesSchema(collection, key) {
		avKey, err := attributevalue.MarshalMap(map[string]any(key))
		if err != nil {
			return nil, apperr.Backend("get", collection, err)
		}
		out, err := ds.Client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: &table,
			Key:       avKey,
		})
		if err != nil {
			return nil, apperr.Backend("get", collection, err)
		}
		if out.Item == nil {
			return nil, apperr.ErrNotFound
		}
		return out.Item, nil
	}

	items, err := ds.scan(ctx, collection, key, nil)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.ErrNotFound
	}
	return items[0], nil
}

// updateItem applies upd to the item at key. When cond is non-nil it becomes
// the ConditionExpression and its failure maps to ErrConflict.
func (ds *DynamoStore) updateItem(ctx context.Context, collection string, key Key, upd Update, cond map[string]any) (map[string]types.AttributeValue, error) {
	table := ds.table(collection)
	avKey, err := attributevalue.MarshalMap(map[string]any(key))
	if err != nil {
		return nil, apperr.Backend("update", collection, err)
	}

	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	sets := make([]string, 0, len(upd))
	for field, v := range upd {
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, apperr.Backend("update", collection, err)
		}
		names["#u_"+field] = field
		values[":u_"+field] = av
		sets = append(sets, fmt.Sprintf("#u_%s = :u_%s", field, field))
	}
	sort.Strings(sets)
	updateExpr := "SET " + strings.Join(sets, ", ")

	input := &dynamodb.UpdateItemInput{
		TableName:                 &table,
		Key:                       avKey,
		UpdateExpression:          &updateExpr,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	}
	if cond != nil {
		expr, cnames, cvalues, err := condExpression(cond)
		if err != nil {
			return nil, apperr.Backend("update", collection, err)
		}
		for k, v := range cnames {
			names[k] = v
		}
		for k, v := range cvalues {
			values[k] = v
		}
		input.ConditionExpression = &expr
	}

	out, err := ds.Client.UpdateItem(ctx, input)
	if isConditionalCheckFailed(err) {
		return nil, apperr.ErrConflict
	}
	if err != nil {
		return nil, apperr.Backend("update", collection, err)
	}
	return out.Attributes, nil
}

// scan walks the whole table, server-side filtering on eq/neq conditions.
func (ds *DynamoStore) scan(ctx context.Context, collection string, eq map[string]any, neq map[string]any) ([]map[string]types.AttributeValue, error) {
	table := ds.table(collection)
	input := &dynamodb.ScanInput{TableName: &table}

	var exprs []string
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	for field, v := range eq {
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, apperr.Backend("query", collection, err)
		}
		names["#f_"+field] = field
		values[":f_"+field] = av
		exprs = append(exprs, fmt.Sprintf("#f_%s = :f_%s", field, field))
	}
	for field, v := range neq {
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, apperr.Backend("query", collection, err)
		}
		names["#n_"+field] = field
		values[":n_"+field] = av
		exprs = append(exprs, fmt.Sprintf("#n_%s <> :n_%s", field, field))
	}
	if len(exprs) > 0 {
		sort.Strings(exprs)
		expr := strings.Join(exprs, " AND ")
		input.FilterExpression = &expr
		input.ExpressionAttributeNames = names
		input.ExpressionAttributeValues = values
	}

	var items []map[string]types.AttributeValue
	for {
		out, err := ds.Client.Scan(ctx, input)
		if err != nil {
			return nil, apperr.Backend("query", collection, err)
		}
		items = append(items, out.Items...)
		if out.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return items, nil
}

func (ds *DynamoStore) publish(ctx context.Context, typ realtime.EventType, collection string, newItem, oldItem map[string]types.AttributeValue) {
	if ds.pub == nil {
		return
	}
	ev := realtime.Event{Type: typ, Collection: collection}
	if b := itemJSON(newItem); b != nil {
		ev.New = b
	}
	if b := itemJSON(oldItem); b != nil {
		ev.Old = b
	}
	_ = ds.pub.Publish(ctx, ev)
}

func itemJSON(item map[string]types.AttributeValue) json.RawMessage {
	if len(item) == 0 {
		return nil
	}
	var row map[string]any
	if err := attributevalue.UnmarshalMap(item, &row); err != nil {
		return nil
	}
	b, err := json.Marshal(row)
	if err != nil {
		return nil
	}
	return b
}

// filterItems applies the client-side parts of a Query: In, NotIn, and the
// Any OR groups. Eq and Neq were already pushed into the scan.
func filterItems(items []map[string]types.AttributeValue, q Query) []map[string]types.AttributeValue {
	if len(q.In) == 0 && len(q.NotIn) == 0 && len(q.Any) == 0 {
		return items
	}
	out := items[:0]
next:
	for _, item := range items {
		for field, vs := range q.In {
			found := false
			for _, v := range vs {
				if utils.AttrEquals(item, field, v) {
					found = true
					break
				}
			}
			if !found {
				continue next
			}
		}
		for field, vs := range q.NotIn {
			for _, v := range vs {
				if utils.AttrEquals(item, field, v) {
					continue next
				}
			}
		}
		if len(q.Any) > 0 {
			matched := false
			for _, group := range q.Any {
				ok := true
				for field, v := range group {
					if !utils.AttrEquals(item, field, v) {
						ok = false
						break
					}
				}
				if ok {
					matched = true
					break
				}
			}
			if !matched {
				continue next
			}
		}
		out = append(out, item)
	}
	return out
}

func keyMatchesSchema(collection string, key Key) bool {
	schema := dynamoKey(collection)
	if len(key) != len(schema) {
		return false
	}
	for _, f := range schema {
		if _, ok := key[f]; !ok {
			return false
		}
	}
	return true
}

func itemKey(collection string, item map[string]types.AttributeValue) Key {
	key := Key{}
	for _, f := range dynamoKey(collection) {
		key[f] = utils.ExtractString(item, f)
	}
	return key
}

func notExistsExpression(fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("attribute_not_exists(%s)", f)
	}
	return strings.Join(parts, " AND ")
}

func condExpression(cond map[string]any) (string, map[string]string, map[string]types.AttributeValue, error) {
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	exprs := make([]string, 0, len(cond))
	for field, v := range cond {
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return "", nil, nil, err
		}
		names["#c_"+field] = field
		values[":c_"+field] = av
		exprs = append(exprs, fmt.Sprintf("#c_%s = :c_%s", field, field))
	}
	sort.Strings(exprs)
	return strings.Join(exprs, " AND "), names, values, nil
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
