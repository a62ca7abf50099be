package utils

import (
	"reflect"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ExtractString safely extracts a string from a DynamoDB attribute map
func ExtractString(item map[string]types.AttributeValue, field string) string {
	if attr, ok := item[field]; ok {
		if v, ok := attr.(*types.AttributeValueMemberS); ok {
			return v.Value
		}
	}
	return ""
}

// AttrEquals reports whether the attribute equals the given Go value once
// marshalled to its DynamoDB representation.
func AttrEquals(item map[string]types.AttributeValue, field string, value any) bool {
	attr, ok := item[field]
	if !ok {
		return false
	}
	want, err := attributevalue.Marshal(value)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(attr, want)
}

// AttrLess orders two items by a string attribute, for client-side sorting
// of scan results.
func AttrLess(a, b map[string]types.AttributeValue, field string) bool {
	return ExtractString(a, field) < ExtractString(b, field)
}
