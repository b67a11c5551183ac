package dynamo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/docbase/store"
)

// condition translates f into a DynamoDB condition expression.
func condition(f store.Filter) (expression.ConditionBuilder, error) {
	switch n := f.(type) {
	case store.Comparison:
		name := attrName(n.Path)
		value := expression.Value(operand{n.Value})
		switch n.Op {
		case store.OpEq:
			return name.Equal(value), nil
		case store.OpNe:
			// DynamoDB's <> is false for a missing attribute.
			return expression.Or(name.AttributeNotExists(), name.NotEqual(value)), nil
		case store.OpLt:
			return name.LessThan(value), nil
		case store.OpLe:
			return name.LessThanEqual(value), nil
		case store.OpGt:
			return name.GreaterThan(value), nil
		case store.OpGe:
			return name.GreaterThanEqual(value), nil
		}
		return expression.ConditionBuilder{}, fmt.Errorf("%w: comparison operator %q", store.ErrUnsupported, n.Op)
	case store.PrefixMatch:
		return attrName(n.Path).BeginsWith(n.Prefix), nil
	case store.ContainsMatch:
		s, ok := n.Value.(string)
		if !ok {
			return expression.ConditionBuilder{}, fmt.Errorf("%w: contains on %s requires a string operand, got %T",
				store.ErrUnsupported, n.Path, n.Value)
		}
		return attrName(n.Path).Contains(s), nil
	case store.Presence:
		if n.Present {
			return attrName(n.Path).AttributeExists(), nil
		}
		return attrName(n.Path).AttributeNotExists(), nil
	case store.Membership:
		if len(n.Values) == 0 {
			return never(), nil
		}
		operands := make([]expression.OperandBuilder, 0, len(n.Values)-1)
		for _, v := range n.Values[1:] {
			operands = append(operands, expression.Value(operand{v}))
		}
		return attrName(n.Path).In(expression.Value(operand{n.Values[0]}), operands...), nil
	case store.AndFilter:
		conds, err := conditions(n.Filters)
		if err != nil {
			return expression.ConditionBuilder{}, err
		}
		switch len(conds) {
		case 0:
			return always(), nil
		case 1:
			return conds[0], nil
		}
		return expression.And(conds[0], conds[1], conds[2:]...), nil
	case store.OrFilter:
		conds, err := conditions(n.Filters)
		if err != nil {
			return expression.ConditionBuilder{}, err
		}
		switch len(conds) {
		case 0:
			return never(), nil
		case 1:
			return conds[0], nil
		}
		return expression.Or(conds[0], conds[1], conds[2:]...), nil
	case store.NotFilter:
		if n.Filter == nil {
			return never(), nil
		}
		inner, err := condition(n.Filter)
		if err != nil {
			return expression.ConditionBuilder{}, err
		}
		return expression.Not(inner), nil
	case nil:
		return always(), nil
	}
	return expression.ConditionBuilder{}, fmt.Errorf("%w: filter %T", store.ErrUnsupported, f)
}

func conditions(filters []store.Filter) ([]expression.ConditionBuilder, error) {
	out := make([]expression.ConditionBuilder, 0, len(filters))
	for _, f := range filters {
		if f == nil {
			continue
		}
		c, err := condition(f)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// operand encodes a filter value the way documents are stored, so struct
// operands compare against their json attribute names.
type operand struct{ v any }

func (o operand) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return attributevalue.MarshalWithOptions(o.v, encoderOptions)
}

// always holds for every stored item: the id attribute is part of every key.
func always() expression.ConditionBuilder {
	return expression.Name(store.IDAttr).AttributeExists()
}

func never() expression.ConditionBuilder {
	return expression.Name(store.IDAttr).AttributeNotExists()
}

// attrName maps a dotted filter path to a document path expression,
// turning numeric segments into list indexes ("addresses.0.line1" becomes
// "addresses[0].line1").
func attrName(path string) expression.NameBuilder {
	segs := strings.Split(path, ".")
	var b strings.Builder
	for i, seg := range segs {
		if _, err := strconv.Atoi(seg); err == nil && i > 0 {
			b.WriteString("[" + seg + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	return expression.Name(b.String())
}
