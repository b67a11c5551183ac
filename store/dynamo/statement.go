package dynamo

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/docbase/store"
)

// bindStatement rewrites the named parameters of a PartiQL statement
// (@name) into positional placeholders and returns the matching values in
// order. Text inside single or double quotes is left untouched.
func bindStatement(statement string, params store.Params) (string, []types.AttributeValue, error) {
	var (
		out    strings.Builder
		values []types.AttributeValue
		quote  byte
	)
	for i := 0; i < len(statement); i++ {
		c := statement[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			out.WriteByte(c)
		case c == '\'' || c == '"':
			quote = c
			out.WriteByte(c)
		case c == '@' && i+1 < len(statement) && isIdentStart(statement[i+1]):
			j := i + 1
			for j < len(statement) && isIdent(statement[j]) {
				j++
			}
			name := statement[i+1 : j]
			v, ok := params[name]
			if !ok {
				return "", nil, fmt.Errorf("%w: statement parameter @%s has no value", store.ErrConfiguration, name)
			}
			av, err := attributevalue.MarshalWithOptions(v, encoderOptions)
			if err != nil {
				return "", nil, fmt.Errorf("marshal parameter @%s: %w", name, err)
			}
			values = append(values, av)
			out.WriteByte('?')
			i = j - 1
		default:
			out.WriteByte(c)
		}
	}
	if quote != 0 {
		return "", nil, fmt.Errorf("%w: unterminated quote in statement", store.ErrConfiguration)
	}
	return out.String(), values, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdent(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
