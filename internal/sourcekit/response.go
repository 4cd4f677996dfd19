package sourcekit

import (
	"encoding/json"
	"fmt"
)

func parseCursorInfo(resp map[string]any) (*CursorInfo, error) {
	kind, err := requireString(resp, KeyKind)
	if err != nil {
		return nil, err
	}
	ci := &CursorInfo{Kind: kind}
	for key, dst := range map[string]*string{
		KeyName:               &ci.Name,
		KeyUSR:                &ci.USR,
		KeyTypeName:           &ci.TypeName,
		KeyAnnotatedDecl:      &ci.AnnotatedDecl,
		KeyFullyAnnotatedDecl: &ci.FullyAnnotatedDecl,
		KeyModuleName:         &ci.ModuleName,
	} {
		v, err := optionalString(resp, key)
		if err != nil {
			return nil, err
		}
		*dst = v
	}
	return ci, nil
}

func parseExpressionTypes(resp map[string]any) ([]ExpressionType, error) {
	raw, ok := resp[KeyExpressionTypeList]
	if !ok {
		return nil, &MissingResponseFieldError{Key: KeyExpressionTypeList}
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, &UnexpectedFieldTypeError{Key: KeyExpressionTypeList, Want: "array", Got: jsonType(raw)}
	}

	out := make([]ExpressionType, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, &UnexpectedFieldTypeError{Key: KeyExpressionTypeList, Want: "array of objects", Got: jsonType(item)}
		}
		offset, err := requireInt(m, KeyExpressionOffset)
		if err != nil {
			return nil, err
		}
		length, err := requireInt(m, KeyExpressionLength)
		if err != nil {
			return nil, err
		}
		typ, err := requireString(m, KeyExpressionType)
		if err != nil {
			return nil, err
		}
		out = append(out, ExpressionType{Offset: offset, Length: length, Type: typ})
	}
	return out, nil
}

func requireString(m map[string]any, key string) (string, error) {
	raw, ok := m[key]
	if !ok {
		return "", &MissingResponseFieldError{Key: key}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &UnexpectedFieldTypeError{Key: key, Want: "string", Got: jsonType(raw)}
	}
	return s, nil
}

func optionalString(m map[string]any, key string) (string, error) {
	if _, ok := m[key]; !ok {
		return "", nil
	}
	return requireString(m, key)
}

func requireInt(m map[string]any, key string) (int, error) {
	raw, ok := m[key]
	if !ok {
		return 0, &MissingResponseFieldError{Key: key}
	}
	n, ok := raw.(json.Number)
	if !ok {
		return 0, &UnexpectedFieldTypeError{Key: key, Want: "integer", Got: jsonType(raw)}
	}
	i, err := n.Int64()
	if err != nil {
		return 0, &UnexpectedFieldTypeError{Key: key, Want: "integer", Got: "number"}
	}
	return int(i), nil
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case json.Number, float64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func describe(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
