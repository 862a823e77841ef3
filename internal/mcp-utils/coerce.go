// Package mcputils binds loosely typed MCP tool arguments to request structs.
package mcputils

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// ArgumentGetter is an interface for getting arguments from a request
type ArgumentGetter interface {
	GetArguments() map[string]any
}

// CoerceBindArguments binds request arguments to target using the json tags
// of its fields. MCP clients often send every parameter as a string, so
// strings holding JSON arrays, objects, booleans or numbers are decoded into
// the field's type first, and plain strings fall back to comma splitting for
// slices.
func CoerceBindArguments[T any](request ArgumentGetter, target *T) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			jsonStringHook,
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		Result:  target,
		TagName: "json",
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(request.GetArguments()); err != nil {
		return err
	}
	return nil
}

// jsonStringHook decodes JSON-looking strings into the target kind. Strings
// that do not parse are passed through unchanged.
func jsonStringHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	raw := strings.TrimSpace(data.(string))
	if raw == "" {
		return data, nil
	}

	switch to.Kind() {
	case reflect.Slice:
		if !isJSONContainer(raw, '[', ']') {
			return data, nil
		}
		ptr := reflect.New(to)
		if err := json.Unmarshal([]byte(raw), ptr.Interface()); err != nil {
			return data, nil
		}
		return ptr.Elem().Interface(), nil

	case reflect.Map, reflect.Struct:
		if !isJSONContainer(raw, '{', '}') {
			return data, nil
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return data, nil
		}
		return obj, nil

	case reflect.Bool:
		switch raw {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		var n json.Number
		if err := json.Unmarshal([]byte(raw), &n); err == nil {
			return n, nil
		}
	}
	return data, nil
}

func isJSONContainer(s string, open, close byte) bool {
	return len(s) >= 2 && s[0] == open && s[len(s)-1] == close
}
