package utils

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
)

// ToJSONSchema converts a struct to a self-contained JSON schema without
// $ref indirection, suitable for embedding in tool output.
func ToJSONSchema[T any](t T) (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(t)

	jsonSchemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	return string(jsonSchemaBytes), nil
}

// GetKeychainFields returns the JSON names of struct fields tagged with
// keychain:"true". Callers use the list to know which config values hold
// secrets that should come from a credential store rather than plain files.
// Embedded structs are walked recursively.
func GetKeychainFields(config any) []string {
	fields := []string{}

	t := reflect.TypeOf(config)
	if t == nil {
		return fields
	}

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return fields
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			fields = append(fields, GetKeychainFields(reflect.New(field.Type).Elem().Interface())...)

			continue
		}

		if field.Tag.Get("keychain") != "true" {
			continue
		}

		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "" {
			name = field.Name
		}

		fields = append(fields, name)
	}

	return fields
}
