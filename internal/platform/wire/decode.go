// Package wire holds the JSON representation helpers shared by the domain
// handlers: request decoding with field-level errors, calendar dates and
// fixed-point decimals.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medoffice/practice/internal/platform/apierror"
)

// Bind decodes the request body into v. Unknown fields are ignored. A value
// of the wrong JSON type becomes a ValidationError on that field; broken JSON
// becomes a ParseError.
func Bind(c echo.Context, v interface{}) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	return Decode(body, v)
}

func Decode(body []byte, v interface{}) error {
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	err := json.Unmarshal(coerceIntegers(body, v), v)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return apierror.Field(apierror.NonFieldErrors,
				fmt.Sprintf("Invalid data. Expected a dictionary, but got %s.", jsonKind(typeErr.Value)))
		}
		return apierror.Field(typeErr.Field, typeMessage(typeErr.Type, typeErr.Value))
	}
	return &apierror.ParseError{Err: err}
}

// coerceIntegers rewrites quoted whole numbers ("5", " 120 ") into JSON
// numbers for the top-level integer and integer-list fields of v. Anything
// else is left for json.Unmarshal to reject.
func coerceIntegers(body []byte, v interface{}) []byte {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return body
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return body
	}

	changed := false
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		raw, ok := fields[name]
		if name == "" || name == "-" || !ok {
			continue
		}
		ft := indirect(f.Type)
		switch {
		case isInteger(ft):
			if n, ok := quotedInteger(raw); ok {
				fields[name] = n
				changed = true
			}
		case ft.Kind() == reflect.Slice && isInteger(indirect(ft.Elem())):
			var items []json.RawMessage
			if err := json.Unmarshal(raw, &items); err != nil {
				continue
			}
			listChanged := false
			for j, item := range items {
				if n, ok := quotedInteger(item); ok {
					items[j] = n
					listChanged = true
				}
			}
			if listChanged {
				if out, err := json.Marshal(items); err == nil {
					fields[name] = out
					changed = true
				}
			}
		}
	}
	if !changed {
		return body
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return body
	}
	return out
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func isInteger(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func quotedInteger(raw json.RawMessage) (json.RawMessage, bool) {
	var s string
	if len(raw) == 0 || raw[0] != '"' || json.Unmarshal(raw, &s) != nil {
		return nil, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, false
	}
	return json.RawMessage(strconv.FormatInt(n, 10)), true
}

// typeMessage words a type mismatch for the field. int64 fields are primary
// keys on the wire; other integers are plain numbers.
func typeMessage(t reflect.Type, got string) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Slice:
		return fmt.Sprintf("Expected a list of items but got type %q.", jsonKind(got))
	case reflect.Int64:
		return fmt.Sprintf("Incorrect type. Expected pk value, received %s.", jsonKind(got))
	case reflect.Int, reflect.Int32:
		return "A valid integer is required."
	case reflect.Bool:
		return "Must be a valid boolean."
	case reflect.String:
		return "Not a valid string."
	}
	return fmt.Sprintf("Incorrect type. Received %s.", jsonKind(got))
}

func jsonKind(v string) string {
	switch v {
	case "object":
		return "object"
	case "array":
		return "list"
	case "bool":
		return "bool"
	case "number":
		return "int"
	}
	if strings.HasPrefix(v, "number") {
		return "int"
	}
	return "str"
}
