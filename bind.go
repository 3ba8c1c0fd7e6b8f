package loom

import (
	"reflect"
	"strconv"
)

// bindValues destructures data (a multi-value string map, e.g. a query or
// form map) into the struct pointed to by ptr, one field per matching tag
// key, adapted from the teacher's binder.go bindData/setWithProperType
// pair, generalized from its hardcoded "query"/"form" tag literal to any
// caller-supplied tag name.
func bindValues(ptr interface{}, data map[string][]string, tag string) error {
	typ := reflect.TypeOf(ptr).Elem()
	val := reflect.ValueOf(ptr).Elem()

	if typ.Kind() != reflect.Struct {
		return NewError(KindInternal, "loom: extractor target must be a struct", nil)
	}

	for i := 0; i < typ.NumField(); i++ {
		typeField := typ.Field(i)
		structField := val.Field(i)
		if !structField.CanSet() {
			continue
		}

		name := typeField.Tag.Get(tag)
		if name == "" {
			name = typeField.Name
			if structField.Kind() == reflect.Struct {
				if err := bindValues(structField.Addr().Interface(), data, tag); err != nil {
					return err
				}
				continue
			}
		}

		values, ok := data[name]
		if !ok || len(values) == 0 {
			continue
		}

		if structField.Kind() == reflect.Slice {
			elemKind := structField.Type().Elem().Kind()
			slice := reflect.MakeSlice(structField.Type(), len(values), len(values))
			for j, v := range values {
				if err := setWithProperType(elemKind, v, slice.Index(j)); err != nil {
					return err
				}
			}
			structField.Set(slice)
			continue
		}

		if err := setWithProperType(typeField.Type.Kind(), values[0], structField); err != nil {
			return err
		}
	}

	return nil
}

// bindSingleValues destructures data (a single-value string map, e.g. path
// captures) into ptr, the same way bindValues does for its multi-value
// counterpart.
func bindSingleValues(ptr interface{}, data map[string]string, tag string) error {
	m := make(map[string][]string, len(data))
	for k, v := range data {
		m[k] = []string{v}
	}
	return bindValues(ptr, m, tag)
}

func setWithProperType(k reflect.Kind, v string, field reflect.Value) error {
	bitSize := 0
	switch k {
	case reflect.Int8, reflect.Uint8:
		bitSize = 8
	case reflect.Int16, reflect.Uint16:
		bitSize = 16
	case reflect.Int32, reflect.Uint32, reflect.Float32:
		bitSize = 32
	case reflect.Int64, reflect.Uint64, reflect.Float64:
		bitSize = 64
	}

	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(orZero(v), 10, bitSize)
		if err != nil {
			return NewError(KindParseError, "loom: invalid integer value", err)
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(orZero(v), 10, bitSize)
		if err != nil {
			return NewError(KindParseError, "loom: invalid unsigned integer value", err)
		}
		field.SetUint(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(orFalse(v))
		if err != nil {
			return NewError(KindParseError, "loom: invalid boolean value", err)
		}
		field.SetBool(b)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(orZeroFloat(v), bitSize)
		if err != nil {
			return NewError(KindParseError, "loom: invalid float value", err)
		}
		field.SetFloat(f)
	case reflect.String:
		field.SetString(v)
	default:
		return NewError(KindInternal, "loom: unsupported extractor field type", nil)
	}
	return nil
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func orZeroFloat(s string) string {
	if s == "" {
		return "0.0"
	}
	return s
}

func orFalse(s string) string {
	if s == "" {
		return "false"
	}
	return s
}
