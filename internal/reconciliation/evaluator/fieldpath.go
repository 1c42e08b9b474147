package evaluator

import (
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Lookup resolves a dotted path such as "booking.guest_name" or "rooms[0].rate" against
// maps, structs (by json tag or field name, case-insensitive), pointers and slices.
// It reports false when any segment is missing or the value is nil.
func Lookup(record interface{}, path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}

	value := reflect.ValueOf(record)
	for _, segment := range strings.Split(path, ".") {
		name, indexes, ok := parseSegment(segment)
		if !ok {
			return nil, false
		}
		if name != "" {
			value, ok = child(value, name)
			if !ok {
				return nil, false
			}
		}
		for _, idx := range indexes {
			value, ok = element(value, idx)
			if !ok {
				return nil, false
			}
		}
	}

	value = indirect(value)
	if !value.IsValid() {
		return nil, false
	}
	return value.Interface(), true
}

// parseSegment splits "rooms[0][1]" into "rooms" and [0 1]
func parseSegment(segment string) (string, []int, bool) {
	open := strings.IndexByte(segment, '[')
	if open < 0 {
		return segment, nil, segment != ""
	}

	name := segment[:open]
	var indexes []int
	rest := segment[open:]
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, false
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return "", nil, false
		}
		idx, err := strconv.Atoi(rest[1:end])
		if err != nil || idx < 0 {
			return "", nil, false
		}
		indexes = append(indexes, idx)
		rest = rest[end+1:]
	}
	return name, indexes, true
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func child(v reflect.Value, name string) (reflect.Value, bool) {
	v = indirect(v)
	if !v.IsValid() {
		return reflect.Value{}, false
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return reflect.Value{}, false
		}
		key := reflect.ValueOf(name).Convert(v.Type().Key())
		if found := v.MapIndex(key); found.IsValid() {
			return found, true
		}
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		for _, k := range keys {
			if strings.EqualFold(k.String(), name) {
				return v.MapIndex(k), true
			}
		}

	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			tag := strings.Split(f.Tag.Get("json"), ",")[0]
			if tag == "-" {
				continue
			}
			if tag == name || strings.EqualFold(f.Name, name) {
				return v.Field(i), true
			}
		}
	}
	return reflect.Value{}, false
}

func element(v reflect.Value, idx int) (reflect.Value, bool) {
	v = indirect(v)
	if !v.IsValid() {
		return reflect.Value{}, false
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return reflect.Value{}, false
	}
	if idx >= v.Len() {
		return reflect.Value{}, false
	}
	return v.Index(idx), true
}
