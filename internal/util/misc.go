package util

import (
	"crypto/rand"
	"encoding/hex"
	"reflect"

	"github.com/pkg/errors"
)

func ContainsString(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}

	return false
}

func GenerateRandomHexString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "failed to read random bytes")
	}

	return hex.EncodeToString(b), nil
}

func IntPtrToInt64Ptr(num *int) *int64 {
	if num == nil {
		return nil
	}

	res := int64(*num)
	return &res
}

// IsStructInitialized checks that every exported pointer, interface, map or func field of s is set.
// Fields tagged `wire:"-"` are initialized outside of wire and fields tagged `server:"optional"`
// may legitimately stay nil (e.g. the redis client when no component uses redis).
func IsStructInitialized(s interface{}) error {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return errors.New("struct is nil")
		}
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return errors.Errorf("expected struct, got %s", v.Kind())
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if field.Tag.Get("wire") == "-" || field.Tag.Get("server") == "optional" {
			continue
		}

		switch v.Field(i).Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice:
			if v.Field(i).IsNil() {
				return errors.Errorf("field %s is not initialized", field.Name)
			}
		}
	}

	return nil
}
