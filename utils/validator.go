package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// Minimal tag validator. Supports:
// - required (non-empty string, non-zero number)
// - nameok (letters, numbers, space, hyphen, underscore, 1-100 chars)
// - oneof=a b c
// - min=N / max=N (string length or numeric value)

var reNameOK = regexp.MustCompile(`^[A-Za-z0-9 _\-']{1,100}$`)

// ValidateStruct inspects struct tags `validate:"..."` and returns the first error encountered.
func ValidateStruct(s interface{}) error {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return errors.New("ValidateStruct expects a struct or pointer to struct")
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("validate")
		if tag == "" {
			continue
		}
		fv := v.Field(i)
		for _, rule := range strings.Split(tag, ",") {
			if err := checkRule(field.Name, strings.TrimSpace(rule), fv); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkRule(name, rule string, fv reflect.Value) error {
	key, arg, _ := strings.Cut(rule, "=")
	switch key {
	case "required":
		if fv.IsZero() {
			return errors.New(name + " is required")
		}
	case "nameok":
		if s := stringOf(fv); s != "" && !reNameOK.MatchString(s) {
			return errors.New(name + " contains invalid characters")
		}
	case "oneof":
		s := stringOf(fv)
		if s == "" {
			return nil
		}
		for _, opt := range strings.Fields(arg) {
			if s == opt {
				return nil
			}
		}
		return fmt.Errorf("%s must be one of [%s]", name, arg)
	case "min", "max":
		limit, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("bad %s rule on %s", key, name)
		}
		n, ok := measure(fv)
		if !ok {
			return nil
		}
		if key == "min" && n < limit {
			return fmt.Errorf("%s must be at least %d", name, limit)
		}
		if key == "max" && n > limit {
			return fmt.Errorf("%s must be at most %d", name, limit)
		}
	}
	return nil
}

func stringOf(fv reflect.Value) string {
	if fv.Kind() == reflect.String {
		return fv.String()
	}
	return ""
}

func measure(fv reflect.Value) (int64, bool) {
	switch fv.Kind() {
	case reflect.String:
		return int64(len(fv.String())), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(fv.Uint()), true
	}
	return 0, false
}
