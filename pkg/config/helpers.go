package config

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/glorpus-work/modsync/pkg/errors"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Keys returns the settings keys accepted by SetValue and GetValue, sorted.
func Keys() []string {
	t := reflect.TypeOf(Settings{})
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		keys = append(keys, settingKey(t.Field(i)))
	}
	sort.Strings(keys)
	return keys
}

func settingKey(f reflect.StructField) string {
	return strings.Split(f.Tag.Get("koanf"), ",")[0]
}

func (c *Config) setting(key string) (reflect.Value, bool) {
	v := reflect.ValueOf(&c.Settings).Elem()
	for i := 0; i < v.NumField(); i++ {
		if settingKey(v.Type().Field(i)) == key {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// SetValue sets a setting by key, parsing value for the field's type.
// The result is not validated; call Validate before saving.
func (c *Config) SetValue(key, value string) error {
	field, ok := c.setting(key)
	if !ok {
		return errors.Wrapf(errors.ErrInvalidInput, "unknown configuration key: %s", key)
	}
	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(value)
		if err != nil {
			return errors.Wrapf(errors.ErrInvalidInput, "invalid duration for %s: %s", key, value)
		}
		field.SetInt(int64(d))
	case field.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Wrapf(errors.ErrInvalidInput, "invalid boolean value for %s: %s", key, value)
		}
		field.SetBool(b)
	case field.Kind() == reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(errors.ErrInvalidInput, "invalid integer value for %s: %s", key, value)
		}
		field.SetInt(int64(n))
	default:
		field.SetString(value)
	}
	return nil
}

// GetValue returns a setting by key as a string.
func (c *Config) GetValue(key string) (string, error) {
	field, ok := c.setting(key)
	if !ok {
		return "", errors.Wrapf(errors.ErrInvalidInput, "unknown configuration key: %s", key)
	}
	return formatValue(field), nil
}

// ToMap returns every setting as a string, keyed like SetValue.
func (c *Config) ToMap() map[string]string {
	result := make(map[string]string)
	v := reflect.ValueOf(c.Settings)
	for i := 0; i < v.NumField(); i++ {
		result[settingKey(v.Type().Field(i))] = formatValue(v.Field(i))
	}
	return result
}

func formatValue(v reflect.Value) string {
	if v.Type() == durationType {
		return time.Duration(v.Int()).String()
	}
	switch v.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Int:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.String:
		return v.String()
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}
