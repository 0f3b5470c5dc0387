package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
)

// EnvOverride records one environment variable applied to a config.
type EnvOverride struct {
	Var string
	// Field is the dotted YAML path of the overridden field, e.g. "log.level".
	Field string
}

// LoadFromEnv sets the fields of cfg tagged `env:"NAME"` from the
// environment, descending into nested structs. Unset and empty variables
// leave a field untouched. The applied overrides are returned in field order.
func LoadFromEnv(cfg any) ([]EnvOverride, error) {
	v := reflect.ValueOf(cfg)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, nil
	}

	var applied []EnvOverride
	if err := applyEnv(v, "", &applied); err != nil {
		return applied, err
	}
	return applied, nil
}

func applyEnv(v reflect.Value, prefix string, applied *[]EnvOverride) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		path := joinPath(prefix, yamlKey(sf))
		fv := v.Field(i)

		if fv.Kind() == reflect.Struct {
			if err := applyEnv(fv, path, applied); err != nil {
				return err
			}
			continue
		}

		name := sf.Tag.Get("env")
		if name == "" {
			continue
		}
		raw := os.Getenv(name)
		if raw == "" {
			continue
		}
		if err := setFromString(fv, raw); err != nil {
			return fmt.Errorf("%s (%s): %w", name, path, err)
		}
		*applied = append(*applied, EnvOverride{Var: name, Field: path})
	}
	return nil
}

// setFromString parses raw into fv according to the field's kind. String
// slices accept comma or path-list separated values.
func setFromString(fv reflect.Value, raw string) error {
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)

	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetUint(n)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetFloat(f)

	case reflect.Slice:
		if fv.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice of %s", fv.Type().Elem())
		}
		parts := strings.FieldsFunc(raw, func(r rune) bool {
			return r == ',' || r == os.PathListSeparator
		})
		items := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		fv.Set(reflect.ValueOf(items))

	default:
		return fmt.Errorf("unsupported kind %s", fv.Kind())
	}
	return nil
}

// yamlKey returns the key a field is stored under in the config file.
func yamlKey(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("yaml"), ",")
	if name == "" || name == "-" {
		return strings.ToLower(sf.Name)
	}
	return name
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
