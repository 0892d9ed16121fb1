package config

import (
	"reflect"
	"sync"
)

// EnvBinding ties an environment variable to the koanf path it overrides.
type EnvBinding struct {
	Var    string
	Path   string
	Secret bool
}

var sensitiveType = reflect.TypeOf(SensitiveString(""))

// EnvBindings lists every `env` tag on Config in field order.
var EnvBindings = sync.OnceValue(func() []EnvBinding {
	var out []EnvBinding
	walkEnvTags(reflect.TypeOf(Config{}), "", &out)
	return out
})

func walkEnvTags(t reflect.Type, parent string, out *[]EnvBinding) {
	for field := range fieldsOf(t) {
		key := field.Tag.Get("koanf")
		if key == "" || key == "-" {
			continue
		}
		if parent != "" {
			key = parent + "." + key
		}
		if name := field.Tag.Get("env"); name != "" && name != "-" {
			*out = append(*out, EnvBinding{
				Var:    name,
				Path:   key,
				Secret: field.Type == sensitiveType || field.Tag.Get("sensitive") == "true",
			})
		}
		if field.Type.Kind() == reflect.Struct && field.Type.PkgPath() != "time" {
			walkEnvTags(field.Type, key, out)
		}
	}
}

func fieldsOf(t reflect.Type) func(func(reflect.StructField) bool) {
	return func(yield func(reflect.StructField) bool) {
		for i := range t.NumField() {
			if f := t.Field(i); f.IsExported() && !yield(f) {
				return
			}
		}
	}
}

// EnvToPath maps each bound variable to its config path.
func EnvToPath() map[string]string {
	bindings := EnvBindings()
	out := make(map[string]string, len(bindings))
	for _, b := range bindings {
		out[b.Var] = b.Path
	}
	return out
}

func bindingFor(path string) (EnvBinding, bool) {
	for _, b := range EnvBindings() {
		if b.Path == path {
			return b, true
		}
	}
	return EnvBinding{}, false
}

// EnvVarFor returns the variable that sets path, or "".
func EnvVarFor(path string) string {
	b, _ := bindingFor(path)
	return b.Var
}

// IsSecretPath reports whether path holds a credential.
func IsSecretPath(path string) bool {
	b, _ := bindingFor(path)
	return b.Secret
}
