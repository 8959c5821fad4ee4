package binder

import (
	"fmt"
	"net/http"
	"reflect"
)

// Path fills string fields tagged `path:"name"` with extract(r, name).
// chi.URLParam fits as extract.
func Path(extract func(r *http.Request, name string) string) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
			return fmt.Errorf("%w: target must be a pointer to struct", ErrFailedToParsePath)
		}
		rv = rv.Elem()
		rt := rv.Type()

		bound := false
		for i := range rt.NumField() {
			f := rt.Field(i)
			name, ok := f.Tag.Lookup("path")
			if !ok || name == "-" || !f.IsExported() {
				continue
			}
			if f.Type.Kind() != reflect.String {
				return fmt.Errorf("%w: field %s must be a string", ErrFailedToParsePath, f.Name)
			}
			rv.Field(i).SetString(extract(r, name))
			bound = true
		}
		if !bound {
			return ErrBinderNotApplicable
		}
		return nil
	}
}
