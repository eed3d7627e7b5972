package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// pathID извлекает положительный целочисленный параметр пути.
func pathID(r *http.Request, name string) (int, error) {
	var id int
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &id,
		runtime.BindStyledParameterOptions{
			ParamLocation: runtime.ParamLocationPath,
			Explode:       false,
			Required:      true,
		})
	if err != nil {
		return 0, fmt.Errorf("invalid format for parameter %s: %w", name, err)
	}
	if id < 1 {
		return 0, fmt.Errorf("parameter %s must be positive", name)
	}
	return id, nil
}

// queryInt извлекает необязательный целочисленный query-параметр.
func queryInt(r *http.Request, name string) (*int, error) {
	var v *int
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &v); err != nil {
		return nil, fmt.Errorf("invalid format for parameter %s: %w", name, err)
	}
	return v, nil
}

// pageParams извлекает limit и offset со значениями по умолчанию.
func pageParams(r *http.Request) (limit, offset int, err error) {
	l, err := queryInt(r, "limit")
	if err != nil {
		return 0, 0, err
	}
	o, err := queryInt(r, "offset")
	if err != nil {
		return 0, 0, err
	}
	limit, offset = paginationDefaults(l, o)
	return limit, offset, nil
}

// narrowInt приводит необязательное целое к более узкому типу-перечислению
// и отклоняет значения, которые в нём не помещаются.
func narrowInt[T ~int16 | ~int32](name string, v *int) (*T, error) {
	if v == nil {
		return nil, nil
	}
	out := T(*v)
	if int(out) != *v {
		return nil, fmt.Errorf("parameter %s is out of range: %d", name, *v)
	}
	return &out, nil
}
