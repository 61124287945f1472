package cache

import (
	"net/url"
	"sort"
	"strings"

	"github.com/oapi-codegen/runtime"
)

// Key identifies one cached read: the API path plus its query parameters.
// The zero Key means "do not fetch".
type Key struct {
	Resource string
	Params   map[string]string
}

func NewKey(resource string) Key {
	return Key{Resource: resource}
}

// With returns a copy of k carrying name=value. Empty values are skipped so
// optional filters do not split the cache.
func (k Key) With(name, value string) Key {
	if value == "" {
		return k
	}

	params := make(map[string]string, len(k.Params)+1)
	for n, v := range k.Params {
		params[n] = v
	}
	params[name] = value

	return Key{Resource: k.Resource, Params: params}
}

func (k Key) IsZero() bool {
	return k.Resource == ""
}

// String is the canonical cache id: the resource followed by the parameters
// in name order, each serialized in form style.
func (k Key) String() string {
	if k.IsZero() || len(k.Params) == 0 {
		return k.Resource
	}

	names := make([]string, 0, len(k.Params))
	for name := range k.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		styled, err := runtime.StyleParamWithLocation("form", true, name, runtime.ParamLocationQuery, k.Params[name])
		if err != nil {
			styled = url.QueryEscape(name) + "=" + url.QueryEscape(k.Params[name])
		}

		parts = append(parts, styled)
	}

	return k.Resource + "?" + strings.Join(parts, "&")
}

func (k Key) Query() url.Values {
	if len(k.Params) == 0 {
		return nil
	}

	q := make(url.Values, len(k.Params))
	for name, value := range k.Params {
		q.Set(name, value)
	}

	return q
}

// Under reports whether k lives at prefix or below it, by path segment:
// "/attendances/employee/7" is under "/attendances/employee" but
// "/employees-archive" is not under "/employees".
func (k Key) Under(prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	return k.Resource == prefix || strings.HasPrefix(k.Resource, prefix+"/")
}
