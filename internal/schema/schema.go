package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var ErrValidation = errors.New("validation failed")

type FieldError struct {
	Field   string
	Message string
}

// ValidationError reports a payload that does not match its schema.
type ValidationError struct {
	Resource string
	Fields   []FieldError
	Err      error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}

	return fmt.Sprintf("invalid %s: %s", e.Resource, strings.Join(msgs, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ToMap returns field -> message, handy for form errors.
func (e *ValidationError) ToMap() map[string]string {
	result := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		result[f.Field] = f.Message
	}

	return result
}

type extraSetter interface {
	SetExtra(map[string]json.RawMessage)
}

var (
	validate   = newValidator()
	knownNames sync.Map // reflect.Type -> map[string]struct{}
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)

	return v
}

// Schema decodes and validates one resource shape. PassThrough keeps unknown
// response fields in the value's Extra map instead of dropping them.
type Schema[T any] struct {
	Resource    string
	PassThrough bool
}

func (s Schema[T]) Decode(raw json.RawMessage) (T, error) {
	var v T

	if isNull(raw) {
		return v, s.fail(FieldError{Field: s.Resource, Message: "is missing"}, nil)
	}

	if err := json.Unmarshal(raw, &v); err != nil {
		return v, s.fail(decodeFieldError(err), err)
	}

	if err := s.Validate(v); err != nil {
		return v, err
	}

	if s.PassThrough {
		if setter, ok := any(&v).(extraSetter); ok {
			extra, err := unknownFields(raw, reflect.TypeOf(v))
			if err != nil {
				return v, s.fail(FieldError{Field: s.Resource, Message: "must be a JSON object"}, err)
			}

			setter.SetExtra(extra)
		}
	}

	return v, nil
}

func (s Schema[T]) DecodeList(raw json.RawMessage) ([]T, error) {
	if isNull(raw) {
		return []T{}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, s.fail(FieldError{Field: s.Resource, Message: "must be a list"}, err)
	}

	result := make([]T, 0, len(items))
	for i, item := range items {
		v, err := s.Decode(item)
		if err != nil {
			var vErr *ValidationError
			if errors.As(err, &vErr) {
				for j := range vErr.Fields {
					vErr.Fields[j].Field = fmt.Sprintf("[%d].%s", i, vErr.Fields[j].Field)
				}
			}

			return nil, err
		}

		result = append(result, v)
	}

	return result, nil
}

func (s Schema[T]) Validate(v T) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return s.fail(FieldError{Field: s.Resource, Message: err.Error()}, err)
	}

	vErr := &ValidationError{Resource: s.Resource, Err: err}
	for _, fe := range fieldErrs {
		vErr.Fields = append(vErr.Fields, FieldError{Field: fe.Field(), Message: describe(fe)})
	}

	return vErr
}

func (s Schema[T]) fail(fe FieldError, err error) *ValidationError {
	return &ValidationError{Resource: s.Resource, Fields: []FieldError{fe}, Err: err}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_with", "required_without":
		return "is required"
	case "oneof":
		return "must be one of [" + fe.Param() + "]"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	default:
		return "failed on " + fe.Tag()
	}
}

func decodeFieldError(err error) FieldError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return FieldError{Field: typeErr.Field, Message: "must be " + typeErr.Type.String()}
	}

	return FieldError{Field: "body", Message: err.Error()}
}

func unknownFields(raw json.RawMessage, t reflect.Type) (map[string]json.RawMessage, error) {
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	known := fieldNames(t)
	for name := range fields {
		if _, ok := known[name]; ok {
			delete(fields, name)
		}
	}

	if len(fields) == 0 {
		return nil, nil
	}

	return fields, nil
}

func fieldNames(t reflect.Type) map[string]struct{} {
	if cached, ok := knownNames.Load(t); ok {
		return cached.(map[string]struct{})
	}

	names := make(map[string]struct{}, t.NumField())
	for i := range t.NumField() {
		if name := jsonName(t.Field(i)); name != "" {
			names[name] = struct{}{}
		}
	}

	knownNames.Store(t, names)

	return names
}

func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}

	if name == "" {
		return fld.Name
	}

	return name
}

func isNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}
