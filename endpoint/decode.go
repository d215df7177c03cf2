package endpoint

import (
	"encoding"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
)

// defaultFieldLimit applies to tagged fields without a maxLength tag.
const defaultFieldLimit = 16 * 1024

// Unmarshal fills the struct dst points to (directly, or through one more
// pointer which is allocated when nil) from the request.
//
// Fields opt in with struct tags:
//   - `body:""` reads the whole body into a string or []byte field. At most
//     one field may carry it.
//   - `header:"Name"` reads a header; an empty name means the field name.
//     Slice fields receive every value, scalars the first. Fields
//     implementing encoding.TextUnmarshaler decode themselves.
//   - `maxLength:"n"` bounds each value in bytes. Without it the bound is
//     16KB; `maxLength:"0"` removes it.
//
// A value over its bound or a header that does not parse is 400; a body cut
// short by BodyLimit is 413; a malformed destination is 500. Fields without
// a tag, and fields whose source is absent, are not touched.
func Unmarshal(r *http.Request, dst any) error {
	if r == nil {
		return decodeError(http.StatusInternalServerError, "nil request")
	}
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return decodeError(http.StatusInternalServerError, "dst must be a non-nil pointer")
	}
	v = v.Elem()
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return decodeError(http.StatusInternalServerError, "dst must point to a struct, got %s", v.Kind())
	}

	fields, err := tagged(v.Type())
	if err != nil {
		return err
	}
	for _, f := range fields {
		if err := f.decode(r, v.Field(f.index)); err != nil {
			return err
		}
	}
	return nil
}

// field is a struct field bound to a request source.
type field struct {
	index  int
	name   string
	body   bool
	header string
	limit  int
}

func tagged(t reflect.Type) ([]field, error) {
	var fields []field
	bodyField := ""
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		_, body := sf.Tag.Lookup("body")
		header, hasHeader := sf.Tag.Lookup("header")
		switch {
		case !body && !hasHeader:
			continue
		case body && hasHeader:
			return nil, decodeError(http.StatusInternalServerError, "field %s: both body and header tags", sf.Name)
		case body && bodyField != "":
			return nil, decodeError(http.StatusInternalServerError, "multiple body fields: %s and %s", bodyField, sf.Name)
		case body:
			bodyField = sf.Name
		}

		limit, err := maxLength(sf.Tag)
		if err != nil {
			return nil, decodeError(http.StatusInternalServerError, "field %s: %v", sf.Name, err)
		}
		header = strings.TrimSpace(header)
		if hasHeader && header == "" {
			header = sf.Name
		}
		fields = append(fields, field{index: i, name: sf.Name, body: body, header: header, limit: limit})
	}
	return fields, nil
}

func maxLength(tag reflect.StructTag) (int, error) {
	s, ok := tag.Lookup("maxLength")
	if !ok {
		return defaultFieldLimit, nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("maxLength: invalid integer %q", s)
	}
	if n < 0 {
		return 0, errors.New("maxLength: must be >= 0")
	}
	return n, nil
}

func (f field) tooLong(s int) bool {
	return f.limit > 0 && s > f.limit
}

func (f field) decode(r *http.Request, v reflect.Value) error {
	if f.body {
		return f.decodeBody(r, v)
	}

	// Index the map directly so a present but empty header still counts.
	values := r.Header[http.CanonicalHeaderKey(f.header)]
	if len(values) == 0 {
		return nil
	}
	for _, s := range values {
		if f.tooLong(len(s)) {
			return decodeError(http.StatusBadRequest, "header %q -> %s: value exceeds max length %d", f.header, f.name, f.limit)
		}
	}
	if err := assignAll(v, values); err != nil {
		return decodeError(http.StatusBadRequest, "header %q -> %s: %v", f.header, f.name, err)
	}
	return nil
}

func (f field) decodeBody(r *http.Request, v reflect.Value) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	b, err := io.ReadAll(r.Body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return decodeError(http.StatusRequestEntityTooLarge, "body exceeds %d bytes", mbe.Limit)
		}
		return decodeError(http.StatusBadRequest, "body: %v", err)
	}
	if f.tooLong(len(b)) {
		return decodeError(http.StatusBadRequest, "body -> %s: value exceeds max length %d", f.name, f.limit)
	}

	switch {
	case v.Kind() == reflect.String:
		v.SetString(string(b))
	case v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8:
		v.SetBytes(b)
	default:
		return decodeError(http.StatusInternalServerError, "body -> %s: unsupported type %s", f.name, v.Type())
	}
	return nil
}

func decodeError(status int, format string, args ...any) error {
	return newEndpointError(status, "", fmt.Errorf("endpoint: decode: "+format, args...))
}

// assignAll stores header values in v: all of them for a non-byte slice,
// the first otherwise.
func assignAll(v reflect.Value, values []string) error {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Slice || v.Type().Elem().Kind() == reflect.Uint8 {
		return assign(v, values[0])
	}
	out := reflect.MakeSlice(v.Type(), len(values), len(values))
	for i, s := range values {
		if err := assign(out.Index(i), s); err != nil {
			return err
		}
	}
	v.Set(out)
	return nil
}

func assign(v reflect.Value, s string) error {
	if v.CanAddr() {
		if u, ok := v.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return u.UnmarshalText([]byte(s))
		}
	}

	switch k := v.Kind(); {
	case k == reflect.String:
		v.SetString(s)
	case k == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8:
		v.SetBytes([]byte(s))
	case k == reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case k >= reflect.Int && k <= reflect.Int64:
		n, err := strconv.ParseInt(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)
	case k >= reflect.Uint && k <= reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(n)
	default:
		return fmt.Errorf("unsupported kind %s", k)
	}
	return nil
}
