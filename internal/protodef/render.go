package protodef

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// member and object keep declaration order in the rendered JSON.
type member struct {
	key   string
	value any
}

type object []member

func (o object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(m.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(m.value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", m.key, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Render converts a message to JSON according to the catalog options.
func (c *Catalog) Render(m protoreflect.Message) (json.RawMessage, error) {
	return json.Marshal(c.messageValue(m))
}

// RenderField converts a single top-level field of a message to JSON.
// An unpopulated field renders as null unless Defaults is set.
func (c *Catalog) RenderField(m protoreflect.Message, name string) (json.RawMessage, error) {
	fd := m.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil {
		return nil, fmt.Errorf("message %s has no field %q", m.Descriptor().FullName(), name)
	}
	if !m.Has(fd) && !c.opts.Defaults {
		return json.RawMessage("null"), nil
	}
	return json.Marshal(c.fieldValue(fd, m))
}

func (c *Catalog) messageValue(m protoreflect.Message) object {
	md := m.Descriptor()
	fields := md.Fields()
	out := make(object, 0, fields.Len())

	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if !m.Has(fd) {
			if !c.opts.Defaults {
				continue
			}
			// oneof members, proto3 optional included, are never defaulted
			if fd.ContainingOneof() != nil {
				continue
			}
		}
		out = append(out, member{key: c.fieldKey(fd), value: c.fieldValue(fd, m)})
	}

	if c.opts.Oneofs {
		oneofs := md.Oneofs()
		for i := 0; i < oneofs.Len(); i++ {
			od := oneofs.Get(i)
			if od.IsSynthetic() {
				continue
			}
			if set := m.WhichOneof(od); set != nil {
				out = append(out, member{key: string(od.Name()), value: c.fieldKey(set)})
			}
		}
	}
	return out
}

func (c *Catalog) fieldKey(fd protoreflect.FieldDescriptor) string {
	if c.opts.KeepCase {
		return string(fd.Name())
	}
	return fd.JSONName()
}

func (c *Catalog) fieldValue(fd protoreflect.FieldDescriptor, m protoreflect.Message) any {
	has := m.Has(fd)

	switch {
	case fd.IsList():
		if !has {
			return []any{}
		}
		list := m.Get(fd).List()
		out := make([]any, list.Len())
		for i := range out {
			out[i] = c.singular(fd, list.Get(i))
		}
		return out

	case fd.IsMap():
		if !has {
			return object{}
		}
		entries := m.Get(fd).Map()
		out := make(object, 0, entries.Len())
		entries.Range(func(k protoreflect.MapKey, v protoreflect.Value) bool {
			out = append(out, member{key: k.String(), value: c.singular(fd.MapValue(), v)})
			return true
		})
		sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
		return out

	case fd.Message() != nil:
		if !has {
			return nil
		}
		return c.messageValue(m.Get(fd).Message())

	default:
		if !has {
			return c.singular(fd, fd.Default())
		}
		return c.singular(fd, m.Get(fd))
	}
}

func (c *Catalog) singular(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return v.Bool()

	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return v.Int()

	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return v.Uint()

	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		if c.opts.LongsAsString {
			return strconv.FormatInt(v.Int(), 10)
		}
		return v.Int()

	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		if c.opts.LongsAsString {
			return strconv.FormatUint(v.Uint(), 10)
		}
		return v.Uint()

	case protoreflect.FloatKind:
		return floatValue(v.Float(), 32)

	case protoreflect.DoubleKind:
		return floatValue(v.Float(), 64)

	case protoreflect.StringKind:
		return v.String()

	case protoreflect.BytesKind:
		return base64.StdEncoding.EncodeToString(v.Bytes())

	case protoreflect.EnumKind:
		n := v.Enum()
		if c.opts.EnumsAsString {
			if ev := fd.Enum().Values().ByNumber(n); ev != nil {
				return string(ev.Name())
			}
		}
		return int32(n)

	case protoreflect.MessageKind, protoreflect.GroupKind:
		return c.messageValue(v.Message())
	}
	return nil
}

// floatValue renders non-finite values as strings, which JSON cannot carry as numbers.
func floatValue(f float64, bitSize int) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return json.Number(strconv.FormatFloat(f, 'g', -1, bitSize))
}
