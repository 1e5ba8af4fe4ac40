package protodef_test

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"botrelay/internal/protodef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

const sampleProto = `syntax = "proto3";
package sample;

enum Color {
  COLOR_UNSPECIFIED = 0;
  RED = 1;
}

message Inner {
  string label = 1;
}

message Sample {
  int64 big_count = 1;
  uint64 unsigned_count = 2;
  Color color = 3;
  bytes blob = 4;
  double ratio = 5;
  map<string, int32> scores = 6;
  oneof choice {
    string text_value = 7;
    Inner inner_value = 8;
  }
  optional string nickname = 9;
  repeated string tags = 10;
  Inner inner = 11;
  bool enabled = 12;
}
`

func loadSample(t *testing.T, opts protodef.Options) (*protodef.Catalog, protoreflect.MessageDescriptor) {
	t.Helper()
	path := writeProto(t, t.TempDir(), "sample.proto", sampleProto)
	catalog, err := protodef.Load(context.Background(), []string{path}, opts)
	require.NoError(t, err)
	md, err := catalog.Message("sample.Sample")
	require.NoError(t, err)
	return catalog, md
}

func field(m protoreflect.Message, name string) protoreflect.FieldDescriptor {
	return m.Descriptor().Fields().ByName(protoreflect.Name(name))
}

func populatedSample(catalog *protodef.Catalog, md protoreflect.MessageDescriptor) *dynamicpb.Message {
	m := catalog.NewMessage(md)
	m.Set(field(m, "big_count"), protoreflect.ValueOfInt64(9007199254740993))
	m.Set(field(m, "unsigned_count"), protoreflect.ValueOfUint64(7))
	m.Set(field(m, "color"), protoreflect.ValueOfEnum(1))
	m.Set(field(m, "blob"), protoreflect.ValueOfBytes([]byte("hi")))
	m.Set(field(m, "ratio"), protoreflect.ValueOfFloat64(0.5))
	m.Mutable(field(m, "scores")).Map().Set(protoreflect.ValueOfString("a").MapKey(), protoreflect.ValueOfInt32(1))
	m.Set(field(m, "text_value"), protoreflect.ValueOfString("x"))
	m.Mutable(field(m, "tags")).List().Append(protoreflect.ValueOfString("t"))
	m.Set(field(m, "enabled"), protoreflect.ValueOfBool(true))

	inner := dynamicpb.NewMessage(field(m, "inner").Message())
	inner.Set(inner.Descriptor().Fields().ByName("label"), protoreflect.ValueOfString("in"))
	m.Set(field(m, "inner"), protoreflect.ValueOfMessage(inner))
	return m
}

func TestRender_AllOptions(t *testing.T) {
	catalog, md := loadSample(t, protodef.DefaultOptions())

	out, err := catalog.Render(populatedSample(catalog, md))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"big_count": "9007199254740993",
		"unsigned_count": "7",
		"color": "RED",
		"blob": "aGk=",
		"ratio": 0.5,
		"scores": {"a": 1},
		"text_value": "x",
		"tags": ["t"],
		"inner": {"label": "in"},
		"enabled": true,
		"choice": "text_value"
	}`, string(out))
	assert.True(t, strings.HasPrefix(string(out), `{"big_count":`), "fields keep declaration order")
}

func TestRender_DefaultsForEmptyMessage(t *testing.T) {
	catalog, md := loadSample(t, protodef.DefaultOptions())

	out, err := catalog.Render(catalog.NewMessage(md))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"big_count": "0",
		"unsigned_count": "0",
		"color": "COLOR_UNSPECIFIED",
		"blob": "",
		"ratio": 0,
		"scores": {},
		"tags": [],
		"inner": null,
		"enabled": false
	}`, string(out))
}

func TestRender_OptionalSetToEmpty(t *testing.T) {
	catalog, md := loadSample(t, protodef.DefaultOptions())

	m := catalog.NewMessage(md)
	m.Set(field(m, "nickname"), protoreflect.ValueOfString(""))

	out, err := catalog.Render(m)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Contains(t, got, "nickname")
	assert.Equal(t, "", got["nickname"])
	assert.NotContains(t, got, "text_value")
	assert.NotContains(t, got, "choice")
}

func TestRender_OptionsDisabled(t *testing.T) {
	catalog, md := loadSample(t, protodef.Options{})

	out, err := catalog.Render(populatedSample(catalog, md))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"bigCount": 9007199254740993,
		"unsignedCount": 7,
		"color": 1,
		"blob": "aGk=",
		"ratio": 0.5,
		"scores": {"a": 1},
		"textValue": "x",
		"tags": ["t"],
		"inner": {"label": "in"},
		"enabled": true
	}`, string(out))

	empty, err := catalog.Render(catalog.NewMessage(md))
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(empty))
}

func TestRender_UnknownEnumFallsBackToNumber(t *testing.T) {
	catalog, md := loadSample(t, protodef.DefaultOptions())
	m := catalog.NewMessage(md)
	m.Set(field(m, "color"), protoreflect.ValueOfEnum(42))

	out, err := catalog.Render(m)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"color":42`)
}

func TestRender_NonFiniteFloats(t *testing.T) {
	catalog, md := loadSample(t, protodef.Options{})
	m := catalog.NewMessage(md)
	m.Set(field(m, "ratio"), protoreflect.ValueOfFloat64(math.Inf(1)))

	out, err := catalog.Render(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ratio": "Infinity"}`, string(out))
}

func TestRenderField(t *testing.T) {
	catalog, err := protodef.Load(context.Background(), repoProtos, protodef.DefaultOptions())
	require.NoError(t, err)
	md, err := catalog.Message("bot.ListAllResponse")
	require.NoError(t, err)

	resp := catalog.NewMessage(md)
	empty, err := catalog.RenderField(resp, "data")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(empty))

	botMD, err := catalog.Message("bot.Bot")
	require.NoError(t, err)
	bot := catalog.NewMessage(botMD)
	bot.Set(botMD.Fields().ByName("id"), protoreflect.ValueOfString("b-1"))
	bot.Set(botMD.Fields().ByName("status"), protoreflect.ValueOfEnum(1))
	resp.Mutable(md.Fields().ByName("data")).List().Append(protoreflect.ValueOfMessage(bot))

	out, err := catalog.RenderField(resp, "data")
	require.NoError(t, err)
	assert.JSONEq(t, `[{
		"id": "b-1",
		"name": "",
		"status": "RUNNING",
		"engine": "NODE",
		"started_at": "0"
	}]`, string(out))

	_, err = catalog.RenderField(resp, "missing")
	assert.Error(t, err)
}

func TestRenderField_UnsetWithoutDefaults(t *testing.T) {
	catalog, err := protodef.Load(context.Background(), repoProtos, protodef.Options{KeepCase: true})
	require.NoError(t, err)
	md, err := catalog.Message("bot.ListAllResponse")
	require.NoError(t, err)

	out, err := catalog.RenderField(catalog.NewMessage(md), "data")
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}
