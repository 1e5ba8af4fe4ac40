package protodef_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"botrelay/internal/protodef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var repoProtos = []string{"../../proto/broadcast.proto", "../../proto/bot.proto"}

func writeProto(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_RepositoryDefinitions(t *testing.T) {
	catalog, err := protodef.Load(context.Background(), repoProtos, protodef.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"bot.Application", "broadcast.BroadcastService"}, catalog.Services())
	assert.Len(t, catalog.Files(), 2)
	assert.Equal(t, protodef.DefaultOptions(), catalog.Options())

	subscribe, err := catalog.Method("broadcast.BroadcastService", "Subscribe")
	require.NoError(t, err)
	assert.True(t, subscribe.IsStreamingServer())
	assert.False(t, subscribe.IsStreamingClient())
	assert.Equal(t, "broadcast.Empty", string(subscribe.Input().FullName()))
	assert.Equal(t, "/broadcast.BroadcastService/Subscribe", protodef.FullMethodName(subscribe))

	listAll, err := catalog.Method("bot.Application", "ListAll")
	require.NoError(t, err)
	assert.False(t, listAll.IsStreamingServer())
	assert.Equal(t, "bot.ListAllResponse", string(listAll.Output().FullName()))

	bot, err := catalog.Message("bot.Bot")
	require.NoError(t, err)
	assert.NotNil(t, bot.Fields().ByName("status"))
}

func TestLoad_LookupErrors(t *testing.T) {
	catalog, err := protodef.Load(context.Background(), repoProtos, protodef.DefaultOptions())
	require.NoError(t, err)

	_, err = catalog.Service("bot.Missing")
	assert.ErrorContains(t, err, "bot.Missing")

	_, err = catalog.Method("bot.Application", "Restart")
	assert.ErrorContains(t, err, "Restart")

	_, err = catalog.Message("bot.Nope")
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := protodef.Load(context.Background(), []string{filepath.Join(t.TempDir(), "absent.proto")}, protodef.DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoad_NoFiles(t *testing.T) {
	_, err := protodef.Load(context.Background(), nil, protodef.DefaultOptions())
	assert.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeProto(t, t.TempDir(), "broken.proto", "syntax = \"proto3\";\nmessage {")

	_, err := protodef.Load(context.Background(), []string{path}, protodef.DefaultOptions())
	assert.ErrorContains(t, err, "compile definitions")
}

func TestLoad_ResolvesImportsAndWellKnownTypes(t *testing.T) {
	dir := t.TempDir()
	writeProto(t, dir, "common.proto", `syntax = "proto3";
package common;
message Meta { string owner = 1; }
`)
	path := writeProto(t, dir, "svc.proto", `syntax = "proto3";
package svc;
import "common.proto";
import "google/protobuf/empty.proto";
service Pinger { rpc Ping(google.protobuf.Empty) returns (common.Meta); }
`)

	catalog, err := protodef.Load(context.Background(), []string{path}, protodef.DefaultOptions())
	require.NoError(t, err)

	ping, err := catalog.Method("svc.Pinger", "Ping")
	require.NoError(t, err)
	assert.Equal(t, "google.protobuf.Empty", string(ping.Input().FullName()))
	assert.Equal(t, "common.Meta", string(ping.Output().FullName()))
}

func TestLoad_DuplicateBaseNames(t *testing.T) {
	a := writeProto(t, t.TempDir(), "same.proto", "syntax = \"proto3\";\npackage a;\n")
	b := writeProto(t, t.TempDir(), "same.proto", "syntax = \"proto3\";\npackage b;\n")

	_, err := protodef.Load(context.Background(), []string{a, b}, protodef.DefaultOptions())
	assert.ErrorContains(t, err, "share the file name")
}

func TestLoad_RequestedFileWinsOverSameNameInEarlierDir(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	a := writeProto(t, first, "first.proto", "syntax = \"proto3\";\npackage first;\nmessage A {}\n")
	writeProto(t, first, "second.proto", "syntax = \"proto3\";\npackage shadow;\nmessage Shadow {}\n")
	b := writeProto(t, second, "second.proto", "syntax = \"proto3\";\npackage second;\nmessage B {}\n")

	catalog, err := protodef.Load(context.Background(), []string{a, b}, protodef.DefaultOptions())
	require.NoError(t, err)

	_, err = catalog.Message("second.B")
	assert.NoError(t, err)
	_, err = catalog.Message("shadow.Shadow")
	assert.Error(t, err)
}
