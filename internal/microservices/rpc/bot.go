package rpc

import (
	"strconv"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// Bot is the typed view of a bot.Bot record.
type Bot struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	Engine       string `json:"engine"`
	AbsolutePath string `json:"absolute_path,omitempty"`
	StartedAt    int64  `json:"started_at"`
}

func decodeBot(m protoreflect.Message) Bot {
	fields := m.Descriptor().Fields()
	get := func(name string) (protoreflect.FieldDescriptor, protoreflect.Value, bool) {
		fd := fields.ByName(protoreflect.Name(name))
		if fd == nil {
			return nil, protoreflect.Value{}, false
		}
		return fd, m.Get(fd), true
	}

	var bot Bot
	if fd, v, ok := get("id"); ok && fd.Kind() == protoreflect.StringKind {
		bot.ID = v.String()
	}
	if fd, v, ok := get("name"); ok && fd.Kind() == protoreflect.StringKind {
		bot.Name = v.String()
	}
	if fd, v, ok := get("status"); ok && fd.Kind() == protoreflect.EnumKind {
		bot.Status = enumName(fd, v.Enum())
	}
	if fd, v, ok := get("engine"); ok && fd.Kind() == protoreflect.EnumKind {
		bot.Engine = enumName(fd, v.Enum())
	}
	if fd, v, ok := get("absolute_path"); ok && fd.Kind() == protoreflect.StringKind {
		bot.AbsolutePath = v.String()
	}
	if fd, v, ok := get("started_at"); ok && fd.Kind() == protoreflect.Int64Kind {
		bot.StartedAt = v.Int()
	}
	return bot
}

func enumName(fd protoreflect.FieldDescriptor, n protoreflect.EnumNumber) string {
	if ev := fd.Enum().Values().ByNumber(n); ev != nil {
		return string(ev.Name())
	}
	return strconv.Itoa(int(n))
}
