package protodef

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Catalog is the in-memory description of the loaded services and messages.
// It is read-only once Load returns.
type Catalog struct {
	opts     Options
	files    []protoreflect.FileDescriptor
	services map[protoreflect.FullName]protoreflect.ServiceDescriptor
	messages map[protoreflect.FullName]protoreflect.MessageDescriptor
}

func newCatalog(opts Options) *Catalog {
	return &Catalog{
		opts:     opts,
		services: make(map[protoreflect.FullName]protoreflect.ServiceDescriptor),
		messages: make(map[protoreflect.FullName]protoreflect.MessageDescriptor),
	}
}

func (c *Catalog) add(fd protoreflect.FileDescriptor) {
	c.files = append(c.files, fd)

	services := fd.Services()
	for i := 0; i < services.Len(); i++ {
		sd := services.Get(i)
		c.services[sd.FullName()] = sd
	}
	c.addMessages(fd.Messages())
}

func (c *Catalog) addMessages(msgs protoreflect.MessageDescriptors) {
	for i := 0; i < msgs.Len(); i++ {
		md := msgs.Get(i)
		if md.IsMapEntry() {
			continue
		}
		c.messages[md.FullName()] = md
		c.addMessages(md.Messages())
	}
}

// Options returns the rendering options the catalog was loaded with.
func (c *Catalog) Options() Options {
	return c.opts
}

// Files returns the compiled definition files in load order.
func (c *Catalog) Files() []protoreflect.FileDescriptor {
	return append([]protoreflect.FileDescriptor(nil), c.files...)
}

// Services returns the fully-qualified names of every loaded service, sorted.
func (c *Catalog) Services() []string {
	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}

// Service looks up a service by its fully-qualified name, e.g. "bot.Application".
func (c *Catalog) Service(name string) (protoreflect.ServiceDescriptor, error) {
	sd, ok := c.services[protoreflect.FullName(name)]
	if !ok {
		return nil, fmt.Errorf("service %q not found in loaded definitions", name)
	}
	return sd, nil
}

// Method looks up one method of a service.
func (c *Catalog) Method(service, method string) (protoreflect.MethodDescriptor, error) {
	sd, err := c.Service(service)
	if err != nil {
		return nil, err
	}
	md := sd.Methods().ByName(protoreflect.Name(method))
	if md == nil {
		return nil, fmt.Errorf("method %q not found on service %q", method, service)
	}
	return md, nil
}

// Message looks up a message by its fully-qualified name, e.g. "bot.Bot".
func (c *Catalog) Message(name string) (protoreflect.MessageDescriptor, error) {
	md, ok := c.messages[protoreflect.FullName(name)]
	if !ok {
		return nil, fmt.Errorf("message %q not found in loaded definitions", name)
	}
	return md, nil
}

// NewMessage allocates an empty dynamic message of the given shape.
func (c *Catalog) NewMessage(md protoreflect.MessageDescriptor) *dynamicpb.Message {
	return dynamicpb.NewMessage(md)
}

// FullMethodName returns the gRPC path of a method, "/package.Service/Method".
func FullMethodName(md protoreflect.MethodDescriptor) string {
	return fmt.Sprintf("/%s/%s", md.Parent().FullName(), md.Name())
}
