package fontclass

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// DescriptorFileName is the per-directory family descriptor in protobuf text format.
const DescriptorFileName = "METADATA.pb"

// FamilyDescriptor is the subset of a family descriptor the resolver consumes.
type FamilyDescriptor struct {
	Name    string
	Subsets []string
	Fonts   []DescriptorFont
}

// DescriptorFont is one font entry of a FamilyDescriptor.
type DescriptorFont struct {
	Name     string
	Style    string
	Weight   int
	Filename string
}

// Lookup returns the entry declared for filename (base name comparison).
func (d *FamilyDescriptor) Lookup(filename string) (DescriptorFont, bool) {
	base := filepath.Base(filename)
	for _, f := range d.Fonts {
		if f.Filename == base {
			return f, true
		}
	}
	return DescriptorFont{}, false
}

// familySchema is a hand-built descriptor for the fields of the Google Fonts
// FamilyProto/FontProto messages that matter here. Unknown fields are discarded
// while parsing, so full METADATA.pb files load fine.
var familySchema = sync.OnceValues(func() (protoreflect.MessageDescriptor, error) {
	str := descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum()
	i32 := descriptorpb.FieldDescriptorProto_TYPE_INT32.Enum()
	msg := descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
	opt := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
	rep := descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()

	field := func(name string, num int32, label *descriptorpb.FieldDescriptorProto_Label, typ *descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
		return &descriptorpb.FieldDescriptorProto{
			Name:   proto.String(name),
			Number: proto.Int32(num),
			Label:  label,
			Type:   typ,
		}
	}
	fonts := field("fonts", 6, rep, msg)
	fonts.TypeName = proto.String(".google.fonts.FontProto")

	fd := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("fontclass/fonts_public.proto"),
		Package: proto.String("google.fonts"),
		Syntax:  proto.String("proto2"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("FamilyProto"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("name", 1, opt, str),
					field("designer", 2, opt, str),
					field("license", 3, opt, str),
					field("category", 4, opt, str),
					field("date_added", 5, opt, str),
					fonts,
					field("aliases", 7, rep, str),
					field("subsets", 8, rep, str),
				},
			},
			{
				Name: proto.String("FontProto"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("name", 1, opt, str),
					field("style", 2, opt, str),
					field("weight", 3, opt, i32),
					field("filename", 4, opt, str),
					field("post_script_name", 5, opt, str),
					field("full_name", 6, opt, str),
					field("copyright", 7, opt, str),
				},
			},
		},
	}
	file, err := protodesc.NewFile(fd, new(protoregistry.Files))
	if err != nil {
		return nil, err
	}
	return file.Messages().ByName("FamilyProto"), nil
})

// ParseFamilyDescriptor decodes a family descriptor in protobuf text format.
func ParseFamilyDescriptor(data []byte) (*FamilyDescriptor, error) {
	md, err := familySchema()
	if err != nil {
		return nil, fmt.Errorf("fontclass: build descriptor schema: %w", err)
	}
	msg := dynamicpb.NewMessage(md)
	if err := (prototext.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("fontclass: parse family descriptor: %w", err)
	}

	fields := md.Fields()
	desc := &FamilyDescriptor{
		Name: msg.Get(fields.ByName("name")).String(),
	}
	subsets := msg.Get(fields.ByName("subsets")).List()
	for i := 0; i < subsets.Len(); i++ {
		desc.Subsets = append(desc.Subsets, subsets.Get(i).String())
	}

	fontsFD := fields.ByName("fonts")
	fontFields := fontsFD.Message().Fields()
	fonts := msg.Get(fontsFD).List()
	for i := 0; i < fonts.Len(); i++ {
		m := fonts.Get(i).Message()
		desc.Fonts = append(desc.Fonts, DescriptorFont{
			Name:     m.Get(fontFields.ByName("name")).String(),
			Style:    m.Get(fontFields.ByName("style")).String(),
			Weight:   int(m.Get(fontFields.ByName("weight")).Int()),
			Filename: m.Get(fontFields.ByName("filename")).String(),
		})
	}
	return desc, nil
}

// ReadFamilyDescriptor loads the descriptor file at path.
func ReadFamilyDescriptor(path string) (*FamilyDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseFamilyDescriptor(data)
}

// descriptorPath returns the descriptor path for a directory and whether it exists.
func descriptorPath(dir string) (string, bool) {
	p := filepath.Join(dir, DescriptorFileName)
	st, err := os.Stat(p)
	return p, err == nil && !st.IsDir()
}
