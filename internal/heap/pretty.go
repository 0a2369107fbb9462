package heap

import (
	"fmt"
	"strings"
)

var primitiveNames = map[byte]string{
	'B': "byte",
	'C': "char",
	'D': "double",
	'F': "float",
	'I': "int",
	'J': "long",
	'S': "short",
	'Z': "boolean",
	'V': "void",
}

// PrettyDescriptor converts a type descriptor to its source form, e.g.
// "[Ljava/lang/String;" to "java.lang.String[]". Unknown input is returned as is.
func PrettyDescriptor(desc string) string {
	dims := 0
	for dims < len(desc) && desc[dims] == '[' {
		dims++
	}
	elem := desc[dims:]
	var name string
	switch {
	case len(elem) == 1 && primitiveNames[elem[0]] != "":
		name = primitiveNames[elem[0]]
	case len(elem) > 2 && elem[0] == 'L' && elem[len(elem)-1] == ';':
		name = strings.ReplaceAll(elem[1:len(elem)-1], "/", ".")
	default:
		return desc
	}
	return name + strings.Repeat("[]", dims)
}

// SplitSignature splits a method signature such as "(JI)V" into its
// parameter and return descriptors.
func SplitSignature(sig string) (params []string, ret string, err error) {
	if !strings.HasPrefix(sig, "(") {
		return nil, "", fmt.Errorf("signature %q does not start with '('", sig)
	}
	i := 1
	for i < len(sig) && sig[i] != ')' {
		start := i
		for i < len(sig) && sig[i] == '[' {
			i++
		}
		if i < len(sig) && sig[i] == 'L' {
			end := strings.IndexByte(sig[i:], ';')
			if end < 0 {
				return nil, "", fmt.Errorf("signature %q has an unterminated class type", sig)
			}
			i += end
		}
		i++
		if i > len(sig) {
			return nil, "", fmt.Errorf("signature %q is truncated", sig)
		}
		params = append(params, sig[start:i])
	}
	if i >= len(sig) {
		return nil, "", fmt.Errorf("signature %q has no return type", sig)
	}
	return params, sig[i+1:], nil
}

func (h *Heap) declaringPrefix(class uint32) (string, error) {
	if class == 0 {
		return "", nil
	}
	desc, err := h.Object(class).AsClass().Descriptor()
	if err != nil {
		return "", err
	}
	return PrettyDescriptor(desc) + ".", nil
}

// PrettyMethod renders m as "void java.lang.Object.wait(long, int)".
func (h *Heap) PrettyMethod(m *Method) (string, error) {
	name, err := h.DecodeString(m.Name)
	if err != nil {
		return "", err
	}
	sig, err := h.DecodeString(m.Signature)
	if err != nil {
		return "", err
	}
	params, ret, err := SplitSignature(sig)
	if err != nil {
		return "", err
	}
	prefix, err := h.declaringPrefix(m.DeclaringClass)
	if err != nil {
		return "", err
	}
	pretty := make([]string, len(params))
	for i, p := range params {
		pretty[i] = PrettyDescriptor(p)
	}
	return fmt.Sprintf("%s %s%s(%s)", PrettyDescriptor(ret), prefix, name, strings.Join(pretty, ", ")), nil
}

// PrettyField renders f as "int java.lang.String.count".
func (h *Heap) PrettyField(f *Field) (string, error) {
	name, err := h.DecodeString(f.Name)
	if err != nil {
		return "", err
	}
	typ, err := h.DecodeString(f.Type)
	if err != nil {
		return "", err
	}
	prefix, err := h.declaringPrefix(f.DeclaringClass)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s%s", PrettyDescriptor(typ), prefix, name), nil
}
