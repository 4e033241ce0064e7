package security

import (
	"fmt"
	"strings"
)

// Permissions are the user access flags of an encrypted document's P entry
type Permissions struct {
	Print     bool // bit 3
	Modify    bool // bit 4
	Copy      bool // bit 5
	Annotate  bool // bit 6: add or modify annotations, create form fields
	FillForms bool // bit 9
	Extract   bool // bit 10
	Assemble  bool // bit 11
}

// NewPermissions decodes a P value
func NewPermissions(p int32) Permissions {
	return Permissions{
		Print:     p&0x04 != 0,
		Modify:    p&0x08 != 0,
		Copy:      p&0x10 != 0,
		Annotate:  p&0x20 != 0,
		FillForms: p&0x200 != 0,
		Extract:   p&0x400 != 0,
		Assemble:  p&0x800 != 0,
	}
}

// NewFullPermissions grants everything; unencrypted documents carry no restrictions
func NewFullPermissions() Permissions {
	return NewPermissions(-1)
}

// CanAddFormFields reports whether new interactive fields may be created
func (p Permissions) CanAddFormFields() bool {
	return p.Annotate
}

// CanExtractText reports whether page text may be read for field suggestions
func (p Permissions) CanExtractText() bool {
	return p.Copy || p.Extract
}

// Denied lists the operations the document forbids
func (p Permissions) Denied() []string {
	var denied []string
	for _, op := range []struct {
		name string
		ok   bool
	}{
		{"print", p.Print},
		{"modify", p.Modify},
		{"copy", p.Copy},
		{"annotate", p.Annotate},
		{"fill_forms", p.FillForms},
		{"extract", p.Extract},
		{"assemble", p.Assemble},
	} {
		if !op.ok {
			denied = append(denied, op.name)
		}
	}
	return denied
}

func (p Permissions) String() string {
	denied := p.Denied()
	if len(denied) == 0 {
		return "unrestricted"
	}
	return fmt.Sprintf("denied: %s", strings.Join(denied, ", "))
}
