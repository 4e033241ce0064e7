package document

import (
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	pdferrors "github.com/dragon1672/gemini-pdf-form-maker/internal/pdf/errors"
)

// Field flags (PDF 32000-1, 12.7.3.1 and 12.7.4.2)
const (
	FlagReadOnly      = 1 << 0
	FlagRequired      = 1 << 1
	FlagNoExport      = 1 << 2
	FlagMultiline     = 1 << 12
	FlagNoToggleToOff = 1 << 14
	FlagRadio         = 1 << 15
	FlagPushbutton    = 1 << 16
)

// annotFlagPrint makes widgets visible when the document is printed
const annotFlagPrint = 1 << 2

const (
	helveticaResource = "Helv"
	dingbatsResource  = "ZaDb"
	offState          = "Off"
	defaultOnState    = "Yes"
)

// FieldSpec describes one form field to attach to a page
type FieldSpec struct {
	Name     string
	Tooltip  string
	Rect     Rect
	Required bool
}

func (s FieldSpec) flags() int {
	if s.Required {
		return FlagRequired
	}
	return 0
}

// AddTextField attaches a single-line text field with empty content
func (d *Document) AddTextField(pageIndex int, fs FieldSpec) error {
	pageDict, pageRef, _, err := d.pageDict(pageIndex)
	if err != nil {
		return err
	}
	if err := d.ensureAcroForm(); err != nil {
		return err
	}

	field := d.widget(fs.Rect, *pageRef)
	field["FT"] = types.Name("Tx")
	field["T"] = encodeText(fs.Name)
	field["V"] = types.StringLiteral("")
	field["DA"] = types.StringLiteral("/" + helveticaResource + " 0 Tf 0 g")
	field["Ff"] = types.Integer(fs.flags())
	if fs.Tooltip != "" {
		field["TU"] = encodeText(fs.Tooltip)
	}

	ref, err := d.ctx.IndRefForNewObject(field)
	if err != nil {
		return fmt.Errorf("failed to register text field %q: %w", fs.Name, err)
	}
	return d.attach(pageDict, *ref, *ref)
}

// AddCheckBox attaches a boolean toggle field, initially off
func (d *Document) AddCheckBox(pageIndex int, fs FieldSpec) error {
	pageDict, pageRef, _, err := d.pageDict(pageIndex)
	if err != nil {
		return err
	}
	if err := d.ensureAcroForm(); err != nil {
		return err
	}

	ap, err := d.toggleAppearance(fs.Rect, defaultOnState, "4")
	if err != nil {
		return err
	}

	field := d.widget(fs.Rect, *pageRef)
	field["FT"] = types.Name("Btn")
	field["T"] = encodeText(fs.Name)
	field["V"] = types.Name(offState)
	field["AS"] = types.Name(offState)
	field["DA"] = types.StringLiteral("/" + dingbatsResource + " 0 Tf 0 g")
	field["Ff"] = types.Integer(fs.flags())
	field["MK"] = types.Dict{
		"BC": types.Array{types.Float(0), types.Float(0), types.Float(0)},
		"CA": types.StringLiteral("4"),
	}
	field["AP"] = ap
	if fs.Tooltip != "" {
		field["TU"] = encodeText(fs.Tooltip)
	}

	ref, err := d.ctx.IndRefForNewObject(field)
	if err != nil {
		return fmt.Errorf("failed to register checkbox %q: %w", fs.Name, err)
	}
	return d.attach(pageDict, *ref, *ref)
}

// AddRadioGroup attaches a radio group with a single option whose on-state
// is onState. The group is the terminal field; the option is its only widget.
func (d *Document) AddRadioGroup(pageIndex int, fs FieldSpec, onState string) error {
	pageDict, pageRef, _, err := d.pageDict(pageIndex)
	if err != nil {
		return err
	}
	if err := d.ensureAcroForm(); err != nil {
		return err
	}
	onState = stateName(onState)

	group := types.Dict{
		"FT": types.Name("Btn"),
		"T":  encodeText(fs.Name),
		"Ff": types.Integer(FlagRadio | FlagNoToggleToOff),
		"V":  types.Name(offState),
	}
	if fs.Tooltip != "" {
		group["TU"] = encodeText(fs.Tooltip)
	}
	groupRef, err := d.ctx.IndRefForNewObject(group)
	if err != nil {
		return fmt.Errorf("failed to register radio group %q: %w", fs.Name, err)
	}

	ap, err := d.toggleAppearance(fs.Rect, onState, "l")
	if err != nil {
		return err
	}

	kid := d.widget(fs.Rect, *pageRef)
	kid["Parent"] = *groupRef
	kid["AS"] = types.Name(offState)
	kid["DA"] = types.StringLiteral("/" + dingbatsResource + " 0 Tf 0 g")
	kid["MK"] = types.Dict{
		"BC": types.Array{types.Float(0), types.Float(0), types.Float(0)},
		"CA": types.StringLiteral("l"),
	}
	kid["AP"] = ap

	kidRef, err := d.ctx.IndRefForNewObject(kid)
	if err != nil {
		return fmt.Errorf("failed to register radio option for %q: %w", fs.Name, err)
	}
	group["Kids"] = types.Array{*kidRef}

	return d.attach(pageDict, *groupRef, *kidRef)
}

// widget returns the annotation half of a field dictionary
func (d *Document) widget(r Rect, pageRef types.IndirectRef) types.Dict {
	return types.Dict{
		"Type":    types.Name("Annot"),
		"Subtype": types.Name("Widget"),
		"Rect":    r.Array(),
		"P":       pageRef,
		"F":       types.Integer(annotFlagPrint),
	}
}

// attach registers a terminal field with the AcroForm and its widget with the page
func (d *Document) attach(pageDict types.Dict, fieldRef, widgetRef types.IndirectRef) error {
	annots := types.Array{}
	if obj, found := pageDict.Find("Annots"); found && obj != nil {
		existing, err := d.ctx.DereferenceArray(obj)
		if err != nil {
			return pdferrors.WrapError(pdferrors.ErrorTypeMalformedSourceDocument, "failed to dereference page Annots", err)
		}
		annots = append(annots, existing...)
	}
	pageDict["Annots"] = append(annots, widgetRef)
	d.newFields = append(d.newFields, fieldRef)
	return nil
}

// ensureAcroForm finds or creates the catalog's interactive form dictionary
// and makes sure it carries the fonts the new widgets reference.
func (d *Document) ensureAcroForm() error {
	if d.acroForm != nil {
		return nil
	}

	catalog, err := d.ctx.Catalog()
	if err != nil {
		return pdferrors.WrapError(pdferrors.ErrorTypeMalformedSourceDocument, "failed to get catalog", err)
	}

	var acroForm types.Dict
	if obj, found := catalog.Find("AcroForm"); found && obj != nil {
		acroForm, err = d.ctx.DereferenceDict(obj)
		if err != nil {
			return pdferrors.WrapError(pdferrors.ErrorTypeMalformedSourceDocument, "failed to dereference AcroForm", err)
		}
	}
	if acroForm == nil {
		acroForm = types.Dict{"Fields": types.Array{}}
		ref, err := d.ctx.IndRefForNewObject(acroForm)
		if err != nil {
			return fmt.Errorf("failed to register AcroForm: %w", err)
		}
		catalog["AcroForm"] = *ref
	}

	acroForm["NeedAppearances"] = types.Boolean(true)
	if _, found := acroForm.Find("DA"); !found {
		acroForm["DA"] = types.StringLiteral("/" + helveticaResource + " 0 Tf 0 g")
	}
	if err := d.ensureFormFonts(acroForm); err != nil {
		return err
	}

	d.acroForm = acroForm
	return nil
}

func (d *Document) ensureFormFonts(acroForm types.Dict) error {
	var dr types.Dict
	if obj, found := acroForm.Find("DR"); found && obj != nil {
		var err error
		if dr, err = d.ctx.DereferenceDict(obj); err != nil {
			return pdferrors.WrapError(pdferrors.ErrorTypeMalformedSourceDocument, "failed to dereference DR", err)
		}
	}
	if dr == nil {
		dr = types.Dict{}
		acroForm["DR"] = dr
	}

	var fonts types.Dict
	if obj, found := dr.Find("Font"); found && obj != nil {
		var err error
		if fonts, err = d.ctx.DereferenceDict(obj); err != nil {
			return pdferrors.WrapError(pdferrors.ErrorTypeMalformedSourceDocument, "failed to dereference DR fonts", err)
		}
	}
	if fonts == nil {
		fonts = types.Dict{}
		dr["Font"] = fonts
	}

	for res, base := range map[string]string{helveticaResource: "Helvetica", dingbatsResource: "ZapfDingbats"} {
		if _, found := fonts.Find(res); found {
			continue
		}
		ref, err := d.ctx.IndRefForNewObject(standardFont(base))
		if err != nil {
			return fmt.Errorf("failed to register font %s: %w", base, err)
		}
		fonts[res] = *ref
	}
	return nil
}

func standardFont(base string) types.Dict {
	font := types.Dict{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("Type1"),
		"BaseFont": types.Name(base),
	}
	if base == "Helvetica" {
		font["Encoding"] = types.Name("WinAnsiEncoding")
	}
	return font
}

// toggleAppearance builds the normal appearance dictionary for a checkbox or
// radio widget: an on-state drawing glyph in ZapfDingbats and a bordered off-state.
func (d *Document) toggleAppearance(r Rect, onState, glyph string) (types.Dict, error) {
	w, h := r.Width, r.Height
	size := h * 0.8
	if w < h {
		size = w * 0.8
	}
	border := fmt.Sprintf("0 G 1 w 0.5 0.5 %.2f %.2f re S\n", w-1, h-1)
	on := border + fmt.Sprintf("q BT 0 g /%s %.2f Tf %.2f %.2f Td (%s) Tj ET Q\n",
		dingbatsResource, size, (w-size*0.75)/2, (h-size*0.7)/2, glyph)

	onRef, err := d.appearanceStream(w, h, on)
	if err != nil {
		return nil, err
	}
	offRef, err := d.appearanceStream(w, h, border)
	if err != nil {
		return nil, err
	}
	return types.Dict{
		"N": types.Dict{
			onState:  *onRef,
			offState: *offRef,
		},
	}, nil
}

func (d *Document) appearanceStream(w, h float64, content string) (*types.IndirectRef, error) {
	sd, err := d.ctx.NewStreamDictForBuf([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("failed to create appearance stream: %w", err)
	}
	sd.Dict["Type"] = types.Name("XObject")
	sd.Dict["Subtype"] = types.Name("Form")
	sd.Dict["BBox"] = Rect{Width: w, Height: h}.Array()
	sd.Dict["Resources"] = types.Dict{
		"Font": types.Dict{dingbatsResource: standardFont("ZapfDingbats")},
	}
	if err := sd.Encode(); err != nil {
		return nil, fmt.Errorf("failed to encode appearance stream: %w", err)
	}
	ref, err := d.ctx.IndRefForNewObject(*sd)
	if err != nil {
		return nil, fmt.Errorf("failed to register appearance stream: %w", err)
	}
	return ref, nil
}

// stateName turns a user-facing option label into an appearance state name
func stateName(s string) string {
	s = strings.Map(func(r rune) rune {
		if r <= ' ' || r > '~' || strings.ContainsRune("()<>[]{}/%#", r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
	if s == "" || s == offState {
		return defaultOnState
	}
	return s
}

// encodeText encodes a PDF text string: an escaped literal for printable
// ASCII, UTF-16BE with a byte order mark otherwise.
func encodeText(s string) types.Object {
	ascii := true
	for _, r := range s {
		if r < ' ' || r > '~' {
			ascii = false
			break
		}
	}
	if ascii {
		r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
		return types.StringLiteral(r.Replace(s))
	}

	units := utf16.Encode([]rune(s))
	buf := make([]byte, 0, 2+2*len(units))
	buf = append(buf, 0xFE, 0xFF)
	for _, u := range units {
		buf = append(buf, byte(u>>8), byte(u))
	}
	return types.HexLiteral(strings.ToUpper(hex.EncodeToString(buf)))
}
