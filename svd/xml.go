package svd

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

type xmlDevice struct {
	XMLName                 xml.Name `xml:"device"`
	SchemaVersion           string   `xml:"schemaVersion,attr,omitempty"`
	XS                      string   `xml:"xmlns:xs,attr,omitempty"`
	SchemaLocation          string   `xml:"xs:noNamespaceSchemaLocation,attr,omitempty"`
	Vendor                  string   `xml:"vendor,omitempty"`
	VendorID                string   `xml:"vendorID,omitempty"`
	Name                    string   `xml:"name"`
	Series                  string   `xml:"series,omitempty"`
	Version                 string   `xml:"version,omitempty"`
	Description             string   `xml:"description,omitempty"`
	LicenseText             string   `xml:"licenseText,omitempty"`
	CPU                     *xmlCPU  `xml:"cpu,omitempty"`
	HeaderSystemFilename    string   `xml:"headerSystemFilename,omitempty"`
	HeaderDefinitionsPrefix string   `xml:"headerDefinitionsPrefix,omitempty"`
	AddressUnitBits         string   `xml:"addressUnitBits,omitempty"`
	Width                   string   `xml:"width,omitempty"`
	xmlRegProps
	Peripherals []*xmlPeripheral `xml:"peripherals>peripheral"`
}

type xmlCPU struct {
	Name                string `xml:"name,omitempty"`
	Revision            string `xml:"revision,omitempty"`
	Endian              string `xml:"endian,omitempty"`
	MPUPresent          string `xml:"mpuPresent,omitempty"`
	FPUPresent          string `xml:"fpuPresent,omitempty"`
	FPUDP               string `xml:"fpuDP,omitempty"`
	ICachePresent       string `xml:"icachePresent,omitempty"`
	DCachePresent       string `xml:"dcachePresent,omitempty"`
	VTORPresent         string `xml:"vtorPresent,omitempty"`
	NVICPrioBits        string `xml:"nvicPrioBits,omitempty"`
	VendorSystickConfig string `xml:"vendorSystickConfig,omitempty"`
	DeviceNumInterrupts string `xml:"deviceNumInterrupts,omitempty"`
}

type xmlRegProps struct {
	Size       string `xml:"size,omitempty"`
	Access     string `xml:"access,omitempty"`
	Protection string `xml:"protection,omitempty"`
	ResetValue string `xml:"resetValue,omitempty"`
	ResetMask  string `xml:"resetMask,omitempty"`
}

type xmlDim struct {
	Dim          string `xml:"dim,omitempty"`
	DimIncrement string `xml:"dimIncrement,omitempty"`
	DimIndex     string `xml:"dimIndex,omitempty"`
	DimName      string `xml:"dimName,omitempty"`
}

type xmlPeripheral struct {
	DerivedFrom string `xml:"derivedFrom,attr,omitempty"`
	xmlDim
	Name                string `xml:"name"`
	Version             string `xml:"version,omitempty"`
	Description         string `xml:"description,omitempty"`
	DisplayName         string `xml:"displayName,omitempty"`
	AlternatePeripheral string `xml:"alternatePeripheral,omitempty"`
	GroupName           string `xml:"groupName,omitempty"`
	PrependToName       string `xml:"prependToName,omitempty"`
	AppendToName        string `xml:"appendToName,omitempty"`
	HeaderStructName    string `xml:"headerStructName,omitempty"`
	BaseAddress         string `xml:"baseAddress"`
	xmlRegProps
	AddressBlocks []xmlAddressBlock `xml:"addressBlock,omitempty"`
	Interrupts    []xmlInterrupt    `xml:"interrupt,omitempty"`
	Registers     *xmlRegisters     `xml:"registers,omitempty"`
}

type xmlAddressBlock struct {
	Offset     string `xml:"offset"`
	Size       string `xml:"size"`
	Usage      string `xml:"usage,omitempty"`
	Protection string `xml:"protection,omitempty"`
}

type xmlInterrupt struct {
	Name        string `xml:"name"`
	Description string `xml:"description,omitempty"`
	Value       string `xml:"value"`
}

type xmlRegisters struct {
	Items []xmlRC `xml:",any"`
}

// xmlRC holds one <register> or <cluster> element and keeps their
// relative order.
type xmlRC struct {
	Register *xmlRegister
	Cluster  *xmlCluster
}

func (rc *xmlRC) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	switch start.Name.Local {
	case "register":
		rc.Register = &xmlRegister{}
		return d.DecodeElement(rc.Register, &start)
	case "cluster":
		rc.Cluster = &xmlCluster{}
		return d.DecodeElement(rc.Cluster, &start)
	}
	return d.Skip()
}

func (rc xmlRC) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	switch {
	case rc.Register != nil:
		return e.EncodeElement(rc.Register, xml.StartElement{Name: xml.Name{Local: "register"}})
	case rc.Cluster != nil:
		return e.EncodeElement(rc.Cluster, xml.StartElement{Name: xml.Name{Local: "cluster"}})
	}
	return nil
}

type xmlCluster struct {
	DerivedFrom string `xml:"derivedFrom,attr,omitempty"`
	xmlDim
	Name             string `xml:"name"`
	Description      string `xml:"description,omitempty"`
	AlternateCluster string `xml:"alternateCluster,omitempty"`
	HeaderStructName string `xml:"headerStructName,omitempty"`
	AddressOffset    string `xml:"addressOffset"`
	xmlRegProps
	Children []xmlRC `xml:",any"`
}

type xmlRegister struct {
	DerivedFrom string `xml:"derivedFrom,attr,omitempty"`
	xmlDim
	Name              string `xml:"name"`
	DisplayName       string `xml:"displayName,omitempty"`
	Description       string `xml:"description,omitempty"`
	AlternateGroup    string `xml:"alternateGroup,omitempty"`
	AlternateRegister string `xml:"alternateRegister,omitempty"`
	AddressOffset     string `xml:"addressOffset"`
	xmlRegProps
	DataType            string              `xml:"dataType,omitempty"`
	ModifiedWriteValues string              `xml:"modifiedWriteValues,omitempty"`
	WriteConstraint     *xmlWriteConstraint `xml:"writeConstraint,omitempty"`
	ReadAction          string              `xml:"readAction,omitempty"`
	Fields              *xmlFields          `xml:"fields,omitempty"`
}

type xmlFields struct {
	Fields []*xmlField `xml:"field"`
}

type xmlWriteConstraint struct {
	WriteAsRead         string    `xml:"writeAsRead,omitempty"`
	UseEnumeratedValues string    `xml:"useEnumeratedValues,omitempty"`
	Range               *xmlRange `xml:"range,omitempty"`
}

type xmlRange struct {
	Minimum string `xml:"minimum"`
	Maximum string `xml:"maximum"`
}

type xmlField struct {
	DerivedFrom string `xml:"derivedFrom,attr,omitempty"`
	xmlDim
	Name                string                 `xml:"name"`
	Description         string                 `xml:"description,omitempty"`
	BitOffset           string                 `xml:"bitOffset,omitempty"`
	BitWidth            string                 `xml:"bitWidth,omitempty"`
	LSB                 string                 `xml:"lsb,omitempty"`
	MSB                 string                 `xml:"msb,omitempty"`
	BitRange            string                 `xml:"bitRange,omitempty"`
	Access              string                 `xml:"access,omitempty"`
	ModifiedWriteValues string                 `xml:"modifiedWriteValues,omitempty"`
	WriteConstraint     *xmlWriteConstraint    `xml:"writeConstraint,omitempty"`
	ReadAction          string                 `xml:"readAction,omitempty"`
	EnumeratedValues    []*xmlEnumeratedValues `xml:"enumeratedValues,omitempty"`
}

type xmlEnumeratedValues struct {
	DerivedFrom    string                `xml:"derivedFrom,attr,omitempty"`
	Name           string                `xml:"name,omitempty"`
	HeaderEnumName string                `xml:"headerEnumName,omitempty"`
	Usage          string                `xml:"usage,omitempty"`
	Values         []*xmlEnumeratedValue `xml:"enumeratedValue"`
}

type xmlEnumeratedValue struct {
	Name        string `xml:"name"`
	Description string `xml:"description,omitempty"`
	Value       string `xml:"value,omitempty"`
	IsDefault   string `xml:"isDefault,omitempty"`
}

// Parse reads an SVD document.
func Parse(r io.Reader) (*Device, error) {
	xd := &xmlDevice{}
	if err := xml.NewDecoder(r).Decode(xd); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return xd.device()
}

// Encode writes dev as an SVD document.
func Encode(w io.Writer, dev *Device) error {
	xd := deviceXML(dev)
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(xd); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// numParser accumulates the first conversion error so that decoding a
// struct reads as a flat list of assignments.
type numParser struct {
	err  error
	path string
}

func (p *numParser) fail(what, s string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s: %s %q: %v", ErrParse, p.path, what, s, err)
	}
}

func (p *numParser) u64(what, s string) uint64 {
	if s == "" {
		return 0
	}
	v, err := ParseNumber(s)
	if err != nil {
		p.fail(what, s, err)
	}
	return v
}

func (p *numParser) u32(what, s string) uint32 {
	return uint32(p.u64(what, s))
}

func (p *numParser) u64p(what, s string) *uint64 {
	if s == "" {
		return nil
	}
	v := p.u64(what, s)
	return &v
}

func (p *numParser) u32p(what, s string) *uint32 {
	if s == "" {
		return nil
	}
	v := p.u32(what, s)
	return &v
}

func (p *numParser) boolp(what, s string) *bool {
	switch strings.TrimSpace(s) {
	case "":
		return nil
	case "true", "1":
		v := true
		return &v
	case "false", "0":
		v := false
		return &v
	}
	p.fail(what, s, fmt.Errorf("not a boolean"))
	return nil
}

func (p *numParser) access(s string) Access {
	if s == "" {
		return AccessUnset
	}
	a, err := ParseAccess(s)
	if err != nil {
		p.fail("access", s, err)
	}
	return a
}

func (p *numParser) mwv(s string) ModifiedWriteValues {
	if s == "" {
		return MWVUnset
	}
	m, err := ParseModifiedWriteValues(s)
	if err != nil {
		p.fail("modifiedWriteValues", s, err)
	}
	return m
}

func (p *numParser) readAction(s string) ReadAction {
	if s == "" {
		return ReadActionUnset
	}
	r, err := ParseReadAction(s)
	if err != nil {
		p.fail("readAction", s, err)
	}
	return r
}

func (p *numParser) regProps(x xmlRegProps) RegisterProperties {
	return RegisterProperties{
		Size:       p.u32p("size", x.Size),
		Access:     p.access(x.Access),
		Protection: x.Protection,
		ResetValue: p.u64p("resetValue", x.ResetValue),
		ResetMask:  p.u64p("resetMask", x.ResetMask),
	}
}

func (p *numParser) dim(x xmlDim) *DimElement {
	if x.Dim == "" {
		return nil
	}
	d := &DimElement{
		Dim:          p.u32("dim", x.Dim),
		DimIncrement: p.u32("dimIncrement", x.DimIncrement),
		DimName:      x.DimName,
	}
	if x.DimIndex != "" {
		idx, err := ParseDimIndex(x.DimIndex)
		if err != nil {
			p.fail("dimIndex", x.DimIndex, err)
		}
		d.DimIndex = idx
	}
	return d
}

func (p *numParser) writeConstraint(x *xmlWriteConstraint) *WriteConstraint {
	if x == nil {
		return nil
	}
	switch {
	case x.Range != nil:
		return &WriteConstraint{
			Kind: WriteRange,
			Min:  p.u64("minimum", x.Range.Minimum),
			Max:  p.u64("maximum", x.Range.Maximum),
		}
	case x.UseEnumeratedValues == "true":
		return &WriteConstraint{Kind: UseEnumeratedValues}
	case x.WriteAsRead == "true":
		return &WriteConstraint{Kind: WriteAsRead}
	}
	return nil
}

func (xd *xmlDevice) device() (*Device, error) {
	p := &numParser{path: xd.Name}
	dev := &Device{
		Name:                    xd.Name,
		Vendor:                  xd.Vendor,
		VendorID:                xd.VendorID,
		Series:                  xd.Series,
		Version:                 xd.Version,
		Description:             xd.Description,
		LicenseText:             xd.LicenseText,
		SchemaVersion:           xd.SchemaVersion,
		HeaderSystemFilename:    xd.HeaderSystemFilename,
		HeaderDefinitionsPrefix: xd.HeaderDefinitionsPrefix,
		AddressUnitBits:         p.u32p("addressUnitBits", xd.AddressUnitBits),
		Width:                   p.u32p("width", xd.Width),
		RegisterProperties:      p.regProps(xd.xmlRegProps),
	}
	if c := xd.CPU; c != nil {
		dev.CPU = &CPU{
			Name:                c.Name,
			Revision:            c.Revision,
			Endian:              c.Endian,
			MPUPresent:          p.boolp("mpuPresent", c.MPUPresent),
			FPUPresent:          p.boolp("fpuPresent", c.FPUPresent),
			FPUDP:               p.boolp("fpuDP", c.FPUDP),
			ICachePresent:       p.boolp("icachePresent", c.ICachePresent),
			DCachePresent:       p.boolp("dcachePresent", c.DCachePresent),
			VTORPresent:         p.boolp("vtorPresent", c.VTORPresent),
			NVICPrioBits:        p.u32p("nvicPrioBits", c.NVICPrioBits),
			VendorSystickConfig: p.boolp("vendorSystickConfig", c.VendorSystickConfig),
			DeviceNumInterrupts: p.u32p("deviceNumInterrupts", c.DeviceNumInterrupts),
		}
	}
	for _, xp := range xd.Peripherals {
		dev.Peripherals = append(dev.Peripherals, xp.peripheral(p))
	}
	if p.err != nil {
		return nil, p.err
	}
	return dev, nil
}

func (xp *xmlPeripheral) peripheral(p *numParser) *Peripheral {
	p.path = xp.Name
	per := &Peripheral{
		Name:                xp.Name,
		Version:             xp.Version,
		DerivedFrom:         xp.DerivedFrom,
		Description:         xp.Description,
		DisplayName:         xp.DisplayName,
		AlternatePeripheral: xp.AlternatePeripheral,
		GroupName:           xp.GroupName,
		PrependToName:       xp.PrependToName,
		AppendToName:        xp.AppendToName,
		HeaderStructName:    xp.HeaderStructName,
		BaseAddress:         p.u64("baseAddress", xp.BaseAddress),
		Dim:                 p.dim(xp.xmlDim),
		RegisterProperties:  p.regProps(xp.xmlRegProps),
	}
	for _, ab := range xp.AddressBlocks {
		per.AddressBlocks = append(per.AddressBlocks, AddressBlock{
			Offset:     p.u64("offset", ab.Offset),
			Size:       p.u64("size", ab.Size),
			Usage:      ab.Usage,
			Protection: ab.Protection,
		})
	}
	for _, irq := range xp.Interrupts {
		per.Interrupts = append(per.Interrupts, Interrupt{
			Name:        irq.Name,
			Description: irq.Description,
			Value:       p.u32("interrupt value", irq.Value),
		})
	}
	if xp.Registers != nil {
		per.Registers = p.rcs(xp.Registers.Items, xp.Name)
		if per.Registers == nil {
			per.Registers = []RegisterCluster{}
		}
	}
	return per
}

func (p *numParser) rcs(items []xmlRC, path string) []RegisterCluster {
	var res []RegisterCluster
	for _, item := range items {
		switch {
		case item.Register != nil:
			res = append(res, item.Register.register(p, path))
		case item.Cluster != nil:
			res = append(res, item.Cluster.cluster(p, path))
		}
	}
	return res
}

func (xc *xmlCluster) cluster(p *numParser, path string) *Cluster {
	path += "." + xc.Name
	p.path = path
	return &Cluster{
		Name:               xc.Name,
		Description:        xc.Description,
		DerivedFrom:        xc.DerivedFrom,
		AlternateCluster:   xc.AlternateCluster,
		HeaderStructName:   xc.HeaderStructName,
		AddressOffset:      p.u64("addressOffset", xc.AddressOffset),
		Dim:                p.dim(xc.xmlDim),
		RegisterProperties: p.regProps(xc.xmlRegProps),
		Children:           p.rcs(xc.Children, path),
	}
}

func (xr *xmlRegister) register(p *numParser, path string) *Register {
	path += "." + xr.Name
	p.path = path
	r := &Register{
		Name:                xr.Name,
		DisplayName:         xr.DisplayName,
		Description:         xr.Description,
		DerivedFrom:         xr.DerivedFrom,
		AlternateGroup:      xr.AlternateGroup,
		AlternateRegister:   xr.AlternateRegister,
		DataType:            xr.DataType,
		AddressOffset:       p.u64("addressOffset", xr.AddressOffset),
		Dim:                 p.dim(xr.xmlDim),
		RegisterProperties:  p.regProps(xr.xmlRegProps),
		ModifiedWriteValues: p.mwv(xr.ModifiedWriteValues),
		WriteConstraint:     p.writeConstraint(xr.WriteConstraint),
		ReadAction:          p.readAction(xr.ReadAction),
	}
	if xr.Fields != nil {
		r.Fields = []*Field{}
		for _, xf := range xr.Fields.Fields {
			r.Fields = append(r.Fields, xf.field(p, path))
		}
	}
	return r
}

func (xf *xmlField) field(p *numParser, path string) *Field {
	p.path = path + "." + xf.Name
	f := &Field{
		Name:                xf.Name,
		Description:         xf.Description,
		DerivedFrom:         xf.DerivedFrom,
		Access:              p.access(xf.Access),
		ModifiedWriteValues: p.mwv(xf.ModifiedWriteValues),
		WriteConstraint:     p.writeConstraint(xf.WriteConstraint),
		ReadAction:          p.readAction(xf.ReadAction),
		Dim:                 p.dim(xf.xmlDim),
	}
	switch {
	case xf.BitRange != "":
		r := strings.Trim(strings.TrimSpace(xf.BitRange), "[]")
		msb, lsb, ok := strings.Cut(r, ":")
		if !ok {
			p.fail("bitRange", xf.BitRange, fmt.Errorf("expected [msb:lsb]"))
			break
		}
		hi, lo := p.u32("bitRange", msb), p.u32("bitRange", lsb)
		f.BitOffset, f.BitWidth = lo, hi-lo+1
	case xf.LSB != "" || xf.MSB != "":
		lo, hi := p.u32("lsb", xf.LSB), p.u32("msb", xf.MSB)
		f.BitOffset, f.BitWidth = lo, hi-lo+1
	default:
		f.BitOffset = p.u32("bitOffset", xf.BitOffset)
		f.BitWidth = p.u32("bitWidth", xf.BitWidth)
	}
	for _, xev := range xf.EnumeratedValues {
		ev := &EnumeratedValues{
			Name:           xev.Name,
			HeaderEnumName: xev.HeaderEnumName,
			DerivedFrom:    xev.DerivedFrom,
		}
		if xev.Usage != "" {
			u, err := ParseUsage(xev.Usage)
			if err != nil {
				p.fail("usage", xev.Usage, err)
			}
			ev.Usage = u
		}
		for _, xv := range xev.Values {
			v := &EnumeratedValue{
				Name:        xv.Name,
				Description: xv.Description,
				IsDefault:   xv.IsDefault == "true",
			}
			if xv.Value != "" {
				v.Value = p.u64p("enumeratedValue", xv.Value)
			}
			ev.Values = append(ev.Values, v)
		}
		f.EnumeratedValues = append(f.EnumeratedValues, ev)
	}
	return f
}

func optU32(v *uint32) string {
	if v == nil {
		return ""
	}
	return uitoa(uint64(*v))
}

func optHex(v *uint64) string {
	if v == nil {
		return ""
	}
	return hex8(*v)
}

func optBool(v *bool) string {
	if v == nil {
		return ""
	}
	if *v {
		return "true"
	}
	return "false"
}

func regPropsXML(rp RegisterProperties) xmlRegProps {
	return xmlRegProps{
		Size:       optU32(rp.Size),
		Access:     rp.Access.String(),
		Protection: rp.Protection,
		ResetValue: optHex(rp.ResetValue),
		ResetMask:  optHex(rp.ResetMask),
	}
}

func dimXML(d *DimElement) xmlDim {
	if d == nil {
		return xmlDim{}
	}
	return xmlDim{
		Dim:          uitoa(uint64(d.Dim)),
		DimIncrement: hex(uint64(d.DimIncrement)),
		DimIndex:     FormatDimIndex(d.DimIndex),
		DimName:      d.DimName,
	}
}

func writeConstraintXML(w *WriteConstraint) *xmlWriteConstraint {
	if w == nil {
		return nil
	}
	switch w.Kind {
	case WriteAsRead:
		return &xmlWriteConstraint{WriteAsRead: "true"}
	case UseEnumeratedValues:
		return &xmlWriteConstraint{UseEnumeratedValues: "true"}
	}
	return &xmlWriteConstraint{Range: &xmlRange{Minimum: uitoa(w.Min), Maximum: uitoa(w.Max)}}
}

func deviceXML(dev *Device) *xmlDevice {
	schema := dev.SchemaVersion
	if schema == "" {
		schema = "1.1"
	}
	xd := &xmlDevice{
		SchemaVersion:           schema,
		XS:                      "http://www.w3.org/2001/XMLSchema-instance",
		SchemaLocation:          "CMSIS-SVD.xsd",
		Vendor:                  dev.Vendor,
		VendorID:                dev.VendorID,
		Name:                    dev.Name,
		Series:                  dev.Series,
		Version:                 dev.Version,
		Description:             dev.Description,
		LicenseText:             dev.LicenseText,
		HeaderSystemFilename:    dev.HeaderSystemFilename,
		HeaderDefinitionsPrefix: dev.HeaderDefinitionsPrefix,
		AddressUnitBits:         optU32(dev.AddressUnitBits),
		Width:                   optU32(dev.Width),
		xmlRegProps:             regPropsXML(dev.RegisterProperties),
	}
	if c := dev.CPU; c != nil {
		xd.CPU = &xmlCPU{
			Name:                c.Name,
			Revision:            c.Revision,
			Endian:              c.Endian,
			MPUPresent:          optBool(c.MPUPresent),
			FPUPresent:          optBool(c.FPUPresent),
			FPUDP:               optBool(c.FPUDP),
			ICachePresent:       optBool(c.ICachePresent),
			DCachePresent:       optBool(c.DCachePresent),
			VTORPresent:         optBool(c.VTORPresent),
			NVICPrioBits:        optU32(c.NVICPrioBits),
			VendorSystickConfig: optBool(c.VendorSystickConfig),
			DeviceNumInterrupts: optU32(c.DeviceNumInterrupts),
		}
	}
	for _, p := range dev.Peripherals {
		xd.Peripherals = append(xd.Peripherals, peripheralXML(p))
	}
	return xd
}

func peripheralXML(p *Peripheral) *xmlPeripheral {
	xp := &xmlPeripheral{
		DerivedFrom:         p.DerivedFrom,
		xmlDim:              dimXML(p.Dim),
		Name:                p.Name,
		Version:             p.Version,
		Description:         p.Description,
		DisplayName:         p.DisplayName,
		AlternatePeripheral: p.AlternatePeripheral,
		GroupName:           p.GroupName,
		PrependToName:       p.PrependToName,
		AppendToName:        p.AppendToName,
		HeaderStructName:    p.HeaderStructName,
		BaseAddress:         hex8(p.BaseAddress),
		xmlRegProps:         regPropsXML(p.RegisterProperties),
	}
	for _, ab := range p.AddressBlocks {
		xp.AddressBlocks = append(xp.AddressBlocks, xmlAddressBlock{
			Offset:     hex(ab.Offset),
			Size:       hex(ab.Size),
			Usage:      ab.Usage,
			Protection: ab.Protection,
		})
	}
	for _, irq := range p.Interrupts {
		xp.Interrupts = append(xp.Interrupts, xmlInterrupt{
			Name:        irq.Name,
			Description: irq.Description,
			Value:       uitoa(uint64(irq.Value)),
		})
	}
	if len(p.Registers) != 0 {
		xp.Registers = &xmlRegisters{Items: rcsXML(p.Registers)}
	}
	return xp
}

func rcsXML(rcs []RegisterCluster) []xmlRC {
	res := make([]xmlRC, 0, len(rcs))
	for _, rc := range rcs {
		switch x := rc.(type) {
		case *Register:
			res = append(res, xmlRC{Register: registerXML(x)})
		case *Cluster:
			res = append(res, xmlRC{Cluster: clusterXML(x)})
		}
	}
	return res
}

func clusterXML(c *Cluster) *xmlCluster {
	return &xmlCluster{
		DerivedFrom:      c.DerivedFrom,
		xmlDim:           dimXML(c.Dim),
		Name:             c.Name,
		Description:      c.Description,
		AlternateCluster: c.AlternateCluster,
		HeaderStructName: c.HeaderStructName,
		AddressOffset:    hex(c.AddressOffset),
		xmlRegProps:      regPropsXML(c.RegisterProperties),
		Children:         rcsXML(c.Children),
	}
}

func registerXML(r *Register) *xmlRegister {
	xr := &xmlRegister{
		DerivedFrom:         r.DerivedFrom,
		xmlDim:              dimXML(r.Dim),
		Name:                r.Name,
		DisplayName:         r.DisplayName,
		Description:         r.Description,
		AlternateGroup:      r.AlternateGroup,
		AlternateRegister:   r.AlternateRegister,
		AddressOffset:       hex(r.AddressOffset),
		xmlRegProps:         regPropsXML(r.RegisterProperties),
		DataType:            r.DataType,
		ModifiedWriteValues: r.ModifiedWriteValues.String(),
		WriteConstraint:     writeConstraintXML(r.WriteConstraint),
		ReadAction:          r.ReadAction.String(),
	}
	if len(r.Fields) != 0 {
		xr.Fields = &xmlFields{}
		for _, f := range r.Fields {
			xr.Fields.Fields = append(xr.Fields.Fields, fieldXML(f))
		}
	}
	return xr
}

func fieldXML(f *Field) *xmlField {
	xf := &xmlField{
		DerivedFrom:         f.DerivedFrom,
		xmlDim:              dimXML(f.Dim),
		Name:                f.Name,
		Description:         f.Description,
		BitOffset:           uitoa(uint64(f.BitOffset)),
		BitWidth:            uitoa(uint64(f.BitWidth)),
		Access:              f.Access.String(),
		ModifiedWriteValues: f.ModifiedWriteValues.String(),
		WriteConstraint:     writeConstraintXML(f.WriteConstraint),
		ReadAction:          f.ReadAction.String(),
	}
	for _, ev := range f.EnumeratedValues {
		xev := &xmlEnumeratedValues{
			DerivedFrom:    ev.DerivedFrom,
			Name:           ev.Name,
			HeaderEnumName: ev.HeaderEnumName,
			Usage:          ev.Usage.String(),
		}
		for _, v := range ev.Values {
			xv := &xmlEnumeratedValue{Name: v.Name, Description: v.Description}
			if v.IsDefault {
				xv.IsDefault = "true"
			} else if v.Value != nil {
				xv.Value = uitoa(*v.Value)
			}
			xev.Values = append(xev.Values, xv)
		}
		xf.EnumeratedValues = append(xf.EnumeratedValues, xev)
	}
	return xf
}
