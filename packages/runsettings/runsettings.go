package runsettings

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
)

// Element names of the run-settings hierarchy, outermost first.
const (
	RunSettingsName               = "RunSettings"
	DataCollectionRunSettingsName = "DataCollectionRunSettings"
	DataCollectorsSettingName     = "DataCollectors"
	DataCollectorSettingName      = "DataCollector"
)

// Well-known collector attributes
const (
	AttrFriendlyName = "friendlyName"
	AttrURI          = "uri"
)

// Attribute is a single name/value pair set on a DataCollector element
type Attribute struct {
	Name  string
	Value string
}

// Attributes keeps collector attributes in the order they are written
type Attributes []Attribute

// FromMap converts a map into Attributes sorted by name, so the generated
// document does not depend on map iteration order.
func FromMap(m map[string]string) Attributes {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)

	attrs := make(Attributes, 0, len(names))
	for _, name := range names {
		attrs = append(attrs, Attribute{Name: name, Value: m[name]})
	}
	return attrs
}

// Get returns the value of the named attribute
func (a Attributes) Get(name string) (string, bool) {
	for _, attr := range a {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return "", false
}

// Map returns the attributes as a map
func (a Attributes) Map() map[string]string {
	m := make(map[string]string, len(a))
	for _, attr := range a {
		m[attr.Name] = attr.Value
	}
	return m
}

// SampleDataCollector returns the attributes of the sample out-of-proc collector
// used by the data collection scenarios.
func SampleDataCollector() Attributes {
	return Attributes{
		{Name: AttrFriendlyName, Value: "SampleDataCollector"},
		{Name: AttrURI, Value: "my://sample/datacollector"},
	}
}

// Document is a run-settings file restricted to the data collection section
type Document struct {
	XMLName        xml.Name                  `xml:"RunSettings"`
	DataCollection DataCollectionRunSettings `xml:"DataCollectionRunSettings"`
}

type DataCollectionRunSettings struct {
	DataCollectors DataCollectors `xml:"DataCollectors"`
}

type DataCollectors struct {
	Collectors []DataCollector `xml:"DataCollector"`
}

// DataCollector carries arbitrary attributes; the element has no children.
type DataCollector struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

// Attributes returns the collector attributes in document order
func (c DataCollector) Attributes() Attributes {
	attrs := make(Attributes, 0, len(c.Attrs))
	for _, a := range c.Attrs {
		attrs = append(attrs, Attribute{Name: a.Name.Local, Value: a.Value})
	}
	return attrs
}

// FriendlyName returns the friendlyName attribute, or "" if unset
func (c DataCollector) FriendlyName() string {
	v, _ := c.Attributes().Get(AttrFriendlyName)
	return v
}

// URI returns the uri attribute, or "" if unset
func (c DataCollector) URI() string {
	v, _ := c.Attributes().Get(AttrURI)
	return v
}

// New builds a document with a single DataCollector element carrying attrs
func New(attrs Attributes) *Document {
	dc := DataCollector{Attrs: make([]xml.Attr, 0, len(attrs))}
	for _, a := range attrs {
		dc.Attrs = append(dc.Attrs, xml.Attr{Name: xml.Name{Local: a.Name}, Value: a.Value})
	}
	return &Document{
		DataCollection: DataCollectionRunSettings{
			DataCollectors: DataCollectors{Collectors: []DataCollector{dc}},
		},
	}
}

// Collectors returns every DataCollector element in the document
func (d *Document) Collectors() []DataCollector {
	return d.DataCollection.DataCollectors.Collectors
}

// CollectorByName finds a collector by friendly name
func (d *Document) CollectorByName(name string) (DataCollector, bool) {
	for _, c := range d.Collectors() {
		if c.FriendlyName() == name {
			return c, true
		}
	}
	return DataCollector{}, false
}

// WriteTo writes the XML declaration followed by the indented document
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	data, err := xml.MarshalIndent(d, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshaling run settings: %w", err)
	}

	n, err := io.WriteString(w, xml.Header)
	if err != nil {
		return int64(n), err
	}
	m, err := w.Write(append(data, '\n'))
	return int64(n + m), err
}

// WriteFile creates or truncates path and writes the document to it
func (d *Document) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating run settings file: %w", err)
	}

	if _, err := d.WriteTo(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Parse decodes a run-settings document
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing run settings: %w", err)
	}
	return &doc, nil
}

// ParseFile decodes the run-settings document at path
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open run settings: %w", err)
	}
	defer f.Close()

	return Parse(f)
}
