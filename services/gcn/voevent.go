package gcn

import (
	"encoding/xml"

	"github.com/pkg/errors"
)

// Param is a named value in a VOEvent What section.
type Param struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type Group struct {
	Name   string  `xml:"name,attr"`
	Params []Param `xml:"Param"`
}

// VOEvent is the subset of a GCN VOEvent notice the service uses.
type VOEvent struct {
	XMLName xml.Name `xml:"VOEvent"`
	Role    string   `xml:"role,attr"`
	IVORN   string   `xml:"ivorn,attr"`
	What    struct {
		Params []Param `xml:"Param"`
		Groups []Group `xml:"Group"`
	} `xml:"What"`
}

func ParseVOEvent(data []byte) (*VOEvent, error) {
	v := &VOEvent{}
	if err := xml.Unmarshal(data, v); err != nil {
		return nil, errors.Wrap(err, "parsing voevent")
	}
	return v, nil
}

// Param looks up a What parameter by name, searching groups too.
func (v *VOEvent) Param(name string) (string, bool) {
	for _, p := range v.What.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	for _, g := range v.What.Groups {
		for _, p := range g.Params {
			if p.Name == name {
				return p.Value, true
			}
		}
	}
	return "", false
}
