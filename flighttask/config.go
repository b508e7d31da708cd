package flighttask

import (
	"encoding/xml"
	"io"
	"os"
	"strconv"
)

// CtlSenderConfig describes one downstream setpoint consumer from the
// vehicle config file.
type CtlSenderConfig struct {
	Addr string
	Port int
	Type string
	Mask uint32
}

func readXML(path string) (*xml.Decoder, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return xml.NewDecoder(f), f, nil
}

func attrValue(el xml.StartElement, name string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// ParseFlightParams loads the paramlist from vehicle.xml. Unknown names
// are ignored and malformed values keep the current setting, so a
// partially edited file never aborts a reload. Sanitize runs before
// returning.
func ParseFlightParams(path string, base Params) (Params, error) {
	p := base
	dec, f, err := readXML(path)
	if err != nil {
		return p, err
	}
	defer f.Close()
	inParamList := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "paramlist" {
				inParamList = true
				continue
			}
			if t.Name.Local == "param" && inParamList {
				name, ok := attrValue(t, "name")
				if !ok {
					continue
				}
				valStr, ok := attrValue(t, "value")
				if !ok {
					continue
				}
				v, err := strconv.ParseFloat(valStr, 64)
				if err != nil {
					continue
				}
				switch name {
				case "LAND_SPEED":
					p.LandSpeed = v
				case "TILTMAX_LND":
					p.TiltMaxLandDeg = v
				case "TKO_SPEED":
					p.TakeoffSpeed = v
				case "LAND_ALT1":
					p.LandAlt1 = v
				case "LAND_ALT2":
					p.LandAlt2 = v
				case "XY_CRUISE":
					p.CruiseSpeed = v
				}
			}
		case xml.EndElement:
			if t.Name.Local == "paramlist" {
				inParamList = false
			}
		}
	}
	p.Sanitize()
	return p, nil
}

// ParseCtlSenders parses downstream setpoint consumers from vehicle.xml.
func ParseCtlSenders(path string) []CtlSenderConfig {
	configs := []CtlSenderConfig{}
	dec, f, err := readXML(path)
	if err != nil {
		return configs
	}
	defer f.Close()
	inTxList := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "txlist" {
				inTxList = true
				continue
			}
			if t.Name.Local == "transferItem" && inTxList {
				addr, _ := attrValue(t, "addr")
				portStr, _ := attrValue(t, "port")
				typ, _ := attrValue(t, "type")
				maskStr, _ := attrValue(t, "data")

				port, _ := strconv.Atoi(portStr)
				mask, _ := strconv.ParseInt(maskStr, 10, 64)

				configs = append(configs, CtlSenderConfig{
					Addr: addr,
					Port: port,
					Type: typ,
					Mask: uint32(mask),
				})
			}
		case xml.EndElement:
			if t.Name.Local == "txlist" {
				inTxList = false
			}
		}
	}
	return configs
}
