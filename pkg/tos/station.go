package tos

import (
	"fmt"
	"log"
	"strconv"
	"strings"
)

// StationIdentity holds the identifying and descriptive attributes of a station.
type StationIdentity struct {
	ID                       int     `json:"id_entity" csv:"id_entity"`
	Marker                   string  `json:"marker" csv:"marker"`
	Name                     string  `json:"name" csv:"name"`
	DomesNumber              string  `json:"iers_domes_number" csv:"iers_domes_number"`
	Lat                      float64 `json:"lat" csv:"lat"`
	Lon                      float64 `json:"lon" csv:"lon"`
	Altitude                 float64 `json:"altitude" csv:"altitude"`
	InNetworkEPOS            string  `json:"in_network_epos" csv:"in_network_epos"`
	GeologicalCharacteristic string  `json:"geological_characteristic" csv:"geological_characteristic"`
	BedrockCondition         string  `json:"bedrock_condition" csv:"bedrock_condition"`
	BedrockType              string  `json:"bedrock_type" csv:"bedrock_type"`
	IsNearFaultZones         string  `json:"is_near_fault_zones" csv:"is_near_fault_zones"`
	DateStart                string  `json:"date_start" csv:"date_start"`
}

// Identity builds the station identity from the attribute history of a station.
// Unparsable coordinates and attributes with malformed dates are reported as warnings,
// the coordinates are left at 0.
func (h History) Identity(logger *log.Logger) (StationIdentity, []error) {
	if logger == nil {
		logger = log.Default()
	}

	var warnings []error
	for _, a := range h.Attributes {
		if a.Malformed() {
			err := fmt.Errorf("station %d: skip attribute %s with malformed date %s", h.ID, a.Code, a.badDate())
			logger.Printf("WARN: %v", err)
			warnings = append(warnings, err)
		}
	}

	id := StationIdentity{ID: h.ID}
	strs := map[string]*string{
		"marker":                    &id.Marker,
		"name":                      &id.Name,
		"iers_domes_number":         &id.DomesNumber,
		"in_network_epos":           &id.InNetworkEPOS,
		"geological_characteristic": &id.GeologicalCharacteristic,
		"bedrock_condition":         &id.BedrockCondition,
		"bedrock_type":              &id.BedrockType,
		"is_near_fault_zones":       &id.IsNearFaultZones,
		"date_start":                &id.DateStart,
	}
	for code, dst := range strs {
		if v, ok := h.Attr(code); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	floats := []struct {
		code string
		dst  *float64
	}{{"lat", &id.Lat}, {"lon", &id.Lon}, {"altitude", &id.Altitude}}
	for _, f := range floats {
		code, dst := f.code, f.dst
		v, ok := h.Attr(code)
		if !ok {
			continue
		}
		val, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			err = fmt.Errorf("station %d: could not parse %s %q", h.ID, code, v)
			logger.Printf("WARN: %v", err)
			warnings = append(warnings, err)
			continue
		}
		*dst = val
	}
	return id, warnings
}
