package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

type Availability string

const (
	AvailabilityUnspecified Availability = "AVAILABILITY_UNSPECIFIED"
	InStock                 Availability = "IN_STOCK"
	OutOfStock              Availability = "OUT_OF_STOCK"
	Preorder                Availability = "PREORDER"
	Backorder               Availability = "BACKORDER"
)

// ParseAvailability maps enum names and schema.org item availability URLs
// (https://schema.org/InStock, "OutOfStock", "pre_order" ...) onto the enum.
func ParseAvailability(s string) Availability {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	norm := strings.ToUpper(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
	switch norm {
	case "INSTOCK", "LIMITEDAVAILABILITY", "ONLINEONLY", "INSTOREONLY":
		return InStock
	case "OUTOFSTOCK", "SOLDOUT", "DISCONTINUED":
		return OutOfStock
	case "PREORDER", "PRESALE":
		return Preorder
	case "BACKORDER":
		return Backorder
	}
	return AvailabilityUnspecified
}

func (a *Availability) UnmarshalJSON(b []byte) error {
	*a = ""
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '"' {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*a = ParseAvailability(s)
	return nil
}
