package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

type PriceSpecification struct {
	Price         Number `json:"price"`
	OriginalPrice Number `json:"originalPrice"`
	PriceCurrency string `json:"priceCurrency,omitempty"`
}

// Offer is a schema.org Offer. Some feeds put the amount on the offer,
// others only inside priceSpecification.
type Offer struct {
	Type               string              `json:"@type,omitempty"`
	Name               string              `json:"name,omitempty"`
	Price              Number              `json:"price"`
	PriceCurrency      string              `json:"priceCurrency,omitempty"`
	SKU                string              `json:"sku,omitempty"`
	Availability       string              `json:"availability,omitempty"`
	ItemCondition      string              `json:"itemCondition,omitempty"`
	Seller             *Organization       `json:"seller,omitempty"`
	PriceSpecification *PriceSpecification `json:"priceSpecification,omitempty"`
}

// EffectivePrice returns the offer price, falling back to priceSpecification.
func (o Offer) EffectivePrice() (float64, bool) {
	if v, ok := o.Price.Float64(); ok {
		return v, true
	}
	if o.PriceSpecification != nil {
		return o.PriceSpecification.Price.Float64()
	}
	return 0, false
}

func (o Offer) Currency() string {
	if o.PriceCurrency != "" {
		return o.PriceCurrency
	}
	if o.PriceSpecification != nil {
		return o.PriceSpecification.PriceCurrency
	}
	return ""
}

func (o Offer) SellerName() string {
	if o.Seller == nil {
		return ""
	}
	return strings.TrimSpace(o.Seller.Name)
}

// AggregateOffer summarises offers across sellers.
type AggregateOffer struct {
	Type          string        `json:"@type,omitempty"`
	OfferCount    Number        `json:"offerCount"`
	HighPrice     Number        `json:"highPrice"`
	LowPrice      Number        `json:"lowPrice"`
	PriceCurrency string        `json:"priceCurrency,omitempty"`
	ItemCondition string        `json:"itemCondition,omitempty"`
	Seller        *Organization `json:"seller,omitempty"`
	Offers        []Offer       `json:"offers,omitempty"`
}

// OfferList wraps individual offers. Bare is set when the feed carried a
// plain JSON array instead of the {"offers": [...]} wrapper.
type OfferList struct {
	Offers        []Offer `json:"offers"`
	URL           string  `json:"url,omitempty"`
	ItemCondition string  `json:"itemCondition,omitempty"`
	Bare          bool    `json:"-"`
}

type OfferKind int

const (
	OfferKindNone OfferKind = iota
	OfferKindSingle
	OfferKindAggregate
	OfferKindList
)

func (k OfferKind) String() string {
	switch k {
	case OfferKindSingle:
		return "single"
	case OfferKindAggregate:
		return "aggregate"
	case OfferKindList:
		return "list"
	}
	return "none"
}

// Offers is the polymorphic offers field: exactly one arm is set, as given
// by Kind.
type Offers struct {
	Kind      OfferKind
	Single    *Offer
	Aggregate *AggregateOffer
	List      *OfferList
}

// OfferVisitor receives the active arm of an Offers value.
type OfferVisitor interface {
	VisitSingle(o Offer)
	VisitAggregate(a AggregateOffer)
	VisitList(offers []Offer)
}

func (o *Offers) Visit(v OfferVisitor) {
	if o == nil {
		return
	}
	switch o.Kind {
	case OfferKindSingle:
		v.VisitSingle(*o.Single)
	case OfferKindAggregate:
		v.VisitAggregate(*o.Aggregate)
	case OfferKindList:
		v.VisitList(o.List.Offers)
	}
}

func SingleOffer(o Offer) *Offers { return &Offers{Kind: OfferKindSingle, Single: &o} }

func AggregateOffers(a AggregateOffer) *Offers {
	return &Offers{Kind: OfferKindAggregate, Aggregate: &a}
}

func ListOffers(offers ...Offer) *Offers {
	return &Offers{Kind: OfferKindList, List: &OfferList{Offers: offers}}
}

func (o *Offers) UnmarshalJSON(b []byte) error {
	*o = Offers{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '[':
		var list []Offer
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		*o = Offers{Kind: OfferKindList, List: &OfferList{Offers: list, Bare: true}}
		return nil
	case '{':
	default:
		// null, strings and numbers carry no usable offer
		return nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	var typ string
	if raw, ok := probe["@type"]; ok {
		_ = json.Unmarshal(raw, &typ)
	}
	_, hasLow := probe["lowPrice"]
	_, hasHigh := probe["highPrice"]
	_, hasCount := probe["offerCount"]
	_, hasPrice := probe["price"]
	nested, hasNested := probe["offers"]
	nestedIsList := hasNested && len(bytes.TrimSpace(nested)) > 0 && bytes.TrimSpace(nested)[0] == '['

	switch {
	case strings.EqualFold(typ, "AggregateOffer") || hasLow || hasHigh || hasCount:
		var a AggregateOffer
		if err := json.Unmarshal(b, &a); err != nil {
			return err
		}
		*o = Offers{Kind: OfferKindAggregate, Aggregate: &a}
	case nestedIsList && !hasPrice:
		var l OfferList
		if err := json.Unmarshal(b, &l); err != nil {
			return err
		}
		*o = Offers{Kind: OfferKindList, List: &l}
	default:
		var s Offer
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*o = Offers{Kind: OfferKindSingle, Single: &s}
	}
	return nil
}

func (o Offers) MarshalJSON() ([]byte, error) {
	switch o.Kind {
	case OfferKindSingle:
		return json.Marshal(o.Single)
	case OfferKindAggregate:
		a := *o.Aggregate
		if a.Type == "" {
			a.Type = "AggregateOffer"
		}
		return json.Marshal(a)
	case OfferKindList:
		if o.List.Bare {
			return json.Marshal(o.List.Offers)
		}
		return json.Marshal(o.List)
	}
	return []byte("null"), nil
}
