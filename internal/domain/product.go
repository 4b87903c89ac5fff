package domain

import (
	"encoding/json"
	"strings"
)

type Category struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

func (c *Category) UnmarshalJSON(b []byte) error {
	type plain Category
	return unmarshalNameOr(b, (*plain)(c), func(s string) { c.Name = s })
}

type Organization struct {
	Type   string     `json:"@type,omitempty"`
	Name   string     `json:"name,omitempty"`
	URL    string     `json:"url,omitempty"`
	Logo   string     `json:"logo,omitempty"`
	SameAs StringList `json:"sameAs,omitempty"`
}

func (o *Organization) UnmarshalJSON(b []byte) error {
	type plain Organization
	return unmarshalNameOr(b, (*plain)(o), func(s string) { o.Name = s })
}

// Brand is either a schema.org Brand or an Organization; both carry a name.
type Brand struct {
	Type        string     `json:"@type,omitempty"`
	Name        string     `json:"name,omitempty"`
	Logo        string     `json:"logo,omitempty"`
	URL         string     `json:"url,omitempty"`
	Description string     `json:"description,omitempty"`
	SameAs      StringList `json:"sameAs,omitempty"`
}

func (br *Brand) UnmarshalJSON(b []byte) error {
	type plain Brand
	return unmarshalNameOr(b, (*plain)(br), func(s string) { br.Name = s })
}

type Image struct {
	URL    string `json:"url"`
	Height Number `json:"height"`
	Width  Number `json:"width"`
}

func (im *Image) UnmarshalJSON(b []byte) error {
	type plain Image
	return unmarshalNameOr(b, (*plain)(im), func(s string) { im.URL = s })
}

type Interval struct {
	MinValue Number `json:"min_value"`
	MaxValue Number `json:"max_value"`
}

type PriceRange struct {
	Price         *Interval `json:"price,omitempty"`
	OriginalPrice *Interval `json:"original_price,omitempty"`
}

type PriceInfo struct {
	CurrencyCode       string      `json:"currency_code,omitempty"`
	Price              Number      `json:"price"`
	OriginalPrice      Number      `json:"original_price"`
	Cost               Number      `json:"cost"`
	PriceEffectiveTime string      `json:"price_effective_time,omitempty"`
	PriceExpireTime    string      `json:"price_expire_time,omitempty"`
	PriceRange         *PriceRange `json:"price_range,omitempty"`
}

// Rating accepts both the schema.org spelling (ratingValue, ratingCount) and
// the export spelling (average_rating, rating_count).
type Rating struct {
	Type            string   `json:"@type,omitempty"`
	RatingCount     Number   `json:"rating_count"`
	AverageRating   Number   `json:"average_rating"`
	RatingHistogram []Number `json:"rating_histogram,omitempty"`
}

func (r *Rating) UnmarshalJSON(b []byte) error {
	type plain Rating
	aux := struct {
		*plain
		RatingValue Number `json:"ratingValue"`
		Count       Number `json:"ratingCount"`
		ReviewCount Number `json:"reviewCount"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if !r.AverageRating.Valid {
		r.AverageRating = aux.RatingValue
	}
	if !r.RatingCount.Valid {
		r.RatingCount = aux.Count
	}
	if !r.RatingCount.Valid {
		r.RatingCount = aux.ReviewCount
	}
	if v, ok := r.AverageRating.Float64(); ok && (v < 1 || v > 5) {
		r.AverageRating = Number{}
	}
	return nil
}

type Person struct {
	Name string `json:"name,omitempty"`
}

func (p *Person) UnmarshalJSON(b []byte) error {
	type plain Person
	return unmarshalNameOr(b, (*plain)(p), func(s string) { p.Name = s })
}

type Review struct {
	Author        *Person `json:"author,omitempty"`
	DatePublished string  `json:"datePublished,omitempty"`
	ReviewBody    string  `json:"reviewBody,omitempty"`
	ReviewRating  *Rating `json:"reviewRating,omitempty"`
}

type Color struct {
	Label     string `json:"label"`
	SwatchURL string `json:"swatch_url,omitempty"`
}

func (c *Color) UnmarshalJSON(b []byte) error {
	type plain Color
	return unmarshalNameOr(b, (*plain)(c), func(s string) { c.Label = s })
}

type ColorInfo struct {
	ColorFamilies StringList `json:"color_families,omitempty"`
	Colors        []Color    `json:"colors,omitempty"`
}

type Audience struct {
	Genders   StringList `json:"genders,omitempty"`
	AgeGroups StringList `json:"age_groups,omitempty"`
}

type FulfillmentInfo struct {
	Type     string     `json:"type"`
	PlaceIDs StringList `json:"place_ids,omitempty"`
}

type CustomAttribute struct {
	Text    StringList `json:"text,omitempty"`
	Numbers []Number   `json:"numbers,omitempty"`
}

type Promotion struct {
	PromotionID string `json:"promotion_id"`
}

type ThreeDModel struct {
	Type           string     `json:"@type,omitempty"`
	Name           string     `json:"name,omitempty"`
	ContentURL     string     `json:"contentUrl,omitempty"`
	EmbedURL       string     `json:"embedUrl,omitempty"`
	EncodingFormat string     `json:"encodingFormat,omitempty"`
	ThumbnailURL   StringList `json:"thumbnailUrl,omitempty"`
}

// Product is a single sellable item or variant. Every field is optional:
// source catalogs differ wildly in completeness.
type Product struct {
	ID               FlexString `json:"id,omitempty"`
	Type             string     `json:"@type,omitempty"`
	Catalog          string     `json:"catalog,omitempty"`
	URL              string     `json:"url,omitempty"`
	PrimaryProductID FlexString `json:"primary_product_id,omitempty"`

	Name         string     `json:"name,omitempty"`
	Description  string     `json:"description,omitempty"`
	Brand        *Brand     `json:"brand,omitempty"`
	GTIN         FlexString `json:"gtin,omitempty"`
	LanguageCode string     `json:"language_code,omitempty"`
	Categories   []Category `json:"categories,omitempty"`

	PriceInfo *PriceInfo `json:"price_info,omitempty"`
	Offers    *Offers    `json:"offers,omitempty"`

	ColorInfo *ColorInfo `json:"color_info,omitempty"`
	Sizes     StringList `json:"sizes,omitempty"`
	Materials StringList `json:"materials,omitempty"`
	Patterns  StringList `json:"patterns,omitempty"`
	Audience  *Audience  `json:"audience,omitempty"`

	Image       *Image        `json:"image,omitempty"`
	Images      []Image       `json:"images,omitempty"`
	ThreeDModel []ThreeDModel `json:"three_d_model,omitempty"`

	Rating *Rating  `json:"rating,omitempty"`
	Review []Review `json:"review,omitempty"`

	Availability      Availability      `json:"availability,omitempty"`
	AvailableTime     string            `json:"available_time,omitempty"`
	AvailableQuantity Number            `json:"available_quantity"`
	FulfillmentInfo   []FulfillmentInfo `json:"fulfillment_info,omitempty"`

	Tags                 StringList                 `json:"tags,omitempty"`
	AdditionalAttributes map[string]CustomAttribute `json:"additional_attributes,omitempty"`
	Promotions           []Promotion                `json:"promotions,omitempty"`
	Organization         *Organization              `json:"organization,omitempty"`
	ExtraText            string                     `json:"extra_text,omitempty"`
}

// UnmarshalJSON folds the aliases seen in exported feeds onto the canonical
// fields: aggregateRating, reviews, 3dModel, corporation and the misspelled
// addtional_attributes.
func (p *Product) UnmarshalJSON(b []byte) error {
	type plain Product
	aux := struct {
		*plain
		AggregateRating *Rating                    `json:"aggregateRating"`
		Reviews         []Review                   `json:"reviews"`
		ThreeD          []ThreeDModel              `json:"3dModel"`
		Corporation     *Organization              `json:"corporation"`
		Addtional       map[string]CustomAttribute `json:"addtional_attributes"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if p.Rating == nil {
		p.Rating = aux.AggregateRating
	}
	if len(p.Review) == 0 {
		p.Review = aux.Reviews
	}
	if len(p.ThreeDModel) == 0 {
		p.ThreeDModel = aux.ThreeD
	}
	if p.Organization == nil {
		p.Organization = aux.Corporation
	}
	if len(p.AdditionalAttributes) == 0 {
		p.AdditionalAttributes = aux.Addtional
	}
	return nil
}

// ProductGroup is the merchandising unit: a Product plus its variants.
type ProductGroup struct {
	Product
	ProductGroupID FlexString `json:"productGroupID,omitempty"`
	VariesBy       StringList `json:"variesBy,omitempty"`
	HasVariant     []Product  `json:"hasVariant,omitempty"`
}

func (g *ProductGroup) UnmarshalJSON(b []byte) error {
	if err := g.Product.UnmarshalJSON(b); err != nil {
		return err
	}
	var group struct {
		ProductGroupID FlexString `json:"productGroupID"`
		VariesBy       StringList `json:"variesBy"`
		HasVariant     []Product  `json:"hasVariant"`
	}
	if err := json.Unmarshal(b, &group); err != nil {
		return err
	}
	g.ProductGroupID = group.ProductGroupID
	g.VariesBy = group.VariesBy
	g.HasVariant = group.HasVariant
	return nil
}

// Key is the entity identity of a group: its canonical URL. Groups without
// a URL cannot be hashed or merged.
func (g *ProductGroup) Key() (string, bool) {
	u := strings.TrimSpace(g.URL)
	return u, u != ""
}

// Equal reports whether both groups share a canonical URL. A group without
// a URL equals nothing, itself included.
func (g *ProductGroup) Equal(o *ProductGroup) bool {
	if g == nil || o == nil {
		return false
	}
	a, ok := g.Key()
	if !ok {
		return false
	}
	b, ok := o.Key()
	return ok && a == b
}

// DecodeProductGroup parses one serialized record.
func DecodeProductGroup(blob []byte) (*ProductGroup, error) {
	var g ProductGroup
	if err := json.Unmarshal(blob, &g); err != nil {
		return nil, err
	}
	return &g, nil
}
