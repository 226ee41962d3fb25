package model

// Storefront mirrors the upstream storefront document. Only the sections the
// service reshapes are modelled.
type Storefront struct {
	FeaturedBundle   FeaturedBundle   `json:"FeaturedBundle"`
	SkinsPanelLayout SkinsPanelLayout `json:"SkinsPanelLayout"`
	BonusStore       *BonusStore      `json:"BonusStore,omitempty"`
	AccessoryStore   AccessoryStore   `json:"AccessoryStore"`
}

type FeaturedBundle struct {
	Bundles []RawBundle `json:"Bundles"`
}

type RawBundle struct {
	ID                         string          `json:"ID"`
	DataAssetID                string          `json:"DataAssetID"`
	CurrencyID                 string          `json:"CurrencyID"`
	Items                      []RawBundleItem `json:"Items"`
	TotalBaseCost              map[string]int  `json:"TotalBaseCost,omitempty"`
	TotalDiscountedCost        map[string]int  `json:"TotalDiscountedCost,omitempty"`
	DurationRemainingInSeconds int64           `json:"DurationRemainingInSeconds"`
}

type RawBundleItem struct {
	Item struct {
		ItemTypeID string `json:"ItemTypeID"`
		ItemID     string `json:"ItemID"`
		Amount     int    `json:"Amount"`
	} `json:"Item"`
	BasePrice       int     `json:"BasePrice"`
	CurrencyID      string  `json:"CurrencyID"`
	DiscountPercent float64 `json:"DiscountPercent"`
	DiscountedPrice int     `json:"DiscountedPrice"`
}

type SkinsPanelLayout struct {
	SingleItemOffers                           []string `json:"SingleItemOffers"`
	SingleItemOffersRemainingDurationInSeconds int64    `json:"SingleItemOffersRemainingDurationInSeconds"`
}

type BonusStore struct {
	BonusStoreOffers                     []BonusOffer `json:"BonusStoreOffers"`
	BonusStoreRemainingDurationInSeconds int64        `json:"BonusStoreRemainingDurationInSeconds"`
}

type BonusOffer struct {
	BonusOfferID    string         `json:"BonusOfferID"`
	Offer           Offer          `json:"Offer"`
	DiscountPercent float64        `json:"DiscountPercent"`
	DiscountCosts   map[string]int `json:"DiscountCosts"`
}

type Offer struct {
	OfferID string           `json:"OfferID"`
	Cost    map[string]int   `json:"Cost"`
	Rewards []map[string]any `json:"Rewards,omitempty"`
}

type AccessoryStore struct {
	AccessoryStoreOffers                     []AccessoryOffer `json:"AccessoryStoreOffers"`
	AccessoryStoreRemainingDurationInSeconds int64            `json:"AccessoryStoreRemainingDurationInSeconds"`
}

type AccessoryOffer struct {
	Offer      Offer  `json:"Offer"`
	ContractID string `json:"ContractID"`
}

// CachedStorefront is the per-account snapshot kept in the cache.
type CachedStorefront struct {
	Storefront *Storefront `json:"storefront"`
	FetchedAt  int64       `json:"fetchedAt"` // epoch seconds
}

// Remaining returns the seconds left on the daily offers at now (epoch seconds).
func (c *CachedStorefront) Remaining(now int64) int64 {
	return c.Storefront.SkinsPanelLayout.SingleItemOffersRemainingDurationInSeconds - (now - c.FetchedAt)
}

// DailyOffers is the reshaped daily storefront.
type DailyOffers struct {
	Offers    []string        `json:"offers"`
	Expires   int64           `json:"expires"`
	Accessory *AccessoryBlock `json:"accessory,omitempty"`
	Cached    bool            `json:"cached"`
}

type AccessoryBlock struct {
	Offers  []AccessoryItem `json:"offers"`
	Expires int64           `json:"expires"`
}

type AccessoryItem struct {
	Cost       int              `json:"cost"`
	Rewards    []map[string]any `json:"rewards"`
	ContractID string           `json:"contractID"`
}

// Bundle is a featured bundle ready for display.
type Bundle struct {
	UUID      string       `json:"uuid"`
	Name      string       `json:"name"`
	Icon      string       `json:"icon"`
	Items     []BundleItem `json:"items"`
	Price     *int         `json:"price"`
	BasePrice *int         `json:"basePrice"`
	Expires   int64        `json:"expires"`
}

type BundleItem struct {
	UUID      string  `json:"uuid"`
	Type      string  `json:"type"`
	Name      string  `json:"name"`
	Icon      string  `json:"icon"`
	Price     int     `json:"price"`
	BasePrice int     `json:"basePrice"`
	Discount  float64 `json:"discount"`
	Amount    int     `json:"amount"`
}

// NightMarket is the reshaped bonus store. Offers is nil when the store is closed.
type NightMarket struct {
	Offers  []NightMarketOffer `json:"offers"`
	Expires int64              `json:"expires,omitempty"`
}

type NightMarketOffer struct {
	UUID      string  `json:"uuid"`
	Name      string  `json:"name"`
	Icon      string  `json:"icon"`
	RealPrice int     `json:"realPrice"`
	NMPrice   int     `json:"nmPrice"`
	Percent   float64 `json:"percent"`
}

// Balance holds the wallet amounts per currency.
type Balance struct {
	VP  int `json:"vp"`
	Rad int `json:"rad"`
	KC  int `json:"kc"`
}

// Wallet mirrors the upstream wallet document.
type Wallet struct {
	Balances map[string]int `json:"Balances"`
}

// OfferList mirrors the upstream offers document.
type OfferList struct {
	Offers []Offer `json:"Offers"`
}
