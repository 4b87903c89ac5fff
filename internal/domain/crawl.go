package domain

// CrawlRecord is one fetch of a product page. Records are append-only and
// are only ever deduplicated on an exact (product_url, crawl_timestamp) match.
type CrawlRecord struct {
	CrawlID        string `db:"crawl_id" json:"crawl_id"`
	Catalog        string `db:"catalog" json:"catalog"`
	ProductURL     string `db:"product_url" json:"product_url"`
	CrawlURL       string `db:"crawl_url" json:"crawl_url"`
	PageContent    string `db:"page_content" json:"page_content,omitempty"`
	CrawlTimestamp int64  `db:"crawl_timestamp" json:"crawl_timestamp"`
	CrawlSource    string `db:"crawl_source" json:"crawl_source,omitempty"`
	APISource      string `db:"api_source" json:"api_source,omitempty"`
	OctogenCatalog string `db:"octogen_catalog" json:"octogen_catalog,omitempty"`
}
