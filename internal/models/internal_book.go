package models

// InternalBook is the catalog row shape. Field names follow the table columns.
type InternalBook struct {
	Title           string   `json:"title"`
	Author          string   `json:"author"`
	Description     string   `json:"description"`
	ISBN            string   `json:"isbn"`
	PublicationDate string   `json:"publication_date"`
	Publisher       string   `json:"publisher"`
	PageCount       *int     `json:"page_count"`
	CoverURL        string   `json:"cover_url"`
	Price           string   `json:"price"`
	Categories      []string `json:"categories"`
	Genre           string   `json:"genre"`
	Language        string   `json:"language"`
	Type            string   `json:"type"`
	ASIN            string   `json:"asin"`

	Source    string `json:"source,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
}

// StoredBook is a catalog row as read back from storage.
type StoredBook struct {
	ID int64 `json:"id"`
	InternalBook
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}
