package models

import "time"

// Product represents a wine in the catalog.
type Product struct {
	ID             string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Reference      string         `json:"reference" gorm:"uniqueIndex;type:varchar(100);not null"`
	Name           string         `json:"name" gorm:"type:varchar(255);not null"`
	Color          *string        `json:"color"`
	Country        *string        `json:"country"`
	Region         *string        `json:"region"`
	Appellation    *string        `json:"appellation"`
	Vintage        *int           `json:"vintage"`
	Grapes         *string        `json:"grapes"`
	AlcoholPercent *float64       `json:"alcoholPercent"`
	BottleSizeL    *float64       `json:"bottleSizeL" gorm:"column:bottle_size_l"`
	Sweetness      *string        `json:"sweetness"`
	Tannin         *string        `json:"tannin"`
	Acidity        *string        `json:"acidity"`
	Rating         *float64       `json:"rating"`
	PriceEur       *float64       `json:"priceEur"`
	Producer       *string        `json:"producer"`
	StockQuantity  int            `json:"stockQuantity" gorm:"not null;default:0;check:stock_quantity >= 0"`
	Description    *string        `json:"description"`
	Images         []ProductImage `json:"images" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time      `json:"createdAt" gorm:"index"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// ProductImage points at an object stored outside the database.
type ProductImage struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ProductID   string    `json:"productId" gorm:"index;type:varchar(36);not null"`
	ObjectKey   string    `json:"objectKey" gorm:"not null"`
	ContentType *string   `json:"contentType"`
	Size        *int64    `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ImageKey is the only image field exposed in catalog listings.
type ImageKey struct {
	ObjectKey string `json:"objectKey"`
}

// ProductSummary is the projection of a Product served by the catalog list.
type ProductSummary struct {
	ID            string     `json:"id"`
	Reference     string     `json:"reference"`
	Name          string     `json:"name"`
	Color         *string    `json:"color"`
	Vintage       *int       `json:"vintage"`
	PriceEur      *float64   `json:"priceEur"`
	Producer      *string    `json:"producer"`
	StockQuantity int        `json:"stockQuantity"`
	Rating        *float64   `json:"rating"`
	Region        *string    `json:"region"`
	Images        []ImageKey `json:"images"`
}

// Summary projects p onto the listing fields, keeping at most its first image.
func (p Product) Summary() ProductSummary {
	images := make([]ImageKey, 0, 1)
	if len(p.Images) > 0 {
		images = append(images, ImageKey{ObjectKey: p.Images[0].ObjectKey})
	}
	return ProductSummary{
		ID:            p.ID,
		Reference:     p.Reference,
		Name:          p.Name,
		Color:         p.Color,
		Vintage:       p.Vintage,
		PriceEur:      p.PriceEur,
		Producer:      p.Producer,
		StockQuantity: p.StockQuantity,
		Rating:        p.Rating,
		Region:        p.Region,
		Images:        images,
	}
}
