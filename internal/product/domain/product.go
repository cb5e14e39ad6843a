package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Images      []string        `json:"images"`
	Sizes       []string        `json:"sizes"` // Kosong untuk produk tanpa ukuran
	Category    string          `json:"category"`
	Bestseller  bool            `json:"bestseller"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Hanya admin yang boleh membuat produk
type CreateProductRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Images      []string        `json:"images"`
	Sizes       []string        `json:"sizes"`
	Category    string          `json:"category"`
	Bestseller  bool            `json:"bestseller"`
}
