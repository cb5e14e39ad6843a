package domain

import (
	"time"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PhoneNumber  *string   `json:"phone_number,omitempty"` // Pointer agar bisa null
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"` // Jangan kirim password hash ke client
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Cart disimpan sebagai JSONB: product id -> size -> quantity. Size kosong untuk produk tanpa ukuran.
type Cart map[string]map[string]int

// Set mengganti quantity; quantity <= 0 menghapus entri.
func (c Cart) Set(productID, size string, quantity int) {
	if quantity <= 0 {
		if sizes, ok := c[productID]; ok {
			delete(sizes, size)
			if len(sizes) == 0 {
				delete(c, productID)
			}
		}
		return
	}
	if c[productID] == nil {
		c[productID] = map[string]int{}
	}
	c[productID][size] = quantity
}

func (c Cart) Add(productID, size string, quantity int) {
	c.Set(productID, size, c[productID][size]+quantity)
}

// Untuk registrasi, password plain text
type RegisterRequest struct {
	Name        string  `json:"name"`
	Email       string  `json:"email" binding:"required,email"`
	PhoneNumber *string `json:"phone_number"`
	Password    string  `json:"password" binding:"required,min=8"`
}

// Untuk login
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"` // Bisa email atau phone
	Password   string `json:"password" binding:"required"`
}

type LoginResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type CartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}
