package domain

import (
	"time"
)

// Category is a class of content removed by a cleanup.
type Category string

const (
	CategoryMessages  Category = "messages"
	CategoryPhotos    Category = "photos"
	CategorySocial    Category = "social"
	CategoryFinancial Category = "financial"
)

// Categories lists every cleanup category in execution order.
var Categories = []Category{CategoryMessages, CategoryPhotos, CategorySocial, CategoryFinancial}

// Label returns the user-facing name of the category.
func (c Category) Label() string {
	switch c {
	case CategoryMessages:
		return "Mensagens"
	case CategoryPhotos:
		return "Fotos"
	case CategorySocial:
		return "Redes Sociais"
	case CategoryFinancial:
		return "Registros Financeiros"
	default:
		return string(c)
	}
}

// CleanupTarget is one line of the risk disclosure.
type CleanupTarget struct {
	Category Category `json:"category"`
	Label    string   `json:"label"`
	Count    int      `json:"count"`
}

// CleanupResult is the outcome of cleaning one category.
type CleanupResult struct {
	Category       Category `json:"category"`
	Success        bool     `json:"success"`
	ItemsProcessed int      `json:"itemsProcessed"`
	Errors         []string `json:"errors"`
}

// CleanupRun is a recorded, committed cleanup.
type CleanupRun struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	ConfirmationID string          `json:"confirmation_id"`
	Results        []CleanupResult `json:"results"`
	CreatedAt      time.Time       `json:"created_at"`
}

// TotalProcessed sums processed items across results.
func (r *CleanupRun) TotalProcessed() int {
	total := 0
	for _, res := range r.Results {
		total += res.ItemsProcessed
	}
	return total
}
