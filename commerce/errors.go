package commerce

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrInvalidProductID = NewDomainError("INVALID_PRODUCT_ID", "Product ID cannot be empty")
	ErrInvalidQuantity  = NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	ErrInvalidPrice     = NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
	ErrItemNotFound     = NewDomainError("ITEM_NOT_FOUND", "Cart item not found")
)
