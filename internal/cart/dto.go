package cart

// AddItemRequest adds a product to the cart or increments an existing line.
type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// UpdateItemRequest replaces the quantity of an existing line. Quantities
// below 1 are rejected; removal goes through the delete endpoint.
type UpdateItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

// BulkAddRequest merges a batch of lines into the cart in a single call.
// Duplicated product IDs within the batch are summed before merging.
type BulkAddRequest struct {
	Items []AddItemRequest `json:"items" validate:"required,min=1,dive"`
}
