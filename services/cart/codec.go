package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

func encodePayload(current Cart) (string, error) {
	if current == nil {
		current = Cart{}
	}
	jsonBytes, err := json.Marshal(current)
	if err != nil {
		return "", fmt.Errorf("error marshalling cart: %w", err)
	}
	return string(jsonBytes), nil
}

func decodePayload(slotKey string, payload string) (Cart, error) {
	trimmed := strings.TrimSpace(payload)
	if !strings.HasPrefix(trimmed, "[") {
		return nil, &CorruptStateError{SlotKey: slotKey, Reason: "payload is not a json array"}
	}

	decoded := Cart{}
	decoder := json.NewDecoder(strings.NewReader(trimmed))
	err := decoder.Decode(&decoded)
	if err != nil {
		return nil, &CorruptStateError{SlotKey: slotKey, Reason: "payload is not a list of line-items", Err: err}
	}
	var trailing json.RawMessage
	err = decoder.Decode(&trailing)
	if !errors.Is(err, io.EOF) {
		return nil, &CorruptStateError{SlotKey: slotKey, Reason: "trailing data after line-items", Err: err}
	}

	seen := map[string]bool{}
	for i, li := range decoded {
		switch {
		case li.ID == "":
			return nil, &CorruptStateError{SlotKey: slotKey, Reason: fmt.Sprintf("line-item %d has no id", i)}
		case seen[li.ID]:
			return nil, &CorruptStateError{SlotKey: slotKey, Reason: fmt.Sprintf("duplicate line-item id %s", li.ID)}
		case li.Quantity < 1:
			return nil, &CorruptStateError{SlotKey: slotKey, Reason: fmt.Sprintf("line-item %s has quantity %d", li.ID, li.Quantity)}
		case !validPrice(li.Price):
			return nil, &CorruptStateError{SlotKey: slotKey, Reason: fmt.Sprintf("line-item %s has price %v", li.ID, li.Price)}
		}
		seen[li.ID] = true
	}

	return decoded, nil
}

func validPrice(price float64) bool {
	return !math.IsNaN(price) && !math.IsInf(price, 0) && price >= 0
}

func validateProduct(product Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidProduct)
	}
	if !validPrice(product.Price) {
		return fmt.Errorf("%w: product %s has price %v", ErrInvalidProduct, product.ID, product.Price)
	}
	return nil
}
