package cart

// The functions below never modify their input; every mutation yields a fresh
// slice so snapshots handed out earlier stay valid.

func addToCart(current Cart, product Product) Cart {
	idx := current.indexOf(product.ID)
	if idx < 0 {
		return append(current.clone(), LineItem{
			ID:       product.ID,
			Title:    product.Title,
			ImageURL: product.ImageURL,
			Price:    product.Price,
			Quantity: 1,
		})
	}

	// last write wins on the descriptive fields
	next := current.clone()
	next[idx] = LineItem{
		ID:       product.ID,
		Title:    product.Title,
		ImageURL: product.ImageURL,
		Price:    product.Price,
		Quantity: current[idx].Quantity + 1,
	}
	return next
}

func increment(current Cart, id string) Cart {
	next := current.clone()
	idx := next.indexOf(id)
	if idx >= 0 {
		next[idx].Quantity++
	}
	return next
}

// decrement reports false when id is not in the cart.
func decrement(current Cart, id string) (Cart, bool) {
	idx := current.indexOf(id)
	if idx < 0 {
		return current, false
	}

	next := current.clone()
	next[idx].Quantity--
	if next[idx].Quantity <= 0 {
		next = append(next[:idx], next[idx+1:]...)
	}
	return next, true
}
