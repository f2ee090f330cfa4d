package cart

// Merge combines a guest cart into an account-held cart.
//
// The account cart is the base and keeps its order; guest lines whose key is
// already present add their quantity to that line, the rest are appended in
// guest order. Quantities are summed, never replaced or capped. Inputs are not
// modified. Merging the same guest cart twice double-counts, so callers must
// retire the guest cart after a merge.
func Merge(guestItems, accountItems []LineItem) []LineItem {
	merged := make([]LineItem, len(accountItems), len(accountItems)+len(guestItems))
	copy(merged, accountItems)

	index := make(map[Key]int, len(merged)+len(guestItems))
	for i, item := range merged {
		if _, ok := index[item.Key()]; !ok {
			index[item.Key()] = i
		}
	}

	for _, guest := range guestItems {
		key := guest.Key()
		if pos, ok := index[key]; ok {
			merged[pos].Quantity += guest.Quantity
			continue
		}
		index[key] = len(merged)
		merged = append(merged, guest)
	}

	return merged
}
