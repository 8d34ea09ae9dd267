package order

// Group is the set of items bound for one printer
type Group struct {
	PrinterID string     `json:"printer_id"`
	Items     []LineItem `json:"items"`
}

// IDs returns the item IDs of the group in order
func (g Group) IDs() []uint64 {
	ids := make([]uint64, len(g.Items))
	for i, item := range g.Items {
		ids[i] = item.ID
	}
	return ids
}

// Partition groups items by printer. Groups appear in the order their
// printer was first seen, and items keep their relative order inside a
// group. Items without a printer are collected under Unassigned.
func Partition(items []LineItem) []Group {
	index := make(map[string]int)
	var groups []Group

	for _, item := range items {
		key := item.PrinterID
		if !item.Assigned() {
			key = Unassigned
		}

		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{PrinterID: key})
		}
		groups[i].Items = append(groups[i].Items, item)
	}

	return groups
}
