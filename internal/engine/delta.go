package engine

import "github.com/portpulse/portpulse/internal/domain"

// record constrains delta computation to comparable, identity-carrying
// records, so changed-record detection is a type-checked value comparison
// instead of key lookups.
type record interface {
	comparable
	domain.Keyed
}

// Delta partitions the difference between two snapshots of one channel.
// Upsert and Remove are disjoint by identity.
type Delta[T record] struct {
	Upsert []T
	Remove []string
}

// Empty reports whether the delta carries no change.
func (d Delta[T]) Empty() bool {
	return len(d.Upsert) == 0 && len(d.Remove) == 0
}

// Size returns the number of changed identities.
func (d Delta[T]) Size() int {
	return len(d.Upsert) + len(d.Remove)
}

// Diff computes the upsert/remove partition between two snapshots. Remove
// holds identities present in old but absent in cur; Upsert holds every
// record in cur that is new by identity or differs from its predecessor.
// Order follows the current (respectively old) snapshot order.
func Diff[T record](old, cur []T) Delta[T] {
	prev := make(map[string]T, len(old))
	for _, r := range old {
		prev[r.Key()] = r
	}

	current := make(map[string]struct{}, len(cur))
	var d Delta[T]
	for _, r := range cur {
		current[r.Key()] = struct{}{}
		p, known := prev[r.Key()]
		if !known || p != r {
			d.Upsert = append(d.Upsert, r)
		}
	}

	for _, r := range old {
		if _, kept := current[r.Key()]; !kept {
			d.Remove = append(d.Remove, r.Key())
		}
	}

	return d
}

// orderStatusCounts recomputes the status histogram over the full snapshot,
// not incrementally, so it can never drift from the snapshot it describes.
func orderStatusCounts(orders []domain.Order) map[domain.OrderStatus]int {
	counts := make(map[domain.OrderStatus]int, len(orders))
	for _, o := range orders {
		counts[o.Status]++
	}
	return counts
}
