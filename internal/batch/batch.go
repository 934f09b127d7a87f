// Package batch partitions the flattened render order into bounded units.
package batch

// DefaultMaxSize is the batch size used when none is configured.
const DefaultMaxSize = 100

// Reason explains a split decision. It is meant for logs.
type Reason string

// Split decision reasons.
const (
	ReasonSplit            Reason = "item count exceeds batch size"
	ReasonWithinLimit      Reason = "item count within batch size"
	ReasonNoDetails        Reason = "detail sections not requested"
	ReasonNoAttachments    Reason = "attachment embedding not requested"
	ReasonMergeUnavailable Reason = "merge tool unavailable"
)

// Preconditions gate splitting; all of them must hold.
// MergeAvailable is only called once the other conditions already hold, so
// the merge tool is not probed for exports that would never split.
type Preconditions struct {
	IncludeDetails     bool
	IncludeAttachments bool
	MergeAvailable     func() bool
}

// ShouldSplit reports whether n items must be rendered in several batches.
// maxSize <= 0 means DefaultMaxSize.
func ShouldSplit(n, maxSize int, pre Preconditions) (bool, Reason) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	switch {
	case !pre.IncludeDetails:
		return false, ReasonNoDetails
	case !pre.IncludeAttachments:
		return false, ReasonNoAttachments
	case n <= maxSize:
		return false, ReasonWithinLimit
	case pre.MergeAvailable == nil || !pre.MergeAvailable():
		return false, ReasonMergeUnavailable
	}
	return true, ReasonSplit
}

// Batch is a contiguous run of the render order.
type Batch[T any] struct {
	Index  int // 1-based
	Offset int // render rank of the first item
	Items  []T
}

// Len returns the number of items in the batch.
func (b Batch[T]) Len() int {
	return len(b.Items)
}

// Plan cuts items into batches of at most maxSize. Without split, or when
// everything fits, it returns one batch holding all items. Items are never
// reordered and the returned batches share the backing array of items.
func Plan[T any](items []T, maxSize int, split bool) []Batch[T] {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if !split || len(items) <= maxSize {
		return []Batch[T]{{Index: 1, Offset: 0, Items: items}}
	}

	count := (len(items) + maxSize - 1) / maxSize
	batches := make([]Batch[T], 0, count)
	for start := 0; start < len(items); start += maxSize {
		end := min(start+maxSize, len(items))
		batches = append(batches, Batch[T]{
			Index:  len(batches) + 1,
			Offset: start,
			Items:  items[start:end:end],
		})
	}
	return batches
}
