package artifact

// DefaultShardBytes is the nominal shard size cap. Shards stay at or
// under this unless a single tensor alone exceeds it.
const DefaultShardBytes = 4 << 20

// SplitOptions configures the shard splitter.
type SplitOptions struct {
	// MaxBytes caps normal shards; 0 means DefaultShardBytes.
	MaxBytes int64
	// RejectEmpty makes an empty group an error instead of yielding
	// zero shards.
	RejectEmpty bool
}

// Split packs a group's tensors into shards with a single greedy forward
// pass: each tensor's full byte run is appended to the current shard if
// it fits, otherwise the shard is closed and a new one started. A tensor
// larger than the cap occupies its own oversized shard; tensor bytes are
// never split across shards. The packing is deliberately not
// bin-packing-optimal: boundaries must be recomputable from the manifest
// alone, in order, in O(n).
func Split(groupIndex int, group Group, opt SplitOptions) ([]Shard, error) {
	max := opt.MaxBytes
	if max <= 0 {
		max = DefaultShardBytes
	}
	if len(group) == 0 {
		if opt.RejectEmpty {
			return nil, &EmptyGroupError{Group: groupIndex}
		}
		return nil, nil
	}

	var shards []Shard
	cur := Shard{Index: 0}
	for _, t := range group {
		n := int64(len(t.Data))
		if len(cur.Refs) > 0 && int64(len(cur.Data))+n > max {
			shards = append(shards, cur)
			cur = Shard{Index: cur.Index + 1}
		}
		cur.Refs = append(cur.Refs, TensorRef{
			Name:   t.Name,
			Offset: int64(len(cur.Data)),
			Length: n,
		})
		cur.Data = append(cur.Data, t.Data...)
	}
	shards = append(shards, cur)
	return shards, nil
}
