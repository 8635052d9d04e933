package artifact

import "fmt"

// ShardName returns the on-disk filename for shard s (0-based) of a
// group's total shards. Filenames are 1-based to match the established
// artifact layout, e.g. group1-shard1of2.
func ShardName(groupIndex, shardIndex, total int) string {
	return fmt.Sprintf("group%d-shard%dof%d", groupIndex+1, shardIndex+1, total)
}

// BuildEntry produces the manifest entry for one group: shard filenames
// in index order and weights in source order. Pure; shard bytes are
// never touched here.
func BuildEntry(groupIndex int, group Group, shards []Shard) ManifestEntry {
	entry := ManifestEntry{
		Paths:   make([]string, 0, len(shards)),
		Weights: make([]WeightEntry, 0, len(group)),
	}
	for _, s := range shards {
		entry.Paths = append(entry.Paths, ShardName(groupIndex, s.Index, len(shards)))
	}
	for _, t := range group {
		entry.Weights = append(entry.Weights, WeightEntry{
			Name:         t.Name,
			Shape:        t.Shape,
			Dtype:        t.Dtype,
			Quantization: t.Quant,
		})
	}
	return entry
}

// CheckEntry verifies the byte accounting of a manifest entry against
// the shard sizes listed for it: the shape-implied storage bytes of all
// weights must equal the total shard bytes.
func CheckEntry(entry ManifestEntry, shardSizes []int64) error {
	if len(shardSizes) != len(entry.Paths) {
		return fmt.Errorf("manifest lists %d shard files, have %d", len(entry.Paths), len(shardSizes))
	}
	var want, have int64
	for i := range entry.Weights {
		want += entry.Weights[i].StorageBytes()
	}
	for _, n := range shardSizes {
		have += n
	}
	if want != have {
		return fmt.Errorf("manifest weights imply %d bytes, shard files hold %d", want, have)
	}
	return nil
}
