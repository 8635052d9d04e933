package artifact

import (
	"bytes"
	"errors"
	"testing"
)

// seqTensor builds a float32-tagged tensor with n distinguishable bytes.
func seqTensor(name string, n int) Tensor {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i * 7 % 251)
	}
	return Tensor{Name: name, Dtype: Float32, Shape: []int64{int64(n / 4)}, Data: data}
}

func TestSplitGreedyPacking(t *testing.T) {
	group := Group{seqTensor("a", 40), seqTensor("b", 40), seqTensor("c", 40)}
	shards, err := Split(0, group, SplitOptions{MaxBytes: 100})
	if err != nil {
		t.Fatalf("split error: %v", err)
	}
	if len(shards) != 2 {
		t.Fatalf("want 2 shards, got %d", len(shards))
	}
	if len(shards[0].Data) != 80 || len(shards[1].Data) != 40 {
		t.Fatalf("shard sizes %d, %d", len(shards[0].Data), len(shards[1].Data))
	}
	if shards[0].Index != 0 || shards[1].Index != 1 {
		t.Fatalf("indices not contiguous from 0: %d, %d", shards[0].Index, shards[1].Index)
	}
	if got := shards[0].Refs[1]; got.Name != "b" || got.Offset != 40 || got.Length != 40 {
		t.Fatalf("unexpected ref for b: %+v", got)
	}
}

func TestSplitOversizedTensorAlone(t *testing.T) {
	group := Group{seqTensor("small1", 40), seqTensor("big", 252), seqTensor("small2", 40)}
	shards, err := Split(0, group, SplitOptions{MaxBytes: 100})
	if err != nil {
		t.Fatalf("split error: %v", err)
	}
	if len(shards) != 3 {
		t.Fatalf("want 3 shards, got %d", len(shards))
	}
	if len(shards[1].Refs) != 1 || shards[1].Refs[0].Name != "big" {
		t.Fatalf("oversized tensor not alone: %+v", shards[1].Refs)
	}
	for i, s := range shards {
		if i == 1 {
			continue
		}
		if int64(len(s.Data)) > 100 {
			t.Fatalf("shard %d exceeds cap: %d bytes", i, len(s.Data))
		}
	}
}

func TestSplitNeverSplitsTensors(t *testing.T) {
	group := Group{seqTensor("a", 60), seqTensor("b", 60), seqTensor("c", 8)}
	shards, err := Split(0, group, SplitOptions{MaxBytes: 64})
	if err != nil {
		t.Fatalf("split error: %v", err)
	}
	byName := map[string][]byte{}
	for _, s := range shards {
		for _, r := range s.Refs {
			byName[r.Name] = s.Data[r.Offset : r.Offset+r.Length]
		}
	}
	for _, tensor := range group {
		got, ok := byName[tensor.Name]
		if !ok {
			t.Fatalf("tensor %s missing from shards", tensor.Name)
		}
		if !bytes.Equal(got, tensor.Data) {
			t.Fatalf("tensor %s bytes differ after sharding", tensor.Name)
		}
	}
}

func TestSplitRoundTripConcatenation(t *testing.T) {
	group := Group{seqTensor("a", 100), seqTensor("b", 24), seqTensor("c", 300)}
	shards, err := Split(0, group, SplitOptions{MaxBytes: 128})
	if err != nil {
		t.Fatalf("split error: %v", err)
	}
	var concat, want []byte
	for _, s := range shards {
		concat = append(concat, s.Data...)
	}
	for _, tensor := range group {
		want = append(want, tensor.Data...)
	}
	if !bytes.Equal(concat, want) {
		t.Fatalf("concatenated shards differ from original byte stream")
	}
}

func TestSplitEmptyGroupPolicy(t *testing.T) {
	shards, err := Split(2, nil, SplitOptions{MaxBytes: 100})
	if err != nil {
		t.Fatalf("default policy should allow empty groups: %v", err)
	}
	if len(shards) != 0 {
		t.Fatalf("empty group produced %d shards", len(shards))
	}

	_, err = Split(2, nil, SplitOptions{MaxBytes: 100, RejectEmpty: true})
	var ege *EmptyGroupError
	if !errors.As(err, &ege) {
		t.Fatalf("want EmptyGroupError, got %v", err)
	}
	if ege.Group != 2 {
		t.Fatalf("error names group %d, want 2", ege.Group)
	}
}

func TestSplitDefaultCap(t *testing.T) {
	group := Group{seqTensor("a", 16)}
	shards, err := Split(0, group, SplitOptions{})
	if err != nil {
		t.Fatalf("split error: %v", err)
	}
	if len(shards) != 1 {
		t.Fatalf("small tensor with default cap should fit one shard, got %d", len(shards))
	}
}
