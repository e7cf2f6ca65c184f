package indexer

import (
	"math"
	"reflect"
	"testing"
)

func TestSplitRange(t *testing.T) {
	tests := []struct {
		name      string
		from, to  uint64
		batchSize uint64
		want      []BlockRange
	}{
		{
			name: "even batches", from: 100, to: 105, batchSize: 2,
			want: []BlockRange{{From: 100, To: 101}, {From: 102, To: 103}, {From: 104, To: 105}},
		},
		{
			name: "short tail", from: 0, to: 4, batchSize: 3,
			want: []BlockRange{{From: 0, To: 2}, {From: 3, To: 4}},
		},
		{
			name: "single block", from: 5, to: 5, batchSize: 10,
			want: []BlockRange{{From: 5, To: 5}},
		},
		{
			name: "top of range", from: math.MaxUint64 - 1, to: math.MaxUint64, batchSize: 1,
			want: []BlockRange{{From: math.MaxUint64 - 1, To: math.MaxUint64 - 1}, {From: math.MaxUint64, To: math.MaxUint64}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitRange(tt.from, tt.to, tt.batchSize)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ranges mismatch: %+v != %+v", got, tt.want)
			}
			var total uint64
			for _, r := range got {
				total += r.Len()
			}
			if total != tt.to-tt.from+1 {
				t.Fatalf("ranges cover %d blocks, want %d", total, tt.to-tt.from+1)
			}
		})
	}
}

func TestSplitRangeInvalid(t *testing.T) {
	if _, err := SplitRange(10, 9, 1); err == nil {
		t.Fatalf("expected error for invalid range")
	}
	if _, err := SplitRange(1, 10, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}
