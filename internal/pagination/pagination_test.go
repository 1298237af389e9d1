package pagination

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name               string
		page, limit        int
		total              int64
		wantPages          int64
		wantHasMore        bool
		wantPage, wantSize int
	}{
		{"empty", 1, 20, 0, 0, false, 1, 20},
		{"exact fit", 1, 10, 10, 1, false, 1, 10},
		{"scenario A", 2, 10, 25, 3, true, 2, 10},
		{"last page", 3, 10, 25, 3, false, 3, 10},
		{"beyond last", 9, 10, 25, 3, false, 9, 10},
		{"limit one", 1, 1, 3, 3, true, 1, 1},
		{"zero limit treated as one", 1, 0, 2, 2, true, 1, 1},
		{"page zero treated as one", 0, 5, 6, 2, true, 1, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Compute(tt.page, tt.limit, tt.total)
			assert.Equal(t, tt.wantPages, m.TotalPages)
			assert.Equal(t, tt.wantHasMore, m.HasMore)
			assert.Equal(t, tt.wantPage, m.Page)
			assert.Equal(t, tt.wantSize, m.Limit)
			assert.Equal(t, tt.total, m.Total)
		})
	}
}

func TestCompute_Invariant(t *testing.T) {
	for total := int64(0); total <= 120; total++ {
		for limit := 1; limit <= 13; limit++ {
			wantPages := (total + int64(limit) - 1) / int64(limit)
			for page := 1; page <= int(wantPages)+2; page++ {
				m := Compute(page, limit, total)
				if m.TotalPages != wantPages {
					t.Fatalf("total=%d limit=%d: pages %d, want %d", total, limit, m.TotalPages, wantPages)
				}
				if m.HasMore != (int64(page) < wantPages) {
					t.Fatalf("total=%d limit=%d page=%d: hasMore %v", total, limit, page, m.HasMore)
				}
			}
		}
	}
}

func TestNewRequest(t *testing.T) {
	assert.Equal(t, Request{Page: 1, Limit: 1}, NewRequest(-3, 0, 0))
	assert.Equal(t, Request{Page: 2, Limit: 50}, NewRequest(2, 500, 0))
	assert.Equal(t, Request{Page: 4, Limit: 10}, NewRequest(4, 25, 10))
	assert.Equal(t, int64(30), NewRequest(4, 10, 0).Skip())
	assert.Equal(t, int64(0), Request{}.Skip())
}

func TestSkip_Saturates(t *testing.T) {
	assert.Equal(t, int64(math.MaxInt64), Request{Page: math.MaxInt64 / 10, Limit: 20}.Skip())
	assert.Equal(t, int64(math.MaxInt64), Request{Page: math.MaxInt, Limit: 50}.Skip())
	assert.Equal(t, int64(math.MaxInt64-3), Request{Page: math.MaxInt64 / 2, Limit: 2}.Skip())
}

func TestNewResult_NeverNil(t *testing.T) {
	r := NewResult[int](nil, Compute(1, 10, 0))
	assert.NotNil(t, r.Items)
	assert.Empty(t, r.Items)

	m := Map(NewResult([]int{1, 2}, Compute(1, 10, 2)), func(i int) string { return string(rune('a' + i)) })
	assert.Equal(t, []string{"b", "c"}, m.Items)
	assert.Equal(t, int64(2), m.Pagination.Total)
}
