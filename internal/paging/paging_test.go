package paging

import "testing"

func TestSlice(t *testing.T) {
	all := []int{1, 2, 3, 4, 5}

	p := Slice(all, Request{Page: 1, Size: 2})
	if len(p.Items) != 2 || p.Items[0] != 3 || p.Items[1] != 4 {
		t.Fatalf("unexpected items: %v", p.Items)
	}
	if p.Total != 5 || p.TotalPages != 3 {
		t.Fatalf("unexpected totals: %+v", p)
	}

	empty := Slice(all, Request{Page: 9, Size: 2})
	if len(empty.Items) != 0 || empty.Items == nil {
		t.Fatalf("expected empty non-nil page, got %#v", empty.Items)
	}
}

func TestNormalize(t *testing.T) {
	r := Request{Page: -1, Size: 0}.Normalize(DefaultSize)
	if r.Page != 0 || r.Size != DefaultSize {
		t.Fatalf("unexpected normalized request: %+v", r)
	}
	r = Request{Size: 1000}.Normalize(DefaultSize)
	if r.Size != MaxSize {
		t.Fatalf("expected size clamp to %d, got %d", MaxSize, r.Size)
	}
}

func TestHugePageDoesNotOverflow(t *testing.T) {
	r := FromQuery("6917529027641081856", "2").Normalize(DefaultSize)
	if r.Page != MaxPage {
		t.Fatalf("expected page clamp to %d, got %d", MaxPage, r.Page)
	}
	if r.Offset() < 0 {
		t.Fatalf("offset overflowed: %d", r.Offset())
	}

	raw := Request{Page: 6917529027641081856, Size: 2}
	if raw.Offset() < 0 {
		t.Fatalf("offset overflowed without normalize: %d", raw.Offset())
	}
	p := Slice([]int{1, 2, 3}, raw)
	if len(p.Items) != 0 || p.Total != 3 {
		t.Fatalf("expected empty window past the end, got %+v", p)
	}
}
