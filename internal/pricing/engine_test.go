package pricing

import "testing"

func ptr(v int64) *int64 { return &v }

func TestLineAmount(t *testing.T) {
	amount, ok := Line{Qty: ptr(3), UnitRate: ptr(2500)}.Amount()
	if !ok || amount != 7500 {
		t.Fatalf("expected defined amount 7500, got %d (defined=%v)", amount, ok)
	}
}

func TestLineAmountZeroInputsAreDefined(t *testing.T) {
	amount, ok := Line{Qty: ptr(0), UnitRate: ptr(5000)}.Amount()
	if !ok || amount != 0 {
		t.Fatalf("expected defined zero amount, got %d (defined=%v)", amount, ok)
	}
}

func TestLineAmountUndefinedOnAbsentInput(t *testing.T) {
	if _, ok := (Line{Qty: ptr(2)}).Amount(); ok {
		t.Fatal("amount should be undefined without a unit rate")
	}
	if _, ok := (Line{UnitRate: ptr(100)}).Amount(); ok {
		t.Fatal("amount should be undefined without a quantity")
	}
	if _, ok := (Line{}).Amount(); ok {
		t.Fatal("amount should be undefined without any input")
	}
}

func TestComputeEndToEnd(t *testing.T) {
	lines := []Line{
		{Qty: ptr(2), UnitRate: ptr(50)},
		{Qty: ptr(1), UnitRate: ptr(30)},
	}
	summary := Compute(lines, Adjustments{Discount: 10, Tax: 5})
	if summary.Subtotal != 130 {
		t.Fatalf("expected subtotal 130, got %d", summary.Subtotal)
	}
	if summary.Total != 125 {
		t.Fatalf("expected total 125, got %d", summary.Total)
	}
}

func TestComputeSkipsUndefinedAmounts(t *testing.T) {
	lines := []Line{
		{Qty: ptr(2), UnitRate: ptr(50)},
		{Qty: ptr(4)}, // no rate yet, must not contribute
	}
	summary := Compute(lines, Adjustments{})
	if summary.Subtotal != 100 {
		t.Fatalf("expected subtotal 100, got %d", summary.Subtotal)
	}
	if summary.Total != 100 {
		t.Fatalf("expected total 100, got %d", summary.Total)
	}
}

func TestComputeOrderIndependent(t *testing.T) {
	a := []Line{
		{Qty: ptr(1), UnitRate: ptr(30)},
		{Qty: ptr(2), UnitRate: ptr(50)},
		{Qty: ptr(5), UnitRate: ptr(7)},
	}
	b := []Line{a[2], a[0], a[1]}
	adj := Adjustments{Discount: 12, Tax: 9}
	if Compute(a, adj) != Compute(b, adj) {
		t.Fatal("line order must not affect totals")
	}
}

func TestComputeIdempotent(t *testing.T) {
	lines := []Line{{Qty: ptr(3), UnitRate: ptr(1999)}}
	adj := Adjustments{Discount: 100, Tax: 250}
	first := Compute(lines, adj)
	second := Compute(lines, adj)
	if first != second {
		t.Fatalf("expected identical summaries, got %+v then %+v", first, second)
	}
}

func TestComputeMissingAdjustmentsDefaultToZero(t *testing.T) {
	lines := []Line{{Qty: ptr(2), UnitRate: ptr(75)}}
	summary := Compute(lines, Adjustments{})
	if summary.Total != 150 || summary.Discount != 0 || summary.Tax != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}
