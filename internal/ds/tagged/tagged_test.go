package tagged

import "testing"

func TestPackUnpackRoundTrip(t *testing.T) {
	addr := uintptr(0xdeadbeef000)
	counter := uint64(17)
	word := Pack(addr, counter)
	gotAddr, gotCounter := Unpack(word)
	if gotAddr != addr {
		t.Errorf("addr = %#x, want %#x", gotAddr, addr)
	}
	if gotCounter != counter {
		t.Errorf("counter = %d, want %d", gotCounter, counter)
	}
}

func TestCounterWraps(t *testing.T) {
	word := Pack(0x1000, CounterMask)
	_, counter := Unpack(word)
	if counter != CounterMask {
		t.Fatalf("counter = %d, want %d", counter, CounterMask)
	}

	var l Link
	l.StoreRelease(0x1000, CounterMask)
	newCounter, ok := l.CASTag(0x1000, CounterMask)
	if !ok {
		t.Fatal("CASTag failed to claim at max counter")
	}
	if newCounter != 0 {
		t.Errorf("newCounter = %d, want 0 (wrap)", newCounter)
	}
	gotAddr, gotCounter := l.Load()
	if gotAddr != 0x1000 || gotCounter != 0 {
		t.Errorf("Load = (%#x, %d), want (0x1000, 0)", gotAddr, gotCounter)
	}
}

func TestCASPublishAdvancesCounter(t *testing.T) {
	var l Link
	l.StoreRelease(0, 0)

	if !l.CASPublish(0, 0, 0x2000) {
		t.Fatal("CASPublish failed on empty link")
	}
	addr, counter := l.Load()
	if addr != 0x2000 || counter != 1 {
		t.Fatalf("Load = (%#x, %d), want (0x2000, 1)", addr, counter)
	}

	if l.CASPublish(0, 0, 0x3000) {
		t.Fatal("CASPublish succeeded against a stale (addr, counter) pair")
	}
}

func TestCASTagThenCASAdvance(t *testing.T) {
	var l Link
	l.StoreRelease(0x4000, 5)

	claimedCounter, ok := l.CASTag(0x4000, 5)
	if !ok {
		t.Fatal("CASTag failed")
	}
	if claimedCounter != 6 {
		t.Fatalf("claimedCounter = %d, want 6", claimedCounter)
	}

	if l.CASAdvance(0x4000, 4, 0x5000) {
		t.Fatal("CASAdvance succeeded with a stale claimed counter")
	}
	if !l.CASAdvance(0x4000, claimedCounter, 0x5000) {
		t.Fatal("CASAdvance failed with the just-claimed counter")
	}

	addr, counter := l.Load()
	if addr != 0x5000 || counter != 7 {
		t.Fatalf("Load = (%#x, %d), want (0x5000, 7)", addr, counter)
	}
}

func TestCASResetRestartsCounter(t *testing.T) {
	var l Link
	l.StoreRelease(0x6000, 37)

	if l.CASReset(0x6000, 36, 0x7000) {
		t.Fatal("CASReset succeeded with a stale counter")
	}
	if !l.CASReset(0x6000, 37, 0x7000) {
		t.Fatal("CASReset failed with the current (addr, counter) pair")
	}
	addr, counter := l.Load()
	if addr != 0x7000 || counter != 0 {
		t.Fatalf("Load = (%#x, %d), want (0x7000, 0)", addr, counter)
	}
}

func TestAddrOfPointerFromRoundTrip(t *testing.T) {
	x := 42
	addr := AddrOf(&x)
	p := PointerFrom[int](addr)
	if p != &x {
		t.Fatalf("PointerFrom did not recover the original pointer")
	}
	if *p != 42 {
		t.Errorf("*p = %d, want 42", *p)
	}
	if PointerFrom[int](0) != nil {
		t.Error("PointerFrom(0) should be nil")
	}
}
