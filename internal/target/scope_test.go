package target

import (
	"context"
	"testing"
)

func TestClientFrom_SameWithinScope(t *testing.T) {
	ctx := WithClient(context.Background())

	c1, ok := ClientFrom(ctx)
	if !ok {
		t.Fatal("expected client in scope")
	}
	c2, _ := ClientFrom(ctx)
	if c1 != c2 {
		t.Error("two reads in one scope returned different clients")
	}
}

func TestClientFrom_DistinctScopes(t *testing.T) {
	a, _ := ClientFrom(WithClient(context.Background()))
	b, _ := ClientFrom(WithClient(context.Background()))

	if a.RequestID == b.RequestID {
		t.Error("separate scopes share a request id")
	}
}

func TestClientFrom_OutsideScope(t *testing.T) {
	if _, ok := ClientFrom(context.Background()); ok {
		t.Error("expected no client outside a scope")
	}
}

func TestSingleton_SharedUntilReset(t *testing.T) {
	var s Singleton

	first := s.Get()
	if s.Get() != first {
		t.Error("Get() should return the shared client")
	}

	s.Reset()
	if s.Get() == first {
		t.Error("Reset() should drop the shared client")
	}

	c := newRequestClient()
	s.Set(c)
	if s.Get() != c {
		t.Error("Set() should replace the shared client")
	}
}
