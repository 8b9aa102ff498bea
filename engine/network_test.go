package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/pthm-cable/tritium/components"
)

func mustBox(t *testing.T, net *Network, name string, opts ...BoxOption) Box {
	t.Helper()
	b, err := net.NewBox(name, opts...)
	if err != nil {
		t.Fatalf("NewBox(%q): %v", name, err)
	}
	return b
}

func TestNewBox_Defaults(t *testing.T) {
	net := NewNetwork()
	b := mustBox(t, net, "Storage")

	if b.Name() != "Storage" {
		t.Errorf("name = %q, want Storage", b.Name())
	}
	if b.InitialInventory() != 0 || b.Inventory() != 0 {
		t.Errorf("expected zero inventory, got initial=%g current=%g", b.InitialInventory(), b.Inventory())
	}
	if b.GenerationTerm() != 0 {
		t.Errorf("expected zero generation term, got %g", b.GenerationTerm())
	}
	if len(b.Outputs()) != 0 {
		t.Errorf("expected no outputs, got %d", len(b.Outputs()))
	}
}

func TestNewBox_Options(t *testing.T) {
	net := NewNetwork()
	b := mustBox(t, net, "Plasma", WithInitialInventory(2.5), WithGenerationTerm(-1))

	if b.InitialInventory() != 2.5 {
		t.Errorf("initial = %g, want 2.5", b.InitialInventory())
	}
	if b.Inventory() != 2.5 {
		t.Errorf("current = %g, want 2.5", b.Inventory())
	}
	if b.GenerationTerm() != -1 {
		t.Errorf("generation = %g, want -1", b.GenerationTerm())
	}
}

func TestNetwork_OrderAndLookup(t *testing.T) {
	net := NewNetwork()
	names := []string{"Storage", "Plasma", "Breeder"}
	for _, n := range names {
		mustBox(t, net, n)
	}

	if net.Len() != 3 {
		t.Fatalf("Len = %d, want 3", net.Len())
	}
	for i, b := range net.Boxes() {
		if b.Name() != names[i] {
			t.Errorf("box %d = %q, want %q", i, b.Name(), names[i])
		}
		if b.ID() != components.BoxID(i) {
			t.Errorf("box %d has id %d", i, b.ID())
		}
	}

	b, ok := net.Lookup("Plasma")
	if !ok || b.ID() != 1 {
		t.Errorf("Lookup(Plasma) = %v, %v", b.ID(), ok)
	}
	if _, ok := net.Lookup("Blanket"); ok {
		t.Error("Lookup of unknown name should fail")
	}
	if _, ok := net.Box(7); ok {
		t.Error("Box(7) should be out of range")
	}
}

func TestAddOutput_RecordsEdges(t *testing.T) {
	net := NewNetwork()
	storage := mustBox(t, net, "Storage")
	plasma := mustBox(t, net, "Plasma")
	breeder := mustBox(t, net, "Breeder")

	if err := breeder.AddOutput(storage, 1); err != nil {
		t.Fatal(err)
	}
	if err := storage.AddConstantOutput(plasma, 0.5); err != nil {
		t.Fatal(err)
	}

	got := breeder.Outputs()
	if len(got) != 1 || got[0].Target != storage.ID() || got[0].Rate != 1 || got[0].Kind != components.FlowProportional {
		t.Errorf("breeder outputs = %+v", got)
	}
	got = storage.Outputs()
	if len(got) != 1 || got[0].Target != plasma.ID() || got[0].Rate != 0.5 || got[0].Kind != components.FlowConstant {
		t.Errorf("storage outputs = %+v", got)
	}

	// Outputs returns a copy
	got[0].Rate = 99
	if storage.Outputs()[0].Rate != 0.5 {
		t.Error("mutating Outputs() result leaked into the network")
	}
}

func TestAddOutput_RejectsNegativeRate(t *testing.T) {
	net := NewNetwork()
	a := mustBox(t, net, "A")
	b := mustBox(t, net, "B")

	tests := []struct {
		name string
		add  func() error
	}{
		{"proportional negative", func() error { return a.AddOutput(b, -0.1) }},
		{"constant negative", func() error { return a.AddConstantOutput(b, -1) }},
		{"proportional NaN", func() error { return a.AddOutput(b, math.NaN()) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.add(); !errors.Is(err, ErrNegativeRate) {
				t.Errorf("expected ErrNegativeRate, got %v", err)
			}
		})
	}
	if len(a.Outputs()) != 0 {
		t.Errorf("rejected edges must not be recorded, got %d", len(a.Outputs()))
	}

	// Zero is a valid (inert) rate
	if err := a.AddOutput(b, 0); err != nil {
		t.Errorf("zero rate should be accepted: %v", err)
	}
}

func TestAddOutput_ForeignBox(t *testing.T) {
	a := mustBox(t, NewNetwork(), "A")
	b := mustBox(t, NewNetwork(), "B")

	if err := a.AddOutput(b, 1); !errors.Is(err, ErrForeignBox) {
		t.Errorf("expected ErrForeignBox, got %v", err)
	}
	if err := a.CoupleGeneration(b, 1); !errors.Is(err, ErrForeignBox) {
		t.Errorf("expected ErrForeignBox, got %v", err)
	}
}

func TestNetwork_FrozenAfterSystem(t *testing.T) {
	net := NewNetwork()
	a := mustBox(t, net, "A", WithInitialInventory(1))
	b := mustBox(t, net, "B")

	if _, err := NewSystem(net); err != nil {
		t.Fatal(err)
	}
	if !net.Frozen() {
		t.Fatal("network should be frozen")
	}
	if _, err := net.NewBox("C"); !errors.Is(err, ErrFrozen) {
		t.Errorf("NewBox after freeze: expected ErrFrozen, got %v", err)
	}
	if err := a.AddOutput(b, 1); !errors.Is(err, ErrFrozen) {
		t.Errorf("AddOutput after freeze: expected ErrFrozen, got %v", err)
	}
	if err := a.CoupleGeneration(b, 1); !errors.Is(err, ErrFrozen) {
		t.Errorf("CoupleGeneration after freeze: expected ErrFrozen, got %v", err)
	}
}

func TestNewSystem_RejectsOwnedNetwork(t *testing.T) {
	net := NewNetwork()
	a := mustBox(t, net, "A", WithInitialInventory(1))
	b := mustBox(t, net, "B")
	if err := a.AddOutput(b, 0.1); err != nil {
		t.Fatal(err)
	}

	first, err := NewSystem(net)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Run(20); err != nil {
		t.Fatal(err)
	}

	if _, err := NewSystem(net, WithSteps(10)); !errors.Is(err, ErrFrozen) {
		t.Fatalf("second NewSystem: expected ErrFrozen, got %v", err)
	}
	if n := len(first.Times()); n != DefaultSteps+1 {
		t.Fatalf("len(t) = %d, want %d", n, DefaultSteps+1)
	}
	for _, box := range first.Boxes() {
		if got := len(box.Inventories()); got != len(first.Times()) {
			t.Errorf("%s: len(inventories) = %d, want %d", box.Name(), got, len(first.Times()))
		}
	}
}

func TestNewSystem_NilNetwork(t *testing.T) {
	if _, err := NewSystem(nil); !errors.Is(err, ErrNilNetwork) {
		t.Errorf("expected ErrNilNetwork, got %v", err)
	}
}

func TestCoupleGeneration(t *testing.T) {
	net := NewNetwork()
	plasma := mustBox(t, net, "Plasma")
	breeder := mustBox(t, net, "Breeder", WithGenerationTerm(1.1))

	if err := breeder.CoupleGeneration(plasma, 1.1); err != nil {
		t.Fatal(err)
	}
	src := breeder.Source()
	if src.Policy != components.GenerationCoupled || src.Ref != plasma.ID() || src.Factor != 1.1 {
		t.Errorf("unexpected source %+v", src)
	}
	if breeder.GenerationTerm() != 0 {
		t.Errorf("coupled box should report zero constant term, got %g", breeder.GenerationTerm())
	}
}
