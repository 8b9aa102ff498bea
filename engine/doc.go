// Package engine integrates a small network of coupled inventory boxes.
//
// A [Network] is the arena that owns every box. Boxes are entities in an
// ark ECS world and edges store their target's [components.BoxID], so the
// flow graph may contain cycles without any ownership cycle:
//
//	net := engine.NewNetwork()
//	storage, _ := net.NewBox("Storage", engine.WithInitialInventory(1))
//	plasma, _ := net.NewBox("Plasma", engine.WithGenerationTerm(-1))
//	breeder, _ := net.NewBox("Breeder", engine.WithGenerationTerm(1.1))
//	_ = breeder.AddOutput(storage, 1)
//	_ = storage.AddConstantOutput(plasma, 1)
//
//	sys, _ := engine.NewSystem(net)
//	_ = sys.Run(20)
//
// # Stepping
//
// [System.Run] takes a fixed number of explicit forward-Euler steps. Every
// step first resolves the net rate of all boxes from the inventories at the
// start of the step, then applies them together. Two resolvers are
// available: a scalar edge walk and a dense affine operator built with
// gonum. Both honour the same two-phase discipline.
package engine
