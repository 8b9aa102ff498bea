package engine

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/tritium/components"
)

// StepperKind selects the resolve-phase implementation.
type StepperKind uint8

const (
	StepperScalar StepperKind = iota // edge-by-edge walk in box order
	StepperMatrix                    // dense affine operator, rate = A*x + c
)

// String returns the config name of the stepper.
func (k StepperKind) String() string {
	switch k {
	case StepperScalar:
		return "scalar"
	case StepperMatrix:
		return "matrix"
	default:
		return fmt.Sprintf("StepperKind(%d)", uint8(k))
	}
}

// ParseStepper maps a config name to a StepperKind. Empty means scalar.
func ParseStepper(s string) (StepperKind, error) {
	switch s {
	case "", "scalar":
		return StepperScalar, nil
	case "matrix":
		return StepperMatrix, nil
	default:
		return 0, fmt.Errorf("%q: %w", s, ErrUnknownStepper)
	}
}

// topology is an immutable copy of a frozen network's rates and edges.
type topology struct {
	sources []components.Source
	edges   [][]components.Flow
}

func (n *Network) topology() topology {
	topo := topology{
		sources: make([]components.Source, len(n.entities)),
		edges:   make([][]components.Flow, len(n.entities)),
	}
	for i, e := range n.entities {
		topo.sources[i] = *n.sourceMap.Get(e)
		edges := n.outMap.Get(e).Edges
		topo.edges[i] = make([]components.Flow, len(edges))
		copy(topo.edges[i], edges)
	}
	return topo
}

// resolver computes the net rate of every box from the inventories at the
// start of a step. It must read only x and write only rate.
type resolver interface {
	resolve(x, rate []float64)
}

func newResolver(kind StepperKind, topo topology) (resolver, error) {
	switch kind {
	case StepperScalar:
		return newScalarResolver(topo), nil
	case StepperMatrix:
		if len(topo.sources) == 0 {
			// gonum rejects zero-sized matrices; nothing to integrate anyway.
			return newScalarResolver(topo), nil
		}
		return newMatrixResolver(topo), nil
	default:
		return nil, fmt.Errorf("%s: %w", kind, ErrUnknownStepper)
	}
}

type scalarResolver struct {
	topo   topology
	inflow []float64
}

func newScalarResolver(topo topology) *scalarResolver {
	return &scalarResolver{
		topo:   topo,
		inflow: make([]float64, len(topo.sources)),
	}
}

func (r *scalarResolver) resolve(x, rate []float64) {
	for i := range rate {
		rate[i] = 0
		r.inflow[i] = 0
	}

	// Outflows leave the source and are credited to the target's inflow.
	for i, edges := range r.topo.edges {
		for _, e := range edges {
			f := e.Rate
			if e.Kind == components.FlowProportional {
				f *= x[i]
			}
			rate[i] -= f
			r.inflow[e.Target] += f
		}
	}

	// Coupled generation reads the complete inflow vector, so it runs after all edges.
	for i, src := range r.topo.sources {
		rate[i] += r.inflow[i]
		if src.Policy == components.GenerationCoupled {
			rate[i] += src.Factor * r.inflow[src.Ref]
		} else {
			rate[i] += src.Rate
		}
	}
}

type matrixResolver struct {
	a *mat.Dense
	c *mat.VecDense
}

// newMatrixResolver folds every edge and generation term into rate = A*x + c.
// Inflow into box j is P[j,:]*x + k[j]; a coupled box i adds Factor times that row.
func newMatrixResolver(topo topology) *matrixResolver {
	n := len(topo.sources)
	a := mat.NewDense(n, n, nil)
	p := mat.NewDense(n, n, nil)
	c := make([]float64, n)
	k := make([]float64, n)

	for i, edges := range topo.edges {
		for _, e := range edges {
			t := int(e.Target)
			if e.Kind == components.FlowProportional {
				a.Set(i, i, a.At(i, i)-e.Rate)
				a.Set(t, i, a.At(t, i)+e.Rate)
				p.Set(t, i, p.At(t, i)+e.Rate)
			} else {
				c[i] -= e.Rate
				c[t] += e.Rate
				k[t] += e.Rate
			}
		}
	}

	for i, src := range topo.sources {
		if src.Policy == components.GenerationCoupled {
			ref := int(src.Ref)
			for j := 0; j < n; j++ {
				a.Set(i, j, a.At(i, j)+src.Factor*p.At(ref, j))
			}
			c[i] += src.Factor * k[ref]
		} else {
			c[i] += src.Rate
		}
	}

	return &matrixResolver{a: a, c: mat.NewVecDense(n, c)}
}

func (r *matrixResolver) resolve(x, rate []float64) {
	xv := mat.NewVecDense(len(x), x)
	rv := mat.NewVecDense(len(rate), rate)
	rv.MulVec(r.a, xv)
	rv.AddVec(rv, r.c)
}
