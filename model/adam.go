package model

import (
	"math"
)

// adam is the adaptive optimizer in its library-default configuration.
type adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
	m     [][]float64
	v     [][]float64
	step  int
}

func newAdam(params []*param) *adam {
	opt := &adam{
		lr:    0.001,
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-7,
		m:     make([][]float64, len(params)),
		v:     make([][]float64, len(params)),
	}
	for i, p := range params {
		opt.m[i] = make([]float64, len(p.data))
		opt.v[i] = make([]float64, len(p.data))
	}
	return opt
}

// Step applies one bias-corrected update. Gradients must already be
// populated on each param.
func (opt *adam) Step(params []*param) {
	opt.step++
	bc1 := 1 - math.Pow(opt.beta1, float64(opt.step))
	bc2 := 1 - math.Pow(opt.beta2, float64(opt.step))
	for i, p := range params {
		m := opt.m[i]
		v := opt.v[i]
		for j, g := range p.grad {
			m[j] = opt.beta1*m[j] + (1-opt.beta1)*g
			v[j] = opt.beta2*v[j] + (1-opt.beta2)*g*g
			p.data[j] -= opt.lr * (m[j] / bc1) /
				(math.Sqrt(v[j]/bc2) + opt.eps)
		}
	}
}
