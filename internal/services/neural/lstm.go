package neural

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// param is one trainable tensor with its gradient and Adam moments.
type param struct {
	w, g *mat.Dense
	m, v []float64
}

func newParam(rows, cols int) *param {
	return &param{
		w: mat.NewDense(rows, cols, nil),
		g: mat.NewDense(rows, cols, nil),
		m: make([]float64, rows*cols),
		v: make([]float64, rows*cols),
	}
}

func (p *param) values() []float64 { return p.w.RawMatrix().Data }

func (p *param) grads() []float64 { return p.g.RawMatrix().Data }

func (p *param) zeroGrad() { p.g.Zero() }

// lstmLayer holds the stacked input, forget, cell and output gate weights.
type lstmLayer struct {
	in, hidden int
	wx, wh, b  *param // 4H x in, 4H x H, 4H x 1
}

func newLSTMLayer(in, hidden int, rng *rand.Rand) *lstmLayer {
	l := &lstmLayer{
		in:     in,
		hidden: hidden,
		wx:     newParam(4*hidden, in),
		wh:     newParam(4*hidden, hidden),
		b:      newParam(4*hidden, 1),
	}
	glorotUniform(l.wx.w, rng)
	orthogonal(l.wh.w, rng)
	// forget gate bias starts at one
	for i := hidden; i < 2*hidden; i++ {
		l.b.w.Set(i, 0, 1)
	}
	return l
}

func (l *lstmLayer) params() []*param { return []*param{l.wx, l.wh, l.b} }

// lstmStep keeps what the backward pass needs from one time step.
type lstmStep struct {
	x, hPrev, cPrev *mat.VecDense
	i, f, g, o      []float64
	c, tanhC        []float64
}

// forward runs the layer over xs and returns the hidden state of every step.
func (l *lstmLayer) forward(xs []*mat.VecDense) ([]*mat.VecDense, []lstmStep) {
	H := l.hidden
	h := mat.NewVecDense(H, nil)
	c := mat.NewVecDense(H, nil)
	bias := l.b.w.ColView(0)
	hs := make([]*mat.VecDense, len(xs))
	steps := make([]lstmStep, len(xs))

	z := mat.NewVecDense(4*H, nil)
	zh := mat.NewVecDense(4*H, nil)
	for t, x := range xs {
		z.MulVec(l.wx.w, x)
		zh.MulVec(l.wh.w, h)
		z.AddVec(z, zh)
		z.AddVec(z, bias)

		st := lstmStep{
			x: x, hPrev: h, cPrev: c,
			i: make([]float64, H), f: make([]float64, H), g: make([]float64, H), o: make([]float64, H),
			c: make([]float64, H), tanhC: make([]float64, H),
		}
		hNext := mat.NewVecDense(H, nil)
		cNext := mat.NewVecDense(H, nil)
		for k := 0; k < H; k++ {
			st.i[k] = sigmoid(z.AtVec(k))
			st.f[k] = sigmoid(z.AtVec(H + k))
			st.g[k] = math.Tanh(z.AtVec(2*H + k))
			st.o[k] = sigmoid(z.AtVec(3*H + k))
			st.c[k] = st.f[k]*c.AtVec(k) + st.i[k]*st.g[k]
			st.tanhC[k] = math.Tanh(st.c[k])
			cNext.SetVec(k, st.c[k])
			hNext.SetVec(k, st.o[k]*st.tanhC[k])
		}
		steps[t] = st
		h, c = hNext, cNext
		hs[t] = h
	}
	return hs, steps
}

// backward accumulates weight gradients given dL/dh for every step (nil for
// steps without a direct loss path) and returns dL/dx for every step.
func (l *lstmLayer) backward(steps []lstmStep, dhs []*mat.VecDense) []*mat.VecDense {
	H := l.hidden
	dxs := make([]*mat.VecDense, len(steps))
	dhNext := mat.NewVecDense(H, nil)
	dcNext := make([]float64, H)
	dz := mat.NewVecDense(4*H, nil)
	bgrad := l.b.g.ColView(0).(*mat.VecDense)

	for t := len(steps) - 1; t >= 0; t-- {
		st := steps[t]
		for k := 0; k < H; k++ {
			dh := dhNext.AtVec(k)
			if dhs[t] != nil {
				dh += dhs[t].AtVec(k)
			}
			do := dh * st.tanhC[k]
			dc := dh*st.o[k]*(1-st.tanhC[k]*st.tanhC[k]) + dcNext[k]
			di := dc * st.g[k]
			dg := dc * st.i[k]
			df := dc * st.cPrev.AtVec(k)
			dz.SetVec(k, di*st.i[k]*(1-st.i[k]))
			dz.SetVec(H+k, df*st.f[k]*(1-st.f[k]))
			dz.SetVec(2*H+k, dg*(1-st.g[k]*st.g[k]))
			dz.SetVec(3*H+k, do*st.o[k]*(1-st.o[k]))
			dcNext[k] = dc * st.f[k]
		}
		l.wx.g.RankOne(l.wx.g, 1, dz, st.x)
		l.wh.g.RankOne(l.wh.g, 1, dz, st.hPrev)
		bgrad.AddVec(bgrad, dz)

		dx := mat.NewVecDense(l.in, nil)
		dx.MulVec(l.wx.w.T(), dz)
		dxs[t] = dx
		dhNext.MulVec(l.wh.w.T(), dz)
	}
	return dxs
}

// denseLayer is a linear fully connected layer.
type denseLayer struct {
	w, b *param
}

func newDenseLayer(in, out int, rng *rand.Rand) *denseLayer {
	d := &denseLayer{w: newParam(out, in), b: newParam(out, 1)}
	glorotUniform(d.w.w, rng)
	return d
}

func (d *denseLayer) params() []*param { return []*param{d.w, d.b} }

func (d *denseLayer) forward(x *mat.VecDense) *mat.VecDense {
	r, _ := d.w.w.Dims()
	y := mat.NewVecDense(r, nil)
	y.MulVec(d.w.w, x)
	y.AddVec(y, d.b.w.ColView(0))
	return y
}

func (d *denseLayer) backward(x, dy *mat.VecDense) *mat.VecDense {
	d.w.g.RankOne(d.w.g, 1, dy, x)
	bgrad := d.b.g.ColView(0).(*mat.VecDense)
	bgrad.AddVec(bgrad, dy)
	_, c := d.w.w.Dims()
	dx := mat.NewVecDense(c, nil)
	dx.MulVec(d.w.w.T(), dy)
	return dx
}

// network is LSTM -> dropout -> LSTM -> dropout -> dense -> dense.
type network struct {
	lstm1, lstm2   *lstmLayer
	dense1, dense2 *denseLayer
	dropout        float64
}

func newNetwork(units [2]int, denseUnits int, dropout float64, rng *rand.Rand) *network {
	return &network{
		lstm1:   newLSTMLayer(1, units[0], rng),
		lstm2:   newLSTMLayer(units[0], units[1], rng),
		dense1:  newDenseLayer(units[1], denseUnits, rng),
		dense2:  newDenseLayer(denseUnits, 1, rng),
		dropout: dropout,
	}
}

func (n *network) params() []*param {
	var ps []*param
	ps = append(ps, n.lstm1.params()...)
	ps = append(ps, n.lstm2.params()...)
	ps = append(ps, n.dense1.params()...)
	ps = append(ps, n.dense2.params()...)
	return ps
}

func (n *network) zeroGrad() {
	for _, p := range n.params() {
		p.zeroGrad()
	}
}

// pass is the cached activations of one forward pass.
type pass struct {
	steps1, steps2 []lstmStep
	mask1          [][]float64
	mask2          []float64
	last, hidden   *mat.VecDense
	out            float64
}

// forward predicts the next value of window. A nil rng disables dropout.
func (n *network) forward(window []float64, rng *rand.Rand) *pass {
	xs := make([]*mat.VecDense, len(window))
	for t, v := range window {
		xs[t] = mat.NewVecDense(1, []float64{v})
	}
	p := &pass{}

	hs1, steps1 := n.lstm1.forward(xs)
	p.steps1 = steps1
	in2 := make([]*mat.VecDense, len(hs1))
	p.mask1 = make([][]float64, len(hs1))
	for t, h := range hs1 {
		in2[t], p.mask1[t] = dropout(h, n.dropout, rng)
	}

	hs2, steps2 := n.lstm2.forward(in2)
	p.steps2 = steps2
	p.last, p.mask2 = dropout(hs2[len(hs2)-1], n.dropout, rng)

	p.hidden = n.dense1.forward(p.last)
	p.out = n.dense2.forward(p.hidden).AtVec(0)
	return p
}

// backward accumulates gradients for dL/dout.
func (n *network) backward(p *pass, dout float64) {
	dHidden := n.dense2.backward(p.hidden, mat.NewVecDense(1, []float64{dout}))
	dLast := n.dense1.backward(p.last, dHidden)
	scaleByMask(dLast, p.mask2)

	dhs2 := make([]*mat.VecDense, len(p.steps2))
	dhs2[len(dhs2)-1] = dLast
	dhs1 := n.lstm2.backward(p.steps2, dhs2)
	for t, dh := range dhs1 {
		scaleByMask(dh, p.mask1[t])
	}
	n.lstm1.backward(p.steps1, dhs1)
}

// predict runs inference without dropout.
func (n *network) predict(window []float64) float64 {
	return n.forward(window, nil).out
}

// snapshot copies every weight.
func (n *network) snapshot() [][]float64 {
	ps := n.params()
	out := make([][]float64, len(ps))
	for i, p := range ps {
		out[i] = append([]float64(nil), p.values()...)
	}
	return out
}

func (n *network) restore(s [][]float64) {
	for i, p := range n.params() {
		copy(p.values(), s[i])
	}
}

// dropout zeroes units of a copy of v and scales survivors by 1/(1-rate).
// With dropout off it returns v itself and a nil mask.
func dropout(v *mat.VecDense, rate float64, rng *rand.Rand) (*mat.VecDense, []float64) {
	if rng == nil || rate <= 0 {
		return v, nil
	}
	keep := 1 / (1 - rate)
	mask := make([]float64, v.Len())
	out := mat.NewVecDense(v.Len(), nil)
	for k := range mask {
		if rng.Float64() >= rate {
			mask[k] = keep
		}
		out.SetVec(k, v.AtVec(k)*mask[k])
	}
	return out, mask
}

func scaleByMask(v *mat.VecDense, mask []float64) {
	if mask == nil {
		return
	}
	for k, m := range mask {
		v.SetVec(k, v.AtVec(k)*m)
	}
}

func glorotUniform(w *mat.Dense, rng *rand.Rand) {
	r, c := w.Dims()
	limit := math.Sqrt(6 / float64(r+c))
	raw := w.RawMatrix().Data
	for i := range raw {
		raw[i] = (rng.Float64()*2 - 1) * limit
	}
}

// orthogonal fills w with orthonormal columns taken from the QR factor of a
// Gaussian matrix.
func orthogonal(w *mat.Dense, rng *rand.Rand) {
	r, c := w.Dims()
	a := mat.NewDense(r, c, nil)
	raw := a.RawMatrix().Data
	for i := range raw {
		raw[i] = rng.NormFloat64()
	}
	var qr mat.QR
	qr.Factorize(a)
	var q mat.Dense
	qr.QTo(&q)
	w.Copy(q.Slice(0, r, 0, c))
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
