package neural

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceCast/internal/domain/service"
)

func lossAt(net *network, window []float64, target float64, seed int64, rate float64) float64 {
	var rng *rand.Rand
	if rate > 0 {
		rng = rand.New(rand.NewSource(seed))
	}
	d := net.forward(window, rng).out - target
	return d * d
}

func checkGradients(t *testing.T, rate float64) {
	t.Helper()
	net := newNetwork([2]int{3, 2}, 2, rate, rand.New(rand.NewSource(1)))
	window := []float64{0.1, 0.5, 0.3, 0.9}
	target := 0.4
	const seed = 21

	var rng *rand.Rand
	if rate > 0 {
		rng = rand.New(rand.NewSource(seed))
	}
	net.zeroGrad()
	p := net.forward(window, rng)
	net.backward(p, 2*(p.out-target))

	const eps = 1e-6
	for pi, prm := range net.params() {
		w, g := prm.values(), prm.grads()
		for i := range w {
			orig := w[i]
			w[i] = orig + eps
			up := lossAt(net, window, target, seed, rate)
			w[i] = orig - eps
			down := lossAt(net, window, target, seed, rate)
			w[i] = orig

			numeric := (up - down) / (2 * eps)
			assert.InDelta(t, numeric, g[i], 1e-6+1e-4*math.Abs(numeric), "param %d index %d", pi, i)
		}
	}
}

func TestBackpropMatchesFiniteDifferences(t *testing.T) {
	checkGradients(t, 0)
}

func TestBackpropWithDropoutMatchesFiniteDifferences(t *testing.T) {
	checkGradients(t, 0.3)
}

func TestInferenceIsDeterministic(t *testing.T) {
	net := newNetwork([2]int{4, 4}, 3, 0.5, rand.New(rand.NewSource(2)))
	w := []float64{0.2, 0.4, 0.6}
	assert.Equal(t, net.predict(w), net.predict(w))
}

func TestOrthogonalInit(t *testing.T) {
	l := newLSTMLayer(1, 5, rand.New(rand.NewSource(3)))
	r, c := l.wh.w.Dims()
	require.Equal(t, 20, r)
	require.Equal(t, 5, c)
	for i := 0; i < c; i++ {
		for j := 0; j < c; j++ {
			var dot float64
			for k := 0; k < r; k++ {
				dot += l.wh.w.At(k, i) * l.wh.w.At(k, j)
			}
			want := 0.0
			if i == j {
				want = 1
			}
			assert.InDelta(t, want, dot, 1e-9)
		}
	}
	// forget gate bias
	assert.Equal(t, 1.0, l.b.w.At(5, 0))
	assert.Equal(t, 0.0, l.b.w.At(0, 0))
}

func sineWindows(n, lookBack int) ([][]float64, []float64) {
	data := make([]float64, n)
	for i := range data {
		data[i] = 0.5 + 0.4*math.Sin(float64(i)/6)
	}
	return Windows(data, lookBack)
}

func TestNativeRuntimeLearnsSine(t *testing.T) {
	x, y := sineWindows(200, 10)
	spec := service.ModelSpec{
		Units:           [2]int{8, 8},
		DenseUnits:      4,
		Epochs:          40,
		BatchSize:       16,
		Patience:        40,
		LearningRate:    0.01,
		ValidationSplit: 0.2,
		Seed:            4,
	}
	res, err := NewNativeRuntime(nil).Train(context.Background(), x, y, spec)
	require.NoError(t, err)
	assert.Equal(t, 40, res.Epochs)

	nVal := int(float64(len(y)) * 0.2)
	valY := y[len(y)-nVal:]
	var mean, variance float64
	for _, v := range valY {
		mean += v
	}
	mean /= float64(len(valY))
	for _, v := range valY {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(valY))
	assert.Less(t, res.BestValLoss, 0.5*variance)

	pred, err := res.Model.Predict(context.Background(), x[0])
	require.NoError(t, err)
	assert.False(t, math.IsNaN(pred))

	_, err = res.Model.Predict(context.Background(), x[0][:5])
	assert.Error(t, err)
}

func TestNativeRuntimeStopsOnCancel(t *testing.T) {
	x, y := sineWindows(60, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewNativeRuntime(nil).Train(ctx, x, y, service.ModelSpec{Units: [2]int{2, 2}, DenseUnits: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNativeRuntimeRejectsMismatchedInput(t *testing.T) {
	_, err := NewNativeRuntime(nil).Train(context.Background(), [][]float64{{1, 2}}, nil, service.ModelSpec{})
	assert.Error(t, err)
}
