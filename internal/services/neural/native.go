package neural

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"PriceCast/internal/domain/service"
	"PriceCast/pkg/logger"
)

const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-7
)

// DefaultSpec mirrors the reference architecture: two 50-unit LSTM layers,
// 20% dropout, a 25-unit dense layer and a scalar output.
func DefaultSpec() service.ModelSpec {
	return service.ModelSpec{
		LookBack:        DefaultLookBack,
		Units:           [2]int{50, 50},
		DenseUnits:      25,
		Dropout:         0.2,
		Epochs:          50,
		BatchSize:       32,
		Patience:        10,
		LearningRate:    0.001,
		ValidationSplit: 0.2,
	}
}

// NativeRuntime trains the network in process on gonum matrices.
type NativeRuntime struct {
	log *logger.Logger
}

var _ service.SequenceModelRuntime = (*NativeRuntime)(nil)

// NewNativeRuntime creates the in-process runtime.
func NewNativeRuntime(log *logger.Logger) *NativeRuntime {
	if log == nil {
		log = logger.Nop()
	}
	return &NativeRuntime{log: log}
}

func (r *NativeRuntime) Name() string { return "native" }

func (r *NativeRuntime) Available() bool { return true }

// Train fits the network with Adam on mean squared error. The trailing
// ValidationSplit share of the windows is held out for early stopping and the
// weights of the best validation epoch are kept.
func (r *NativeRuntime) Train(ctx context.Context, x [][]float64, y []float64, spec service.ModelSpec) (*service.TrainResult, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("native runtime: %d windows for %d targets", len(x), len(y))
	}
	spec = withDefaults(spec)
	rng := rand.New(rand.NewSource(spec.Seed))
	net := newNetwork(spec.Units, spec.DenseUnits, spec.Dropout, rng)

	nVal := int(float64(len(x)) * spec.ValidationSplit)
	if nVal >= len(x) {
		nVal = len(x) - 1
	}
	trainX, trainY := x[:len(x)-nVal], y[:len(y)-nVal]
	valX, valY := x[len(x)-nVal:], y[len(y)-nVal:]

	opt := newAdam(net.params(), spec.LearningRate)
	order := make([]int, len(trainX))
	for i := range order {
		order[i] = i
	}

	start := time.Now()
	best := math.Inf(1)
	bestWeights := net.snapshot()
	sinceBest := 0
	epochs := 0
	var lastLoss float64
	for epoch := 0; epoch < spec.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("native runtime: training interrupted at epoch %d: %w", epoch, err)
		}
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var sum float64
		for b := 0; b < len(order); b += spec.BatchSize {
			end := min(b+spec.BatchSize, len(order))
			sum += trainBatch(net, opt, trainX, trainY, order[b:end], rng)
		}
		lastLoss = sum / float64(len(order))
		epochs = epoch + 1

		monitor := lastLoss
		if nVal > 0 {
			monitor = evaluate(net, valX, valY)
		}
		if monitor < best {
			best = monitor
			bestWeights = net.snapshot()
			sinceBest = 0
		} else {
			sinceBest++
		}
		r.log.Debug("epoch finished",
			logger.Int("epoch", epochs),
			logger.Float("loss", lastLoss),
			logger.Float("val_loss", monitor),
		)
		if sinceBest >= spec.Patience {
			break
		}
	}
	net.restore(bestWeights)

	r.log.Info("sequence model trained",
		logger.Int("windows", len(x)),
		logger.Int("epochs", epochs),
		logger.Float("best_val_loss", best),
		logger.Duration("duration_ms", time.Since(start)),
	)
	return &service.TrainResult{
		Model:       &nativeModel{net: net, lookBack: len(x[0])},
		Epochs:      epochs,
		BestValLoss: best,
		FinalLoss:   lastLoss,
	}, nil
}

// trainBatch applies one Adam step and returns the summed squared error of the batch.
func trainBatch(net *network, opt *adam, x [][]float64, y []float64, idx []int, rng *rand.Rand) float64 {
	net.zeroGrad()
	var sse float64
	scale := 2 / float64(len(idx))
	for _, i := range idx {
		p := net.forward(x[i], rng)
		diff := p.out - y[i]
		sse += diff * diff
		net.backward(p, scale*diff)
	}
	opt.step()
	return sse
}

func evaluate(net *network, x [][]float64, y []float64) float64 {
	var sse float64
	for i := range x {
		d := net.predict(x[i]) - y[i]
		sse += d * d
	}
	return sse / float64(len(x))
}

func withDefaults(spec service.ModelSpec) service.ModelSpec {
	def := DefaultSpec()
	if spec.Units[0] <= 0 || spec.Units[1] <= 0 {
		spec.Units = def.Units
	}
	if spec.DenseUnits <= 0 {
		spec.DenseUnits = def.DenseUnits
	}
	if spec.Epochs <= 0 {
		spec.Epochs = def.Epochs
	}
	if spec.BatchSize <= 0 {
		spec.BatchSize = def.BatchSize
	}
	if spec.Patience <= 0 {
		spec.Patience = def.Patience
	}
	if spec.LearningRate <= 0 {
		spec.LearningRate = def.LearningRate
	}
	if spec.ValidationSplit < 0 || spec.ValidationSplit >= 1 {
		spec.ValidationSplit = def.ValidationSplit
	}
	if spec.Dropout < 0 || spec.Dropout >= 1 {
		spec.Dropout = def.Dropout
	}
	return spec
}

// adam is the Adam optimizer over a fixed parameter list.
type adam struct {
	params []*param
	lr     float64
	t      int
}

func newAdam(params []*param, lr float64) *adam {
	return &adam{params: params, lr: lr}
}

func (a *adam) step() {
	a.t++
	c1 := 1 - math.Pow(adamBeta1, float64(a.t))
	c2 := 1 - math.Pow(adamBeta2, float64(a.t))
	for _, p := range a.params {
		w, g := p.values(), p.grads()
		for i := range w {
			p.m[i] = adamBeta1*p.m[i] + (1-adamBeta1)*g[i]
			p.v[i] = adamBeta2*p.v[i] + (1-adamBeta2)*g[i]*g[i]
			w[i] -= a.lr * (p.m[i] / c1) / (math.Sqrt(p.v[i]/c2) + adamEpsilon)
		}
	}
}

// nativeModel is the trained handle. The network is read-only after training.
type nativeModel struct {
	net      *network
	lookBack int
}

func (m *nativeModel) Predict(ctx context.Context, window []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(window) != m.lookBack {
		return 0, fmt.Errorf("native model: window of %d, want %d", len(window), m.lookBack)
	}
	return m.net.predict(window), nil
}
