package neural

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/service"
	xhttp "PriceCast/pkg/http"
	"PriceCast/pkg/logger"
)

const (
	trainPath   = "/v1/sequence/train"
	predictPath = "/v1/sequence/predict"

	predictAttempts = 3
	breakerFailures = 3
)

// RemoteRuntime delegates training and inference to an HTTP model sidecar.
// All calls go through a circuit breaker; an open breaker makes the runtime
// report itself unavailable.
type RemoteRuntime struct {
	baseURL string
	client  *xhttp.Client
	breaker *gobreaker.CircuitBreaker
	log     *logger.Logger
}

var _ service.SequenceModelRuntime = (*RemoteRuntime)(nil)

// RemoteOption configures RemoteRuntime.
type RemoteOption func(*RemoteRuntime)

// WithRemoteClient replaces the HTTP client.
func WithRemoteClient(c *xhttp.Client) RemoteOption {
	return func(r *RemoteRuntime) {
		if c != nil {
			r.client = c
		}
	}
}

// WithRemoteLogger sets the logger.
func WithRemoteLogger(l *logger.Logger) RemoteOption {
	return func(r *RemoteRuntime) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRemoteRuntime builds a client for the sidecar at baseURL.
func NewRemoteRuntime(baseURL string, timeout time.Duration, opts ...RemoteOption) *RemoteRuntime {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	r := &RemoteRuntime{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sequence-model-sidecar",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// the sidecar answered; a rejected request says nothing about its health
			var se *xhttp.StatusError
			return errors.As(err, &se) && !se.Temporary()
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.log.Warn("circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	return r
}

func (r *RemoteRuntime) Name() string { return "remote" }

// Available is false without a URL or while the breaker is open.
func (r *RemoteRuntime) Available() bool {
	return r.baseURL != "" && r.breaker.State() != gobreaker.StateOpen
}

type specPayload struct {
	LookBack        int     `json:"look_back"`
	Units           [2]int  `json:"units"`
	DenseUnits      int     `json:"dense_units"`
	Dropout         float64 `json:"dropout"`
	Epochs          int     `json:"epochs"`
	BatchSize       int     `json:"batch_size"`
	Patience        int     `json:"patience"`
	LearningRate    float64 `json:"learning_rate"`
	ValidationSplit float64 `json:"validation_split"`
	Seed            int64   `json:"seed"`
}

type trainRequest struct {
	X    [][]float64 `json:"x"`
	Y    []float64   `json:"y"`
	Spec specPayload `json:"spec"`
}

type trainResponse struct {
	ModelID     string  `json:"model_id"`
	Epochs      int     `json:"epochs"`
	BestValLoss float64 `json:"best_val_loss"`
	FinalLoss   float64 `json:"final_loss"`
}

type predictRequest struct {
	ModelID string    `json:"model_id"`
	Window  []float64 `json:"window"`
}

type predictResponse struct {
	Value float64 `json:"value"`
}

// Train posts the windows to the sidecar and returns a handle to the remote model.
func (r *RemoteRuntime) Train(ctx context.Context, x [][]float64, y []float64, spec service.ModelSpec) (*service.TrainResult, error) {
	if r.baseURL == "" {
		return nil, models.ModelUnavailablef("remote runtime: no sidecar url configured")
	}
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("remote runtime: %d windows for %d targets", len(x), len(y))
	}
	spec = withDefaults(spec)
	req := trainRequest{
		X: x,
		Y: y,
		Spec: specPayload{
			LookBack:        len(x[0]),
			Units:           spec.Units,
			DenseUnits:      spec.DenseUnits,
			Dropout:         spec.Dropout,
			Epochs:          spec.Epochs,
			BatchSize:       spec.BatchSize,
			Patience:        spec.Patience,
			LearningRate:    spec.LearningRate,
			ValidationSplit: spec.ValidationSplit,
			Seed:            spec.Seed,
		},
	}
	var resp trainResponse
	if err := r.postJSON(ctx, trainPath, req, &resp); err != nil {
		return nil, err
	}
	if resp.ModelID == "" {
		return nil, fmt.Errorf("remote runtime: sidecar returned no model id")
	}
	return &service.TrainResult{
		Model:       &remoteModel{rt: r, id: resp.ModelID, lookBack: len(x[0])},
		Epochs:      resp.Epochs,
		BestValLoss: resp.BestValLoss,
		FinalLoss:   resp.FinalLoss,
	}, nil
}

// postJSON posts payload to path under baseURL through the breaker and decodes into dest.
func (r *RemoteRuntime) postJSON(ctx context.Context, path string, payload, dest interface{}) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodPost,
			URL:    r.baseURL + path,
			Headers: map[string]string{
				"Content-Type": "application/json",
			},
			Body: payload,
		}, dest)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return models.ModelUnavailablef("remote runtime: %v", err)
	}
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// postJSONWithRetry retries transient failures with a linear backoff.
func (r *RemoteRuntime) postJSONWithRetry(ctx context.Context, path string, payload, dest interface{}, attempts int) error {
	var err error
	for i := 1; i <= attempts; i++ {
		err = r.postJSON(ctx, path, payload, dest)
		if err == nil || !retryable(err) || i == attempts {
			return err
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, models.ErrModelUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

type remoteModel struct {
	rt       *RemoteRuntime
	id       string
	lookBack int
}

func (m *remoteModel) Predict(ctx context.Context, window []float64) (float64, error) {
	if len(window) != m.lookBack {
		return 0, fmt.Errorf("remote model: window of %d, want %d", len(window), m.lookBack)
	}
	var resp predictResponse
	if err := m.rt.postJSONWithRetry(ctx, predictPath, predictRequest{ModelID: m.id, Window: window}, &resp, predictAttempts); err != nil {
		return 0, err
	}
	return resp.Value, nil
}

// DisabledRuntime is selected when no sequence-model runtime is configured.
type DisabledRuntime struct{}

var _ service.SequenceModelRuntime = DisabledRuntime{}

func (DisabledRuntime) Name() string { return "disabled" }

func (DisabledRuntime) Available() bool { return false }

func (DisabledRuntime) Train(context.Context, [][]float64, []float64, service.ModelSpec) (*service.TrainResult, error) {
	return nil, models.ModelUnavailablef("sequence model runtime disabled")
}
