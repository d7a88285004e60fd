package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"pricecast/internal/errs"
)

// gradientClip bounds the global gradient norm per batch. Keeps long
// windows from blowing up the recurrent weights early in training.
const gradientClip = 5.0

// RecurrentModel is a single-layer recurrent network over scalar
// sequences: tanh hidden state carried across the window, linear output
// head, trained with gradient descent through time. Weight
// initialization and epoch shuffling are seeded, so a fixed seed gives
// bit-identical training runs. Implements SequenceModel.
//
// Not safe for concurrent use; the pipeline is strictly sequential.
type RecurrentModel struct {
	logger *slog.Logger

	hidden int
	seqLen int

	wx []float64   // input -> hidden
	wh [][]float64 // hidden -> hidden
	bh []float64
	wy []float64 // hidden -> output
	by float64

	trained bool
}

var _ SequenceModel = (*RecurrentModel)(nil)

// NewRecurrentModel creates an untrained model. Weights are allocated
// at Train time from the hyperparameters.
func NewRecurrentModel(logger *slog.Logger) *RecurrentModel {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecurrentModel{logger: logger}
}

// Train fits the model on the windowed pairs. The last
// hp.ValidationSplit share of the windows is held out chronologically
// for per-epoch validation loss; batch composition is reshuffled every
// epoch with the seeded generator. A non-finite loss aborts training.
func (m *RecurrentModel) Train(ctx context.Context, windows []Window, hp Hyperparameters) error {
	if err := hp.Validate(); err != nil {
		return err
	}
	if len(windows) == 0 {
		return errs.InvalidInput("windows", "no training windows")
	}
	seqLen := len(windows[0].Input)
	if seqLen == 0 {
		return errs.InvalidInput("windows", "zero-length window input")
	}
	for i, w := range windows {
		if len(w.Input) != seqLen {
			return errs.InvalidInputf("windows", "window %d has length %d, expected %d", i, len(w.Input), seqLen)
		}
	}

	valCount := int(float64(len(windows)) * hp.ValidationSplit)
	trainW := windows[:len(windows)-valCount]
	valW := windows[len(windows)-valCount:]
	if len(trainW) == 0 {
		return errs.InvalidInputf("validation_split", "%g leaves no training windows", hp.ValidationSplit)
	}

	m.hidden = hp.HiddenSize
	m.seqLen = seqLen
	rng := rand.New(rand.NewSource(hp.Seed))
	m.initWeights(rng)

	m.logger.InfoContext(ctx, "training sequence model",
		slog.Int("windows", len(trainW)),
		slog.Int("validation_windows", len(valW)),
		slog.Int("sequence_length", seqLen),
		slog.Int("hidden_size", hp.HiddenSize),
		slog.Int("epochs", hp.Epochs))

	grads := newGradients(m.hidden)

	for epoch := 0; epoch < hp.Epochs; epoch++ {
		select {
		case <-ctx.Done():
			return errs.Training("train", ctx.Err())
		default:
		}

		order := rng.Perm(len(trainW))
		var epochLoss float64

		for from := 0; from < len(order); from += hp.BatchSize {
			to := from + hp.BatchSize
			if to > len(order) {
				to = len(order)
			}

			grads.zero()
			for _, idx := range order[from:to] {
				w := trainW[idx]
				epochLoss += m.accumulate(w.Input, w.Target, grads)
			}
			grads.scale(1 / float64(to-from))
			if norm := grads.norm(); norm > gradientClip {
				grads.scale(gradientClip / norm)
			}
			m.apply(grads, hp.LearningRate)
		}

		epochLoss /= float64(len(trainW))
		if math.IsNaN(epochLoss) || math.IsInf(epochLoss, 0) {
			return errs.Trainingf("train", "loss diverged at epoch %d", epoch+1)
		}

		if (epoch+1)%10 == 0 || epoch == hp.Epochs-1 {
			attrs := []any{slog.Int("epoch", epoch + 1), slog.Float64("train_loss", epochLoss)}
			if len(valW) > 0 {
				attrs = append(attrs, slog.Float64("validation_loss", m.mse(valW)))
			}
			m.logger.DebugContext(ctx, "epoch complete", attrs...)
		}
	}

	m.trained = true
	return nil
}

// Predict maps one input window of the trained sequence length to the
// next normalized value.
func (m *RecurrentModel) Predict(input []float64) (float64, error) {
	if !m.trained {
		return 0, errs.Training("predict", fmt.Errorf("model not trained"))
	}
	if len(input) != m.seqLen {
		return 0, errs.InvalidInputf("input", "length %d, model expects %d", len(input), m.seqLen)
	}

	_, y := m.forward(input)
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, errs.Trainingf("predict", "non-finite prediction")
	}
	return y, nil
}

// Evaluate returns the mean squared error over the window set.
func (m *RecurrentModel) Evaluate(windows []Window) (float64, error) {
	if !m.trained {
		return 0, errs.Training("evaluate", fmt.Errorf("model not trained"))
	}
	if len(windows) == 0 {
		return 0, errs.InvalidInput("windows", "no windows to evaluate")
	}
	for i, w := range windows {
		if len(w.Input) != m.seqLen {
			return 0, errs.InvalidInputf("windows", "window %d has length %d, model expects %d", i, len(w.Input), m.seqLen)
		}
	}
	return m.mse(windows), nil
}

func (m *RecurrentModel) mse(windows []Window) float64 {
	var sum float64
	for _, w := range windows {
		_, y := m.forward(w.Input)
		diff := y - w.Target
		sum += diff * diff
	}
	return sum / float64(len(windows))
}

// initWeights draws uniform weights scaled by fan-in.
func (m *RecurrentModel) initWeights(rng *rand.Rand) {
	uniform := func(scale float64) float64 {
		return (rng.Float64()*2 - 1) * scale
	}
	hiddenScale := 1 / math.Sqrt(float64(m.hidden))

	m.wx = make([]float64, m.hidden)
	m.bh = make([]float64, m.hidden)
	m.wy = make([]float64, m.hidden)
	m.wh = make([][]float64, m.hidden)
	for i := 0; i < m.hidden; i++ {
		m.wx[i] = uniform(0.5)
		m.wy[i] = uniform(hiddenScale)
		m.wh[i] = make([]float64, m.hidden)
		for j := 0; j < m.hidden; j++ {
			m.wh[i][j] = uniform(hiddenScale)
		}
	}
	m.by = 0
}

// forward runs the window through the recurrence and returns every
// hidden state (hs[0] is the zero initial state, hs[t] the state after
// consuming input[t-1]) plus the output.
func (m *RecurrentModel) forward(input []float64) ([][]float64, float64) {
	hs := make([][]float64, len(input)+1)
	hs[0] = make([]float64, m.hidden)

	for t, x := range input {
		prev := hs[t]
		h := make([]float64, m.hidden)
		for i := 0; i < m.hidden; i++ {
			pre := m.wx[i]*x + m.bh[i]
			for j := 0; j < m.hidden; j++ {
				pre += m.wh[i][j] * prev[j]
			}
			h[i] = math.Tanh(pre)
		}
		hs[t+1] = h
	}

	last := hs[len(input)]
	y := m.by
	for i := 0; i < m.hidden; i++ {
		y += m.wy[i] * last[i]
	}
	return hs, y
}

// accumulate runs one forward/backward pass, adds the gradients of the
// squared error into g, and returns that squared error.
func (m *RecurrentModel) accumulate(input []float64, target float64, g *gradients) float64 {
	hs, y := m.forward(input)
	diff := y - target
	dy := 2 * diff

	last := hs[len(input)]
	for i := 0; i < m.hidden; i++ {
		g.wy[i] += dy * last[i]
	}
	g.by += dy

	// Backpropagate through the recurrence.
	dh := make([]float64, m.hidden)
	for i := 0; i < m.hidden; i++ {
		dh[i] = dy * m.wy[i]
	}
	for t := len(input); t >= 1; t-- {
		h := hs[t]
		prev := hs[t-1]
		x := input[t-1]

		dpre := make([]float64, m.hidden)
		for i := 0; i < m.hidden; i++ {
			dpre[i] = dh[i] * (1 - h[i]*h[i])
			g.wx[i] += dpre[i] * x
			g.bh[i] += dpre[i]
			for j := 0; j < m.hidden; j++ {
				g.wh[i][j] += dpre[i] * prev[j]
			}
		}

		dprev := make([]float64, m.hidden)
		for j := 0; j < m.hidden; j++ {
			for i := 0; i < m.hidden; i++ {
				dprev[j] += dpre[i] * m.wh[i][j]
			}
		}
		dh = dprev
	}

	return diff * diff
}

func (m *RecurrentModel) apply(g *gradients, lr float64) {
	for i := 0; i < m.hidden; i++ {
		m.wx[i] -= lr * g.wx[i]
		m.bh[i] -= lr * g.bh[i]
		m.wy[i] -= lr * g.wy[i]
		for j := 0; j < m.hidden; j++ {
			m.wh[i][j] -= lr * g.wh[i][j]
		}
	}
	m.by -= lr * g.by
}

// gradients accumulates one batch worth of weight gradients.
type gradients struct {
	wx, bh, wy []float64
	wh         [][]float64
	by         float64
}

func newGradients(hidden int) *gradients {
	g := &gradients{
		wx: make([]float64, hidden),
		bh: make([]float64, hidden),
		wy: make([]float64, hidden),
		wh: make([][]float64, hidden),
	}
	for i := range g.wh {
		g.wh[i] = make([]float64, hidden)
	}
	return g
}

func (g *gradients) zero() {
	for i := range g.wx {
		g.wx[i] = 0
		g.bh[i] = 0
		g.wy[i] = 0
		for j := range g.wh[i] {
			g.wh[i][j] = 0
		}
	}
	g.by = 0
}

func (g *gradients) scale(f float64) {
	for i := range g.wx {
		g.wx[i] *= f
		g.bh[i] *= f
		g.wy[i] *= f
		for j := range g.wh[i] {
			g.wh[i][j] *= f
		}
	}
	g.by *= f
}

func (g *gradients) norm() float64 {
	var sum float64
	for i := range g.wx {
		sum += g.wx[i]*g.wx[i] + g.bh[i]*g.bh[i] + g.wy[i]*g.wy[i]
		for j := range g.wh[i] {
			sum += g.wh[i][j] * g.wh[i][j]
		}
	}
	sum += g.by * g.by
	return math.Sqrt(sum)
}
