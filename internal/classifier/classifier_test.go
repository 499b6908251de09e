package classifier

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/Brownie44l1/imagenet-api/internal/config"
	"github.com/Brownie44l1/imagenet-api/internal/imagesource"
	"github.com/Brownie44l1/imagenet-api/internal/labels"
	"github.com/Brownie44l1/imagenet-api/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	m.Run()
}

// MockEngine is a mock implementation of the model.Engine interface
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) InputName() string  { return "input" }
func (m *MockEngine) OutputName() string { return "output" }

func (m *MockEngine) Run(ctx context.Context, inputs map[string]*model.Tensor) (map[string]*model.Tensor, error) {
	args := m.Called(ctx, inputs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*model.Tensor), args.Error(1)
}

func (m *MockEngine) Close() error {
	return m.Called().Error(0)
}

func scores(t *testing.T, values ...float32) map[string]*model.Tensor {
	t.Helper()
	out, err := model.NewTensor([]int64{1, int64(len(values))}, values)
	require.NoError(t, err)
	return map[string]*model.Tensor{"output": out}
}

func solidImage(t *testing.T, w, h int) model.DecodedImage {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+3] = 255, 255
	}
	d, err := model.NewDecodedImage(img)
	require.NoError(t, err)
	return d
}

func isInputTensor(inputs map[string]*model.Tensor) bool {
	in, ok := inputs["input"]
	return ok && model.SameShape(in.Shape, model.InputShape()) && in.Data[0] == 1
}

func TestClassify(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Run", mock.Anything, mock.MatchedBy(isInputTensor)).
		Return(scores(t, 0.1, 0.7, 0.2), nil).Once()

	c := New(engine, labels.Table{1: "goldfish"})
	got, err := c.Classify(context.Background(), solidImage(t, 300, 200))
	require.NoError(t, err)

	assert.Equal(t, model.PredictionResult{
		{Index: 1, Probability: 0.7, Label: "goldfish"},
		{Index: 2, Probability: 0.2, Label: "Class 2"},
		{Index: 0, Probability: 0.1, Label: "Class 0"},
	}, got)
	engine.AssertExpectations(t)
}

func TestClassifyTopK(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Run", mock.Anything, mock.Anything).
		Return(scores(t, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7), nil)

	got, err := New(engine, nil).Classify(context.Background(), solidImage(t, 10, 10))
	require.NoError(t, err)
	assert.Len(t, got, 5)

	got, err = New(engine, nil, WithTopK(2)).Classify(context.Background(), solidImage(t, 10, 10))
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 6, got[0].Index)
}

func TestClassifyInvalidImageSkipsEngine(t *testing.T) {
	engine := new(MockEngine)

	_, err := New(engine, nil).Classify(context.Background(), model.DecodedImage{})
	assert.ErrorIs(t, err, model.ErrInvalidImage)
	engine.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestClassifyEngineFailure(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Run", mock.Anything, mock.Anything).Return(nil, errors.New("session exploded"))

	_, err := New(engine, nil).Classify(context.Background(), solidImage(t, 4, 4))
	assert.ErrorIs(t, err, model.ErrInference)
	assert.Contains(t, err.Error(), "session exploded")
}

func TestClassifyMissingOutput(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Run", mock.Anything, mock.Anything).Return(map[string]*model.Tensor{}, nil)

	_, err := New(engine, nil).Classify(context.Background(), solidImage(t, 4, 4))
	assert.ErrorIs(t, err, model.ErrInference)
}

func TestClassifyEmptyScores(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Run", mock.Anything, mock.Anything).
		Return(map[string]*model.Tensor{"output": {DType: model.Float32, Shape: []int64{1, 0}}}, nil)

	_, err := New(engine, nil).Classify(context.Background(), solidImage(t, 4, 4))
	assert.ErrorIs(t, err, model.ErrEmptyScores)
}

func TestClassifySource(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Run", mock.Anything, mock.MatchedBy(isInputTensor)).
		Return(scores(t, 0.9, 0.1), nil).Once()

	img := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	for x := 0; x < 20; x++ {
		for y := 0; y < 10; y++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	got, err := New(engine, nil).ClassifySource(context.Background(), imagesource.Reader{Name: "upload", R: &buf})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Index)
	engine.AssertExpectations(t)
}

func TestClassifySourceUndecodable(t *testing.T) {
	engine := new(MockEngine)

	_, err := New(engine, nil).ClassifySource(context.Background(),
		imagesource.Reader{Name: "upload", R: bytes.NewReader([]byte("not an image"))})
	assert.ErrorIs(t, err, model.ErrInvalidImage)
	engine.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestOpenFailsWithModelLoadError(t *testing.T) {
	cfg := &config.Config{
		Model: config.ModelConfig{Path: "", Labels: "/nonexistent/labels.json"},
		TopK:  5,
	}

	_, err := Open(context.Background(), cfg, zerolog.Nop())
	assert.ErrorIs(t, err, model.ErrModelLoad)
}

func TestClose(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Close").Return(nil).Once()

	require.NoError(t, New(engine, nil).Close())
	engine.AssertExpectations(t)
}
