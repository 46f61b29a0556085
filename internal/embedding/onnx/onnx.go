// Package onnx runs a local sentence-transformer model through ONNX Runtime.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/embedding"
	"github.com/spigell/assessment-recommender/internal/logger"
)

const defaultMaxSeqLen = 512

const (
	inputIDs       = "input_ids"
	inputMask      = "attention_mask"
	inputTypeIDs   = "token_type_ids"
	hiddenStateOut = "last_hidden_state"
)

// Config points at the runtime library, the model and its tokenizer.
type Config struct {
	LibraryPath   string
	ModelPath     string
	TokenizerPath string
	MaxSeqLen     int
	ModelID       string
}

// Encoder implements embedding.Encoder with mean-pooled, L2-normalized
// token states.
type Encoder struct {
	mu        sync.Mutex
	session   *ort.DynamicAdvancedSession
	tokenizer *tokenizer.Tokenizer
	inputs    []string
	maxSeqLen int
	model     string
	logger    *zap.Logger
}

// New initializes the ONNX Runtime environment and loads the model.
func New(cfg Config, log *zap.Logger) (*Encoder, error) {
	if strings.TrimSpace(cfg.ModelPath) == "" || strings.TrimSpace(cfg.TokenizerPath) == "" {
		return nil, errors.New("onnx model-path and tokenizer-path are required")
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	tk, err := pretrained.FromFile(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", cfg.TokenizerPath, err)
	}

	inputInfo, outputInfo, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("inspect model %s: %w", cfg.ModelPath, err)
	}
	inputs, output, err := selectNames(inputInfo, outputInfo)
	if err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputs, []string{output}, nil)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	model := cfg.ModelID
	if model == "" {
		model = filepath.Base(filepath.Dir(cfg.ModelPath)) + "/" + filepath.Base(cfg.ModelPath)
	}

	maxSeqLen := cfg.MaxSeqLen
	if maxSeqLen <= 0 {
		maxSeqLen = defaultMaxSeqLen
	}

	enc := &Encoder{
		session:   session,
		tokenizer: tk,
		inputs:    inputs,
		maxSeqLen: maxSeqLen,
		model:     model,
		logger:    logger.WithCommonFields(log, "embedding", "onnx", model),
	}
	enc.logger.Debug("onnx session ready", zap.Strings("inputs", inputs), zap.String("output", output))
	return enc, nil
}

// Model returns the model identifier.
func (e *Encoder) Model() string { return e.model }

// Fingerprint adds the token limit, which changes vectors of long texts.
func (e *Encoder) Fingerprint() string {
	return e.model + "@seq" + strconv.Itoa(e.maxSeqLen)
}

// Encode embeds texts one at a time so no padding is needed.
func (e *Encoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil, embedding.Errorf("onnx encoder is closed")
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := e.encodeOne(text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

// Close releases the session. The shared environment stays up for other users.
func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	return err
}

func (e *Encoder) encodeOne(text string) ([]float32, error) {
	enc, err := e.tokenizer.EncodeSingle(text, true)
	if err != nil {
		return nil, embedding.Errorf("tokenize: %v", err)
	}

	ids := truncate(enc.Ids, e.maxSeqLen)
	mask := truncate(enc.AttentionMask, e.maxSeqLen)
	types := truncate(enc.TypeIds, e.maxSeqLen)
	if len(ids) == 0 {
		return nil, embedding.Errorf("tokenizer produced no tokens")
	}
	if len(mask) != len(ids) {
		mask = ones(len(ids))
	}
	if len(types) != len(ids) {
		types = make([]int, len(ids))
	}

	shape := ort.NewShape(1, int64(len(ids)))
	feeds := map[string][]int{inputIDs: ids, inputMask: mask, inputTypeIDs: types}

	values := make([]ort.Value, 0, len(e.inputs))
	defer func() {
		for _, v := range values {
			_ = v.Destroy()
		}
	}()
	for _, name := range e.inputs {
		tensor, err := ort.NewTensor(shape, toInt64(feeds[name]))
		if err != nil {
			return nil, embedding.Errorf("create %s tensor: %v", name, err)
		}
		values = append(values, tensor)
	}

	outputs := []ort.Value{nil}
	if err := e.session.Run(values, outputs); err != nil {
		return nil, embedding.Errorf("run onnx session: %v", err)
	}
	defer func() { _ = outputs[0].Destroy() }()

	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, embedding.Errorf("unexpected output tensor type %T", outputs[0])
	}

	vec, err := pool(hidden.GetData(), hidden.GetShape(), mask)
	if err != nil {
		return nil, err
	}
	embedding.Normalize(vec)
	return vec, nil
}

func selectNames(inputs, outputs []ort.InputOutputInfo) ([]string, string, error) {
	var names []string
	for _, info := range inputs {
		switch info.Name {
		case inputIDs, inputMask, inputTypeIDs:
			names = append(names, info.Name)
		default:
			return nil, "", fmt.Errorf("unsupported model input %q", info.Name)
		}
	}
	if !slices.Contains(names, inputIDs) {
		return nil, "", fmt.Errorf("model has no %s input", inputIDs)
	}
	if len(outputs) == 0 {
		return nil, "", errors.New("model has no outputs")
	}

	output := outputs[0].Name
	for _, info := range outputs {
		if info.Name == hiddenStateOut {
			output = info.Name
			break
		}
	}
	return names, output, nil
}

// pool mean-pools a [1, seq, dim] tensor over unmasked tokens. A [1, dim]
// tensor is already pooled and is returned as is.
func pool(data []float32, shape ort.Shape, mask []int) ([]float32, error) {
	switch len(shape) {
	case 2:
		dim := int(shape[1])
		if len(data) < dim {
			return nil, embedding.Errorf("output tensor is truncated")
		}
		return slices.Clone(data[:dim]), nil
	case 3:
		seq, dim := int(shape[1]), int(shape[2])
		if len(data) < seq*dim || seq > len(mask) {
			return nil, embedding.Errorf("output tensor shape %v does not match tokens", shape)
		}
		out := make([]float32, dim)
		var count float32
		for t := range seq {
			if mask[t] == 0 {
				continue
			}
			row := data[t*dim : (t+1)*dim]
			for j, v := range row {
				out[j] += v
			}
			count++
		}
		if count == 0 {
			return nil, embedding.Errorf("attention mask is empty")
		}
		for j := range out {
			out[j] /= count
		}
		return out, nil
	default:
		return nil, embedding.Errorf("unsupported output rank %d", len(shape))
	}
}

// truncate cuts ids to limit while keeping the trailing special token.
func truncate(ids []int, limit int) []int {
	if len(ids) <= limit {
		return ids
	}
	out := slices.Clone(ids[:limit])
	out[limit-1] = ids[len(ids)-1]
	return out
}

func ones(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func toInt64(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}
