// Package finetune describes adapter training and merge runs for the QA
// dataset. It writes the configuration an external trainer reads; it does
// not train.
package finetune

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("finetune: invalid config")

// TrainingConfig is one fine-tuning run: base model, dataset, quantization,
// LoRA adapter, trainer arguments and the merge that follows.
type TrainingConfig struct {
	Model        ModelConfig        `yaml:"model" json:"model"`
	Dataset      DatasetConfig      `yaml:"dataset" json:"dataset"`
	Quantization QuantizationConfig `yaml:"quantization" json:"quantization"`
	Lora         LoraConfig         `yaml:"lora" json:"lora"`
	Training     TrainingArguments  `yaml:"training" json:"training"`
	Merge        MergeConfig        `yaml:"merge" json:"merge"`
}

type ModelConfig struct {
	PretrainedModelNameOrPath string `yaml:"pretrained_model_name_or_path" json:"pretrained_model_name_or_path"`
	CacheDir                  string `yaml:"cache_dir,omitempty" json:"cache_dir,omitempty"`
	DeviceMap                 string `yaml:"device_map,omitempty" json:"device_map,omitempty"`
	TrustRemoteCode           bool   `yaml:"trust_remote_code" json:"trust_remote_code"`
}

// DatasetConfig points at the JSONL file written by the template step.
type DatasetConfig struct {
	Path       string `yaml:"path" json:"path"`
	TextColumn string `yaml:"text_column" json:"text_column"`
}

type QuantizationConfig struct {
	LoadIn4bit            bool   `yaml:"load_in_4bit" json:"load_in_4bit"`
	BNB4bitQuantType      string `yaml:"bnb_4bit_quant_type,omitempty" json:"bnb_4bit_quant_type,omitempty"`
	BNB4bitUseDoubleQuant bool   `yaml:"bnb_4bit_use_double_quant" json:"bnb_4bit_use_double_quant"`
	// BNB4bitComputeDtype is "auto" to pick bfloat16 where the device
	// supports it and float16 otherwise.
	BNB4bitComputeDtype string `yaml:"bnb_4bit_compute_dtype,omitempty" json:"bnb_4bit_compute_dtype,omitempty"`
}

type LoraConfig struct {
	R             int      `yaml:"r" json:"r"`
	LoraAlpha     int      `yaml:"lora_alpha" json:"lora_alpha"`
	LoraDropout   float64  `yaml:"lora_dropout" json:"lora_dropout"`
	TargetModules []string `yaml:"target_modules" json:"target_modules"`
	Bias          string   `yaml:"bias" json:"bias"`
	TaskType      string   `yaml:"task_type" json:"task_type"`
}

type TrainingArguments struct {
	OutputDir                 string  `yaml:"output_dir" json:"output_dir"`
	PerDeviceTrainBatchSize   int     `yaml:"per_device_train_batch_size" json:"per_device_train_batch_size"`
	GradientAccumulationSteps int     `yaml:"gradient_accumulation_steps" json:"gradient_accumulation_steps"`
	NumTrainEpochs            float64 `yaml:"num_train_epochs" json:"num_train_epochs"`
	LearningRate              float64 `yaml:"learning_rate" json:"learning_rate"`
	// Precision is "auto", "bf16", "fp16" or "fp32".
	Precision      string `yaml:"precision" json:"precision"`
	LoggingSteps   int    `yaml:"logging_steps" json:"logging_steps"`
	SaveStrategy   string `yaml:"save_strategy" json:"save_strategy"`
	SaveTotalLimit int    `yaml:"save_total_limit" json:"save_total_limit"`
	ReportTo       string `yaml:"report_to" json:"report_to"`
	PushToHub      bool   `yaml:"push_to_hub" json:"push_to_hub"`
}

// MergeConfig folds the trained adapter back into the base model.
type MergeConfig struct {
	BaseModel  string `yaml:"base_model" json:"base_model"`
	AdapterDir string `yaml:"adapter_dir" json:"adapter_dir"`
	OutputDir  string `yaml:"output_dir" json:"output_dir"`
	TorchDtype string `yaml:"torch_dtype" json:"torch_dtype"`
}

const (
	DefaultBaseModel = "Qwen/Qwen3-0.6B"
	DefaultDataset   = "output-data/dataset-text.jsonl"
	DefaultAdapter   = "./finetuned-model"
	DefaultMerged    = "./qwen3-0.6b-merged"
)

// Default returns the QLoRA recipe used for small Qwen models.
func Default() TrainingConfig {
	return TrainingConfig{
		Model: ModelConfig{
			PretrainedModelNameOrPath: DefaultBaseModel,
			CacheDir:                  "./temp-cache",
			DeviceMap:                 "auto",
			TrustRemoteCode:           true,
		},
		Dataset: DatasetConfig{
			Path:       DefaultDataset,
			TextColumn: "text",
		},
		Quantization: QuantizationConfig{
			LoadIn4bit:            true,
			BNB4bitQuantType:      "nf4",
			BNB4bitUseDoubleQuant: true,
			BNB4bitComputeDtype:   "auto",
		},
		Lora: LoraConfig{
			R:             32,
			LoraAlpha:     16,
			LoraDropout:   0.1,
			TargetModules: []string{"q_proj", "v_proj"},
			Bias:          "none",
			TaskType:      "CAUSAL_LM",
		},
		Training: TrainingArguments{
			OutputDir:                 DefaultAdapter,
			PerDeviceTrainBatchSize:   1,
			GradientAccumulationSteps: 2,
			NumTrainEpochs:            5,
			LearningRate:              2e-4,
			Precision:                 "auto",
			LoggingSteps:              10,
			SaveStrategy:              "epoch",
			SaveTotalLimit:            2,
			ReportTo:                  "none",
		},
		Merge: MergeConfig{
			BaseModel:  DefaultBaseModel,
			AdapterDir: DefaultAdapter,
			OutputDir:  DefaultMerged,
			TorchDtype: "float16",
		},
	}
}

var (
	quantTypes   = map[string]bool{"nf4": true, "fp4": true}
	precisions   = map[string]bool{"auto": true, "bf16": true, "fp16": true, "fp32": true}
	saveStrategy = map[string]bool{"no": true, "epoch": true, "steps": true}
	biasModes    = map[string]bool{"none": true, "all": true, "lora_only": true}
	dtypes       = map[string]bool{"float16": true, "bfloat16": true, "float32": true}
)

// Validate reports every problem in c at once.
func (c TrainingConfig) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Model.PretrainedModelNameOrPath == "" {
		add("model.pretrained_model_name_or_path is required")
	}
	if c.Dataset.Path == "" {
		add("dataset.path is required")
	}
	if c.Quantization.LoadIn4bit && !quantTypes[c.Quantization.BNB4bitQuantType] {
		add("quantization.bnb_4bit_quant_type %q is not nf4 or fp4", c.Quantization.BNB4bitQuantType)
	}
	if c.Lora.R <= 0 {
		add("lora.r must be positive, got %d", c.Lora.R)
	}
	if c.Lora.LoraAlpha <= 0 {
		add("lora.lora_alpha must be positive, got %d", c.Lora.LoraAlpha)
	}
	if c.Lora.LoraDropout < 0 || c.Lora.LoraDropout >= 1 {
		add("lora.lora_dropout must be in [0, 1), got %g", c.Lora.LoraDropout)
	}
	if len(c.Lora.TargetModules) == 0 {
		add("lora.target_modules is empty")
	}
	if !biasModes[c.Lora.Bias] {
		add("lora.bias %q is not none, all or lora_only", c.Lora.Bias)
	}
	if c.Training.OutputDir == "" {
		add("training.output_dir is required")
	}
	if c.Training.PerDeviceTrainBatchSize <= 0 {
		add("training.per_device_train_batch_size must be positive")
	}
	if c.Training.GradientAccumulationSteps <= 0 {
		add("training.gradient_accumulation_steps must be positive")
	}
	if c.Training.NumTrainEpochs <= 0 {
		add("training.num_train_epochs must be positive")
	}
	if c.Training.LearningRate <= 0 {
		add("training.learning_rate must be positive")
	}
	if !precisions[c.Training.Precision] {
		add("training.precision %q is not auto, bf16, fp16 or fp32", c.Training.Precision)
	}
	if !saveStrategy[c.Training.SaveStrategy] {
		add("training.save_strategy %q is not no, epoch or steps", c.Training.SaveStrategy)
	}
	if c.Merge.AdapterDir != "" && c.Merge.AdapterDir != c.Training.OutputDir {
		add("merge.adapter_dir %q differs from training.output_dir %q", c.Merge.AdapterDir, c.Training.OutputDir)
	}
	if c.Merge.TorchDtype != "" && !dtypes[c.Merge.TorchDtype] {
		add("merge.torch_dtype %q is not float16, bfloat16 or float32", c.Merge.TorchDtype)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// EffectiveBatchSize is the number of examples per optimizer step.
func (c TrainingConfig) EffectiveBatchSize() int {
	return c.Training.PerDeviceTrainBatchSize * c.Training.GradientAccumulationSteps
}

// WriteYAML validates c and writes it to path.
func (c TrainingConfig) WriteYAML(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding training config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadYAML reads a config written by WriteYAML. Fields missing from the file
// keep their Default values.
func LoadYAML(path string) (TrainingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TrainingConfig{}, fmt.Errorf("reading training config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return TrainingConfig{}, fmt.Errorf("parsing training config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}
