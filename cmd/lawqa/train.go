package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/lawqa/finetune"
)

func trainConfigCmd() *cobra.Command {
	var (
		out, check, baseModel, data, outputDir string
		epochs                                 float64
	)
	cmd := &cobra.Command{
		Use:   "train-config",
		Short: "Write or check the adapter training configuration",
		Long: `Write the QLoRA training and merge settings consumed by the external
trainer, starting from the config file's training section.

Example:
  lawqa train-config -o train.yaml --base-model Qwen/Qwen3-0.6B --epochs 3
  lawqa train-config --check train.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if check != "" {
				tc, err := finetune.LoadYAML(check)
				if err != nil {
					return err
				}
				fmt.Printf("%s: valid (effective batch size %d)\n", check, tc.EffectiveBatchSize())
				return nil
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tc := cfg.Training
			if baseModel != "" {
				tc.Model.PretrainedModelNameOrPath = baseModel
				tc.Merge.BaseModel = baseModel
			}
			if data != "" {
				tc.Dataset.Path = data
			}
			if outputDir != "" {
				tc.Training.OutputDir = outputDir
				tc.Merge.AdapterDir = outputDir
			}
			if epochs > 0 {
				tc.Training.NumTrainEpochs = epochs
			}

			if err := tc.WriteYAML(out); err != nil {
				return err
			}
			fmt.Printf("wrote %s (effective batch size %d)\n", out, tc.EffectiveBatchSize())
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "train.yaml", "Output YAML file")
	cmd.Flags().StringVar(&check, "check", "", "Validate an existing YAML file instead of writing one")
	cmd.Flags().StringVar(&baseModel, "base-model", "", "Base model to fine-tune and merge into")
	cmd.Flags().StringVar(&data, "dataset", "", "Training JSONL file")
	cmd.Flags().StringVar(&outputDir, "adapter-dir", "", "Adapter output directory")
	cmd.Flags().Float64Var(&epochs, "epochs", 0, "Number of training epochs")
	return cmd
}
