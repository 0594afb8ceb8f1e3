package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"videoenhancer/internal/dedup"
	"videoenhancer/internal/frames"
	"videoenhancer/internal/ui"
	"videoenhancer/internal/validation"
)

const (
	labelFrameDir      = "📁 Folder containing frames"
	labelThreshold     = "🔧 Difference threshold"
	labelInputFolder   = "📂 Folder containing frames"
	labelOutputFolder  = "📁 Output folder"
	labelRate          = "🔢 Duplicate frame rate (e.g. 2.0, 1.25, 1.33)"
	labelExistingFiles = "⚠️  Output folder already exists"

	choiceOverwrite = "Overwrite existing folder"
	choiceNewFolder = "Create a new folder (output_1, output_2, ...)"
)

func validateThreshold(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return fmt.Errorf("threshold must be a non-negative number")
	}
	return nil
}

func validateRate(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("duplicate rate must be a decimal number (e.g. 1.25, 2.0)")
	}
	if v < 1.0 {
		return dedup.ErrInvalidRate
	}
	return nil
}

func newDetectRateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "detect-rate [dir] [threshold]",
		Short: "Print how many frames each distinct image is held for",
		Long: "detect-rate compares consecutive frames and prints the average number of frames each\n" +
			"distinct image is held for. Without arguments it asks for the folder and threshold.",
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			interactive := len(args) == 0
			dir := ""
			threshold := app.Config.DuplicateThreshold

			if interactive {
				answer, err := app.Prompter.Input(labelFrameDir, "", validation.ValidateFrameFolder)
				if err != nil {
					return err
				}
				dir = answer
				answer, err = app.Prompter.Input(labelThreshold, strconv.FormatFloat(threshold, 'f', -1, 64), validateThreshold)
				if err != nil {
					return err
				}
				threshold, _ = strconv.ParseFloat(strings.TrimSpace(answer), 64)
			} else {
				dir = args[0]
				if len(args) == 2 {
					if err := validateThreshold(args[1]); err != nil {
						return err
					}
					threshold, _ = strconv.ParseFloat(strings.TrimSpace(args[1]), 64)
				}
			}
			dir = frames.CleanPath(dir)
			if err := validation.ValidateFrameFolder(dir); err != nil {
				return err
			}

			rate, err := dedup.DetectDuplicationRate(cmd.Context(), dir, threshold)
			if err != nil {
				return err
			}
			if interactive {
				fmt.Fprintln(app.Out, ui.Success("The detected frame duplication rate is: "+ui.FormatRate(rate)))
				return nil
			}
			fmt.Fprintln(app.Out, ui.FormatRate(rate))
			return nil
		},
	}
}

func newRemoveDuplicatesCommand(app *App) *cobra.Command {
	var (
		input     string
		output    string
		rate      float64
		overwrite bool
		newFolder bool
	)

	cmd := &cobra.Command{
		Use:   "remove-duplicates",
		Short: "Copy the frames that survive duplicate removal at a given rate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if input == "" {
				if input, err = app.Prompter.Input(labelInputFolder, "", validation.ValidateFrameFolder); err != nil {
					return err
				}
			}
			if output == "" {
				if output, err = app.Prompter.Input(labelOutputFolder, "", nil); err != nil {
					return err
				}
			}
			if !cmd.Flags().Changed("rate") {
				answer, err := app.Prompter.Input(labelRate, "", validateRate)
				if err != nil {
					return err
				}
				rate, _ = strconv.ParseFloat(strings.TrimSpace(answer), 64)
			}
			input, output = frames.CleanPath(input), frames.CleanPath(output)
			if err := validation.ValidateFrameFolder(input); err != nil {
				return err
			}

			policy := dedup.Abort
			switch {
			case overwrite:
				policy = dedup.Overwrite
			case newFolder:
				policy = dedup.NewFolder
			default:
				if policy, err = app.existingOutputPolicy(output); err != nil {
					return err
				}
			}

			names, err := dedup.ImageFiles(input)
			if err != nil {
				return err
			}
			count := len(names)
			fmt.Fprintln(app.Out, ui.Status(fmt.Sprintf("📂 Processing %d frames, keeping %d frames...", count, len(dedup.SelectFrames(count, rate)))))

			target, kept, err := dedup.RemoveDuplicates(cmd.Context(), input, output, rate, policy, app.Err)
			if err != nil {
				return err
			}
			fmt.Fprintln(app.Out, ui.Success(fmt.Sprintf("Kept %d frames. Output saved in: %s", kept, target)))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&input, "input_folder", "", "folder containing the frames")
	flags.StringVar(&output, "output_folder", "", "folder for the filtered frames")
	flags.Float64Var(&rate, "rate", 0, "duplicate frame rate, e.g. 2.0, 1.25, 1.33")
	flags.BoolVar(&overwrite, "overwrite", false, "replace an existing output folder")
	flags.BoolVar(&newFolder, "new-folder", false, "write to output_1, output_2, ... when the output folder exists")
	cmd.MarkFlagsMutuallyExclusive("overwrite", "new-folder")
	return cmd
}

// existingOutputPolicy asks what to do when out already exists
func (a *App) existingOutputPolicy(out string) (dedup.ExistingOutputPolicy, error) {
	if _, err := os.Stat(out); errors.Is(err, os.ErrNotExist) {
		return dedup.Abort, nil
	}
	_, choice, err := a.Prompter.Select(labelExistingFiles, []string{choiceOverwrite, choiceNewFolder})
	if err != nil {
		return dedup.Abort, err
	}
	if choice == choiceOverwrite {
		return dedup.Overwrite, nil
	}
	return dedup.NewFolder, nil
}
