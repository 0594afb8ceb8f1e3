package ui

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"

	"videoenhancer/internal/frames"
	"videoenhancer/internal/gpu"
	"videoenhancer/internal/interpolation"
	"videoenhancer/internal/upscaling"
	"videoenhancer/internal/validation"
)

// Prompter asks the user questions
type Prompter interface {
	Input(label, defaultValue string, validate func(string) error) (string, error)
	Select(label string, items []string) (int, string, error)
	Confirm(label string, defaultValue bool) (bool, error)
}

// PromptUI is the terminal Prompter
type PromptUI struct {
	Stdin  io.ReadCloser
	Stdout io.WriteCloser
}

func (p PromptUI) Input(label, defaultValue string, validate func(string) error) (string, error) {
	prompt := promptui.Prompt{
		Label:     label,
		Default:   defaultValue,
		AllowEdit: true,
		Validate:  validate,
		Stdin:     p.Stdin,
		Stdout:    p.Stdout,
	}
	return prompt.Run()
}

func (p PromptUI) Select(label string, items []string) (int, string, error) {
	prompt := promptui.Select{
		Label:  label,
		Items:  items,
		Size:   10,
		Stdin:  p.Stdin,
		Stdout: p.Stdout,
	}
	return prompt.Run()
}

func (p PromptUI) Confirm(label string, defaultValue bool) (bool, error) {
	def := "n"
	if defaultValue {
		def = "y"
	}
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Default:   def,
		Stdin:     p.Stdin,
		Stdout:    p.Stdout,
	}
	answer, err := prompt.Run()
	if errors.Is(err, promptui.ErrAbort) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(answer) == "" {
		return defaultValue, nil
	}
	return strings.HasPrefix(strings.ToLower(answer), "y"), nil
}

// Prompt labels, shared with tests
const (
	LabelInput          = "📁 Input video"
	LabelFormat         = "🎬 Output format"
	LabelModel          = "🧠 RIFE model"
	LabelFPSFactor      = "🎞️  FPS factor (1-8)"
	LabelGPU            = "🖥️  GPU"
	LabelTTA            = "Enable TTA mode"
	LabelUHD            = "Enable UHD mode"
	LabelDuplicates     = "Remove duplicate frames"
	LabelUpscale        = "Upscale the result"
	LabelUpscaleMethod  = "🔍 Upscaling method"
	LabelUpscaleScale   = "📐 Scale factor"
	LabelOutput         = "💾 Output path"
	LabelInstallConfirm = "Install missing dependencies now"
)

// UpscaleMethods are the upscalers the wizard offers
var UpscaleMethods = []string{"realsr", "waifu2x"}

// Plan is what the wizard collected
type Plan struct {
	Input            string
	Output           string
	Format           string
	Model            string
	FPSFactor        float64
	GPU              *int
	TTA              bool
	UHD              bool
	RemoveDuplicates bool
	Upscale          bool
	UpscaleMethod    string
	UpscaleScale     int
}

// UpscaledOutput is where the optional upscaling pass writes
func (p *Plan) UpscaledOutput(interpolated string) string {
	return UpscaledName(interpolated, p.UpscaleMethod, p.UpscaleScale)
}

// Wizard walks the user through an enhancement job
type Wizard struct {
	Prompter Prompter
	Models   []string
	GPUs     []gpu.Device

	DefaultInput     string
	DefaultModel     string
	DefaultFactor    float64
	DefaultFormat    string
	RemoveDuplicates bool
}

// ValidateFPSFactor accepts whole factors from 1 to 8
func ValidateFPSFactor(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("fps factor must be a whole number")
	}
	if n < 1 || n > 8 {
		return fmt.Errorf("fps factor must be between 1 and 8")
	}
	return nil
}

func preferFirst(items []string, preferred string) []string {
	ordered := []string{}
	for _, item := range items {
		if item == preferred {
			ordered = append(ordered, item)
		}
	}
	for _, item := range items {
		if item != preferred {
			ordered = append(ordered, item)
		}
	}
	return ordered
}

// Run asks every question and returns the resulting plan
func (w *Wizard) Run() (*Plan, error) {
	if len(w.Models) == 0 {
		return nil, fmt.Errorf("no RIFE models available")
	}
	plan := &Plan{}

	input, err := w.Prompter.Input(LabelInput, w.DefaultInput, validation.ValidateInputPath)
	if err != nil {
		return nil, err
	}
	plan.Input = frames.CleanPath(input)

	if _, plan.Format, err = w.Prompter.Select(LabelFormat, preferFirst([]string{"mp4", "gif"}, w.DefaultFormat)); err != nil {
		return nil, err
	}

	modelItems := Choices(PreferModel(w.Models, w.DefaultModel), interpolation.InterpolationModels)
	_, model, err := w.Prompter.Select(LabelModel, modelItems)
	if err != nil {
		return nil, err
	}
	plan.Model = ChoiceName(model)

	defaultFactor := int(w.DefaultFactor)
	if defaultFactor < 1 || defaultFactor > 8 {
		defaultFactor = 2
	}
	factor, err := w.Prompter.Input(LabelFPSFactor, strconv.Itoa(defaultFactor), ValidateFPSFactor)
	if err != nil {
		return nil, err
	}
	n, _ := strconv.Atoi(strings.TrimSpace(factor))
	plan.FPSFactor = float64(n)

	_, choice, err := w.Prompter.Select(LabelGPU, gpu.Choices(w.GPUs))
	if err != nil {
		return nil, err
	}
	if plan.GPU, err = gpu.ParseChoice(choice); err != nil {
		return nil, err
	}

	if plan.TTA, err = w.Prompter.Confirm(LabelTTA, false); err != nil {
		return nil, err
	}
	if plan.UHD, err = w.Prompter.Confirm(LabelUHD, false); err != nil {
		return nil, err
	}
	if plan.RemoveDuplicates, err = w.Prompter.Confirm(LabelDuplicates, w.RemoveDuplicates); err != nil {
		return nil, err
	}

	if plan.Upscale, err = w.Prompter.Confirm(LabelUpscale, false); err != nil {
		return nil, err
	}
	if plan.Upscale {
		_, method, err := w.Prompter.Select(LabelUpscaleMethod, Choices(UpscaleMethods, upscaling.GetModelInfo()))
		if err != nil {
			return nil, err
		}
		plan.UpscaleMethod = ChoiceName(method)

		_, scale, err := w.Prompter.Select(LabelUpscaleScale, []string{"2", "4"})
		if err != nil {
			return nil, err
		}
		plan.UpscaleScale, _ = strconv.Atoi(scale)
	}

	suggested := OutputName(plan.Input, plan.FPSFactor, plan.Model, plan.Format)
	output, err := w.Prompter.Input(LabelOutput, suggested, func(s string) error {
		if err := validation.ValidateOutputPath(s, plan.Format); err != nil {
			return err
		}
		return validation.ValidateDistinct(plan.Input, s)
	})
	if err != nil {
		return nil, err
	}
	plan.Output = frames.CleanPath(output)

	return plan, nil
}

// Summary returns rows for DisplaySummary
func (p *Plan) Summary() [][2]string {
	rows := [][2]string{
		{"Input", p.Input},
		{"Output", p.Output},
		{"Model", p.Model},
		{"FPS factor", FormatFPS(p.FPSFactor)},
		{"GPU", gpuLabel(p.GPU)},
		{"TTA / UHD", fmt.Sprintf("%t / %t", p.TTA, p.UHD)},
		{"Remove duplicates", strconv.FormatBool(p.RemoveDuplicates)},
	}
	if p.Upscale {
		rows = append(rows, [2]string{"Upscale", fmt.Sprintf("%s %dx", p.UpscaleMethod, p.UpscaleScale)})
	}
	return rows
}

func gpuLabel(id *int) string {
	if id == nil {
		return gpu.AutoChoice
	}
	if *id == -1 {
		return gpu.CPUChoice
	}
	return strconv.Itoa(*id)
}
