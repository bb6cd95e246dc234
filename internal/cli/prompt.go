package cli

import (
	"errors"

	"github.com/manifoldco/promptui"
)

var errInterrupted = errors.New("interrupted")

// prompter is the input side of the terminal widget.
type prompter interface {
	Select(label string, items []string) (int, error)
	Input(label string, validate func(string) error) (string, error)
	Confirm(label string) (bool, error)
}

type promptUI struct{}

func (promptUI) Select(label string, items []string) (int, error) {
	prompt := promptui.Select{
		Label: label,
		Items: items,
		Size:  len(items),
	}

	idx, _, err := prompt.Run()
	if err != nil {
		return 0, translatePromptErr(err)
	}
	return idx, nil
}

func (promptUI) Input(label string, validate func(string) error) (string, error) {
	prompt := promptui.Prompt{
		Label:    label,
		Validate: validate,
	}

	value, err := prompt.Run()
	if err != nil {
		return "", translatePromptErr(err)
	}
	return value, nil
}

func (promptUI) Confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}

	if _, err := prompt.Run(); err != nil {
		if err == promptui.ErrAbort {
			return false, nil
		}
		return false, translatePromptErr(err)
	}
	return true, nil
}

func translatePromptErr(err error) error {
	if err == promptui.ErrInterrupt || err == promptui.ErrEOF {
		return errInterrupted
	}
	return err
}
