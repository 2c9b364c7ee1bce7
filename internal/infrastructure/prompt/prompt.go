package prompt

import (
	"strings"

	"github.com/manifoldco/promptui"
)

// Confirm asks a default-yes question. Bare Enter accepts; only an explicit
// "n" declines.
func Confirm(label string) (bool, error) {
	p := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Default:   "y",
	}

	result, err := p.Run()
	if err != nil {
		// promptui reports anything that is not "y" as ErrAbort, including
		// the empty input that should mean "take the default".
		if err == promptui.ErrAbort {
			return strings.TrimSpace(result) == "", nil
		}
		return false, err
	}
	return true, nil
}
