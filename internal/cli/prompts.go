package cli

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.&-]+$`)

// errQuit is returned by a Prompter when the user interrupts a prompt.
var errQuit = errors.New("quit")

// Prompter asks the user for the next dashboard action.
type Prompter interface {
	SelectAction(options []string) (string, error)
	InputSymbol() (string, error)
	SelectPreset(options []string, current string) (string, error)
}

type surveyPrompter struct{}

// SelectAction prompts for one of the menu entries
func (surveyPrompter) SelectAction(options []string) (string, error) {
	var choice string
	prompt := &survey.Select{
		Message: "What next?",
		Options: options,
	}
	if err := survey.AskOne(prompt, &choice); err != nil {
		return "", promptErr(err)
	}
	return choice, nil
}

// InputSymbol prompts the user to enter a stock ticker symbol
func (surveyPrompter) InputSymbol() (string, error) {
	var ticker string
	prompt := &survey.Input{
		Message: "Search ticker (e.g. AAPL, RELIANCE, TSLA):",
		Help:    "Any listed symbol. The model resolves the exchange from live search results.",
	}

	err := survey.AskOne(prompt, &ticker, survey.WithValidator(validateTicker))
	if err != nil {
		return "", promptErr(err)
	}
	return strings.TrimSpace(ticker), nil
}

// SelectPreset prompts for one of the watchlist entries
func (surveyPrompter) SelectPreset(options []string, current string) (string, error) {
	var choice string
	prompt := &survey.Select{
		Message:  "Watchlist:",
		Options:  options,
		PageSize: len(options),
	}
	if current != "" {
		prompt.Default = current
	}
	if err := survey.AskOne(prompt, &choice); err != nil {
		return "", promptErr(err)
	}
	return choice, nil
}

func validateTicker(val interface{}) error {
	str, ok := val.(string)
	if !ok {
		return fmt.Errorf("invalid input type")
	}
	str = strings.TrimSpace(strings.ToUpper(str))
	if len(str) == 0 {
		return fmt.Errorf("ticker symbol cannot be empty")
	}
	if len(str) > 20 {
		return fmt.Errorf("ticker symbol too long (max 20 characters)")
	}
	if !tickerPattern.MatchString(str) {
		return fmt.Errorf("invalid ticker format (use letters, numbers, dots, ampersands and hyphens only)")
	}
	return nil
}

func promptErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return errQuit
	}
	return err
}
