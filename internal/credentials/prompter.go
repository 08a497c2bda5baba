package credentials

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

const (
	passwordInputClosedMessageConstant = "password input closed before a value was read"
	promptTerminatorConstant           = "\n"
)

// ErrPasswordInputClosed indicates the prompt input ended before any response was read.
var ErrPasswordInputClosed = errors.New(passwordInputClosedMessageConstant)

// PasswordPrompter asks the operator for a secret.
type PasswordPrompter interface {
	PromptPassword(prompt string) (string, error)
}

// IOPasswordPrompter reads passwords from an io.Reader. Terminal input is read without echo.
type IOPasswordPrompter struct {
	mutex  sync.Mutex
	input  io.Reader
	reader *bufio.Reader
	writer io.Writer
}

// NewIOPasswordPrompter constructs a prompter from the provided reader and writer.
func NewIOPasswordPrompter(input io.Reader, output io.Writer) *IOPasswordPrompter {
	return &IOPasswordPrompter{input: input, reader: bufio.NewReader(input), writer: output}
}

// PromptPassword writes the prompt and returns the next line without its line terminator.
// Input that ends before anything is read yields ErrPasswordInputClosed.
func (prompter *IOPasswordPrompter) PromptPassword(prompt string) (string, error) {
	prompter.mutex.Lock()
	defer prompter.mutex.Unlock()

	if prompter.writer != nil {
		if _, writeError := io.WriteString(prompter.writer, prompt); writeError != nil {
			return "", writeError
		}
	}

	if terminalDescriptor, isTerminal := prompter.terminalDescriptor(); isTerminal {
		return prompter.readHidden(terminalDescriptor)
	}

	response, readError := prompter.reader.ReadString('\n')
	if readError != nil {
		if !errors.Is(readError, io.EOF) {
			return "", readError
		}
		if len(response) == 0 {
			return "", ErrPasswordInputClosed
		}
	}
	return strings.TrimRight(response, "\r\n"), nil
}

func (prompter *IOPasswordPrompter) terminalDescriptor() (int, bool) {
	file, isFile := prompter.input.(*os.File)
	if !isFile || file == nil {
		return 0, false
	}
	descriptor := int(file.Fd())
	return descriptor, term.IsTerminal(descriptor)
}

func (prompter *IOPasswordPrompter) readHidden(terminalDescriptor int) (string, error) {
	secret, readError := term.ReadPassword(terminalDescriptor)
	if prompter.writer != nil {
		_, _ = io.WriteString(prompter.writer, promptTerminatorConstant)
	}
	if readError != nil {
		if errors.Is(readError, io.EOF) {
			return "", ErrPasswordInputClosed
		}
		return "", readError
	}
	return string(secret), nil
}
