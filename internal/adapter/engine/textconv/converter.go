package textconv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/captioner/internal/domain"
	"github.com/bnema/captioner/internal/infrastructure/executor"
	"github.com/bnema/captioner/internal/port"
)

// typePlaceholder in the command line is replaced by the conversion type.
// Without it the type is appended as the last argument.
const typePlaceholder = "{type}"

var ErrNoCommand = errors.New("conversion command is empty")

// Converter pipes a transcript through an external command, for example
// "uconv -x {type}", and reads the converted text from its stdout.
type Converter struct {
	exec executor.Executor
	name string
	args []string
}

var _ port.TextConverter = (*Converter)(nil)

func NewConverter(exec executor.Executor, command string) (*Converter, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, ErrNoCommand
	}
	return &Converter{exec: exec, name: fields[0], args: fields[1:]}, nil
}

func (c *Converter) Convert(ctx context.Context, text string, conversion domain.ConversionType) (string, error) {
	if conversion == "" {
		return text, nil
	}
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	out, err := c.exec.Execute(ctx, executor.Command{Name: c.name, Args: c.argsFor(conversion), Stdin: text})
	if err != nil {
		return "", fmt.Errorf("convert text: %w", err)
	}
	converted := strings.TrimSpace(out)
	if converted == "" {
		return "", domain.Permanent(fmt.Errorf("conversion %s produced no text", conversion))
	}
	return converted, nil
}

func (c *Converter) argsFor(conversion domain.ConversionType) []string {
	args := make([]string, 0, len(c.args)+1)
	replaced := false
	for _, a := range c.args {
		if strings.Contains(a, typePlaceholder) {
			a = strings.ReplaceAll(a, typePlaceholder, string(conversion))
			replaced = true
		}
		args = append(args, a)
	}
	if !replaced {
		args = append(args, string(conversion))
	}
	return args
}
