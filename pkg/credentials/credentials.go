// Package credentials resolves API keys, asking the user once and storing the
// answer in a .env file when a key is missing.
package credentials

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// ErrNoCredential is returned when the user gives an empty answer.
var ErrNoCredential = errors.New("no credential provided")

// Provider returns the value for key, prompting for it if necessary.
type Provider interface {
	GetOrPrompt(key string) (string, error)
}

// DotEnv looks a key up in the process environment and then in a .env file.
// Missing keys are read from In and written back to the file.
type DotEnv struct {
	Path string // defaults to ".env"
	In   io.Reader
	Out  io.Writer

	reader *bufio.Reader
}

var _ Provider = (*DotEnv)(nil)

// NewDotEnv creates a provider bound to stdin and stdout.
func NewDotEnv(path string) *DotEnv {
	return &DotEnv{Path: path, In: os.Stdin, Out: os.Stdout}
}

func (d *DotEnv) path() string {
	if d.Path == "" {
		return ".env"
	}
	return d.Path
}

func (d *DotEnv) GetOrPrompt(key string) (string, error) {
	if v := os.Getenv(key); v != "" {
		return v, nil
	}

	env, err := godotenv.Read(d.path())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("reading %s: %w", d.path(), err)
		}
		env = map[string]string{}
	}
	if v := env[key]; v != "" {
		os.Setenv(key, v)
		return v, nil
	}

	fmt.Fprintf(d.Out, "%s not found in .env file.\n", key)
	fmt.Fprintf(d.Out, "Please enter your %s: ", key)

	if d.reader == nil {
		d.reader = bufio.NewReader(d.In)
	}
	line, err := d.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	value := strings.TrimSpace(line)
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrNoCredential, key)
	}

	env[key] = value
	if err := godotenv.Write(env, d.path()); err != nil {
		return "", fmt.Errorf("saving %s: %w", key, err)
	}
	os.Setenv(key, value)
	return value, nil
}
