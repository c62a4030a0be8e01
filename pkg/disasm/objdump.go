package disasm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

type Options struct {
	// Objdump is the disassembler binary, "objdump" when empty.
	// Cross builds point this at e.g. aarch64-linux-gnu-objdump.
	Objdump string
	Binary  string
	Symbol  string
}

// Disassemble runs objdump over the binary and parses the listing of
// the requested symbol.
func Disassemble(ctx context.Context, opts Options) (*Output, error) {
	if opts.Binary == "" {
		return nil, errors.New("disasm: no binary given")
	}
	if opts.Symbol == "" {
		return nil, errors.New("disasm: no symbol given")
	}
	objdump := opts.Objdump
	if objdump == "" {
		objdump = "objdump"
	}

	args := []string{
		"--disassemble=" + opts.Symbol,
		"-l",
		"--no-show-raw-insn",
		opts.Binary,
	}
	cmd := exec.CommandContext(ctx, objdump, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("disasm: %s: %w: %s", objdump, err, msg)
		}
		return nil, fmt.Errorf("disasm: %s: %w", objdump, err)
	}

	return Parse(&stdout, opts.Symbol)
}
