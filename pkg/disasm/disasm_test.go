package disasm_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MuchToMyDelight/hotspot/pkg/disasm"
)

const listing = `fib:     file format elf64-x86-64


Disassembly of section .text:

0000000000001129 <compute>:
compute():
/home/user/project/compute.c:3
    1129:	endbr64
    112d:	push   %rbp
/home/user/project/compute.c:4
    1131:	mov    %edi,%eax
/usr/include/bits/mathcalls.h:123 (discriminator 2)
    1134:	imul   %edi,%eax
/home/user/project/compute.c:6
    1137:	ret

000000000000113c <main>:
main():
/home/user/project/main.c:10
    113c:	endbr64
    1140:	call   1129 <compute>
`

func TestParse(t *testing.T) {
	out, err := disasm.Parse(strings.NewReader(listing), "compute")
	require.NoError(t, err)
	require.Equal(t, "compute", out.Symbol)
	require.Equal(t, "/home/user/project/compute.c", out.MainSourceFileName)
	require.Equal(t, []disasm.Line{
		{Address: 0x1129, Text: "endbr64", SourceFile: "/home/user/project/compute.c", SourceLine: 3},
		{Address: 0x112d, Text: "push   %rbp", SourceFile: "/home/user/project/compute.c", SourceLine: 3},
		{Address: 0x1131, Text: "mov    %edi,%eax", SourceFile: "/home/user/project/compute.c", SourceLine: 4},
		{Address: 0x1134, Text: "imul   %edi,%eax", SourceFile: "/usr/include/bits/mathcalls.h", SourceLine: 123},
		{Address: 0x1137, Text: "ret", SourceFile: "/home/user/project/compute.c", SourceLine: 6},
	}, out.Lines)
}

func TestParseStopsAtNextSymbol(t *testing.T) {
	out, err := disasm.Parse(strings.NewReader(listing), "compute")
	require.NoError(t, err)
	for _, line := range out.Lines {
		require.Less(t, line.Address, uint64(0x113c))
	}
}

func TestParseSecondSymbol(t *testing.T) {
	out, err := disasm.Parse(strings.NewReader(listing), "main")
	require.NoError(t, err)
	require.Equal(t, "/home/user/project/main.c", out.MainSourceFileName)
	require.Len(t, out.Lines, 2)
	require.Equal(t, uint64(0x113c), out.Lines[0].Address)
	require.Equal(t, uint64(0x1140), out.Lines[1].Address)
	require.Equal(t, 10, out.Lines[1].SourceLine)
}

func TestParseSymbolNotFound(t *testing.T) {
	_, err := disasm.Parse(strings.NewReader(listing), "missing")
	require.ErrorIs(t, err, disasm.ErrSymbolNotFound)

	_, err = disasm.Parse(strings.NewReader(""), "compute")
	require.ErrorIs(t, err, disasm.ErrSymbolNotFound)
}

func TestParseEmptySymbol(t *testing.T) {
	_, err := disasm.Parse(strings.NewReader(listing), "")
	require.Error(t, err)
}

func TestParseWithoutLineInfo(t *testing.T) {
	raw := `
0000000000001000 <_start>:
    1000:	endbr64
    1004:	xor    %ebp,%ebp
`
	out, err := disasm.Parse(strings.NewReader(raw), "_start")
	require.NoError(t, err)
	require.Equal(t, "", out.MainSourceFileName)
	require.Equal(t, []disasm.Line{
		{Address: 0x1000, Text: "endbr64"},
		{Address: 0x1004, Text: "xor    %ebp,%ebp"},
	}, out.Lines)
}

func TestParseMainFileMajority(t *testing.T) {
	raw := `
0000000000001000 <f>:
/tmp/inline.h:1
    1000:	nop
/tmp/f.c:2
    1001:	nop
/tmp/f.c:3
    1002:	nop
`
	out, err := disasm.Parse(strings.NewReader(raw), "f")
	require.NoError(t, err)
	require.Equal(t, "/tmp/f.c", out.MainSourceFileName)
}

func TestParseMainFileTie(t *testing.T) {
	raw := `
0000000000001000 <f>:
/tmp/a.c:1
    1000:	nop
/tmp/b.c:2
    1001:	nop
`
	out, err := disasm.Parse(strings.NewReader(raw), "f")
	require.NoError(t, err)
	require.Equal(t, "/tmp/a.c", out.MainSourceFileName)
}
