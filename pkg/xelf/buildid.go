package xelf

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"io"
	"os"
)

// ErrNoBuildID means the binary carries neither a GNU build id note
// nor a Go build id.
var ErrNoBuildID = errors.New("xelf: no build id note")

const (
	ntGNUBuildID = 3
	ntGoBuildID  = 4

	// Corrupt note headers must not trigger huge reads.
	noteNameSizeLimit = 16
	noteDescSizeLimit = 256
)

// GetBuildID extracts the id perf and debuginfod identify a binary by,
// the Go build id if present, the GNU build id note otherwise.
func GetBuildID(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	return ReadBuildID(f)
}

func ReadBuildID(r io.ReaderAt) (string, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	goid, gnuid := "", ""
	visit := func(rs io.ReadSeeker) {
		walkNotes(f.ByteOrder, rs, func(name string, typ uint32, desc []byte) {
			switch {
			case name == "Go" && typ == ntGoBuildID:
				goid = string(desc)
			case name == "GNU" && typ == ntGNUBuildID:
				gnuid = hex.EncodeToString(desc)
			}
		})
	}

	for _, scn := range f.Sections {
		if scn.Type == elf.SHT_NOTE {
			visit(scn.Open())
		}
	}
	if goid == "" && gnuid == "" {
		// Stripped binaries may keep notes only in the program headers.
		for _, prog := range f.Progs {
			if prog.Type == elf.PT_NOTE {
				visit(prog.Open())
			}
		}
	}

	if goid != "" {
		return goid, nil
	}
	if gnuid != "" {
		return gnuid, nil
	}
	return "", ErrNoBuildID
}

// walkNotes decodes a note stream: three u32s of header, then name and
// description, each padded to 4 bytes. Truncated or oversized entries
// end the walk.
func walkNotes(order binary.ByteOrder, r io.ReadSeeker, visit func(name string, typ uint32, desc []byte)) {
	for {
		var hdr struct {
			NameSize uint32
			DescSize uint32
			Type     uint32
		}
		if err := binary.Read(r, order, &hdr); err != nil {
			return
		}
		if hdr.NameSize > noteNameSizeLimit || hdr.DescSize > noteDescSizeLimit {
			return
		}
		name, err := readPadded(r, hdr.NameSize)
		if err != nil {
			return
		}
		desc, err := readPadded(r, hdr.DescSize)
		if err != nil {
			return
		}
		visit(string(name), hdr.Type, desc)
	}
}

func readPadded(r io.ReadSeeker, size uint32) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	if mod := int64(size) % 4; mod != 0 {
		if _, err := r.Seek(4-mod, io.SeekCurrent); err != nil {
			return nil, err
		}
	}
	return bytes.TrimRight(buf, "\x00"), nil
}
