// ABOUTME: ICY metadata demuxing for Shoutcast/Icecast streams
// ABOUTME: Strips interleaved metadata blocks and reports StreamTitle changes
package icy

import (
	"fmt"
	"io"
	"strings"
)

// MaxBlock is the largest metadata payload: 255 * 16 bytes.
const MaxBlock = 255 * 16

// Reader yields only audio bytes from a stream with metaInt-spaced metadata.
type Reader struct {
	r       io.Reader
	metaInt int
	left    int // audio bytes until the next metadata block
	onMeta  func(string)
	last    string
	buf     [MaxBlock]byte
}

// NewReader wraps r. onMeta is called with the raw metadata text whenever it
// differs from the previous block; empty blocks are skipped.
func NewReader(r io.Reader, metaInt int, onMeta func(string)) *Reader {
	return &Reader{r: r, metaInt: metaInt, left: metaInt, onMeta: onMeta}
}

func (ir *Reader) Read(p []byte) (int, error) {
	if ir.left == 0 {
		if err := ir.readBlock(); err != nil {
			return 0, err
		}
		ir.left = ir.metaInt
	}

	if len(p) > ir.left {
		p = p[:ir.left]
	}
	n, err := ir.r.Read(p)
	ir.left -= n
	return n, err
}

func (ir *Reader) readBlock() error {
	var lenByte [1]byte
	if _, err := io.ReadFull(ir.r, lenByte[:]); err != nil {
		return err
	}

	size := int(lenByte[0]) * 16
	if size == 0 {
		return nil
	}

	if _, err := io.ReadFull(ir.r, ir.buf[:size]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("icy metadata: %w", err)
	}

	text := strings.TrimRight(string(ir.buf[:size]), "\x00")
	if text != "" && text != ir.last {
		ir.last = text
		if ir.onMeta != nil {
			ir.onMeta(text)
		}
	}
	return nil
}

// Field finds Key='value'; in a semicolon-separated ICY string.
func Field(meta string, key string) string {
	keyEq := key + "='"
	if i := strings.Index(meta, keyEq); i >= 0 {
		rest := meta[i+len(keyEq):]
		if j := strings.Index(rest, "';"); j >= 0 {
			return rest[:j]
		}
		return strings.TrimSuffix(rest, "'")
	}
	return ""
}

// Title extracts StreamTitle from a metadata block.
func Title(meta string) string {
	return Field(meta, "StreamTitle")
}
