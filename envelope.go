package zarc

import (
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/distr1/zarc/internal/zstdframe"
)

func writeUnintendedMagic(w io.Writer) error {
	return zstdframe.WriteUnintendedMagicFrame(w, zarcHeaderPayload())
}

func writeStandardFrame(w io.Writer, r io.Reader, level zstd.EncoderLevel, hash io.Writer) (zstdframe.StandardFrameResult, error) {
	return zstdframe.WriteStandardFrame(w, r, level, hash)
}

func writeSkippable(w io.Writer, nibble int, payload []byte) error {
	return zstdframe.WriteSkippableFrame(w, nibble, payload)
}
