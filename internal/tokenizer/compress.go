package tokenizer

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/pierrec/lz4/v4"
)

// WriteRecords writes records in the "<subword>\t<rank>" line format.
func WriteRecords(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	for _, rec := range records {
		if _, err := bw.WriteString(rec.Subword); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := bw.WriteByte('\t'); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if _, err := bw.WriteString(strconv.FormatUint(rec.Rank, 10)); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush records: %w", err)
	}
	return nil
}

// CompressVocabulary writes v as an lz4 frame of records ordered by rank,
// the format DecodeCompressedVocabulary and the bundled assets use.
func CompressVocabulary(w io.Writer, v *Vocabulary) error {
	zw := lz4.NewWriter(w)
	if err := zw.Apply(lz4.CompressionLevelOption(lz4.Level9)); err != nil {
		return fmt.Errorf("configure lz4 writer: %w", err)
	}

	if err := WriteRecords(zw, v.Records()); err != nil {
		_ = zw.Close()
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close lz4 writer: %w", err)
	}
	return nil
}
