package extract

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/lu4p/cat"
)

// loadPlain returns content as string, validating it is valid UTF-8.
// Invalid UTF-8 sequences are replaced with the replacement character.
func loadPlain(_ string, content []byte) (string, error) {
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "�"))
	}
	return string(content), nil
}

// loadCSV joins each record's cells with tabs and records with newlines so
// tabular content stays line-oriented for chunking.
func loadCSV(_ string, content []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	var b strings.Builder
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		b.WriteString(strings.Join(record, "\t"))
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String()), nil
}

// loadWithCat extracts text from ODT and RTF files via lu4p/cat, which wants
// a path rather than bytes.
func loadWithCat(path string, _ []byte) (string, error) {
	text, err := cat.File(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
