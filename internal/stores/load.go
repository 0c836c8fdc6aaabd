package stores

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var (
	// ErrIO is returned when the store file cannot be opened or read.
	ErrIO = eris.New("stores: cannot read store file")
	// ErrFormat is returned when required columns are missing or a row does
	// not decode.
	ErrFormat = eris.New("stores: malformed store file")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load reads every record from the delimited store file at path.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(ErrIO, "stores: open %s: %v", path, err)
	}
	defer f.Close()

	records, err := Decode(f)
	if err != nil {
		return nil, eris.Wrapf(err, "stores: load %s", path)
	}

	zap.L().Info("stores: loaded records",
		zap.String("component", "stores.loader"),
		zap.String("path", path),
		zap.Int("records", len(records)),
	)
	return records, nil
}

// Decode reads records from r. The first line must be a header containing
// RequiredColumns; unknown columns are ignored.
func Decode(r io.Reader) ([]Record, error) {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.LazyQuotes = true

	dec, err := csvutil.NewDecoder(reader)
	if err == io.EOF {
		return nil, eris.Wrap(ErrFormat, "stores: empty file, no header")
	}
	if err != nil {
		return nil, eris.Wrapf(ErrFormat, "stores: read header: %v", err)
	}

	if missing := missingColumns(dec.Header()); len(missing) > 0 {
		return nil, eris.Wrapf(ErrFormat, "stores: missing required columns: %s", strings.Join(missing, ", "))
	}

	var records []Record
	for line := 2; ; line++ {
		var rec Record
		err := dec.Decode(&rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(ErrFormat, "stores: decode record %d: %v", line-1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func missingColumns(header []string) []string {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[strings.TrimSpace(h)] = true
	}
	var missing []string
	for _, c := range RequiredColumns {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	return missing
}
