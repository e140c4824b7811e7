package ledger

import (
	"bytes"
	"fmt"

	"github.com/gocarina/gocsv"
	"github.com/parquet-go/parquet-go"
)

// Encode writes records in the given format
func Encode(f Format, records []Record) ([]byte, error) {
	switch f {
	case FormatCSV:
		return EncodeCSV(records)
	case FormatParquet:
		return EncodeParquet(records)
	default:
		return nil, fmt.Errorf("unknown ledger format %q", f)
	}
}

// Decode reads records in the given format
func Decode(f Format, data []byte) ([]Record, error) {
	switch f {
	case FormatCSV:
		return DecodeCSV(data)
	case FormatParquet:
		return DecodeParquet(data)
	default:
		return nil, fmt.Errorf("unknown ledger format %q", f)
	}
}

// EncodeCSV writes a header row followed by one row per record. An empty
// ledger still gets its header.
func EncodeCSV(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	var buf bytes.Buffer
	if err := gocsv.Marshal(&records, &buf); err != nil {
		return nil, fmt.Errorf("encoding csv ledger: %w", err)
	}
	return buf.Bytes(), nil
}

func DecodeCSV(data []byte) ([]Record, error) {
	var records []Record
	if err := gocsv.Unmarshal(bytes.NewReader(data), &records); err != nil {
		return nil, fmt.Errorf("decoding csv ledger: %w", err)
	}
	return records, nil
}

func EncodeParquet(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := parquet.Write(&buf, records); err != nil {
		return nil, fmt.Errorf("encoding parquet ledger: %w", err)
	}
	return buf.Bytes(), nil
}

func DecodeParquet(data []byte) ([]Record, error) {
	records, err := parquet.Read[Record](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("decoding parquet ledger: %w", err)
	}
	return records, nil
}
