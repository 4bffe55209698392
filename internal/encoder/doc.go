// Package encoder writes ntuple entries to columnar files.
//
// # Supported Formats
//
//   - Parquet: one column per layout field, repeated leaves for sequences
//   - Avro: Object Container File with array fields for sequences
//
// # Encoder Factory
//
//	factory := encoder.NewFactory(fieldstore.FormatParquet, "snappy")
//	enc, err := factory.CreateEncoder()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Encoding Entries
//
// All encoders implement the pkg/encoder.Encoder interface:
//
//	layout := fieldstore.Layout{
//	    {Name: "run", Kind: fieldstore.KindInt64},
//	    {Name: "rechit_energy", Kind: fieldstore.KindFloat32, Sequence: true},
//	}
//	stats, err := enc.Encode(filePath, layout, entries)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Encoded %d entries, %d bytes\n",
//	    stats.EntryCount, stats.SizeBytes)
//
// Values are coerced to the layout kind, so an int literal may fill an
// int32 column. A missing field fails the whole file.
//
// # Compression Options
//
//	Parquet: "snappy" (default), "gzip", "lz4", "zstd", "uncompressed"
//	Avro:    "gzip" (default, whole file), "uncompressed"
//
// The files written here are read back by the decoder package.
package encoder
