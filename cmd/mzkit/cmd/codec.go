package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/mzkit/pkg/codec"
	"github.com/spf13/cobra"
)

var (
	// Flags for codec commands
	codecEncoding    string
	codecCompression string
	codecLength      int
)

var codecCmd = &cobra.Command{
	Use:   "codec",
	Short: "Encode or decode mzML binary data arrays",
	Long: `Convert between numbers and the base64 text of mzML binary data arrays.

Examples:
  mzkit codec encode 100.5 200.25 300
  echo "100.5 200.25" | mzkit codec encode --encoding float32 --compression none
  mzkit codec decode --length 3 eJxjYGD4...`,
}

var codecEncodeCmd = &cobra.Command{
	Use:   "encode [values...]",
	Short: "Encode numbers as base64 (reads stdin when no values are given)",
	RunE:  runCodecEncode,
}

var codecDecodeCmd = &cobra.Command{
	Use:   "decode [base64]",
	Short: "Decode base64 to numbers (reads stdin when no text is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCodecDecode,
}

func init() {
	codecCmd.PersistentFlags().StringVar(&codecEncoding, "encoding", "", "Encoding name or CV accession, e.g. float64le, MS:1000521 (overrides config)")
	codecCmd.PersistentFlags().StringVar(&codecCompression, "compression", "", "Compression: zlib, gzip or none (overrides config)")
	codecDecodeCmd.Flags().IntVar(&codecLength, "length", 0, "Number of encoded values (required)")
	codecDecodeCmd.MarkFlagRequired("length")

	codecCmd.AddCommand(codecEncodeCmd)
	codecCmd.AddCommand(codecDecodeCmd)
}

// newCLICodec builds the configured codec with flag overrides
func newCLICodec() (*codec.Codec, error) {
	if codecEncoding != "" {
		cfg.Codec.Encoding = codecEncoding
	}
	if codecCompression != "" {
		cfg.Codec.Compression = codecCompression
	}
	return cfg.NewCodec()
}

func runCodecEncode(cmd *cobra.Command, args []string) error {
	c, err := newCLICodec()
	if err != nil {
		return err
	}

	fields := args
	if len(fields) == 0 {
		fields, err = readStdinFields()
		if err != nil {
			return err
		}
	}

	values := make([]float64, len(fields))
	for i, f := range fields {
		values[i], err = strconv.ParseFloat(strings.Trim(f, ","), 64)
		if err != nil {
			return fmt.Errorf("invalid value '%s'", f)
		}
	}

	arr, err := c.EncodeArray(values)
	if err != nil {
		return err
	}
	stats := arr.Stats()

	fmt.Println(codec.EncodeBase64(arr.Data))
	fmt.Fprintf(os.Stderr, "%d values, %s, %s, %d -> %d bytes (ratio %.3f)\n",
		arr.Length, arr.Encoding, arr.Compression, stats.OriginalSize, stats.CompressedSize, stats.CompressionRatio())
	return nil
}

func runCodecDecode(cmd *cobra.Command, args []string) error {
	c, err := newCLICodec()
	if err != nil {
		return err
	}

	var text string
	if len(args) == 1 {
		text = args[0]
	} else {
		fields, err := readStdinFields()
		if err != nil {
			return err
		}
		text = strings.Join(fields, "")
	}

	values, err := c.DecodeBase64Array(text, codecLength)
	if err != nil {
		return err
	}
	for _, v := range values {
		fmt.Println(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return nil
}

// readStdinFields returns the whitespace-separated fields of stdin
func readStdinFields() ([]string, error) {
	var fields []string
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		fields = append(fields, strings.Fields(scanner.Text())...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading stdin: %w", err)
	}
	return fields, nil
}
