package cmd

import (
	"bufio"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"greenquote/internal/archive"
	"greenquote/internal/types"
)

const monthLayout = "2006-01"

type archiveOptions struct {
	input  string
	outDir string
	bucket string
	region string
	month  string
}

func newArchiveCmd(opts *rootOptions) *cobra.Command {
	a := &archiveOptions{}
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Export a month of quotes per account as .jsonl.zst",
		Long: `Archive reads quotes as JSON lines (one quote per line, as produced by the
API) and writes every quote created in the chosen month to one
zstd-compressed object per account, keyed quotes/<account>/<yyyy>/<mm>.jsonl.zst.

Objects go to --out-dir, or to --bucket in S3. The month defaults to the
previous UTC calendar month.

Examples:
  quotectl archive --input quotes.jsonl --out-dir ./archive
  quotectl archive --input quotes.jsonl --month 2026-09 --bucket greenquote-archive
  quotectl archive cat ./archive/quotes/acct_1/2026/09.jsonl.zst`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchive(cmd, opts, a)
		},
	}
	cmd.Flags().StringVarP(&a.input, "input", "i", "", "JSON-lines file of quotes (- for stdin)")
	cmd.Flags().StringVarP(&a.outDir, "out-dir", "o", "", "write objects under this directory")
	cmd.Flags().StringVar(&a.bucket, "bucket", "", "upload objects to this S3 bucket")
	cmd.Flags().StringVar(&a.region, "region", "", "AWS region for --bucket (default from the environment)")
	cmd.Flags().StringVar(&a.month, "month", "", "month to export as YYYY-MM (default: previous month)")
	cmd.MarkFlagsMutuallyExclusive("out-dir", "bucket")

	cmd.AddCommand(newArchiveCatCmd())
	return cmd
}

func runArchive(cmd *cobra.Command, opts *rootOptions, a *archiveOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if a.input == "" {
		return fmt.Errorf("--input is required")
	}
	if a.outDir == "" && a.bucket == "" {
		return fmt.Errorf("one of --out-dir or --bucket is required")
	}

	start, end := archive.PreviousMonth(time.Now())
	if a.month != "" {
		t, err := time.Parse(monthLayout, a.month)
		if err != nil {
			return fmt.Errorf("invalid month %q: want YYYY-MM", a.month)
		}
		start, end = t, t.AddDate(0, 1, 0)
	}

	src, err := openQuotes(cmd, a.input)
	if err != nil {
		return err
	}

	var store archive.S3API = dirStore{root: a.outDir}
	bucket := ""
	if a.bucket != "" {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if a.region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(a.region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return fmt.Errorf("loading AWS config: %w", err)
		}
		store, bucket = s3.NewFromConfig(awsCfg), a.bucket
	}

	res, err := archive.NewExporter(src, store, bucket, nil, opts.logger(cmd)).Export(ctx, start, end)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if opts.format == formatJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "Archived %d quotes for %d accounts (%s)\n", res.Quotes, res.Accounts, start.Format(monthLayout))
	for _, k := range res.Keys {
		fmt.Fprintf(w, "  %s\n", k)
	}
	return nil
}

func newArchiveCatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat FILE",
		Short: "Decompress an archive object to JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			quotes, err := archive.ReadAll(f)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, q := range quotes {
				if err := enc.Encode(q); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// quoteFile is an in-memory QuoteSource loaded from a JSON-lines file.
type quoteFile struct {
	quotes []*types.Quote
}

func openQuotes(cmd *cobra.Command, path string) (*quoteFile, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return readQuotes(r)
}

func readQuotes(r io.Reader) (*quoteFile, error) {
	src := &quoteFile{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var q types.Quote
		if err := json.Unmarshal(scanner.Bytes(), &q); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		src.quotes = append(src.quotes, &q)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return src, nil
}

// ListCreatedBetween yields quotes in [start, end) ordered like the
// repository: by account, then creation time, then ID.
func (s *quoteFile) ListCreatedBetween(_ context.Context, start, end time.Time, fn func(*types.Quote) error) error {
	var window []*types.Quote
	for _, q := range s.quotes {
		if !q.CreatedAt.Before(start) && q.CreatedAt.Before(end) {
			window = append(window, q)
		}
	}
	slices.SortFunc(window, func(a, b *types.Quote) int {
		return cmp.Or(
			cmp.Compare(a.AccountID, b.AccountID),
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(a.ID, b.ID),
		)
	})
	for _, q := range window {
		if err := fn(q); err != nil {
			return err
		}
	}
	return nil
}

// dirStore writes objects to a local directory tree in place of a bucket.
type dirStore struct {
	root string
}

func (d dirStore) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	path := filepath.Join(d.root, filepath.FromSlash(aws.ToString(in.Key)))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(f, in.Body); err != nil {
		f.Close()
		return nil, err
	}
	return &s3.PutObjectOutput{}, f.Close()
}
