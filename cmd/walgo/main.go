package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jacktea/walgo/pkg/encryption"
	"github.com/jacktea/walgo/pkg/journal"
	"github.com/jacktea/walgo/pkg/transport"
	"github.com/jacktea/walgo/pkg/walrus"
)

var log = logging.Logger("walgo/cmd")

type app struct {
	client  *walrus.Client
	journal *journal.Journal
}

type clientOptions struct {
	Aggregator   string
	Publisher    string
	Timeout      time.Duration
	Retries      int
	CacheEntries int
	CacheTTL     time.Duration
}

func buildClient(opts clientOptions) (*walrus.Client, error) {
	httpClient := transport.NewHTTPClient(transport.Options{
		Timeout:    opts.Timeout,
		MaxRetries: opts.Retries,
	})
	return walrus.New(walrus.Config{
		AggregatorURL: opts.Aggregator,
		PublisherURL:  opts.Publisher,
		HTTPClient:    httpClient,
		CacheEntries:  opts.CacheEntries,
		CacheTTL:      opts.CacheTTL,
	})
}

func (a *app) ensureClient() error {
	if a.client != nil {
		return nil
	}
	client, err := buildClient(clientOptions{
		Aggregator:   viper.GetString("aggregator"),
		Publisher:    viper.GetString("publisher"),
		Timeout:      viper.GetDuration("timeout"),
		Retries:      viper.GetInt("retries"),
		CacheEntries: viper.GetInt("cache_entries"),
		CacheTTL:     viper.GetDuration("cache_ttl"),
	})
	if err != nil {
		return err
	}
	a.client = client
	return nil
}

func (a *app) ensureJournal() error {
	if a.journal != nil {
		return nil
	}
	path := viper.GetString("journal")
	if path == "" {
		return errors.New("journal path not configured")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	j, err := journal.Open(journal.Config{Path: path})
	if err != nil {
		return err
	}
	a.journal = j
	return nil
}

func (a *app) close() {
	if a.client != nil {
		_ = a.client.Close()
	}
	if a.journal != nil {
		_ = a.journal.Close()
	}
}

func encryptionOptions() (encryption.Options, error) {
	if !viper.GetBool("encrypt") {
		return encryption.Options{}, nil
	}
	k := viper.GetString("key")
	if k == "" {
		return encryption.Options{}, errors.New("encryption enabled but key missing")
	}
	decoded, err := hex.DecodeString(k)
	if err != nil || len(decoded) != 32 {
		return encryption.Options{}, errors.New("encryption key must be 32 bytes of hex")
	}
	return encryption.Options{Method: encryption.MethodAES256GCM, Key: decoded}, nil
}

var (
	cfgFile     string
	application = &app{}
	rootCmd     = &cobra.Command{
		Use:           "walgo",
		Short:         "walgo blob and quilt storage CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if lvl := viper.GetString("log_level"); lvl != "" {
				level, err := logging.LevelFromString(lvl)
				if err != nil {
					return fmt.Errorf("invalid log level %q: %w", lvl, err)
				}
				logging.SetAllLoggers(level)
			}
			return application.ensureClient()
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	initRootFlags()
	initCommands()
}

func main() {
	defer application.close()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("walgo")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "walgo"))
		}
	}
	viper.SetEnvPrefix("WALGO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			fmt.Fprintf(os.Stderr, "read config: %v\n", err)
		}
	}
}

func bindConfig(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func initRootFlags() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (TOML or YAML)")

	rootCmd.PersistentFlags().String("aggregator", "", "aggregator base URL (reads)")
	rootCmd.PersistentFlags().String("publisher", "", "publisher base URL (stores)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "per-request timeout (0 disables)")
	rootCmd.PersistentFlags().Int("retries", 0, "retries for read requests (0 disables)")
	rootCmd.PersistentFlags().Int("cache-entries", 0, "read cache capacity (0 disables)")
	rootCmd.PersistentFlags().Duration("cache-ttl", time.Minute, "read cache entry lifetime")
	rootCmd.PersistentFlags().String("journal", defaultJournalPath(), "path to the local store receipt journal")
	rootCmd.PersistentFlags().Bool("encrypt", false, "encrypt payloads before store, decrypt after read")
	rootCmd.PersistentFlags().String("key", "", "hex-encoded 32-byte key when encryption enabled")
	rootCmd.PersistentFlags().Bool("json", false, "emit JSON instead of text")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	bindConfig("aggregator", rootCmd.PersistentFlags().Lookup("aggregator"))
	bindConfig("publisher", rootCmd.PersistentFlags().Lookup("publisher"))
	bindConfig("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	bindConfig("retries", rootCmd.PersistentFlags().Lookup("retries"))
	bindConfig("cache_entries", rootCmd.PersistentFlags().Lookup("cache-entries"))
	bindConfig("cache_ttl", rootCmd.PersistentFlags().Lookup("cache-ttl"))
	bindConfig("journal", rootCmd.PersistentFlags().Lookup("journal"))
	bindConfig("encrypt", rootCmd.PersistentFlags().Lookup("encrypt"))
	bindConfig("key", rootCmd.PersistentFlags().Lookup("key"))
	bindConfig("json", rootCmd.PersistentFlags().Lookup("json"))
	bindConfig("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func defaultJournalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".walgo/journal.db"
	}
	return filepath.Join(home, ".walgo", "journal.db")
}

func initCommands() {
	rootCmd.AddCommand(
		newStoreCmd(),
		newReadCmd(),
		newReadObjectCmd(),
		newStoreQuiltCmd(),
		newReadPatchCmd(),
		newReadQuiltCmd(),
		newHeadCmd(),
		newHistoryCmd(),
		newPruneCmd(),
	)
}

func storeFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64("epochs", 0, "epochs to keep the blob stored (0 uses the network default)")
	cmd.Flags().Bool("deletable", false, "mark the blob deletable")
	cmd.Flags().Bool("permanent", false, "request permanent storage")
	cmd.Flags().String("send-object-to", "", "address to send the created object to")
	cmd.Flags().Bool("force", false, "store even if already certified")
}

func storeOptionsFromFlags(cmd *cobra.Command) (walrus.StoreOptions, error) {
	epochs, err := cmd.Flags().GetUint64("epochs")
	if err != nil {
		return walrus.StoreOptions{}, err
	}
	deletable, _ := cmd.Flags().GetBool("deletable")
	permanent, _ := cmd.Flags().GetBool("permanent")
	sendTo, _ := cmd.Flags().GetString("send-object-to")
	force, _ := cmd.Flags().GetBool("force")
	return walrus.StoreOptions{
		Epochs:       epochs,
		Deletable:    deletable,
		Permanent:    permanent,
		SendObjectTo: sendTo,
		Force:        force,
	}, nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func newStoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store <file|->",
		Short: "Store a blob from a file or stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			encOpts, err := encryptionOptions()
			if err != nil {
				return err
			}
			data, err = encryption.Encrypt(data, encOpts)
			if err != nil {
				return err
			}
			opts, err := storeOptionsFromFlags(cmd)
			if err != nil {
				return err
			}
			result, err := application.client.StoreBlob(cmd.Context(), data, opts)
			if err != nil {
				return err
			}
			recordStore(journal.Record{
				BlobID:    string(result.BlobID()),
				Kind:      "blob",
				Outcome:   outcomeName(result),
				EndEpoch:  result.EndEpoch(),
				Deletable: opts.Deletable,
				Size:      uint64(len(data)),
			})
			return printStoreResult(result)
		},
	}
	storeFlags(cmd)
	return cmd
}

func newStoreQuiltCmd() *cobra.Command {
	var tags []string
	cmd := &cobra.Command{
		Use:   "store-quilt <name=path>...",
		Short: "Pack named files into one stored quilt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			encOpts, err := encryptionOptions()
			if err != nil {
				return err
			}
			files := make([]walrus.QuiltFile, 0, len(args))
			for _, arg := range args {
				name, path, ok := strings.Cut(arg, "=")
				if !ok || name == "" {
					return fmt.Errorf("argument %q must be name=path", arg)
				}
				data, err := readInput(path)
				if err != nil {
					return err
				}
				data, err = encryption.Encrypt(data, encOpts)
				if err != nil {
					return err
				}
				files = append(files, walrus.QuiltFile{Identifier: name, Data: data})
			}
			opts, err := storeOptionsFromFlags(cmd)
			if err != nil {
				return err
			}
			opts.Metadata, err = parseQuiltTags(tags)
			if err != nil {
				return err
			}
			result, err := application.client.StoreQuilt(cmd.Context(), files, opts)
			if err != nil {
				return err
			}
			patches := make([]journal.Patch, len(result.StoredQuiltBlobs))
			for i, b := range result.StoredQuiltBlobs {
				patches[i] = journal.Patch{Identifier: b.Identifier, QuiltPatchID: b.QuiltPatchID}
			}
			recordStore(journal.Record{
				BlobID:    string(result.BlobStoreResult.BlobID()),
				Kind:      "quilt",
				Outcome:   outcomeName(&result.BlobStoreResult),
				EndEpoch:  result.BlobStoreResult.EndEpoch(),
				Deletable: opts.Deletable,
				Patches:   patches,
			})
			return printQuiltStoreResult(result)
		},
	}
	storeFlags(cmd)
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "per-file tag as name=key=value (repeatable)")
	return cmd
}

// parseQuiltTags folds repeated name=key=value flags into per-file metadata.
func parseQuiltTags(raw []string) ([]walrus.QuiltFileMetadata, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	byName := map[string]map[string]string{}
	var order []string
	for _, entry := range raw {
		parts := strings.SplitN(entry, "=", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("tag %q must be name=key=value", entry)
		}
		if byName[parts[0]] == nil {
			byName[parts[0]] = map[string]string{}
			order = append(order, parts[0])
		}
		byName[parts[0]][parts[1]] = parts[2]
	}
	meta := make([]walrus.QuiltFileMetadata, 0, len(order))
	for _, name := range order {
		meta = append(meta, walrus.QuiltFileMetadata{Identifier: name, Tags: byName[name]})
	}
	return meta, nil
}

func newReadCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "read <blob-id>",
		Short: "Read a blob by its ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doRead(cmd.Context(), out, func(ctx context.Context) ([]byte, error) {
				return application.client.ReadBlob(ctx, args[0])
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write payload to file instead of stdout")
	return cmd
}

func newReadObjectCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "read-object <object-id>",
		Short: "Read a blob by the ID of its owning object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doRead(cmd.Context(), out, func(ctx context.Context) ([]byte, error) {
				return application.client.ReadBlobByObjectID(ctx, args[0])
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write payload to file instead of stdout")
	return cmd
}

func newReadPatchCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "read-patch <patch-id>",
		Short: "Read one file of a quilt by its patch ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := walrus.ParseQuiltPatchID(args[0]); err != nil {
				return err
			}
			return doRead(cmd.Context(), out, func(ctx context.Context) ([]byte, error) {
				return application.client.ReadQuiltPatch(ctx, args[0])
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write payload to file instead of stdout")
	return cmd
}

func newReadQuiltCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "read-quilt <quilt-id> <identifier>",
		Short: "Read one file of a quilt by the quilt ID and file name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doRead(cmd.Context(), out, func(ctx context.Context) ([]byte, error) {
				return application.client.ReadQuiltBlob(ctx, args[0], args[1])
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write payload to file instead of stdout")
	return cmd
}

func doRead(ctx context.Context, out string, fetch func(context.Context) ([]byte, error)) error {
	data, err := fetch(ctx)
	if err != nil {
		return err
	}
	encOpts, err := encryptionOptions()
	if err != nil {
		return err
	}
	data, err = encryption.Decrypt(data, encOpts)
	if err != nil {
		return err
	}
	return writeOutput(out, data)
}

func newHeadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "head <blob-id>",
		Short: "Show blob metadata without fetching the payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := application.client.BlobMetadata(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{
					"contentLength": meta.ContentLength,
					"contentType":   meta.ContentType,
					"etag":          meta.ETag,
				})
			}
			fmt.Printf("size: %d\ntype: %s\netag: %s\n", meta.ContentLength, meta.ContentType, meta.ETag)
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List locally recorded store receipts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := application.ensureJournal(); err != nil {
				return err
			}
			recs, err := application.journal.List()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(recs)
			}
			for _, rec := range recs {
				fmt.Printf("%s  %-5s  %-16s  end-epoch=%d  %s\n",
					rec.StoredAt.Format(time.RFC3339), rec.Kind, rec.Outcome, rec.EndEpoch, rec.BlobID)
				for _, p := range rec.Patches {
					fmt.Printf("    %s  %s\n", p.Identifier, p.QuiltPatchID)
				}
			}
			return nil
		},
	}
}

func newPruneCmd() *cobra.Command {
	var epoch uint64
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Drop receipts whose storage lapsed at or before the given epoch",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := application.ensureJournal(); err != nil {
				return err
			}
			n, err := application.journal.Prune(epoch, 0)
			if err != nil {
				return err
			}
			fmt.Printf("pruned %d receipts\n", n)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&epoch, "epoch", 0, "current network epoch")
	_ = cmd.MarkFlagRequired("epoch")
	return cmd
}

// recordStore writes a receipt best-effort; a journal failure never fails
// the store that already succeeded on the network.
func recordStore(rec journal.Record) {
	if err := application.ensureJournal(); err != nil {
		log.Warnw("journal unavailable", "err", err)
		return
	}
	if err := application.journal.Record(rec); err != nil {
		log.Warnw("journal record failed", "blobId", rec.BlobID, "err", err)
	}
}

func outcomeName(result *walrus.StoreResult) string {
	if _, ok := result.NewlyCreated(); ok {
		return "newlyCreated"
	}
	return "alreadyCertified"
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStoreResult(result *walrus.StoreResult) error {
	if viper.GetBool("json") {
		out := map[string]any{"blobId": result.BlobID(), "endEpoch": result.EndEpoch(), "outcome": outcomeName(result)}
		if created, ok := result.NewlyCreated(); ok {
			out["newlyCreated"] = created
		} else if certified, ok := result.AlreadyCertified(); ok {
			out["alreadyCertified"] = certified
		}
		return printJSON(out)
	}
	fmt.Printf("%s  blob-id=%s  end-epoch=%d\n", outcomeName(result), result.BlobID(), result.EndEpoch())
	return nil
}

func printQuiltStoreResult(result *walrus.QuiltStoreResult) error {
	if viper.GetBool("json") {
		out := map[string]any{
			"blobId":           result.BlobStoreResult.BlobID(),
			"endEpoch":         result.BlobStoreResult.EndEpoch(),
			"outcome":          outcomeName(&result.BlobStoreResult),
			"storedQuiltBlobs": result.StoredQuiltBlobs,
		}
		return printJSON(out)
	}
	fmt.Printf("%s  quilt-id=%s  end-epoch=%d\n",
		outcomeName(&result.BlobStoreResult), result.BlobStoreResult.BlobID(), result.BlobStoreResult.EndEpoch())
	for _, b := range result.StoredQuiltBlobs {
		fmt.Printf("  %s  %s\n", b.Identifier, b.QuiltPatchID)
	}
	return nil
}
